package crossval

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/patient"
	"ncats/chp/internal/reasoner"
	"ncats/chp/internal/testkit"
)

func TestReadWithheld(t *testing.T) {
	hashes, err := ReadWithheld(strings.NewReader("p2, p6\n\np9\n,p10,\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p6", "p9", "p10"}, hashes)

	_, err = ReadWithheld(strings.NewReader("\"unterminated\n"))
	assert.Equal(t, apperr.CodeInputValidation, apperr.GetCode(err))
}

// heldOut fuses every patient except p2 and p6
func heldOut(t *testing.T) (*reasoner.Reasoner, []patient.Record, []string) {
	t.Helper()
	all := testkit.Records()
	withheld := []string{"p2", "p6"}
	kept, _ := patient.Split(all, withheld)
	table := testkit.Ranges(t)
	h := testkit.Fuse(t, kept, table)
	return reasoner.New(h, table), all, withheld
}

func TestRun(t *testing.T) {
	r, all, withheld := heldOut(t)
	opts := Options{
		Target:       reasoner.MetaConstraint{Property: testkit.Outcome, Op: ">=", Value: 1000},
		GeneEvidence: true,
	}
	rep, err := Run(context.Background(), r, all, withheld, opts)
	require.NoError(t, err)
	require.Len(t, rep.Cases, 2)
	assert.Equal(t, 2, rep.Evaluated)

	// p2 (RAF1, BRCA1, 800): no kept patient has both genes, single-gene
	// rules split evenly between short and long survival
	p2 := rep.Cases[0]
	assert.Equal(t, "p2", p2.Patient)
	assert.False(t, p2.Actual)
	assert.Equal(t, 2, p2.Evidence)
	assert.True(t, p2.Degraded)
	assert.InDelta(t, 0.5, p2.Probability, 1e-12)

	// p6 (no genes, 1800): base rate of the kept patients
	p6 := rep.Cases[1]
	assert.True(t, p6.Actual)
	assert.Equal(t, 0, p6.Evidence)
	assert.InDelta(t, 0.5, p6.Probability, 1e-12)
	assert.NotEmpty(t, p6.Updates)

	assert.InDelta(t, 0.25, rep.Brier, 1e-12)
	assert.InDelta(t, 0.5, rep.Accuracy, 1e-12)
}

func TestRunCaseErrors(t *testing.T) {
	r, all, _ := heldOut(t)
	opts := Options{Target: reasoner.MetaConstraint{Property: testkit.Outcome, Op: ">=", Value: 1000}}

	rep, err := Run(context.Background(), r, all, []string{"ghost", "p6"}, opts)
	require.NoError(t, err)
	require.Len(t, rep.Cases, 2)
	assert.Contains(t, rep.Cases[0].Err, "not found")
	assert.Empty(t, rep.Cases[1].Err)
	assert.Equal(t, 1, rep.Evaluated)
}

func TestRunRejectsBadTarget(t *testing.T) {
	r, all, withheld := heldOut(t)
	_, err := Run(context.Background(), r, all, withheld, Options{
		Target: reasoner.MetaConstraint{Property: testkit.Outcome, Op: "<", Value: 1},
	})
	assert.Equal(t, apperr.CodeInputValidation, apperr.GetCode(err))
}

func TestCompare(t *testing.T) {
	assert.True(t, compare(5, reasoner.OpGreaterEqual, 5))
	assert.False(t, compare(4, reasoner.OpGreaterEqual, 5))
	assert.True(t, compare(4, reasoner.OpLessEqual, 5))
	assert.True(t, compare(5, reasoner.OpEqual, 5))
	assert.False(t, compare(5.5, reasoner.OpEqual, 5))
}

func TestWriteCSV(t *testing.T) {
	r, all, withheld := heldOut(t)
	rep, err := Run(context.Background(), r, all, withheld, Options{
		Target:       reasoner.MetaConstraint{Property: testkit.Outcome, Op: ">=", Value: 1000},
		GeneEvidence: true,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rep))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "patient", rows[0][0])
	assert.Equal(t, "Survival_Time >= 1000 actual", rows[0][1])
	assert.Equal(t, "p2", rows[1][0])
	assert.Equal(t, "false", rows[1][1])
	assert.Equal(t, "0.5", rows[1][2])
	assert.Contains(t, rows[0], "update Survival_Time=[1000, 2000]")
}
