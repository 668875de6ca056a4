// Package testkit builds the small fused patient population shared by tests.
package testkit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ncats/chp/internal/fusion"
	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/interpolate"
	"ncats/chp/internal/patient"
)

// Outcome is the outcome property of the test population
const Outcome = "Survival_Time"

// Records returns six patients. Survival_Time bins: [0, 500) [500, 1000)
// [1000, 2000]; Age_of_Diagnosis bins: [10000, 20000) [20000, 30000].
//
//	p1 RAF1                    1200  15000
//	p2 RAF1 BRCA1               800  25000
//	p3 BRCA1                    300  15000
//	p4 BRCA1 +CYCLOPHOSPHAMIDE 1500  25000
//	p5 RAF1                     400  25000
//	p6 -                       1800  15000
func Records() []patient.Record {
	rec := func(hash string, genes, drugs []string, surv, age float64) patient.Record {
		return patient.Record{
			Hash:       hash,
			Genes:      genes,
			Drugs:      drugs,
			Properties: map[string]float64{Outcome: surv, "Age_of_Diagnosis": age},
		}
	}
	return []patient.Record{
		rec("p1", []string{"RAF1"}, nil, 1200, 15000),
		rec("p2", []string{"RAF1", "BRCA1"}, nil, 800, 25000),
		rec("p3", []string{"BRCA1"}, nil, 300, 15000),
		rec("p4", []string{"BRCA1"}, []string{"CYCLOPHOSPHAMIDE"}, 1500, 25000),
		rec("p5", []string{"RAF1"}, nil, 400, 25000),
		rec("p6", nil, nil, 1800, 15000),
	}
}

// Ranges returns the fixed range table for Records
func Ranges(t testing.TB) patient.RangeTable {
	t.Helper()
	surv, err := patient.NewPropertyRange([]float64{0, 500, 1000, 2000})
	require.NoError(t, err)
	age, err := patient.NewPropertyRange([]float64{10000, 20000, 30000})
	require.NoError(t, err)
	return patient.RangeTable{Properties: map[string]patient.PropertyRange{
		Outcome:            surv,
		"Age_of_Diagnosis": age,
	}}
}

// Fuse builds patient fragments plus the bigram interpolator and fuses them
func Fuse(t testing.TB, records []patient.Record, table patient.RangeTable) *hypergraph.Hypergraph {
	t.Helper()
	outcomes := []string{Outcome}
	frags, ids, err := patient.BuildFragments(records, table, outcomes)
	require.NoError(t, err)

	opts := interpolate.DefaultOptions()
	opts.Outcomes = outcomes
	interp, err := interpolate.Build(frags, opts)
	require.NoError(t, err)

	weights := make([]float64, len(frags)+1)
	for i := range weights {
		weights[i] = 1
	}
	h, err := fusion.Fuse(append(frags, interp), weights, append(ids, "interpolator"))
	require.NoError(t, err)
	return h
}

// Population fuses Records with Ranges
func Population(t testing.TB) (*hypergraph.Hypergraph, patient.RangeTable) {
	t.Helper()
	table := Ranges(t)
	return Fuse(t, Records(), table), table
}
