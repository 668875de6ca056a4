// Package crossval scores withheld patients against a hypergraph fused
// without them.
package crossval

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/patient"
	"ncats/chp/internal/reasoner"
)

// ReadWithheld reads patient hashes from CSV; every non-empty cell is a hash
func ReadWithheld(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var hashes []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.InputValidation("reading withheld patients: %v", err)
		}
		for _, cell := range row {
			if h := strings.TrimSpace(cell); h != "" {
				hashes = append(hashes, h)
			}
		}
	}
	return hashes, nil
}

// Options configures Run
type Options struct {
	Target reasoner.MetaConstraint
	// MetaEvidence is applied to every case
	MetaEvidence []reasoner.MetaConstraint
	// GeneEvidence adds each patient's genes that exist in the hypergraph
	GeneEvidence bool
	Reasoner     reasoner.Options
}

// Case is the outcome for one withheld patient
type Case struct {
	Patient     string             `json:"patient"`
	Actual      bool               `json:"actual"`
	Probability float64            `json:"probability"`
	Degraded    bool               `json:"degraded,omitempty"`
	Evidence    int                `json:"evidence"`
	ComputeTime time.Duration      `json:"compute_time"`
	Updates     map[string]float64 `json:"updates,omitempty"`
	Err         string             `json:"error,omitempty"`
}

// Report summarises a cross-validation run. Brier and Accuracy cover the
// cases without errors.
type Report struct {
	Target    string  `json:"target"`
	Cases     []Case  `json:"cases"`
	Evaluated int     `json:"evaluated"`
	Brier     float64 `json:"brier"`
	Accuracy  float64 `json:"accuracy"`
}

// Run evaluates each withheld patient in turn. Per-case failures are
// recorded on the case; only invalid options abort the run.
func Run(ctx context.Context, r *reasoner.Reasoner, patients []patient.Record, withheld []string, opts Options) (*Report, error) {
	op, err := reasoner.ParseComparator(opts.Target.Op)
	if err != nil {
		return nil, err
	}
	if opts.Target.Property == "" {
		return nil, apperr.InputValidation("cross-validation target has no property")
	}

	byHash := make(map[string]patient.Record, len(patients))
	for _, p := range patients {
		byHash[p.Hash] = p
	}

	rep := &Report{Target: opts.Target.String()}
	var sqErr, hits []float64
	for _, hash := range withheld {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := runCase(ctx, r, byHash, hash, op, opts)
		rep.Cases = append(rep.Cases, c)
		if c.Err != "" {
			logger.Warn("cross-validation case failed", "patient", hash, "error", c.Err)
			continue
		}
		actual := 0.0
		if c.Actual {
			actual = 1
		}
		sqErr = append(sqErr, (c.Probability-actual)*(c.Probability-actual))
		hit := 0.0
		if (c.Probability >= 0.5) == c.Actual {
			hit = 1
		}
		hits = append(hits, hit)
	}

	rep.Evaluated = len(sqErr)
	if rep.Evaluated > 0 {
		rep.Brier = stat.Mean(sqErr, nil)
		rep.Accuracy = stat.Mean(hits, nil)
	}
	return rep, nil
}

func runCase(ctx context.Context, r *reasoner.Reasoner, byHash map[string]patient.Record, hash string, op reasoner.Comparator, opts Options) Case {
	c := Case{Patient: hash}
	rec, ok := byHash[hash]
	if !ok {
		c.Err = apperr.NotFound("patient " + hash).Error()
		return c
	}
	v, ok := rec.Properties[opts.Target.Property]
	if !ok {
		c.Err = fmt.Sprintf("patient %s has no %s", hash, opts.Target.Property)
		return c
	}
	c.Actual = compare(v, op, opts.Target.Value)

	q := reasoner.NewQuery("crossval-" + hash)
	if opts.GeneEvidence {
		for _, gene := range rec.Genes {
			name := patient.GeneComponent(gene)
			if _, ok := r.Graph().ComponentIndex(name); ok {
				q.Evidence[name] = patient.StateTrue
			}
		}
	}
	c.Evidence = len(q.Evidence)
	q.MetaEvidence = opts.MetaEvidence
	q.MetaTargets = []reasoner.MetaConstraint{opts.Target}

	res, err := r.Analyze(ctx, q, opts.Reasoner)
	if err != nil {
		c.Err = err.Error()
		return c
	}
	c.ComputeTime = res.ComputeTime
	t := res.Targets[0]
	if t.Err != nil {
		c.Err = t.Err.Error()
		return c
	}
	c.Probability = t.Probability
	c.Degraded = t.Degraded

	c.Updates = make(map[string]float64, len(res.Updates))
	for _, n := range res.Updates.Sorted() {
		c.Updates[r.Graph().INodeLabel(n)] = res.Updates[n]
	}
	return c
}

func compare(v float64, op reasoner.Comparator, lit float64) bool {
	switch op {
	case reasoner.OpGreaterEqual:
		return v >= lit
	case reasoner.OpLessEqual:
		return v <= lit
	}
	return v == lit
}

// WriteCSV writes one row per case, with one column per updated I-node
func WriteCSV(w io.Writer, rep *Report) error {
	labelSet := make(map[string]bool)
	for _, c := range rep.Cases {
		for l := range c.Updates {
			labelSet[l] = true
		}
	}
	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	cw := csv.NewWriter(w)
	header := []string{"patient", rep.Target + " actual", "probability", "degraded", "evidence", "compute_ms", "error"}
	for _, l := range labels {
		header = append(header, "update "+l)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range rep.Cases {
		row := []string{
			c.Patient,
			strconv.FormatBool(c.Actual),
			strconv.FormatFloat(c.Probability, 'f', -1, 64),
			strconv.FormatBool(c.Degraded),
			strconv.Itoa(c.Evidence),
			strconv.FormatFloat(float64(c.ComputeTime.Microseconds())/1000, 'f', 3, 64),
			c.Err,
		}
		for _, l := range labels {
			if p, ok := c.Updates[l]; ok {
				row = append(row, strconv.FormatFloat(p, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
