package patient

import (
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"

	"ncats/chp/internal/apperr"
)

// Binning selects how bin edges are placed
type Binning string

const (
	BinningQuantile Binning = "quantile"
	BinningUniform  Binning = "uniform"
)

// Bin is a half-open value interval [Lo, Hi). The last bin of a property is closed.
type Bin struct {
	Lo     float64 `json:"lo"`
	Hi     float64 `json:"hi"`
	Closed bool    `json:"closed,omitempty"`
}

// Contains reports whether v falls inside the bin
func (b Bin) Contains(v float64) bool {
	if v < b.Lo {
		return false
	}
	if b.Closed {
		return v <= b.Hi
	}
	return v < b.Hi
}

// Label is the state name used for the bin in the hypergraph
func (b Bin) Label() string {
	closing := ")"
	if b.Closed {
		closing = "]"
	}
	return "[" + formatNum(b.Lo) + ", " + formatNum(b.Hi) + closing
}

// PropertyRange summarises one numeric property across the population
type PropertyRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Bins []Bin   `json:"bins"`
}

// States returns bin labels in bin order
func (r PropertyRange) States() []string {
	out := make([]string, len(r.Bins))
	for i, b := range r.Bins {
		out[i] = b.Label()
	}
	return out
}

// BinOf returns the index of the bin containing v
func (r PropertyRange) BinOf(v float64) (int, bool) {
	for i, b := range r.Bins {
		if b.Contains(v) {
			return i, true
		}
	}
	return 0, false
}

// InRange reports whether v lies within the observed [Min, Max]
func (r PropertyRange) InRange(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// RangeTable is the metadata range table: one PropertyRange per numeric property
type RangeTable struct {
	Properties map[string]PropertyRange `json:"properties"`
}

// Lookup returns the range for a property
func (t RangeTable) Lookup(property string) (PropertyRange, bool) {
	r, ok := t.Properties[property]
	return r, ok
}

// Names returns property names in sorted order
func (t RangeTable) Names() []string {
	names := make([]string, 0, len(t.Properties))
	for name := range t.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPropertyRange builds a range from strictly increasing bin edges
func NewPropertyRange(edges []float64) (PropertyRange, error) {
	if len(edges) == 0 {
		return PropertyRange{}, apperr.InputValidation("property range needs at least one edge")
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return PropertyRange{}, apperr.InputValidation("bin edges must be strictly increasing, got %v", edges)
		}
	}
	r := PropertyRange{Min: edges[0], Max: edges[len(edges)-1]}
	if len(edges) == 1 {
		r.Bins = []Bin{{Lo: edges[0], Hi: edges[0], Closed: true}}
		return r, nil
	}
	for i := 0; i+1 < len(edges); i++ {
		r.Bins = append(r.Bins, Bin{Lo: edges[i], Hi: edges[i+1], Closed: i+2 == len(edges)})
	}
	return r, nil
}

// BuildRangeTable discretises every numeric property observed in records
func BuildRangeTable(records []Record, bins int, binning Binning) (RangeTable, error) {
	if bins < 1 {
		return RangeTable{}, apperr.InputValidation("bins must be at least 1, got %d", bins)
	}
	values := make(map[string][]float64)
	for _, rec := range records {
		for prop, v := range rec.Properties {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return RangeTable{}, apperr.InputValidation("patient %s: property %s is not finite", rec.Hash, prop)
			}
			values[prop] = append(values[prop], v)
		}
	}

	table := RangeTable{Properties: make(map[string]PropertyRange, len(values))}
	for prop, data := range values {
		edges, err := binEdges(data, bins, binning)
		if err != nil {
			return RangeTable{}, apperr.Wrapf(err, "binning %s", prop)
		}
		r, err := NewPropertyRange(edges)
		if err != nil {
			return RangeTable{}, apperr.Wrapf(err, "binning %s", prop)
		}
		table.Properties[prop] = r
	}
	return table, nil
}

func binEdges(data []float64, bins int, binning Binning) ([]float64, error) {
	lo, err := stats.Min(data)
	if err != nil {
		return nil, err
	}
	hi, err := stats.Max(data)
	if err != nil {
		return nil, err
	}
	if lo == hi {
		return []float64{lo}, nil
	}

	raw := []float64{lo}
	switch binning {
	case BinningUniform:
		width := (hi - lo) / float64(bins)
		for k := 1; k < bins; k++ {
			raw = append(raw, lo+width*float64(k))
		}
	case BinningQuantile, "":
		for k := 1; k < bins; k++ {
			p, err := stats.Percentile(data, 100*float64(k)/float64(bins))
			if err != nil {
				return nil, err
			}
			raw = append(raw, p)
		}
	default:
		return nil, apperr.InputValidation("unknown binning %q", binning)
	}
	raw = append(raw, hi)

	// quantiles of tied data repeat; keep strictly increasing edges
	edges := []float64{raw[0]}
	for _, e := range raw[1:] {
		if e > edges[len(edges)-1] && e <= hi {
			edges = append(edges, e)
		}
	}
	if edges[len(edges)-1] != hi {
		edges = append(edges, hi)
	}
	return edges, nil
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
