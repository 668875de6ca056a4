package patient

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/fusion"
)

// Feature naming used across fragments, queries and the protocol vocabulary
const (
	GenePrefix = "mut_"
	DrugPrefix = "drug_"
	StateTrue  = "True"
	StateFalse = "False"
)

// BoolStates is the domain of gene and drug components
var BoolStates = []string{StateFalse, StateTrue}

// GeneComponent names the "mutation present" component for a gene symbol
func GeneComponent(symbol string) string {
	return GenePrefix + symbol
}

// DrugComponent names the "exposure present" component for a drug
func DrugComponent(name string) string {
	return DrugPrefix + name
}

// Record is one patient's demographic, genetic and outcome data
type Record struct {
	Hash       string             `json:"hash"`
	Genes      []string           `json:"genes,omitempty"`
	Drugs      []string           `json:"drugs,omitempty"`
	Properties map[string]float64 `json:"properties,omitempty"`
}

// Features returns the patient's non-outcome features as I-node references,
// and the outcome bin for each outcome property the patient has.
func (r Record) Features(table RangeTable, outcomes []string) ([]fusion.NodeRef, map[string]string, error) {
	isOutcome := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		isOutcome[o] = true
	}

	var features []fusion.NodeRef
	for _, g := range sortedUnique(r.Genes) {
		features = append(features, fusion.NodeRef{Component: GeneComponent(g), State: StateTrue})
	}
	for _, d := range sortedUnique(r.Drugs) {
		features = append(features, fusion.NodeRef{Component: DrugComponent(d), State: StateTrue})
	}

	outcomeStates := make(map[string]string)
	for _, prop := range sortedKeys(r.Properties) {
		rng, ok := table.Lookup(prop)
		if !ok {
			return nil, nil, apperr.InputValidation("patient %s: property %s missing from range table", r.Hash, prop)
		}
		bin, ok := rng.BinOf(r.Properties[prop])
		if !ok {
			return nil, nil, apperr.Range("patient %s: %s=%v outside observed range [%v, %v]",
				r.Hash, prop, r.Properties[prop], rng.Min, rng.Max)
		}
		state := rng.Bins[bin].Label()
		if isOutcome[prop] {
			outcomeStates[prop] = state
			continue
		}
		features = append(features, fusion.NodeRef{Component: prop, State: state})
	}
	return features, outcomeStates, nil
}

// Fragment builds the patient's knowledge fragment: a prior for every present
// feature and one outcome rule per outcome property conditioned on all features.
func (r Record) Fragment(table RangeTable, outcomes []string) (fusion.Fragment, error) {
	features, outcomeStates, err := r.Features(table, outcomes)
	if err != nil {
		return fusion.Fragment{}, err
	}

	var frag fusion.Fragment
	for _, g := range sortedUnique(r.Genes) {
		frag.Components = append(frag.Components, fusion.ComponentSpec{Name: GeneComponent(g), States: BoolStates})
	}
	for _, d := range sortedUnique(r.Drugs) {
		frag.Components = append(frag.Components, fusion.ComponentSpec{Name: DrugComponent(d), States: BoolStates})
	}
	for _, prop := range sortedKeys(r.Properties) {
		rng, _ := table.Lookup(prop)
		frag.Components = append(frag.Components, fusion.ComponentSpec{Name: prop, States: rng.States()})
	}

	for _, f := range features {
		frag.Rules = append(frag.Rules, fusion.Rule{Head: f, Prob: 1})
	}
	for _, prop := range outcomes {
		state, ok := outcomeStates[prop]
		if !ok {
			continue
		}
		frag.Rules = append(frag.Rules, fusion.Rule{
			Head: fusion.NodeRef{Component: prop, State: state},
			Prob: 1,
			Tail: append([]fusion.NodeRef(nil), features...),
		})
	}
	return frag, nil
}

// BuildFragments turns records into fragments, returning them with their source ids
func BuildFragments(records []Record, table RangeTable, outcomes []string) ([]fusion.Fragment, []string, error) {
	frags := make([]fusion.Fragment, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		frag, err := rec.Fragment(table, outcomes)
		if err != nil {
			return nil, nil, err
		}
		frags = append(frags, frag)
		ids = append(ids, rec.Hash)
	}
	return frags, ids, nil
}

// ReadJSON decodes a JSON array of records and checks hashes are present and unique
func ReadJSON(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, apperr.Wrap(apperr.InputValidation("%v", err), "decoding patient records")
	}
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.Hash) == "" {
			return nil, apperr.InputValidation("patient record %d has no hash", i)
		}
		if seen[rec.Hash] {
			return nil, apperr.InputValidation("duplicate patient hash %s", rec.Hash)
		}
		seen[rec.Hash] = true
	}
	return records, nil
}

// LoadJSON reads patient records from a JSON file
func LoadJSON(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening patient data: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// Split partitions records into those whose hash is withheld and the rest
func Split(records []Record, withheld []string) (kept, held []Record) {
	hold := make(map[string]bool, len(withheld))
	for _, h := range withheld {
		hold[h] = true
	}
	for _, rec := range records {
		if hold[rec.Hash] {
			held = append(held, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	return kept, held
}

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
