package reasoner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ncats/chp/internal/apperr"
)

// Comparator is a normalised meta-constraint operator
type Comparator string

const (
	OpGreaterEqual Comparator = ">="
	OpLessEqual    Comparator = "<="
	OpEqual        Comparator = "=="
)

// ParseComparator accepts >=, ≥, <=, ≤, = and ==
func ParseComparator(s string) (Comparator, error) {
	switch strings.TrimSpace(s) {
	case ">=", "≥":
		return OpGreaterEqual, nil
	case "<=", "≤":
		return OpLessEqual, nil
	case "=", "==":
		return OpEqual, nil
	}
	return "", apperr.InputValidation("unknown comparator %q, expected one of >=, <=, ==", s)
}

// MetaConstraint is a (property, comparator, literal) triple
type MetaConstraint struct {
	Property string  `json:"property"`
	Op       string  `json:"op"`
	Value    float64 `json:"value"`
}

func (m MetaConstraint) String() string {
	return m.Property + " " + m.Op + " " + strconv.FormatFloat(m.Value, 'g', -1, 64)
}

// TargetRef names one target I-node
type TargetRef struct {
	Component string `json:"component"`
	State     string `json:"state"`
}

func (t TargetRef) String() string {
	return t.Component + "=" + t.State
}

// Query is an evidence-conditioned question against the fused hypergraph
type Query struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Evidence     map[string]string `json:"evidence,omitempty"`
	MetaEvidence []MetaConstraint  `json:"meta_evidence,omitempty"`
	Targets      []TargetRef       `json:"targets,omitempty"`
	MetaTargets  []MetaConstraint  `json:"meta_targets,omitempty"`
}

// NewQuery returns an empty query with a fresh id
func NewQuery(name string) *Query {
	return &Query{ID: uuid.NewString(), Name: name, Evidence: make(map[string]string)}
}

// EvidenceNames returns the evidence component names in sorted order
func (q *Query) EvidenceNames() []string {
	names := make([]string, 0, len(q.Evidence))
	for name := range q.Evidence {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TargetStrategy picks target I-nodes when they are not fully enumerated
type TargetStrategy string

const (
	// StrategyExplicit uses targets and meta_targets literally
	StrategyExplicit TargetStrategy = "explicit"
	// StrategyTopology adds every state of each sink component of the
	// dependency graph that is not already evidence
	StrategyTopology TargetStrategy = "topology"
)

// Interpolation chooses the fallback when no real path explains the evidence
type Interpolation string

const (
	InterpolationStandard     Interpolation = "standard"
	InterpolationIndependence Interpolation = "independence"
	InterpolationNone         Interpolation = "none"
)

// Options controls one Analyze call
type Options struct {
	CheckMutex     bool           `json:"check_mutex"`
	TargetStrategy TargetStrategy `json:"target_strategy"`
	Interpolation  Interpolation  `json:"interpolation"`
	Trace          bool           `json:"trace"`
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		TargetStrategy: StrategyExplicit,
		Interpolation:  InterpolationStandard,
	}
}

func (o Options) normalized() (Options, error) {
	if o.TargetStrategy == "" {
		o.TargetStrategy = StrategyExplicit
	}
	if o.Interpolation == "" {
		o.Interpolation = InterpolationStandard
	}
	switch o.TargetStrategy {
	case StrategyExplicit, StrategyTopology:
	default:
		return o, apperr.InputValidation("unknown target strategy %q", o.TargetStrategy)
	}
	switch o.Interpolation {
	case InterpolationStandard, InterpolationIndependence, InterpolationNone:
	default:
		return o, apperr.InputValidation("unknown interpolation mode %q", o.Interpolation)
	}
	return o, nil
}

// metaOps lists the accepted operators, longest first at each start character
var metaOps = []string{">=", "<=", "==", "≥", "≤", "="}

// ParseMetaConstraint parses "Property>=970" style text. The operator is the
// longest one starting at the first operator character.
func ParseMetaConstraint(s string) (MetaConstraint, error) {
	i := strings.IndexAny(s, "<>=≥≤")
	if i < 0 {
		return MetaConstraint{}, apperr.InputValidation("meta constraint %q: expected <property><op><value>", s)
	}
	var op string
	for _, candidate := range metaOps {
		if strings.HasPrefix(s[i:], candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return MetaConstraint{}, apperr.InputValidation("meta constraint %q: unknown operator, expected one of >=, <=, ==", s)
	}
	prop := strings.TrimSpace(s[:i])
	if prop == "" {
		return MetaConstraint{}, apperr.InputValidation("meta constraint %q: missing property", s)
	}
	lit := strings.TrimSpace(s[i+len(op):])
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return MetaConstraint{}, apperr.InputValidation("meta constraint %q: bad literal %q", s, lit)
	}
	return MetaConstraint{Property: prop, Op: op, Value: v}, nil
}
