// Package translator turns reasoner-std query graphs into reasoner queries
// and decorates the response knowledge graph with the computed posteriors.
package translator

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/patient"
	"ncats/chp/internal/reasoner"
)

// State is a Handler's position in its lifecycle
type State int

const (
	StateUnvalidated State = iota
	StateBuilt
	StateExecuted
	StateDecorated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnvalidated:
		return "unvalidated"
	case StateBuilt:
		return "built"
	case StateExecuted:
		return "executed"
	case StateDecorated:
		return "decorated"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultSourceARA names the calling agent when none is given
const DefaultSourceARA = "exploring"

// Options configures a Handler
type Options struct {
	SourceARA  string
	Vocabulary Vocabulary
	Reasoner   reasoner.Options
}

// built is one query derived from a disease to phenotype edge
type built struct {
	query  *reasoner.Query
	edgeID string // query-graph edge to decorate
	result *reasoner.Result
}

// Handler runs one reasoner-std message through build, execute and decorate.
// A failed step moves it to StateFailed and every later call returns the
// same error.
type Handler struct {
	r       *reasoner.Reasoner
	msg     *Message
	opts    Options
	state   State
	err     error
	queries []*built
}

// NewHandler prepares a handler for msg. An empty SourceARA or Vocabulary
// takes the default.
func NewHandler(r *reasoner.Reasoner, msg *Message, opts Options) *Handler {
	if opts.SourceARA == "" {
		opts.SourceARA = DefaultSourceARA
	}
	if opts.Vocabulary.Diseases == nil {
		opts.Vocabulary = DefaultVocabulary()
	}
	return &Handler{r: r, msg: msg, opts: opts}
}

// State returns the current lifecycle state
func (h *Handler) State() State {
	return h.state
}

// Err returns the error that moved the handler to StateFailed
func (h *Handler) Err() error {
	return h.err
}

// Queries returns the built reasoner queries
func (h *Handler) Queries() []*reasoner.Query {
	out := make([]*reasoner.Query, len(h.queries))
	for i, b := range h.queries {
		out[i] = b.query
	}
	return out
}

func (h *Handler) fail(err error) error {
	h.state = StateFailed
	h.err = err
	return err
}

func (h *Handler) expect(s State, step string) error {
	if h.state == StateFailed {
		return h.err
	}
	if h.state != s {
		return apperr.Newf(apperr.CodeInternal, "cannot %s a handler in state %s", step, h.state)
	}
	return nil
}

// Build validates the query graph and derives the reasoner queries
func (h *Handler) Build() error {
	if err := h.expect(StateUnvalidated, "build"); err != nil {
		return err
	}
	if h.msg == nil {
		return h.fail(apperr.InputValidation("message is nil"))
	}
	qg := h.msg.QueryGraph
	voc := h.opts.Vocabulary

	byID := make(map[string]Node, len(qg.Nodes))
	var diseases, phenotypes []Node
	evidence := make(map[string]string)
	for _, n := range qg.Nodes {
		if n.ID == "" {
			return h.fail(apperr.InputValidation("query graph node with curie %q has no id", n.Curie))
		}
		if _, dup := byID[n.ID]; dup {
			return h.fail(apperr.InputValidation("duplicate query graph node id %q", n.ID))
		}
		byID[n.ID] = n

		switch n.Type {
		case NodePhenotype:
			if _, ok := voc.Phenotypes[n.Curie]; ok {
				phenotypes = append(phenotypes, n)
			}
		case NodeDisease:
			if _, ok := voc.Diseases[n.Curie]; ok {
				diseases = append(diseases, n)
			}
		case NodeGene:
			symbol, ok := voc.Genes[n.Curie]
			if !ok {
				return h.fail(apperr.InputValidation("unknown gene curie %q, accepted: %s", n.Curie, curies(voc.Genes)))
			}
			evidence[patient.GeneComponent(symbol)] = patient.StateTrue
		case NodeDrug:
			name, ok := voc.Drugs[n.Curie]
			if !ok {
				return h.fail(apperr.InputValidation("unknown drug curie %q, accepted: %s", n.Curie, curies(voc.Drugs)))
			}
			evidence[patient.DrugComponent(name)] = patient.StateTrue
		default:
			return h.fail(apperr.InputValidation("query graph node %q has unsupported type %q", n.ID, n.Type))
		}
	}

	// The survival node is checked first
	if len(phenotypes) == 0 {
		return h.fail(apperr.InputValidation("Survival Node not found. Node type must be '%s' and curie must be in: %s",
			NodePhenotype, curies(voc.Phenotypes)))
	}
	if len(phenotypes) > 1 {
		return h.fail(apperr.InputValidation("expected exactly one '%s' node, found %d", NodePhenotype, len(phenotypes)))
	}
	if len(diseases) == 0 {
		return h.fail(apperr.InputValidation("Disease node not found. Node type must be '%s' and curie must be in: %s",
			NodeDisease, curies(voc.Diseases)))
	}
	if len(diseases) > 1 {
		return h.fail(apperr.InputValidation("expected exactly one '%s' node, found %d", NodeDisease, len(diseases)))
	}
	disease, phenotype := diseases[0], phenotypes[0]

	for _, e := range qg.Edges {
		if _, ok := byID[e.SourceID]; !ok {
			return h.fail(apperr.InputValidation("query graph edge %q references unknown source %q", e.ID, e.SourceID))
		}
		if _, ok := byID[e.TargetID]; !ok {
			return h.fail(apperr.InputValidation("query graph edge %q references unknown target %q", e.ID, e.TargetID))
		}
	}

	var link *Edge
	for i, e := range qg.Edges {
		if e.SourceID == disease.ID && e.TargetID == phenotype.ID {
			link = &qg.Edges[i]
			break
		}
	}
	if link == nil {
		return h.fail(apperr.InputValidation("no edge from disease node %q to phenotype node %q", disease.ID, phenotype.ID))
	}
	if link.Value == nil || math.IsNaN(*link.Value) || math.IsInf(*link.Value, 0) {
		return h.fail(apperr.InputValidation("edge %q from disease to phenotype must carry a numeric value", link.ID))
	}

	q := reasoner.NewQuery(h.opts.SourceARA + ":" + voc.Diseases[disease.Curie])
	q.Evidence = evidence
	q.MetaTargets = []reasoner.MetaConstraint{{
		Property: voc.Phenotypes[phenotype.Curie],
		Op:       string(reasoner.OpGreaterEqual),
		Value:    *link.Value,
	}}
	h.queries = []*built{{query: q, edgeID: link.ID}}
	h.state = StateBuilt
	logger.Debug("built reasoner query", "query", q.ID, "name", q.Name, "evidence", len(q.Evidence), "threshold", *link.Value)
	return nil
}

// Execute evaluates every built query
func (h *Handler) Execute(ctx context.Context) error {
	if err := h.expect(StateBuilt, "execute"); err != nil {
		return err
	}
	for _, b := range h.queries {
		res, err := h.r.Analyze(ctx, b.query, h.opts.Reasoner)
		if err != nil {
			return h.fail(err)
		}
		b.result = res
	}
	h.state = StateExecuted
	return nil
}

// Decorate copies the request, initialises missing knowledge graph and
// results sections, and records the computed probability as the confidence
// of the disease to phenotype edge.
func (h *Handler) Decorate() (*Message, error) {
	if err := h.expect(StateExecuted, "decorate"); err != nil {
		return nil, err
	}
	out := h.msg.Clone()
	if out.KnowledgeGraph == nil {
		out.KnowledgeGraph = &KnowledgeGraph{}
	}
	if out.KnowledgeGraph.Nodes == nil {
		out.KnowledgeGraph.Nodes = []Node{}
	}
	if out.KnowledgeGraph.Edges == nil {
		out.KnowledgeGraph.Edges = []Edge{}
	}
	if out.Results == nil {
		out.Results = &Results{}
	}
	if out.Results.NodeBindings == nil {
		out.Results.NodeBindings = []NodeBinding{}
	}
	if out.Results.EdgeBindings == nil {
		out.Results.EdgeBindings = []EdgeBinding{}
	}

	kgNode := make(map[string]string, len(out.QueryGraph.Nodes))
	for _, n := range out.QueryGraph.Nodes {
		id := uuid.NewString()
		kgNode[n.ID] = id
		out.KnowledgeGraph.Nodes = append(out.KnowledgeGraph.Nodes, Node{ID: id, Type: n.Type, Curie: n.Curie, Name: h.nameOf(n)})
		out.Results.NodeBindings = append(out.Results.NodeBindings, NodeBinding{QGID: n.ID, KGID: id})
	}

	decorated := make(map[string]*built, len(h.queries))
	for _, b := range h.queries {
		decorated[b.edgeID] = b
	}
	for _, e := range out.QueryGraph.Edges {
		kg := Edge{
			ID:       uuid.NewString(),
			Type:     e.Type,
			SourceID: kgNode[e.SourceID],
			TargetID: kgNode[e.TargetID],
			Value:    e.Value,
		}
		if b, ok := decorated[e.ID]; ok {
			kg.Type = EdgeDiseaseToPhenotype
			p, degraded, code := confidence(b.result)
			kg.HasConfidenceLevel = &p
			kg.Degraded = degraded
			kg.ErrorCode = code
		}
		out.KnowledgeGraph.Edges = append(out.KnowledgeGraph.Edges, kg)
		out.Results.EdgeBindings = append(out.Results.EdgeBindings, EdgeBinding{QGID: e.ID, KGID: kg.ID})
	}

	h.state = StateDecorated
	return out, nil
}

// Run performs Build, Execute and Decorate in order
func (h *Handler) Run(ctx context.Context) (*Message, error) {
	if err := h.Build(); err != nil {
		return nil, err
	}
	if err := h.Execute(ctx); err != nil {
		return nil, err
	}
	return h.Decorate()
}

func (h *Handler) nameOf(n Node) string {
	voc := h.opts.Vocabulary
	for _, m := range []map[string]string{voc.Diseases, voc.Phenotypes, voc.Genes, voc.Drugs} {
		if name, ok := m[n.Curie]; ok {
			return name
		}
	}
	return n.Name
}

// confidence is the summed target probability clamped to [0, 1]
func confidence(res *reasoner.Result) (p float64, degraded bool, code string) {
	for _, t := range res.Targets {
		p += t.Probability
		degraded = degraded || t.Degraded
		if t.Err != nil && code == "" {
			code = apperr.GetCode(t.Err)
		}
	}
	if math.IsNaN(p) {
		p = 0
	}
	return math.Min(1, math.Max(0, p)), degraded, code
}
