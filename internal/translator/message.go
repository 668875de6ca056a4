package translator

import (
	"encoding/json"
	"io"

	"ncats/chp/internal/apperr"
)

// NodeType is the biolink-style category of a query-graph node
type NodeType string

const (
	NodeGene      NodeType = "Gene"
	NodeDrug      NodeType = "Drug"
	NodeDisease   NodeType = "disease"
	NodePhenotype NodeType = "PhenotypicFeature"
)

// Edge types used by built and decorated graphs
const (
	EdgeGeneToDisease      = "gene_to_disease_association"
	EdgeChemicalToDisease  = "chemical_to_disease_or_phenotypic_feature_association"
	EdgeDiseaseToPhenotype = "disease_to_phenotype_association"
)

// Message is a reasoner-std request or response
type Message struct {
	QueryGraph     QueryGraph      `json:"query_graph"`
	KnowledgeGraph *KnowledgeGraph `json:"knowledge_graph,omitempty"`
	Results        *Results        `json:"results,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
}

// QueryGraph is the caller's question
type QueryGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// KnowledgeGraph holds the answer nodes and edges
type KnowledgeGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a query-graph or knowledge-graph node
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Curie string   `json:"curie"`
	Name  string   `json:"name,omitempty"`
}

// Edge is a query-graph or knowledge-graph edge. Value carries the
// meta-target threshold on the disease to phenotype edge.
type Edge struct {
	ID                 string   `json:"id"`
	Type               string   `json:"type"`
	SourceID           string   `json:"source_id"`
	TargetID           string   `json:"target_id"`
	Value              *float64 `json:"value,omitempty"`
	HasConfidenceLevel *float64 `json:"has_confidence_level,omitempty"`
	Degraded           bool     `json:"degraded,omitempty"`
	ErrorCode          string   `json:"error_code,omitempty"`
}

// Results binds query-graph ids to knowledge-graph ids
type Results struct {
	NodeBindings []NodeBinding `json:"node_bindings"`
	EdgeBindings []EdgeBinding `json:"edge_bindings"`
}

type NodeBinding struct {
	QGID string `json:"qg_id"`
	KGID string `json:"kg_id"`
}

type EdgeBinding struct {
	QGID string `json:"qg_id"`
	KGID string `json:"kg_id"`
}

// Clone returns a deep copy of m
func (m *Message) Clone() *Message {
	out := &Message{
		QueryGraph: QueryGraph{
			Nodes: append([]Node(nil), m.QueryGraph.Nodes...),
			Edges: cloneEdges(m.QueryGraph.Edges),
		},
	}
	if m.KnowledgeGraph != nil {
		out.KnowledgeGraph = &KnowledgeGraph{
			Nodes: append([]Node(nil), m.KnowledgeGraph.Nodes...),
			Edges: cloneEdges(m.KnowledgeGraph.Edges),
		}
	}
	if m.Results != nil {
		out.Results = &Results{
			NodeBindings: append([]NodeBinding(nil), m.Results.NodeBindings...),
			EdgeBindings: append([]EdgeBinding(nil), m.Results.EdgeBindings...),
		}
	}
	if m.Response != nil {
		out.Response = append(json.RawMessage(nil), m.Response...)
	}
	return out
}

func cloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = e
		if e.Value != nil {
			v := *e.Value
			out[i].Value = &v
		}
		if e.HasConfidenceLevel != nil {
			c := *e.HasConfidenceLevel
			out[i].HasConfidenceLevel = &c
		}
	}
	return out
}

// DecodeMessage reads one JSON message from r
func DecodeMessage(r io.Reader) (*Message, error) {
	var m Message
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, apperr.InputValidation("decoding reasoner-std message: %v", err)
	}
	return &m, nil
}
