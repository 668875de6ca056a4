package db

import (
	"fmt"

	"ncats/chp/internal/hypergraph"
)

// AllSNodes returns every S-node row ordered by id
func (d *DB) AllSNodes() ([]SNodeRow, error) {
	rows, err := d.conn.Query(`
		SELECT id, head_component, head_state, prob, weight, synthetic, low_confidence
		FROM snodes ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SNodeRow
	for rows.Next() {
		var s SNodeRow
		if err := rows.Scan(&s.ID, &s.HeadComponent, &s.HeadState, &s.Prob, &s.Weight, &s.Synthetic, &s.LowConfidence); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// tails returns S-node tails keyed by S-node id, in stored position order
func (d *DB) tails() (map[int][]hypergraph.INode, error) {
	rows, err := d.conn.Query(`SELECT snode_id, pos, component, state FROM snode_tails ORDER BY snode_id, pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int][]hypergraph.INode)
	for rows.Next() {
		var t TailRow
		if err := rows.Scan(&t.SNodeID, &t.Pos, &t.Component, &t.State); err != nil {
			return nil, err
		}
		out[t.SNodeID] = append(out[t.SNodeID], hypergraph.INode{Component: t.Component, State: t.State})
	}
	return out, rows.Err()
}

// sources returns S-node contributions keyed by S-node id, in contribution order
func (d *DB) sources() (map[int][]hypergraph.Contribution, error) {
	rows, err := d.conn.Query(`SELECT snode_id, pos, source, weight, prob FROM snode_sources ORDER BY snode_id, pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int][]hypergraph.Contribution)
	for rows.Next() {
		var s SourceRow
		if err := rows.Scan(&s.SNodeID, &s.Pos, &s.Source, &s.Weight, &s.Prob); err != nil {
			return nil, err
		}
		out[s.SNodeID] = append(out[s.SNodeID], hypergraph.Contribution{Source: s.Source, Weight: s.Weight, Prob: s.Prob})
	}
	return out, rows.Err()
}

// LoadGraph rebuilds the stored hypergraph with its original indices
func (d *DB) LoadGraph() (*hypergraph.Hypergraph, error) {
	comps, err := d.AllComponents()
	if err != nil {
		return nil, fmt.Errorf("loading components: %w", err)
	}
	states, err := d.AllStates()
	if err != nil {
		return nil, fmt.Errorf("loading states: %w", err)
	}
	snodes, err := d.AllSNodes()
	if err != nil {
		return nil, fmt.Errorf("loading S-nodes: %w", err)
	}
	tails, err := d.tails()
	if err != nil {
		return nil, fmt.Errorf("loading S-node tails: %w", err)
	}
	sources, err := d.sources()
	if err != nil {
		return nil, fmt.Errorf("loading S-node sources: %w", err)
	}

	h := hypergraph.New()
	for i, c := range comps {
		if c.ID != i {
			return nil, fmt.Errorf("component ids are not dense: expected %d, found %d", i, c.ID)
		}
		if _, err := h.AddComponent(c.Name); err != nil {
			return nil, err
		}
	}
	for _, s := range states {
		n, err := h.AddState(s.ComponentID, s.Name)
		if err != nil {
			return nil, err
		}
		if n.State != s.Index {
			return nil, fmt.Errorf("state ids of component %d are not dense at %d", s.ComponentID, s.Index)
		}
	}
	for i, row := range snodes {
		if row.ID != i {
			return nil, fmt.Errorf("S-node ids are not dense: expected %d, found %d", i, row.ID)
		}
		if _, err := h.AddSNode(hypergraph.SNode{
			Head:          hypergraph.INode{Component: row.HeadComponent, State: row.HeadState},
			Prob:          row.Prob,
			Tail:          tails[row.ID],
			Weight:        row.Weight,
			Sources:       sources[row.ID],
			Synthetic:     row.Synthetic,
			LowConfidence: row.LowConfidence,
		}); err != nil {
			return nil, err
		}
	}
	return h, nil
}
