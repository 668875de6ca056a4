package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/patient"
)

// SaveGraph replaces the stored hypergraph with h. Component, state and
// S-node indices are written verbatim so a later LoadGraph reproduces them.
func (d *DB) SaveGraph(h *hypergraph.Hypergraph) error {
	return d.inTx("saving hypergraph", func(tx *sql.Tx) error {
		for _, table := range []string{"snode_sources", "snode_tails", "snodes", "states", "components"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		for i := 0; i < h.NumComponents(); i++ {
			c, _ := h.Component(i)
			if _, err := tx.Exec(`INSERT INTO components (id, name) VALUES (?, ?)`, i, c.Name); err != nil {
				return fmt.Errorf("inserting component %s: %w", c.Name, err)
			}
			for s, name := range c.States {
				if _, err := tx.Exec(`INSERT INTO states (component_id, idx, name) VALUES (?, ?, ?)`, i, s, name); err != nil {
					return fmt.Errorf("inserting state %s=%s: %w", c.Name, name, err)
				}
			}
		}

		for i, s := range h.SNodes() {
			if _, err := tx.Exec(`
				INSERT INTO snodes (id, head_component, head_state, prob, weight, synthetic, low_confidence)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				i, s.Head.Component, s.Head.State, s.Prob, s.Weight, s.Synthetic, s.LowConfidence,
			); err != nil {
				return fmt.Errorf("inserting S-node %d: %w", i, err)
			}
			for pos, t := range s.Tail {
				if _, err := tx.Exec(`INSERT INTO snode_tails (snode_id, pos, component, state) VALUES (?, ?, ?, ?)`,
					i, pos, t.Component, t.State); err != nil {
					return fmt.Errorf("inserting tail of S-node %d: %w", i, err)
				}
			}
			for pos, c := range s.Sources {
				if _, err := tx.Exec(`INSERT INTO snode_sources (snode_id, pos, source, weight, prob) VALUES (?, ?, ?, ?, ?)`,
					i, pos, c.Source, c.Weight, c.Prob); err != nil {
					return fmt.Errorf("inserting source of S-node %d: %w", i, err)
				}
			}
		}

		_, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, SchemaVersion)
		return err
	})
}

// SavePatients replaces the stored patient table
func (d *DB) SavePatients(records []patient.Record) error {
	return d.inTx("saving patients", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM patients`); err != nil {
			return fmt.Errorf("clearing patients: %w", err)
		}
		for _, r := range records {
			row, err := patientRow(r)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`INSERT INTO patients (hash, genes, drugs, properties) VALUES (?, ?, ?, ?)`,
				row.Hash, row.Genes, row.Drugs, row.Properties); err != nil {
				return fmt.Errorf("inserting patient %s: %w", r.Hash, err)
			}
		}
		return nil
	})
}

// SaveRanges replaces the stored metadata range table
func (d *DB) SaveRanges(table patient.RangeTable) error {
	return d.inTx("saving ranges", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM range_bins`); err != nil {
			return fmt.Errorf("clearing range bins: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM ranges`); err != nil {
			return fmt.Errorf("clearing ranges: %w", err)
		}
		for _, name := range table.Names() {
			r := table.Properties[name]
			if _, err := tx.Exec(`INSERT INTO ranges (property, min, max) VALUES (?, ?, ?)`, name, r.Min, r.Max); err != nil {
				return fmt.Errorf("inserting range %s: %w", name, err)
			}
			for i, b := range r.Bins {
				if _, err := tx.Exec(`INSERT INTO range_bins (property, idx, lo, hi, closed) VALUES (?, ?, ?, ?, ?)`,
					name, i, b.Lo, b.Hi, b.Closed); err != nil {
					return fmt.Errorf("inserting bin %d of %s: %w", i, name, err)
				}
			}
		}
		return nil
	})
}

func (d *DB) inTx(what string, fn func(tx *sql.Tx) error) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("%s: begin: %w", what, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", what, err)
	}
	return nil
}

func patientRow(r patient.Record) (PatientRow, error) {
	genes, err := json.Marshal(nonNil(r.Genes))
	if err != nil {
		return PatientRow{}, fmt.Errorf("encoding genes of %s: %w", r.Hash, err)
	}
	drugs, err := json.Marshal(nonNil(r.Drugs))
	if err != nil {
		return PatientRow{}, fmt.Errorf("encoding drugs of %s: %w", r.Hash, err)
	}
	props := r.Properties
	if props == nil {
		props = map[string]float64{}
	}
	properties, err := json.Marshal(props)
	if err != nil {
		return PatientRow{}, fmt.Errorf("encoding properties of %s: %w", r.Hash, err)
	}
	return PatientRow{Hash: r.Hash, Genes: string(genes), Drugs: string(drugs), Properties: string(properties)}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
