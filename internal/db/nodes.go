package db

import (
	"encoding/json"
	"fmt"

	"ncats/chp/internal/patient"
)

// AllComponents returns every component row ordered by id
func (d *DB) AllComponents() ([]ComponentRow, error) {
	rows, err := d.conn.Query(`SELECT id, name FROM components ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComponentRow
	for rows.Next() {
		var c ComponentRow
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllStates returns every state row ordered by (component, idx)
func (d *DB) AllStates() ([]StateRow, error) {
	rows, err := d.conn.Query(`SELECT component_id, idx, name FROM states ORDER BY component_id, idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StateRow
	for rows.Next() {
		var s StateRow
		if err := rows.Scan(&s.ComponentID, &s.Index, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LoadPatients returns the stored patients ordered by hash
func (d *DB) LoadPatients() ([]patient.Record, error) {
	rows, err := d.conn.Query(`SELECT hash, genes, drugs, properties FROM patients ORDER BY hash`)
	if err != nil {
		return nil, fmt.Errorf("querying patients: %w", err)
	}
	defer rows.Close()

	var out []patient.Record
	for rows.Next() {
		var row PatientRow
		if err := rows.Scan(&row.Hash, &row.Genes, &row.Drugs, &row.Properties); err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		r := patient.Record{Hash: row.Hash}
		if err := json.Unmarshal([]byte(row.Genes), &r.Genes); err != nil {
			return nil, fmt.Errorf("decoding genes of %s: %w", row.Hash, err)
		}
		if err := json.Unmarshal([]byte(row.Drugs), &r.Drugs); err != nil {
			return nil, fmt.Errorf("decoding drugs of %s: %w", row.Hash, err)
		}
		if err := json.Unmarshal([]byte(row.Properties), &r.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties of %s: %w", row.Hash, err)
		}
		if len(r.Genes) == 0 {
			r.Genes = nil
		}
		if len(r.Drugs) == 0 {
			r.Drugs = nil
		}
		if len(r.Properties) == 0 {
			r.Properties = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadRanges returns the stored metadata range table
func (d *DB) LoadRanges() (patient.RangeTable, error) {
	table := patient.RangeTable{Properties: make(map[string]patient.PropertyRange)}

	rows, err := d.conn.Query(`SELECT property, min, max FROM ranges`)
	if err != nil {
		return table, fmt.Errorf("querying ranges: %w", err)
	}
	for rows.Next() {
		var name string
		var r patient.PropertyRange
		if err := rows.Scan(&name, &r.Min, &r.Max); err != nil {
			rows.Close()
			return table, fmt.Errorf("scanning range: %w", err)
		}
		table.Properties[name] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return table, err
	}

	bins, err := d.conn.Query(`SELECT property, lo, hi, closed FROM range_bins ORDER BY property, idx`)
	if err != nil {
		return table, fmt.Errorf("querying range bins: %w", err)
	}
	defer bins.Close()
	for bins.Next() {
		var name string
		var b patient.Bin
		if err := bins.Scan(&name, &b.Lo, &b.Hi, &b.Closed); err != nil {
			return table, fmt.Errorf("scanning range bin: %w", err)
		}
		r, ok := table.Properties[name]
		if !ok {
			return table, fmt.Errorf("range bin for unknown property %q", name)
		}
		r.Bins = append(r.Bins, b)
		table.Properties[name] = r
	}
	return table, bins.Err()
}
