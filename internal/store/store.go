// Package store persists a fused hypergraph together with the patient
// table and metadata range table it was built from. Paths ending in
// ".badger" use a badger key-value directory; anything else is a SQLite file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/db"
	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/patient"
)

// BadgerSuffix selects the badger backend
const BadgerSuffix = ".badger"

// Bundle is everything a query process needs from a fusion run
type Bundle struct {
	Graph    *hypergraph.Hypergraph
	Patients []patient.Record
	Ranges   patient.RangeTable
}

// IsBadger reports whether path selects the badger backend
func IsBadger(path string) bool {
	return strings.HasSuffix(strings.TrimRight(path, string(filepath.Separator)), BadgerSuffix)
}

// Save writes b to path, replacing any previous contents
func Save(path string, b Bundle) error {
	if b.Graph == nil {
		return apperr.InputValidation("bundle has no hypergraph")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}
	if IsBadger(path) {
		return saveBadger(path, b)
	}
	return saveSQLite(path, b)
}

// Load reads the bundle stored at path. The hypergraph is returned unfrozen.
func Load(path string) (Bundle, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Bundle{}, apperr.NotFound("store " + path)
		}
		return Bundle{}, fmt.Errorf("checking store: %w", err)
	}
	if IsBadger(path) {
		return loadBadger(path)
	}
	return loadSQLite(path)
}

func saveSQLite(path string, b Bundle) error {
	d, err := db.OpenDB(path)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.SaveGraph(b.Graph); err != nil {
		return err
	}
	if err := d.SavePatients(b.Patients); err != nil {
		return err
	}
	return d.SaveRanges(b.Ranges)
}

func loadSQLite(path string) (Bundle, error) {
	d, err := db.OpenDB(path)
	if err != nil {
		return Bundle{}, err
	}
	defer d.Close()

	if v, err := d.Version(); err != nil {
		return Bundle{}, err
	} else if v != db.SchemaVersion {
		return Bundle{}, apperr.Structural("store %s has schema version %q, want %q", path, v, db.SchemaVersion)
	}

	var b Bundle
	if b.Graph, err = d.LoadGraph(); err != nil {
		return Bundle{}, err
	}
	if b.Patients, err = d.LoadPatients(); err != nil {
		return Bundle{}, err
	}
	if b.Ranges, err = d.LoadRanges(); err != nil {
		return Bundle{}, err
	}
	return b, nil
}
