package store

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/db"
	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/patient"
)

// Key layout. Component and S-node keys carry zero-padded indices so that
// prefix iteration yields them in index order.
const (
	prefixComponent = "c:"
	prefixSNode     = "s:"
	prefixPatient   = "p:"
	prefixRange     = "r:"
	keyVersion      = "m:schema_version"
)

func componentKey(i int) []byte { return []byte(fmt.Sprintf("%s%08d", prefixComponent, i)) }
func snodeKey(i int) []byte     { return []byte(fmt.Sprintf("%s%08d", prefixSNode, i)) }

func openBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return bdb, nil
}

func saveBadger(path string, b Bundle) error {
	bdb, err := openBadger(path)
	if err != nil {
		return err
	}
	defer bdb.Close()

	if err := bdb.DropAll(); err != nil {
		return fmt.Errorf("clearing badger store: %w", err)
	}

	wb := bdb.NewWriteBatch()
	defer wb.Cancel()

	put := func(key []byte, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		if err := wb.Set(key, data); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
		return nil
	}

	g := b.Graph
	for i := 0; i < g.NumComponents(); i++ {
		c, _ := g.Component(i)
		if err := put(componentKey(i), c); err != nil {
			return err
		}
	}
	for i, s := range g.SNodes() {
		if err := put(snodeKey(i), s); err != nil {
			return err
		}
	}
	for _, r := range b.Patients {
		if err := put([]byte(prefixPatient+r.Hash), r); err != nil {
			return err
		}
	}
	for _, name := range b.Ranges.Names() {
		if err := put([]byte(prefixRange+name), b.Ranges.Properties[name]); err != nil {
			return err
		}
	}
	if err := wb.Set([]byte(keyVersion), []byte(db.SchemaVersion)); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing badger store: %w", err)
	}
	return nil
}

func loadBadger(path string) (Bundle, error) {
	bdb, err := openBadger(path)
	if err != nil {
		return Bundle{}, err
	}
	defer bdb.Close()

	var comps []hypergraph.Component
	var snodes []hypergraph.SNode
	b := Bundle{Ranges: patient.RangeTable{Properties: make(map[string]patient.PropertyRange)}}

	err = bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyVersion))
		if err == badger.ErrKeyNotFound {
			return apperr.Structural("store %s has no schema version", path)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			if string(val) != db.SchemaVersion {
				return apperr.Structural("store %s has schema version %q, want %q", path, val, db.SchemaVersion)
			}
			return nil
		}); err != nil {
			return err
		}

		if err := scan(txn, prefixComponent, func(_ string, val []byte) error {
			var c hypergraph.Component
			if err := json.Unmarshal(val, &c); err != nil {
				return err
			}
			comps = append(comps, c)
			return nil
		}); err != nil {
			return fmt.Errorf("reading components: %w", err)
		}
		if err := scan(txn, prefixSNode, func(_ string, val []byte) error {
			var s hypergraph.SNode
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			snodes = append(snodes, s)
			return nil
		}); err != nil {
			return fmt.Errorf("reading S-nodes: %w", err)
		}
		if err := scan(txn, prefixPatient, func(_ string, val []byte) error {
			var r patient.Record
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			b.Patients = append(b.Patients, r)
			return nil
		}); err != nil {
			return fmt.Errorf("reading patients: %w", err)
		}
		return scan(txn, prefixRange, func(key string, val []byte) error {
			var r patient.PropertyRange
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("reading range %s: %w", key, err)
			}
			b.Ranges.Properties[key] = r
			return nil
		})
	})
	if err != nil {
		return Bundle{}, err
	}

	g := hypergraph.New()
	for _, c := range comps {
		idx, err := g.AddComponent(c.Name)
		if err != nil {
			return Bundle{}, err
		}
		for _, s := range c.States {
			if _, err := g.AddState(idx, s); err != nil {
				return Bundle{}, err
			}
		}
	}
	for _, s := range snodes {
		if _, err := g.AddSNode(s); err != nil {
			return Bundle{}, err
		}
	}
	b.Graph = g
	return b, nil
}

// scan calls fn with the key suffix and value of every item under prefix
func scan(txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	p := []byte(prefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		key := string(item.Key()[len(p):])
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}
