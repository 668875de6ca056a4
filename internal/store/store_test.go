package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/testkit"
)

func bundle(t *testing.T) Bundle {
	t.Helper()
	h, table := testkit.Population(t)
	return Bundle{Graph: h, Patients: testkit.Records(), Ranges: table}
}

func TestIsBadger(t *testing.T) {
	assert.True(t, IsBadger("/data/fusion.badger"))
	assert.True(t, IsBadger("/data/fusion.badger/"))
	assert.False(t, IsBadger("/data/fusion.db"))
	assert.False(t, IsBadger("fusion.badger.db"))
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"fusion.db", "fusion.badger"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := bundle(t)
			require.NoError(t, Save(path, want))

			got, err := Load(path)
			require.NoError(t, err)
			assert.True(t, want.Graph.Equal(got.Graph), "hypergraph differs after round trip")
			assert.Equal(t, want.Patients, got.Patients)
			assert.Equal(t, want.Ranges, got.Ranges)
			assert.False(t, got.Graph.Frozen())
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for _, name := range []string{"fusion.db", "fusion.badger"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			table := testkit.Ranges(t)
			require.NoError(t, Save(path, bundle(t)))

			small := Bundle{
				Graph:    testkit.Fuse(t, testkit.Records()[:1], table),
				Patients: testkit.Records()[:1],
				Ranges:   table,
			}
			require.NoError(t, Save(path, small))

			got, err := Load(path)
			require.NoError(t, err)
			assert.True(t, small.Graph.Equal(got.Graph))
			assert.Len(t, got.Patients, 1)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.GetCode(err))
}

func TestLoadUnversioned(t *testing.T) {
	dir := t.TempDir()

	// An empty badger directory has no version key
	path := filepath.Join(dir, "empty.badger")
	require.NoError(t, os.MkdirAll(path, 0o755))
	_, err := Load(path)
	assert.Equal(t, apperr.CodeStructural, apperr.GetCode(err))
}

func TestSaveRejectsEmptyBundle(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "x.db"), Bundle{})
	assert.Equal(t, apperr.CodeInputValidation, apperr.GetCode(err))
}
