package annotations

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/archive-deck/internal/statedb"
)

func openDB(t *testing.T) (*statedb.StateDB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := statedb.Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db, path
}

// stores returns one instance of every Store implementation.
func stores(t *testing.T) map[string]Store {
	db, _ := openDB(t)
	dbs, err := OpenDBStore(db)
	require.NoError(t, err)
	return map[string]Store{"memory": NewMemoryStore(), "db": dbs}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Annotation{}, s.Get("a.md"))
			assert.False(t, s.Starred("a.md"))

			starred, err := ToggleStar(s, "a.md")
			require.NoError(t, err)
			assert.True(t, starred)
			assert.True(t, s.Starred("a.md"))

			require.NoError(t, SetNote(s, "a.md", "  worth rereading \n"))
			got := s.Get("a.md")
			assert.True(t, got.Starred, "note must keep the star")
			assert.Equal(t, "worth rereading", got.Note)
			assert.False(t, got.UpdatedAt.IsZero())

			require.NoError(t, SetNote(s, "b.md", "only a note"))
			assert.Equal(t, []string{"a.md"}, StarredFiles(s))
			assert.Len(t, s.All(), 2)

			// clearing both star and note removes the entry
			_, err = ToggleStar(s, "a.md")
			require.NoError(t, err)
			require.NoError(t, SetNote(s, "a.md", ""))
			_, ok := s.All()["a.md"]
			assert.False(t, ok)

			require.NoError(t, s.Persist())
		})
	}
}

func TestAllReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set("a.md", Annotation{Starred: true}))

	all := s.All()
	delete(all, "a.md")
	assert.True(t, s.Starred("a.md"))
}

func TestDBStorePersistsAcrossReopen(t *testing.T) {
	db, path := openDB(t)
	s, err := OpenDBStore(db)
	require.NoError(t, err)

	require.NoError(t, s.Set("a.md", Annotation{Starred: true, Note: "n"}))
	require.NoError(t, s.Set("b.md", Annotation{Starred: true}))
	require.NoError(t, s.Persist())
	require.NoError(t, s.Set("b.md", Annotation{}))
	require.NoError(t, s.Persist())
	require.NoError(t, db.Close())

	db2, err := statedb.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })
	require.NoError(t, db2.Migrate())

	s2, err := OpenDBStore(db2)
	require.NoError(t, err)
	assert.Equal(t, "n", s2.Get("a.md").Note)
	assert.True(t, s2.Starred("a.md"))
	assert.False(t, s2.Starred("b.md"))
}

func TestDBStoreUnpersistedChangesAreLost(t *testing.T) {
	db, _ := openDB(t)
	s, err := OpenDBStore(db)
	require.NoError(t, err)
	require.NoError(t, s.Set("a.md", Annotation{Starred: true}))

	fresh, err := OpenDBStore(db)
	require.NoError(t, err)
	assert.False(t, fresh.Starred("a.md"))
}

func TestExportImportRoundTrip(t *testing.T) {
	src := NewMemoryStore()
	when := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, src.Set("b.md", Annotation{Note: "second", UpdatedAt: when}))
	require.NoError(t, src.Set("a.md", Annotation{Starred: true, UpdatedAt: when}))

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, src))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.EqualValues(t, ExportVersion, doc["version"])
	entries := doc["annotations"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.md", entries[0].(map[string]any)["file"])

	dst := NewMemoryStore()
	n, err := ImportJSON(&buf, dst, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, src.All(), dst.All())
}

func TestImportLegacyDump(t *testing.T) {
	dst := NewMemoryStore()
	require.NoError(t, dst.Set("old.md", Annotation{Starred: true}))

	legacy := `{"stars":["a.md"],"notes":{"a.md":"x","b.md":"y","c.md":""}}`
	n, err := ImportJSON(strings.NewReader(legacy), dst, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.False(t, dst.Starred("old.md"), "replace clears entries missing from the import")
	assert.Equal(t, Annotation{Starred: true, Note: "x"}, withoutTime(dst.Get("a.md")))
	assert.Equal(t, "y", dst.Get("b.md").Note)
}

func TestImportRejectsBadInput(t *testing.T) {
	_, err := ImportJSON(strings.NewReader("{"), NewMemoryStore(), false)
	assert.Error(t, err)

	_, err = ImportJSON(strings.NewReader(`{"version": 99}`), NewMemoryStore(), false)
	assert.Error(t, err)
}

func withoutTime(a Annotation) Annotation {
	a.UpdatedAt = time.Time{}
	return a
}

func TestDBStoreReloadSeesOtherWriters(t *testing.T) {
	db, _ := openDB(t)
	a, err := OpenDBStore(db)
	require.NoError(t, err)
	b, err := OpenDBStore(db)
	require.NoError(t, err)

	require.NoError(t, b.Set("x.md", Annotation{Starred: true}))
	require.NoError(t, b.Persist())
	require.NoError(t, a.Set("y.md", Annotation{Note: "local"}))

	require.NoError(t, a.Reload())
	assert.True(t, a.Starred("x.md"))
	assert.Equal(t, "local", a.Get("y.md").Note, "pending local change survives reload")
}
