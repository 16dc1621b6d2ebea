package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/fintrack/internal/docstore"
)

func seedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"trans.jsonl": `{"_id":"t1","type":"expenditure","category":"Food","amount":10,"date":"2024-05-06"}
{"_id":"t2","type":"expenditure","category":"Rent","amount":"100","date":"2024-05-07"}
oops
`,
		"expense_categories.yaml": `
food: {title: Food, color: "#FF0000"}
rent: {title: Rent, color: "#00FF00"}
`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func openStore(t *testing.T) *docstore.Store {
	t.Helper()
	s, err := docstore.Open(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestImportAndSkipUnchanged(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := seedDir(t)

	var calls atomic.Int32
	res, err := Import(ctx, store, dir, Options{Progress: func(_, total int) {
		calls.Add(1)
		assert.Equal(t, 2, total)
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalFiles)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 1, res.ParseErrors)
	assert.Equal(t, 4, res.Documents)
	assert.Equal(t, map[string]int{"trans": 2, "expense_categories": 2}, res.Collections)
	assert.Equal(t, int32(2), calls.Load())

	doc, err := store.Get(ctx, "trans", "t2")
	require.NoError(t, err)
	assert.Equal(t, "Rent", doc.String("category"))

	res, err = Import(ctx, store, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Imported)

	res, err = Import(ctx, store, dir, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	doc, err = store.Get(ctx, "trans", "t2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version, "forced import rewrites documents")
}

func TestImportPicksUpChangedFile(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := seedDir(t)

	_, err := Import(ctx, store, dir, Options{})
	require.NoError(t, err)

	path := filepath.Join(dir, "trans.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"_id":"t3","type":"expenditure","category":"Fun","amount":1}`+"\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	res, err := Import(ctx, store, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)

	n, err := store.Count(ctx, "trans")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestImportEmptyDir(t *testing.T) {
	res, err := Import(context.Background(), openStore(t), t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalFiles)
}

func TestImportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Import(ctx, openStore(t), seedDir(t), Options{})
	assert.Error(t, err)
}

func TestImportKeepsValidEntriesBesideNaN(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trans.yaml"), []byte(`
- {_id: a, type: expenditure, category: Food, amount: 10, date: 2024-05-06}
- {_id: b, type: expenditure, category: Food, amount: .nan, date: 2024-05-06}
`), 0o600))

	res, err := Import(ctx, store, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.ParseErrors)
	assert.Equal(t, 1, res.Documents)

	_, err = store.Get(ctx, "trans", "a")
	require.NoError(t, err)
	_, err = store.Get(ctx, "trans", "b")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
