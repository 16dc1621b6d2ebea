package docstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetBumpsVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.Put(ctx, "trans", "t1", map[string]any{"title": "Coffee", "amount": 3.5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	doc, err = s.Put(ctx, "trans", "t1", map[string]any{"title": "Coffee", "amount": "4"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)

	got, err := s.Get(ctx, "trans", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", got.String("title"))
	assert.Equal(t, "4", got.String("amount"))
	assert.Equal(t, int64(2), got.Version)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "trans", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNumbersDecodeAsJSONNumber(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "trans", "t1", map[string]any{"amount": json.Number("0.1")})
	require.NoError(t, err)

	got, err := s.Get(ctx, "trans", "t1")
	require.NoError(t, err)
	v, ok := got.Value("amount")
	require.True(t, ok)
	assert.Equal(t, json.Number("0.1"), v)
}

func TestQueryFiltersAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := map[string]string{
		"c": "2024-05-08",
		"a": "2024-05-06",
		"b": "2024-05-12",
		"d": "2024-05-13",
		"e": "2024-05-05",
	}
	for id, date := range seed {
		_, err := s.Put(ctx, "trans", id, map[string]any{"date": date, "type": "expenditure"})
		require.NoError(t, err)
	}
	_, err := s.Put(ctx, "budget", "a", map[string]any{"date": "2024-05-07"})
	require.NoError(t, err)

	q := Collection("trans").
		Where("date", Gte, "2024-05-06").
		Where("date", Lte, "2024-05-12")
	docs, err := s.Query(ctx, q)
	require.NoError(t, err)

	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestQueryNumericAndBool(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "cats", "x", map[string]any{"n": 5, "checked": true})
	require.NoError(t, err)
	_, err = s.Put(ctx, "cats", "y", map[string]any{"n": 15, "checked": false})
	require.NoError(t, err)

	docs, err := s.Query(ctx, Collection("cats").Where("n", Gt, 10))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "y", docs[0].ID)

	docs, err = s.Query(ctx, Collection("cats").Where("checked", Eq, true))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "x", docs[0].ID)
	assert.True(t, docs[0].Bool("checked"))
}

func TestQueryRejectsBadInput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Query(ctx, Collection("trans; DROP TABLE documents"))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Query(ctx, Collection("trans").Where("a.b", Eq, "x"))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Query(ctx, Collection("trans").Where("a", Op("!="), "x"))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Query(ctx, Collection("trans").Where("a", Eq, []int{1}))
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestOnChangeFires(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var got []string
	s.OnChange(func(collection, id string) {
		got = append(got, collection+"/"+id)
	})

	doc, err := s.Add(ctx, "trans", map[string]any{"title": "x"})
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)

	require.NoError(t, s.PutBatch(ctx, "budget", []Entry{{ID: "b1"}, {Data: map[string]any{"amount": 1}}}))
	require.NoError(t, s.Delete(ctx, "trans", doc.ID))
	require.NoError(t, s.Delete(ctx, "trans", "missing"))

	assert.Equal(t, []string{"trans/" + doc.ID, "budget/", "trans/" + doc.ID}, got)

	n, err := s.Count(ctx, "budget")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileTracker(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.TrackFile(ctx, "/seed/trans.yaml", FileInfo{MtimeNs: 10, SizeBytes: 20}))
	require.NoError(t, s.TrackFile(ctx, "/seed/trans.yaml", FileInfo{MtimeNs: 11, SizeBytes: 21}))

	files, err := s.TrackedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]FileInfo{"/seed/trans.yaml": {MtimeNs: 11, SizeBytes: 21}}, files)
}

func TestQueryKeyIsStable(t *testing.T) {
	a := Collection("trans").Where("date", Gte, "x").Where("date", Lte, "y")
	b := Collection("trans").Where("date", Lte, "y").Where("date", Gte, "x")
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "trans", Collection("trans").Key())
}
