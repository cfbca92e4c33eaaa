package remotesync

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

type memBucket struct {
	objects map[string][]byte
	etags   map[string]string
	gets    []string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (b *memBucket) put(key string, data []byte, etag string) {
	b.objects[key] = data
	b.etags[key] = etag
}

func (b *memBucket) List(_ context.Context, prefix string) ([]Object, error) {
	var out []Object
	for k, data := range b.objects {
		if len(prefix) > 0 && (len(k) < len(prefix) || k[:len(prefix)] != prefix) {
			continue
		}
		out = append(out, Object{Key: k, ETag: b.etags[k], Size: int64(len(data))})
	}
	// Unordered on purpose; Poll sorts.
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

func (b *memBucket) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.gets = append(b.gets, key)
	data, ok := b.objects[key]
	if !ok {
		return nil, diag.New(diag.RemoteError, "get object %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newSyncer(t *testing.T, b Bucket, ingest func(context.Context, Submission) error) *Syncer {
	t.Helper()
	dir := t.TempDir()
	return &Syncer{
		Bucket:        b,
		ProcessedPath: filepath.Join(dir, "processed.json"),
		WorkDir:       filepath.Join(dir, "work"),
		Prefix:        "incoming/",
		Ingest:        ingest,
		Now:           func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestPoll_IngestsInKeyOrderAndRecordsEach(t *testing.T) {
	b := newMemBucket()
	b.put("incoming/b.zip", zipOf(t, map[string]string{
		"Drop/Products.CSV": "title\nStudio Jacket\n",
		"Drop/images.csv":   "product_slug,file\nstudio-jacket,img/a.jpg\n",
		"Drop/img/a.jpg":    "jpeg",
	}), `"e-b"`)
	b.put("incoming/a.csv", []byte("title\nTote\n"), `"e-a"`)
	b.put("incoming/notes.txt", []byte("ignore me"), `"e-n"`)
	b.put("elsewhere/c.csv", []byte("title\nRing\n"), `"e-c"`)

	var seen []Submission
	s := newSyncer(t, b, func(_ context.Context, sub Submission) error {
		_, err := os.Stat(sub.ProductsPath)
		require.NoError(t, err)
		seen = append(seen, sub)
		return nil
	})

	sum, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Listed: 3, Skipped: 1, Ingested: 2}, sum)

	require.Len(t, seen, 2)
	assert.Equal(t, "incoming/a.csv", seen[0].Key)
	assert.Equal(t, "a.csv", filepath.Base(seen[0].ProductsPath))
	assert.Empty(t, seen[0].ImagesPath)
	assert.Equal(t, "incoming/b.zip", seen[1].Key)
	assert.Equal(t, "Products.CSV", filepath.Base(seen[1].ProductsPath))
	assert.Equal(t, "images.csv", filepath.Base(seen[1].ImagesPath))

	rec, err := LoadProcessed(s.ProcessedPath)
	require.NoError(t, err)
	require.Len(t, rec.Objects, 2)
	assert.Equal(t, `"e-b"`, rec.Objects["incoming/b.zip"].ETag)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), rec.Objects["incoming/a.csv"].ProcessedAt)

	// Work directories are cleaned up after each object.
	entries, err := os.ReadDir(s.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPoll_SkipsUnchangedAndRetriesChanged(t *testing.T) {
	b := newMemBucket()
	b.put("incoming/a.csv", []byte("title\nTote\n"), `"v1"`)

	calls := 0
	s := newSyncer(t, b, func(context.Context, Submission) error {
		calls++
		return nil
	})

	_, err := s.Poll(context.Background())
	require.NoError(t, err)
	sum, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Summary{Listed: 1, Skipped: 1}, sum)

	b.put("incoming/a.csv", []byte("title\nTote Bag\n"), `"v2"`)
	sum, err = s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, sum.Ingested)
}

func TestPoll_FailureIsCountedAndRetried(t *testing.T) {
	b := newMemBucket()
	b.put("incoming/a.csv", []byte("title\nTote\n"), `"a"`)
	b.put("incoming/b.csv", []byte("title\nRing\n"), `"b"`)
	b.put("incoming/c.csv", []byte("title\nCoat\n"), `"c"`)

	fail := true
	var order []string
	s := newSyncer(t, b, func(_ context.Context, sub Submission) error {
		order = append(order, sub.Key)
		if sub.Key == "incoming/b.csv" && fail {
			return errors.New("boom")
		}
		return nil
	})

	sum, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Listed: 3, Ingested: 2, Failed: 1}, sum)
	assert.Equal(t, []string{"incoming/a.csv", "incoming/b.csv", "incoming/c.csv"}, order)

	rec, err := LoadProcessed(s.ProcessedPath)
	require.NoError(t, err)
	assert.NotContains(t, rec.Objects, "incoming/b.csv")

	fail = false
	order = nil
	sum, err = s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Listed: 3, Skipped: 2, Ingested: 1}, sum)
	assert.Equal(t, []string{"incoming/b.csv"}, order)
}

func TestPoll_BundleWithoutProductsSheetFails(t *testing.T) {
	b := newMemBucket()
	b.put("incoming/a.zip", zipOf(t, map[string]string{"images.csv": "product_slug,file\n"}), `"a"`)

	s := newSyncer(t, b, func(context.Context, Submission) error {
		t.Fatal("ingest must not run")
		return nil
	})
	sum, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
}

func TestPoll_Unconfigured(t *testing.T) {
	_, err := (&Syncer{}).Poll(context.Background())
	assert.ErrorIs(t, err, diag.RemoteError)
}

func TestExtractZip_RejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(src, zipOf(t, map[string]string{"../escape.txt": "x"}), 0o644))

	err := ExtractZip(src, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.IOError)
	assert.Contains(t, err.Error(), "escapes the work directory")
	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFindSheets_PrefersShallowest(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a/b/products.csv", "x/PRODUCTS.xlsx", "x/y/images.xlsx"} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
	products, images, err := FindSheets(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x", "PRODUCTS.xlsx"), products)
	assert.Equal(t, filepath.Join(dir, "x", "y", "images.xlsx"), images)
}

func TestProcessed_DoneComparesETag(t *testing.T) {
	p := &Processed{Objects: map[string]ProcessedObject{}}
	obj := Object{Key: "k", ETag: `"1"`, Size: 3}
	assert.False(t, p.Done(obj))
	p.Mark(obj, time.Now())
	assert.True(t, p.Done(obj))
	obj.ETag = `"2"`
	assert.False(t, p.Done(obj))
}

func TestSummary_String(t *testing.T) {
	s := Summary{Listed: 4, Skipped: 1, Ingested: 2, Failed: 1}
	assert.Equal(t, fmt.Sprintf("Listed: %d | Skipped: %d | Ingested: %d | Failed: %d", 4, 1, 2, 1), s.String())
}
