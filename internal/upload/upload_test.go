package upload

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/media"
)

type fakeHost struct {
	mu      sync.Mutex
	calls   []string
	fail    error
	counter atomic.Int64
}

func (h *fakeHost) Upload(ctx context.Context, filePath, suggestedID string) (string, error) {
	if h.fail != nil {
		return "", h.fail
	}
	h.mu.Lock()
	h.calls = append(h.calls, filepath.Base(filePath))
	h.mu.Unlock()
	return fmt.Sprintf("cf-%d", h.counter.Add(1)), nil
}

func (h *fakeHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

type fixture struct {
	dir   string
	sheet string
	state string
	out   string
	host  *fakeHost
}

func newFixture(t *testing.T, sheet string) *fixture {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "img", "front.png"), 20, 20)
	writePNG(t, filepath.Join(dir, "img", "back.png"), 20, 30)
	path := filepath.Join(dir, "images.csv")
	require.NoError(t, os.WriteFile(path, []byte(sheet), 0o644))
	return &fixture{
		dir:   dir,
		sheet: path,
		state: filepath.Join(dir, "state.json"),
		out:   filepath.Join(dir, "media.json"),
		host:  &fakeHost{},
	}
}

func (f *fixture) opts() Options {
	return Options{
		ImagesPath: f.sheet,
		StatePath:  f.state,
		OutPath:    f.out,
		MinEdge:    10,
		Connect:    func() (Host, error) { return f.host, nil },
	}
}

const twoImages = "product_slug,file,alt_text,position\n" +
	"studio-jacket,img/back.png,Back,2\n" +
	"studio-jacket,img/front.png,Front,1\n"

func TestRun_UploadsThenReusesCache(t *testing.T) {
	f := newFixture(t, twoImages)

	res, err := Run(context.Background(), f.opts())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 2, res.Counts.New)
	items := res.Map.MediaByProduct["studio-jacket"]
	require.Len(t, items, 2)
	assert.Equal(t, "Front", items[0].AltText, "explicit position orders media")
	assert.Equal(t, "Back", items[1].AltText)

	st, err := LoadState(f.state)
	require.NoError(t, err)
	require.Len(t, st.Entries, 2)
	for _, e := range st.Entries {
		assert.NotEmpty(t, e.SHA256)
		assert.NotNil(t, e.Size)
		assert.Contains(t, e.Key, "studio-jacket::")
	}

	again, err := Run(context.Background(), f.opts())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Uploaded)
	assert.Equal(t, 2, again.Counts.Cached)
	assert.Empty(t, again.Report.Warnings())
	assert.Equal(t, 2, f.host.count())
	assert.Equal(t, res.Map, again.Map)
}

func TestRun_ChangedFileIsHeldWithoutReplace(t *testing.T) {
	f := newFixture(t, twoImages)
	first, err := Run(context.Background(), f.opts())
	require.NoError(t, err)
	before := first.Map.MediaByProduct["studio-jacket"][0].Path

	writePNG(t, filepath.Join(f.dir, "img", "front.png"), 64, 64)

	res, err := Run(context.Background(), f.opts())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.ChangedHeld)
	require.Len(t, res.Report.Warnings(), 1)
	assert.Contains(t, res.Report.Warnings()[0].Message, "Re-run with --replace")
	assert.Equal(t, before, res.Map.MediaByProduct["studio-jacket"][0].Path)
	assert.Equal(t, 2, f.host.count())

	// The held entry keeps its old fingerprint, so the change is seen again.
	res, err = Run(context.Background(), f.opts())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.ChangedHeld)

	strict := f.opts()
	strict.Strict = true
	_, err = Run(context.Background(), strict)
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.CacheConsistencyError)

	replace := f.opts()
	replace.Replace = true
	res, err = Run(context.Background(), replace)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Replace)
	assert.Equal(t, 1, res.Uploaded)
	assert.NotEqual(t, before, res.Map.MediaByProduct["studio-jacket"][0].Path)
}

func TestRun_RefreshesMissingHash(t *testing.T) {
	f := newFixture(t, "product_slug,file\nstudio-jacket,img/front.png\n")
	abs := filepath.Join(f.dir, "img", "front.png")
	require.NoError(t, SaveState(f.state, []Entry{{
		Key: CacheKey("studio-jacket", abs), ProductSlug: "studio-jacket", FilePath: abs, Path: "cf-old",
	}}))

	res, err := Run(context.Background(), f.opts())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.MissingHashes)
	assert.Equal(t, 0, res.Counts.ChangedHeld)
	assert.Equal(t, 0, f.host.count())
	assert.Equal(t, "cf-old", res.Map.MediaByProduct["studio-jacket"][0].Path)

	st, err := LoadState(f.state)
	require.NoError(t, err)
	require.Len(t, st.Entries, 1)
	assert.NotEmpty(t, st.Entries[0].SHA256)
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	f := newFixture(t, twoImages)
	opts := f.opts()
	opts.DryRun = true
	opts.Connect = nil

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts.New)
	assert.Equal(t, 0, f.host.count())
	assert.NoFileExists(t, f.state)
	assert.NoFileExists(t, f.out)
	require.Len(t, res.Placements, 2)
	for _, p := range res.Placements {
		assert.True(t, strings.HasPrefix(p.RemotePath, PendingPrefix), p.RemotePath)
	}
	assert.Equal(t, "Images: 2 | Cached: 0 | Will upload new: 2 | Replace mode: off | Recursive directories: off",
		res.Counts.Summary(true, false, false))
}

func TestRun_CredentialsCheckedOnlyWhenUploading(t *testing.T) {
	f := newFixture(t, twoImages)
	opts := f.opts()
	opts.Connect = func() (Host, error) { return nil, CloudflareConfig{}.Validate() }

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.RemoteError)
	assert.Equal(t, "REM001", diag.MapError(err).Code)

	_, err = Run(context.Background(), f.opts())
	require.NoError(t, err)

	_, err = Run(context.Background(), opts)
	assert.NoError(t, err, "a fully cached run needs no credentials")
}

func TestRun_RemoteFailureAborts(t *testing.T) {
	f := newFixture(t, twoImages)
	f.host.fail = diag.New(diag.RemoteError, "upload failed: quota")

	_, err := Run(context.Background(), f.opts())
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.RemoteError)
	assert.NoFileExists(t, f.out)
}

func TestRun_SheetProblemsAreAggregated(t *testing.T) {
	sheet := "product_slug,file\n" +
		"a,img/front.png\n" +
		"a,img/front.png\n" +
		"b,img/missing.png\n" +
		",img/back.png\n"
	f := newFixture(t, sheet)

	res, err := Run(context.Background(), f.opts())
	require.Error(t, err)
	errs := res.Report.Errors()
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Message, "Duplicate image row")
	assert.Equal(t, 3, errs[0].Row)
	assert.Equal(t, 4, errs[1].Row)
	assert.Equal(t, 5, errs[2].Row)
	assert.Equal(t, 0, f.host.count())
}

func TestRun_TooSmallImageFails(t *testing.T) {
	f := newFixture(t, twoImages)
	opts := f.opts()
	opts.MinEdge = 25

	res, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ResolutionError)
	require.Len(t, res.Report.Errors(), 2)
	for _, e := range res.Report.Errors() {
		assert.Contains(t, e.Message, "image is too small")
	}
}

func TestParseSheet_DirectoryPositions(t *testing.T) {
	f := newFixture(t, "product_slug,file,position\nstudio-jacket,img,10\n")
	res, err := Run(context.Background(), f.opts())
	require.NoError(t, err)
	got := res.Placements
	require.Len(t, got, 2)
	assert.Equal(t, "back.png", filepath.Base(got[0].SourcePath))
	assert.Equal(t, "front.png", filepath.Base(got[1].SourcePath))

	st, err := LoadState(f.state)
	require.NoError(t, err)
	positions := map[string]int{}
	for _, e := range st.Entries {
		require.NotNil(t, e.Position)
		positions[filepath.Base(e.FilePath)] = *e.Position
	}
	assert.Equal(t, map[string]int{"back.png": 10, "front.png": 11}, positions)
}

func TestExpandSources_LenientSkipsStrictFails(t *testing.T) {
	f := newFixture(t, twoImages)
	src := []Source{{
		Row:      2,
		Slug:     "studio-jacket",
		Specs:    []string{"img/front.png", "img/gone.png", "img/back.png"},
		AltTexts: []string{"Front"},
		Fallback: "Studio Jacket",
	}}

	items, report := ExpandSources(src, f.dir, media.Options{}, false)
	require.False(t, report.HasErrors(), "issues: %v", report.Issues())
	require.Len(t, report.Warnings(), 1)
	assert.Contains(t, report.Warnings()[0].Message, "img/gone.png")
	require.Len(t, items, 2)
	assert.Equal(t, "Front", items[0].AltText)
	assert.Equal(t, "Studio Jacket", items[1].AltText)
	assert.Equal(t, []int{0, 1}, []int{items[0].Index, items[1].Index})

	_, report = ExpandSources(src, f.dir, media.Options{}, true)
	require.True(t, report.HasErrors())
	assert.Equal(t, diag.ResolutionError, report.Errors()[0].Kind)
	assert.Equal(t, 2, report.Errors()[0].Row)
}

func TestPrepare_WritesNothing(t *testing.T) {
	f := newFixture(t, twoImages)
	prep, err := Prepare(f.opts())
	require.NoError(t, err)
	require.False(t, prep.Result.Report.HasErrors())
	assert.Equal(t, 2, prep.Result.Counts.New)

	mm := prep.Preview()
	require.Len(t, mm.MediaByProduct["studio-jacket"], 2)
	assert.True(t, strings.HasPrefix(mm.MediaByProduct["studio-jacket"][0].Path, PendingPrefix))
	assert.Zero(t, f.host.count())
	for _, p := range []string{f.state, f.out} {
		_, err := os.Stat(p)
		assert.True(t, errors.Is(err, os.ErrNotExist), "%s was written", filepath.Base(p))
	}

	res, err := prep.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 2, f.host.count())
}

func TestPersister_NeverOverlaps(t *testing.T) {
	var inflight, maxInflight atomic.Int32
	var mu sync.Mutex
	var last []Entry
	p := newPersister(func(entries []Entry) error {
		n := inflight.Add(1)
		for {
			m := maxInflight.Load()
			if n <= m || maxInflight.CompareAndSwap(m, n) {
				break
			}
		}
		mu.Lock()
		last = entries
		mu.Unlock()
		inflight.Add(-1)
		return nil
	}, nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Request([]Entry{{Index: i}})
		}()
	}
	wg.Wait()
	p.Request([]Entry{{Index: 99}})
	p.Close()

	assert.Equal(t, int32(1), maxInflight.Load())
	require.Len(t, last, 1)
	assert.Equal(t, 99, last[0].Index)
}

func TestRunPool_RespectsLimit(t *testing.T) {
	var inflight, maxInflight atomic.Int32
	lim := NewLimiter(8)
	err := RunPool(context.Background(), lim, 3, 20, func(ctx context.Context, i int) error {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			m := maxInflight.Load()
			if n <= m || maxInflight.CompareAndSwap(m, n) {
				break
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, maxInflight.Load(), int32(3))
	assert.Equal(t, 0, lim.ActiveCount())
}

func TestRunPool_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	err := RunPool(context.Background(), nil, 2, 10, func(ctx context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestLimiter_AcquireRelease(t *testing.T) {
	lim := NewLimiter(2)
	ctx := context.Background()

	require.NoError(t, lim.Acquire(ctx))
	require.NoError(t, lim.Acquire(ctx))
	assert.Equal(t, LimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}, lim.Status())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, lim.Acquire(cancelled), context.Canceled)

	lim.Release()
	lim.Release()
	assert.NoError(t, lim.WaitForDrain(ctx))
	assert.Equal(t, 2, lim.Status().Available)
}
