package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/media"
	"github.com/JonMunkholm/catalogsync/internal/table"
)

// Options configures one upload run.
type Options struct {
	// ImagesPath is the images sheet (CSV or XLSX).
	ImagesPath string
	// BaseDir resolves relative file specs; defaults to the sheet's
	// directory.
	BaseDir string
	// StatePath is the upload cache file; empty disables caching.
	StatePath string
	// OutPath receives the media map; empty skips writing it.
	OutPath string

	Concurrency int
	MinEdge     int
	Strict      bool
	Replace     bool
	Recursive   bool
	DryRun      bool

	// Connect returns the host to upload to. It is called only when the
	// run has at least one upload, so a fully cached run needs no
	// credentials.
	Connect func() (Host, error)
	// Items replaces the images sheet when set.
	Items []Item

	// Limiter is shared across runs; nil gives the run its own.
	Limiter *Limiter
	Logger  *slog.Logger
}

// Placement records which local file became which remote asset.
type Placement struct {
	ProductSlug string
	SourcePath  string
	RemotePath  string
	AltText     string
}

// Result describes a finished (or dry) run.
type Result struct {
	Counts     Counts
	Uploaded   int
	Map        *catalog.MediaMap
	Placements []Placement
	Report     *diag.Report
}

// Prepared is a classified run. Preparing reads the sheet, the image files
// and the cache; it writes nothing and never contacts the host.
type Prepared struct {
	opts  Options
	log   *slog.Logger
	state *State
	plan  *Plan
	// Result carries the counts and the report collected so far.
	Result *Result
}

// Run uploads the images named by the images sheet and returns the media
// map. Sheet, file and cache problems are collected in Result.Report and
// returned together as one error before anything is uploaded; a remote
// failure aborts the run immediately.
func Run(ctx context.Context, opts Options) (*Result, error) {
	prep, err := Prepare(opts)
	if err != nil {
		return prep.Result, err
	}
	if err := prep.Result.Report.Err(); err != nil {
		return prep.Result, err
	}
	if opts.DryRun {
		prep.Preview()
		return prep.Result, nil
	}
	return prep.Execute(ctx)
}

// Prepare reads and classifies the run's items. Row problems land in
// Result.Report; the returned error is reserved for failures that stop
// classification itself, such as an unreadable sheet or cache file.
// Options.Items, when set, replaces the images sheet.
func Prepare(opts Options) (*Prepared, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Prepared{opts: opts, log: log, state: &State{}, Result: &Result{Report: &diag.Report{}}}

	items := opts.Items
	if items == nil {
		rows, err := table.ReadFile(opts.ImagesPath)
		if err != nil {
			return p, err
		}
		baseDir := opts.BaseDir
		if baseDir == "" {
			abs, err := filepath.Abs(opts.ImagesPath)
			if err != nil {
				return p, diag.Wrap(diag.IOError, err, "resolve %s", opts.ImagesPath)
			}
			baseDir = filepath.Dir(abs)
		}
		var sheetReport *diag.Report
		items, sheetReport = ParseSheet(rows, baseDir, media.Options{Recursive: opts.Recursive})
		p.Result.Report.Merge(sheetReport)
	}

	if opts.StatePath != "" {
		state, err := LoadState(opts.StatePath)
		if err != nil {
			return p, err
		}
		p.state = state
	}

	plan, planReport := Classify(items, p.state, ClassifyOptions{
		Strict:  opts.Strict,
		Replace: opts.Replace,
		MinEdge: opts.MinEdge,
	})
	p.Result.Report.Merge(planReport)
	p.Result.Counts = plan.Counts
	p.plan = plan
	return p, nil
}

// Preview fills Result with the media map the run would produce, naming
// planned uploads with PendingPrefix, and returns it.
func (p *Prepared) Preview() *catalog.MediaMap {
	p.Result.Map, p.Result.Placements = buildMap(p.plan.Decisions, provisional(p.plan.Decisions))
	return p.Result.Map
}

// Execute uploads the planned items, saves the cache and builds the media
// map. It refuses to run while the report holds errors.
func (p *Prepared) Execute(ctx context.Context) (*Result, error) {
	opts, log, state, plan, res := p.opts, p.log, p.state, p.plan, p.Result
	if err := res.Report.Err(); err != nil {
		return res, err
	}
	var err error

	uploads := plan.Uploads()
	var host Host
	if len(uploads) > 0 {
		if opts.Connect == nil {
			return res, CloudflareConfig{}.Validate()
		}
		if host, err = opts.Connect(); err != nil {
			return res, err
		}
	}

	// Entries for keys this run does not touch are carried over unchanged.
	touched := make(map[string]bool, len(plan.Decisions))
	for _, d := range plan.Decisions {
		touched[d.Item.Key()] = true
	}
	var carried []Entry
	for _, e := range state.Entries {
		if !touched[e.Key] {
			carried = append(carried, e)
		}
	}

	final := make([]Entry, len(plan.Decisions))
	done := make([]bool, len(plan.Decisions))
	for i, d := range plan.Decisions {
		if d.Action == ActionReuse || d.Action == ActionHold {
			final[i] = d.Entry
			done[i] = true
		}
	}

	var mu sync.Mutex
	snapshot := func() []Entry {
		out := append([]Entry(nil), carried...)
		for i := range final {
			if done[i] {
				out = append(out, final[i])
			}
		}
		return out
	}

	var persist *persister
	if opts.StatePath != "" {
		persist = newPersister(func(entries []Entry) error {
			return SaveState(opts.StatePath, entries)
		}, log)
	}

	uploadIdx := make([]int, 0, len(uploads))
	for i, d := range plan.Decisions {
		if d.Action == ActionUpload || d.Action == ActionReplace {
			uploadIdx = append(uploadIdx, i)
		}
	}
	total := len(uploadIdx)
	completed := 0

	poolErr := RunPool(ctx, opts.Limiter, opts.Concurrency, total, func(ctx context.Context, n int) error {
		i := uploadIdx[n]
		d := plan.Decisions[i]

		hash, err := hashFile(d.Item.FilePath)
		if err != nil {
			return diag.Wrap(diag.IOError, err, "hash %s", d.Item.FilePath)
		}
		info, err := os.Stat(d.Item.FilePath)
		if err != nil {
			return diag.Wrap(diag.IOError, err, "stat %s", d.Item.FilePath)
		}

		remote, err := host.Upload(ctx, d.Item.FilePath, NewSuggestedID())
		if err != nil {
			return err
		}

		e := Entry{
			Key:         d.Item.Key(),
			ProductSlug: d.Item.ProductSlug,
			FilePath:    d.Item.FilePath,
			Path:        remote,
			AltText:     firstNonEmpty(d.Item.AltText, d.Entry.AltText),
			Position:    d.Item.Position,
			Index:       d.Item.Index,
		}
		e.setFingerprint(hash, fingerprintOf(info))

		mu.Lock()
		final[i] = e
		done[i] = true
		completed++
		n = completed
		snap := snapshot()
		mu.Unlock()

		if persist != nil {
			persist.Request(snap)
		}
		log.Info(fmt.Sprintf("[%d/%d] Uploaded %s -> %s", n, total, filepath.Base(d.Item.FilePath), remote),
			"product", d.Item.ProductSlug, "file", d.Item.FilePath)
		return nil
	})
	if persist != nil {
		persist.Close()
	}
	res.Uploaded = completed
	if poolErr != nil {
		return res, poolErr
	}

	if opts.StatePath != "" {
		if err := SaveState(opts.StatePath, snapshot()); err != nil {
			return res, err
		}
	}

	res.Map, res.Placements = buildMap(plan.Decisions, final)
	if opts.OutPath != "" {
		if err := media.SaveMap(opts.OutPath, res.Map); err != nil {
			return res, err
		}
		log.Info("wrote media map", "products", len(res.Map.MediaByProduct), "path", opts.OutPath)
	}
	return res, nil
}

// PendingPrefix marks media paths a dry run has not uploaded yet.
const PendingPrefix = "pending:"

// provisional returns the entries a run would end with, naming planned
// uploads by PendingPrefix and their file name.
func provisional(decisions []Decision) []Entry {
	out := make([]Entry, len(decisions))
	for i, d := range decisions {
		out[i] = d.Entry
		if d.Action == ActionUpload || d.Action == ActionReplace {
			out[i].Path = PendingPrefix + filepath.Base(d.Item.FilePath)
		}
	}
	return out
}

func buildMap(decisions []Decision, entries []Entry) (*catalog.MediaMap, []Placement) {
	bySlug := make(map[string][]media.OrderedItem)
	placements := make([]Placement, 0, len(decisions))
	for i, d := range decisions {
		e := entries[i]
		alt := firstNonEmpty(d.Item.AltText, e.AltText)
		bySlug[d.Item.ProductSlug] = append(bySlug[d.Item.ProductSlug], media.OrderedItem{
			Item:  catalog.MediaItem{Type: catalog.MediaTypeImage, Path: e.Path, AltText: alt},
			Order: d.Item.order(),
		})
		placements = append(placements, Placement{
			ProductSlug: d.Item.ProductSlug,
			SourcePath:  d.Item.FilePath,
			RemotePath:  e.Path,
			AltText:     alt,
		})
	}
	return media.BuildMap(bySlug), placements
}

// Summary renders the counts as one line in the style
// "Images: 3 | Cached: 1 | Will upload new: 2 | Replace mode: off".
func (c Counts) Summary(dryRun, replace, recursive bool) string {
	parts := []string{fmt.Sprintf("Images: %d", c.Images), fmt.Sprintf("Cached: %d", c.Cached)}
	newLabel, replaceLabel := "Uploaded new", "Replaced"
	if dryRun {
		newLabel, replaceLabel = "Will upload new", "Will replace"
	}
	if c.New > 0 {
		parts = append(parts, fmt.Sprintf("%s: %d", newLabel, c.New))
	}
	if c.Replace > 0 {
		parts = append(parts, fmt.Sprintf("%s: %d", replaceLabel, c.Replace))
	}
	if c.ChangedHeld > 0 {
		parts = append(parts, fmt.Sprintf("Changed (needs --replace): %d", c.ChangedHeld))
	}
	if c.MissingHashes > 0 {
		parts = append(parts, fmt.Sprintf("State missing hashes: %d", c.MissingHashes))
	}
	parts = append(parts, "Replace mode: "+onOff(replace), "Recursive directories: "+onOff(recursive))
	return strings.Join(parts, " | ")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
