package core

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/media"
	"github.com/JonMunkholm/catalogsync/internal/merge"
	"github.com/JonMunkholm/catalogsync/internal/remotesync"
	"github.com/JonMunkholm/catalogsync/internal/table"
	"github.com/JonMunkholm/catalogsync/internal/upload"
	"github.com/JonMunkholm/catalogsync/internal/validate"
)

// MediaIndexName is the file written next to the catalog by Run.
const MediaIndexName = "media-index.json"

// SyncConfig wires the bucket poller.
type SyncConfig struct {
	Bucket        remotesync.Bucket
	Prefix        string
	ProcessedPath string
	WorkDir       string
	// Defaults applies to every submission. Products and images paths are
	// filled in per object and merge mode is always on.
	Defaults RunRequest
}

// Deps holds what a Service is built from. Everything but Connect is
// optional.
type Deps struct {
	// Connect opens the image host. It is only called when a run has
	// images to upload.
	Connect func() (upload.Host, error)
	Limiter *upload.Limiter
	History *History
	Sync    *SyncConfig
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service runs pipeline operations.
type Service struct {
	connect func() (upload.Host, error)
	limiter *upload.Limiter
	history *History
	log     *slog.Logger
	now     func() time.Time

	syncer       *remotesync.Syncer
	syncDefaults RunRequest
	flight       singleflight.Group
	syncing      atomic.Bool
}

// NewService creates a Service from d.
func NewService(d Deps) *Service {
	s := &Service{
		connect: d.Connect,
		limiter: d.Limiter,
		history: d.History,
		log:     d.Logger,
		now:     d.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.limiter == nil {
		s.limiter = upload.NewLimiter(upload.DefaultConcurrency)
	}
	if d.Sync != nil && d.Sync.Bucket != nil {
		s.syncDefaults = d.Sync.Defaults
		s.syncer = &remotesync.Syncer{
			Bucket:        d.Sync.Bucket,
			ProcessedPath: d.Sync.ProcessedPath,
			WorkDir:       d.Sync.WorkDir,
			Prefix:        d.Sync.Prefix,
			Ingest:        s.ingestSubmission,
			Logger:        s.log,
			Now:           s.now,
		}
	}
	return s
}

// Limiter returns the upload limiter shared by every run of this service.
func (s *Service) Limiter() *upload.Limiter { return s.limiter }

// ValidateRequest names a products sheet to check.
type ValidateRequest struct {
	ProductsPath string
	// CatalogPath is consulted in merge mode so rows that update existing
	// products are checked against them.
	CatalogPath string
	Merge       bool
	Strict      bool
}

// ValidateResult holds the rows that passed and every issue found.
type ValidateResult struct {
	Rows   []validate.ProductRow
	Report *diag.Report
}

// Validate parses the products sheet without touching anything.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := s.loadBase(req.CatalogPath, req.Merge)
	if err != nil {
		return nil, err
	}
	rows, report, err := parseProducts(req.ProductsPath, base, req.Merge, req.Strict)
	if err != nil {
		return nil, err
	}
	return &ValidateResult{Rows: rows, Report: report}, report.Err()
}

// ImagesRequest configures a standalone upload.
type ImagesRequest struct {
	ImagesPath  string
	BaseDir     string
	StatePath   string
	OutPath     string
	Concurrency int
	MinEdge     int
	Strict      bool
	Replace     bool
	Recursive   bool
	DryRun      bool
}

// UploadImages uploads the images sheet through the cache.
func (s *Service) UploadImages(ctx context.Context, req ImagesRequest) (*upload.Result, error) {
	return upload.Run(ctx, upload.Options{
		ImagesPath:  req.ImagesPath,
		BaseDir:     req.BaseDir,
		StatePath:   req.StatePath,
		OutPath:     req.OutPath,
		Concurrency: req.Concurrency,
		MinEdge:     req.MinEdge,
		Strict:      req.Strict,
		Replace:     req.Replace,
		Recursive:   req.Recursive,
		DryRun:      req.DryRun,
		Connect:     s.connect,
		Limiter:     s.limiter,
		Logger:      s.log,
	})
}

// ImportRequest merges a products sheet into a catalog.
type ImportRequest struct {
	ProductsPath string
	CatalogPath  string
	// OutPath defaults to CatalogPath.
	OutPath      string
	MediaMapPath string
	Merge        bool
	Strict       bool
	DryRun       bool
	Backup       bool
	BackupDir    string
}

// ImportResult describes a finished import.
type ImportResult struct {
	Catalog    *catalog.Catalog
	Stats      merge.Stats
	Report     *diag.Report
	OutPath    string
	BackupPath string
}

// Import validates the products sheet and merges it into the catalog.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	rec := s.startRecord(KindImport, req.ProductsPath)
	res, err := s.importProducts(ctx, req)
	if res != nil {
		rec.Products = res.Stats.Created + res.Stats.Updated
		rec.countReport(res.Report)
	}
	s.finishRecord(ctx, rec, req.DryRun, err)
	return res, err
}

func (s *Service) importProducts(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &ImportResult{Report: &diag.Report{}, OutPath: firstSet(req.OutPath, req.CatalogPath)}

	base, err := s.loadBase(req.CatalogPath, req.Merge)
	if err != nil {
		return res, err
	}
	rows, report, err := parseProducts(req.ProductsPath, base, req.Merge, req.Strict)
	if err != nil {
		return res, err
	}
	res.Report.Merge(report)
	if err := res.Report.Err(); err != nil {
		return res, err
	}

	var mm *catalog.MediaMap
	if req.MediaMapPath != "" {
		if mm, err = media.LoadMap(req.MediaMapPath); err != nil {
			return res, err
		}
	}

	next, stats, report := merge.Build(base, rows, mm, s.mergeOptions(req.Merge, req.Strict))
	res.Report.Merge(report)
	res.Catalog, res.Stats = next, stats
	if err := res.Report.Err(); err != nil {
		return res, err
	}
	if req.DryRun {
		return res, nil
	}

	res.BackupPath, err = merge.Commit(res.OutPath, next, merge.CommitOptions{
		Backup:    req.Backup,
		BackupDir: req.BackupDir,
		Now:       s.now(),
	})
	if err != nil {
		return res, err
	}
	s.log.Info("wrote catalog", "path", res.OutPath, "created", stats.Created, "updated", stats.Updated, "backup", res.BackupPath)
	return res, nil
}

// RunRequest configures the full pipeline for one submission.
type RunRequest struct {
	ProductsPath string
	// ImagesPath is optional. Without it, rows with image_files are
	// uploaded from the products sheet and the rest keep the media the
	// sheet or the catalog already has.
	ImagesPath string
	BaseDir    string
	StatePath  string
	// MediaOutPath receives the media map when set.
	MediaOutPath string
	CatalogPath  string
	// IndexPath defaults to media-index.json next to the catalog.
	IndexPath string
	// Source names the submission in run history.
	Source string

	Merge       bool
	Strict      bool
	DryRun      bool
	Replace     bool
	Recursive   bool
	Backup      bool
	BackupDir   string
	Concurrency int
	MinEdge     int
}

// RunResult describes a finished run.
type RunResult struct {
	RunID      string
	Catalog    *catalog.Catalog
	Stats      merge.Stats
	Upload     *upload.Result
	Index      *catalog.MediaIndex
	Report     *diag.Report
	IndexPath  string
	BackupPath string
}

// Run validates the products sheet, uploads the images and merges both into
// the catalog. Both sheets are checked and the merge is tried against the
// planned media before anything is uploaded; any error stops the run there.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	return s.runAs(ctx, KindRun, req)
}

func (s *Service) runAs(ctx context.Context, kind string, req RunRequest) (*RunResult, error) {
	rec := s.startRecord(kind, firstSet(req.Source, req.ProductsPath))
	ctx = ContextWithRunID(ctx, rec.ID.String())
	res, err := s.run(ctx, req)
	res.RunID = rec.ID.String()
	rec.Products = res.Stats.Created + res.Stats.Updated
	if res.Upload != nil {
		rec.Uploaded = res.Upload.Uploaded
		rec.Cached = res.Upload.Counts.Cached
	}
	rec.countReport(res.Report)
	s.finishRecord(ctx, rec, req.DryRun, err)
	return res, err
}

func (s *Service) run(ctx context.Context, req RunRequest) (*RunResult, error) {
	log := s.log.With("run_id", RunIDFromContext(ctx))
	res := &RunResult{Report: &diag.Report{}}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	base, err := s.loadBase(req.CatalogPath, req.Merge)
	if err != nil {
		return res, err
	}
	rows, report, err := parseProducts(req.ProductsPath, base, req.Merge, req.Strict)
	if err != nil {
		return res, err
	}
	res.Report.Merge(report)
	log.Info("validated products", "rows", len(rows), "path", req.ProductsPath)

	prep, err := s.prepareImages(req, base, rows, log)
	if prep != nil {
		res.Upload = prep.Result
		res.Report.Merge(prep.Result.Report)
	}
	if err != nil {
		return res, err
	}
	if err := res.Report.Err(); err != nil {
		return res, err
	}

	opts := s.mergeOptions(req.Merge, req.Strict)
	var mm *catalog.MediaMap
	if prep != nil {
		mm = prep.Preview()
	}
	next, stats, report := merge.Build(base, rows, mm, opts)
	if prep != nil && !req.DryRun && !report.HasErrors() {
		up, err := prep.Execute(ctx)
		res.Upload = up
		if err != nil {
			res.Report.Merge(report)
			return res, err
		}
		next, stats, report = merge.Build(base, rows, up.Map, opts)
	}
	res.Report.Merge(report)
	if err := res.Report.Err(); err != nil {
		return res, err
	}
	next.Sort()
	res.Catalog, res.Stats = next, stats
	res.Index = buildIndex(req.ProductsPath, next, res.Upload, len(res.Report.Warnings()), s.now())
	if req.DryRun {
		return res, nil
	}

	res.BackupPath, err = merge.Commit(req.CatalogPath, next, merge.CommitOptions{
		Backup:    req.Backup,
		BackupDir: req.BackupDir,
		Now:       s.now(),
	})
	if err != nil {
		return res, err
	}
	res.IndexPath = firstSet(req.IndexPath, filepath.Join(filepath.Dir(req.CatalogPath), MediaIndexName))
	if err := catalog.SaveMediaIndex(res.IndexPath, res.Index); err != nil {
		return res, err
	}
	log.Info("wrote catalog", "path", req.CatalogPath, "created", stats.Created, "updated", stats.Updated,
		"index", res.IndexPath, "backup", res.BackupPath)
	return res, nil
}

// Sync polls the submission bucket once. Concurrent callers share the
// pass already in flight instead of starting another.
func (s *Service) Sync(ctx context.Context) (remotesync.Summary, error) {
	if s.syncer == nil {
		return remotesync.Summary{}, ErrSyncDisabled
	}
	v, err, _ := s.flight.Do("sync", func() (any, error) {
		s.syncing.Store(true)
		defer s.syncing.Store(false)
		return s.syncer.Poll(ctx)
	})
	sum, _ := v.(remotesync.Summary)
	return sum, err
}

// TriggerSync starts a sync unless one is already running.
func (s *Service) TriggerSync(ctx context.Context) (remotesync.Summary, error) {
	if s.syncer == nil {
		return remotesync.Summary{}, ErrSyncDisabled
	}
	if s.SyncRunning() {
		return remotesync.Summary{}, ErrSyncRunning
	}
	return s.Sync(ctx)
}

// SyncEnabled reports whether a bucket is configured.
func (s *Service) SyncEnabled() bool { return s.syncer != nil }

// SyncRunning reports whether a sync pass is in flight.
func (s *Service) SyncRunning() bool { return s.syncing.Load() }

func (s *Service) ingestSubmission(ctx context.Context, sub remotesync.Submission) error {
	req := s.syncDefaults
	req.ProductsPath = sub.ProductsPath
	req.ImagesPath = sub.ImagesPath
	req.BaseDir = ""
	req.Merge = true
	req.DryRun = false
	req.Source = sub.Key

	res, err := s.runAs(ctx, KindSync, req)
	if err != nil {
		if res != nil && res.Report != nil {
			for _, i := range res.Report.Errors() {
				s.log.Warn("submission issue", "object", sub.Key, "row", i.Row, "message", i.Message)
			}
		}
		return err
	}
	return nil
}

// prepareImages classifies the run's images without uploading them. The
// images sheet wins; without one, rows that list image_files supply the
// items. It returns nil when the run has no images.
func (s *Service) prepareImages(req RunRequest, base *catalog.Catalog, rows []validate.ProductRow, log *slog.Logger) (*upload.Prepared, error) {
	opts := upload.Options{
		ImagesPath:  req.ImagesPath,
		BaseDir:     req.BaseDir,
		StatePath:   req.StatePath,
		OutPath:     req.MediaOutPath,
		Concurrency: req.Concurrency,
		MinEdge:     req.MinEdge,
		Strict:      req.Strict,
		Replace:     req.Replace,
		Recursive:   req.Recursive,
		DryRun:      req.DryRun,
		Connect:     s.connect,
		Limiter:     s.limiter,
		Logger:      log,
	}
	if req.ImagesPath != "" {
		return upload.Prepare(opts)
	}

	sources := imageSources(rows, base, req.Merge)
	if len(sources) == 0 {
		return nil, nil
	}
	baseDir := req.BaseDir
	if baseDir == "" {
		abs, err := filepath.Abs(req.ProductsPath)
		if err != nil {
			return nil, diag.Wrap(diag.IOError, err, "resolve %s", req.ProductsPath)
		}
		baseDir = filepath.Dir(abs)
	}
	items, report := upload.ExpandSources(sources, baseDir, media.Options{Recursive: req.Recursive}, req.Strict)
	if items == nil {
		items = []upload.Item{}
	}
	opts.Items = items
	prep, err := upload.Prepare(opts)
	report.Merge(prep.Result.Report)
	prep.Result.Report = report
	return prep, err
}

// imageSources collects the image_files of each row under the slug the row
// resolves to. Alt texts fall back to the title, then the slug.
func imageSources(rows []validate.ProductRow, base *catalog.Catalog, merging bool) []upload.Source {
	var lookup func(slug, id string) *catalog.Product
	if merging {
		lookup = merge.Lookup(base)
	}
	var out []upload.Source
	for _, row := range rows {
		if len(row.ImageFiles) == 0 {
			continue
		}
		slug, title := row.TargetSlug(), row.Title
		if lookup != nil {
			if p := lookup(row.Slug, row.ID); p != nil {
				slug = p.Slug
				title = firstSet(title, p.Title)
			}
		}
		out = append(out, upload.Source{
			Row:      row.Line,
			Slug:     slug,
			Specs:    row.ImageFiles,
			AltTexts: row.MediaAltTexts,
			Fallback: firstSet(title, slug),
		})
	}
	return out
}

func (s *Service) loadBase(path string, merging bool) (*catalog.Catalog, error) {
	if !merging || path == "" {
		return (*catalog.Catalog)(nil).Clone(), nil
	}
	return catalog.Load(path)
}

func (s *Service) mergeOptions(merging, strict bool) merge.Options {
	opts := merge.Options{Merge: merging, Strict: strict, Now: s.now}
	if !strict {
		opts.Defaults = validate.ZeroDefaults()
	}
	return opts
}

func parseProducts(path string, base *catalog.Catalog, merging, strict bool) ([]validate.ProductRow, *diag.Report, error) {
	rows, err := table.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	opts := validate.Options{Strict: strict, Merge: merging}
	if !strict {
		opts.Defaults = validate.ZeroDefaults()
	}
	if merging {
		opts.Existing = merge.Lookup(base)
	}
	valid, report := validate.Parse(rows, opts)
	for _, r := range base.RoundedAmounts() {
		report.Warn(0, "catalog %s", r)
	}
	return valid, report, nil
}

func buildIndex(productsPath string, c *catalog.Catalog, up *upload.Result, warnings int, now time.Time) *catalog.MediaIndex {
	idx := &catalog.MediaIndex{
		GeneratedAt:  now.UTC().Format(time.RFC3339),
		ProductsPath: productsPath,
		Items:        []catalog.MediaIndexItem{},
	}
	idx.Totals.Products = len(c.Products)
	idx.Totals.Warnings = warnings
	for _, p := range c.Products {
		idx.Totals.Media += len(p.Media)
	}
	if up == nil {
		return idx
	}
	for _, p := range up.Placements {
		idx.Items = append(idx.Items, catalog.MediaIndexItem{
			ProductSlug: p.ProductSlug,
			SourcePath:  p.SourcePath,
			CatalogPath: p.RemotePath,
			AltText:     p.AltText,
		})
	}
	return idx
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
