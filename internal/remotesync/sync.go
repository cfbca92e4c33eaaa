package remotesync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Syncer polls a bucket and ingests new submissions.
type Syncer struct {
	Bucket        Bucket
	ProcessedPath string
	WorkDir       string
	Prefix        string
	Ingest        func(ctx context.Context, sub Submission) error
	Logger        *slog.Logger
	Now           func() time.Time
}

// Summary counts what one poll did.
type Summary struct {
	Listed   int `json:"listed"`
	Skipped  int `json:"skipped"`
	Ingested int `json:"ingested"`
	Failed   int `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Listed: %d | Skipped: %d | Ingested: %d | Failed: %d",
		s.Listed, s.Skipped, s.Ingested, s.Failed)
}

// Poll runs one pass over the bucket. A failed object is logged and left
// unrecorded so the next poll retries it; the error return is reserved for
// problems that stop the whole pass.
func (s *Syncer) Poll(ctx context.Context) (Summary, error) {
	var sum Summary
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	if s.Bucket == nil || s.Ingest == nil {
		return sum, diag.New(diag.RemoteError, "sync is not configured")
	}

	processed, err := LoadProcessed(s.ProcessedPath)
	if err != nil {
		return sum, err
	}
	objects, err := s.Bucket.List(ctx, s.Prefix)
	if err != nil {
		return sum, err
	}
	slices.SortFunc(objects, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })
	sum.Listed = len(objects)

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if !submissionKind(obj.Key) || processed.Done(obj) {
			sum.Skipped++
			continue
		}
		if err := s.ingestObject(ctx, obj); err != nil {
			sum.Failed++
			log.Error("sync ingest failed", "key", obj.Key, "etag", obj.ETag, "error", err)
			continue
		}
		processed.Mark(obj, s.now())
		if err := processed.Save(s.ProcessedPath); err != nil {
			return sum, err
		}
		sum.Ingested++
		log.Info("sync ingested", "key", obj.Key, "etag", obj.ETag)
	}
	return sum, nil
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// submissionKind reports whether key names something the poller can ingest.
func submissionKind(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".zip", ".csv", ".xlsx":
		return true
	}
	return false
}

func (s *Syncer) ingestObject(ctx context.Context, obj Object) error {
	// The directory is stable per key so the upload cache, keyed by
	// absolute file path, recognizes files from an earlier version of the
	// same object.
	dir := filepath.Join(s.WorkDir, workName(obj.Key))
	if err := os.RemoveAll(dir); err != nil {
		return diag.Wrap(diag.IOError, err, "clear work directory %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return diag.Wrap(diag.IOError, err, "create work directory %s", dir)
	}
	defer os.RemoveAll(dir)

	name := path.Base(obj.Key)
	local := filepath.Join(dir, name)
	if err := s.download(ctx, obj.Key, local); err != nil {
		return err
	}

	sub := Submission{Key: obj.Key, Dir: dir}
	if strings.EqualFold(path.Ext(name), ".zip") {
		bundle := filepath.Join(dir, "bundle")
		if err := ExtractZip(local, bundle); err != nil {
			return err
		}
		products, images, err := FindSheets(bundle)
		if err != nil {
			return err
		}
		sub.Dir, sub.ProductsPath, sub.ImagesPath = bundle, products, images
	} else {
		sub.ProductsPath = local
	}
	return s.Ingest(ctx, sub)
}

// workName flattens an object key into a single directory name.
func workName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, key)
}

func (s *Syncer) download(ctx context.Context, key, dest string) error {
	body, err := s.Bucket.Get(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return diag.Wrap(diag.IOError, err, "download %s", key)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return diag.Wrap(diag.RemoteError, err, "get object %s", key)
	}
	if err := out.Close(); err != nil {
		return diag.Wrap(diag.IOError, err, "download %s", key)
	}
	return nil
}
