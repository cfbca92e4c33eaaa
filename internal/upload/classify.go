package upload

// classify.go decides, for every item, whether its cached upload can be
// reused, must be uploaded, or is held back because the file changed and
// replacing was not allowed.
//
// A cached entry counts as changed only when it has a hash, its recorded size
// or mtime differs from the file, and a fresh hash differs too. Equal size and
// mtime never trigger a rehash. An entry without a hash is refreshed rather
// than treated as changed.

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/media"
)

// Action is what a run does with one item.
type Action int

const (
	// ActionReuse keeps the cached remote id.
	ActionReuse Action = iota
	// ActionUpload uploads a file with no cache entry.
	ActionUpload
	// ActionReplace re-uploads a changed file.
	ActionReplace
	// ActionHold keeps the cached remote id of a changed file.
	ActionHold
)

func (a Action) String() string {
	switch a {
	case ActionReuse:
		return "reuse"
	case ActionUpload:
		return "upload"
	case ActionReplace:
		return "replace"
	case ActionHold:
		return "hold"
	}
	return "unknown"
}

// Decision pairs an item with its action. Entry is the state entry the item
// keeps when it is not uploaded.
type Decision struct {
	Item   Item
	Action Action
	Entry  Entry
	fp     fingerprint
}

// Counts summarises a plan.
type Counts struct {
	Images        int
	Cached        int
	New           int
	Replace       int
	ChangedHeld   int
	MissingHashes int
}

// Plan is the classified set of items, in item order.
type Plan struct {
	Decisions []Decision
	Counts    Counts
}

// Uploads returns the decisions that need a remote upload.
func (p *Plan) Uploads() []Decision {
	var out []Decision
	for _, d := range p.Decisions {
		if d.Action == ActionUpload || d.Action == ActionReplace {
			out = append(out, d)
		}
	}
	return out
}

// ClassifyOptions controls classification.
type ClassifyOptions struct {
	Strict  bool
	Replace bool
	MinEdge int
}

// Classify checks every item's file and compares it with the cache. Items
// that fail a check are reported and left out of the plan.
func Classify(items []Item, state *State, opts ClassifyOptions) (*Plan, *diag.Report) {
	report := &diag.Report{}
	cache := map[string]Entry{}
	if state != nil {
		cache = state.byKey()
	}
	minEdge := opts.MinEdge
	if minEdge <= 0 {
		minEdge = media.DefaultMinEdge
	}

	plan := &Plan{Counts: Counts{Images: len(items)}}
	for _, it := range items {
		info, err := os.Stat(it.FilePath)
		if err != nil || !info.Mode().IsRegular() {
			report.AddError(&diag.Error{Kind: diag.ResolutionError, Row: it.Row, Source: it.FileSpec, Msg: "file not found: " + it.FilePath, Err: media.ErrNotFound})
			continue
		}
		if opts.Strict && info.Size() == 0 {
			report.Fail(diag.ResolutionError, it.Row, "Empty file: %s", it.FilePath)
			continue
		}
		if err := media.CheckMinEdge(it.FilePath, minEdge); err != nil {
			report.AddError(atRow(err, it.Row))
			continue
		}

		fp := fingerprintOf(info)
		cached, ok := cache[it.Key()]
		if !ok {
			plan.Counts.New++
			plan.Decisions = append(plan.Decisions, Decision{Item: it, Action: ActionUpload, fp: fp})
			continue
		}
		plan.Counts.Cached++

		keep := cached
		changed := false
		switch {
		case cached.SHA256 == "":
			plan.Counts.MissingHashes++
			hash, err := hashFile(it.FilePath)
			if err != nil {
				report.AddError(diag.Wrap(diag.IOError, err, "row %d: hash %s", it.Row, it.FilePath))
				continue
			}
			keep.setFingerprint(hash, fp)
		case cached.matches(fp):
		default:
			hash, err := hashFile(it.FilePath)
			if err != nil {
				report.AddError(diag.Wrap(diag.IOError, err, "row %d: hash %s", it.Row, it.FilePath))
				continue
			}
			if hash == cached.SHA256 {
				keep.setFingerprint(hash, fp)
			} else {
				changed = true
			}
		}

		keep.AltText = firstNonEmpty(it.AltText, cached.AltText)
		if it.Position != nil {
			keep.Position = it.Position
		}
		keep.Index = it.Index

		d := Decision{Item: it, Entry: keep, fp: fp}
		switch {
		case !changed:
			d.Action = ActionReuse
		case opts.Replace:
			plan.Counts.Replace++
			d.Action = ActionReplace
		default:
			plan.Counts.ChangedHeld++
			d.Action = ActionHold
			report.Either(opts.Strict, diag.CacheConsistencyError, it.Row,
				"file changed since last upload for %s (%s). Re-run with --replace", it.ProductSlug, it.FileSpec)
			if opts.Strict {
				continue
			}
		}
		plan.Decisions = append(plan.Decisions, d)
	}
	return plan, report
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
