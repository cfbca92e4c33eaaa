package upload

// state.go persists the upload cache.
//
// The state file records, per (product, source file) pair, the remote id an
// image was uploaded as and a fingerprint of the file at that time. Deleting
// the file only costs a full re-upload.

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Entry is one cached upload.
type Entry struct {
	Key         string   `json:"key"`
	ProductSlug string   `json:"productSlug"`
	FilePath    string   `json:"filePath"`
	Path        string   `json:"path"`
	AltText     string   `json:"altText,omitempty"`
	Position    *int     `json:"position,omitempty"`
	Index       int      `json:"index"`
	SHA256      string   `json:"sha256,omitempty"`
	Size        *int64   `json:"size,omitempty"`
	MtimeMs     *float64 `json:"mtimeMs,omitempty"`
}

// State is the on-disk upload cache.
type State struct {
	Entries []Entry `json:"entries"`
}

// CacheKey identifies a cache entry: product slug plus absolute file path.
func CacheKey(productSlug, filePath string) string {
	return productSlug + "::" + filePath
}

// LoadState reads the state file. A missing file is an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, diag.Wrap(diag.CacheConsistencyError, err, "read upload state %s", path)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, diag.Wrap(diag.CacheConsistencyError, err, "parse upload state %s", path)
	}
	return &st, nil
}

// SaveState writes entries to path atomically.
func SaveState(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	if err := catalog.WriteJSON(path, State{Entries: entries}); err != nil {
		return diag.Wrap(diag.IOError, err, "write upload state %s", path)
	}
	return nil
}

// byKey indexes entries by key; a later duplicate wins.
func (s *State) byKey() map[string]Entry {
	out := make(map[string]Entry, len(s.Entries))
	for _, e := range s.Entries {
		out[e.Key] = e
	}
	return out
}

// fingerprint is the size and modification time of a file as recorded in
// the state file.
type fingerprint struct {
	size    int64
	mtimeMs float64
}

func fingerprintOf(info fs.FileInfo) fingerprint {
	return fingerprint{size: info.Size(), mtimeMs: mtimeMs(info.ModTime())}
}

func mtimeMs(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}

// matches reports whether e recorded exactly fp.
func (e Entry) matches(fp fingerprint) bool {
	return e.Size != nil && e.MtimeMs != nil && *e.Size == fp.size && *e.MtimeMs == fp.mtimeMs
}

func (e *Entry) setFingerprint(hash string, fp fingerprint) {
	e.SHA256 = hash
	size, mt := fp.size, fp.mtimeMs
	e.Size = &size
	e.MtimeMs = &mt
}
