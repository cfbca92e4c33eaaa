package remotesync

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// ProcessedObject is what was ingested for one object key.
type ProcessedObject struct {
	ETag         string    `json:"etag"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	ProcessedAt  time.Time `json:"processedAt"`
}

// Processed records ingested objects by key.
type Processed struct {
	Objects map[string]ProcessedObject `json:"objects"`
}

// LoadProcessed reads the record at path. A missing file is an empty record.
func LoadProcessed(path string) (*Processed, error) {
	p := &Processed{Objects: map[string]ProcessedObject{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, diag.Wrap(diag.IOError, err, "read processed record %s", path)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, diag.Wrap(diag.IOError, err, "read processed record %s", path)
	}
	if p.Objects == nil {
		p.Objects = map[string]ProcessedObject{}
	}
	return p, nil
}

// Save writes the record to path atomically.
func (p *Processed) Save(path string) error {
	if err := catalog.WriteJSON(path, p); err != nil {
		return diag.Wrap(diag.IOError, err, "write processed record %s", path)
	}
	return nil
}

// Done reports whether obj was already ingested with the same ETag.
func (p *Processed) Done(obj Object) bool {
	rec, ok := p.Objects[obj.Key]
	return ok && rec.ETag == obj.ETag
}

// Mark records obj as ingested at now.
func (p *Processed) Mark(obj Object, now time.Time) {
	p.Objects[obj.Key] = ProcessedObject{
		ETag:         obj.ETag,
		Size:         obj.Size,
		LastModified: obj.LastModified,
		ProcessedAt:  now.UTC(),
	}
}
