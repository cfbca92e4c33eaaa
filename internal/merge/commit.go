package merge

import (
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// CommitOptions controls how a built catalog is persisted.
type CommitOptions struct {
	Backup    bool
	BackupDir string
	Now       time.Time
}

// Commit writes c over path, first copying the previous document aside when
// backups are enabled. It returns the backup path, or "" when none was made.
func Commit(path string, c *catalog.Catalog, opts CommitOptions) (string, error) {
	var backup string
	if opts.Backup {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		var err error
		if backup, err = catalog.Backup(path, opts.BackupDir, now); err != nil {
			return "", err
		}
	}
	if err := catalog.Save(path, c); err != nil {
		return backup, err
	}
	return backup, nil
}
