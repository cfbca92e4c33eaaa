package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/catalogsync/internal/config"
)

// ingestFlags are shared by the commands that validate, upload or merge.
// Flags the user did not set take their value from the configuration.
type ingestFlags struct {
	strict      bool
	dryRun      bool
	replace     bool
	recursive   bool
	backup      bool
	backupDir   string
	concurrency int
	minEdge     int
	statePath   string
}

func (f *ingestFlags) bindStrict(fs *pflag.FlagSet) {
	fs.BoolVar(&f.strict, "strict", false, "Treat advisory issues as errors (default: XA_STRICT)")
}

func (f *ingestFlags) bindDryRun(fs *pflag.FlagSet) {
	fs.BoolVar(&f.dryRun, "dry-run", false, "Report what would happen without uploading or writing")
}

func (f *ingestFlags) bindUpload(fs *pflag.FlagSet) {
	fs.BoolVar(&f.replace, "replace", false, "Re-upload images whose content changed (default: XA_REPLACE)")
	fs.BoolVar(&f.recursive, "recursive", false, "Walk subdirectories of directory file specs (default: XA_RECURSIVE)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Parallel uploads (default: XA_CONCURRENCY)")
	fs.IntVar(&f.minEdge, "min-image-edge", 0, "Minimum shortest image edge in pixels (default: XA_MIN_IMAGE_EDGE)")
	fs.StringVar(&f.statePath, "state", "", "Upload state file (default: XA_UPLOAD_STATE)")
}

func (f *ingestFlags) bindBackup(fs *pflag.FlagSet) {
	fs.BoolVar(&f.backup, "backup", true, "Back up the previous catalog before writing (default: XA_BACKUP)")
	fs.StringVar(&f.backupDir, "backup-dir", "", "Directory for catalog backups (default: next to the catalog)")
}

// resolve fills every flag the user left unset from cfg.
func (f *ingestFlags) resolve(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	set := func(name string) bool {
		fl := fs.Lookup(name)
		return fl != nil && fl.Changed
	}
	if !set("strict") {
		f.strict = cfg.Ingest.Strict
	}
	if !set("replace") {
		f.replace = cfg.Ingest.Replace
	}
	if !set("recursive") {
		f.recursive = cfg.Ingest.Recursive
	}
	if !set("backup") {
		f.backup = cfg.Ingest.Backup
	}
	if !set("backup-dir") {
		f.backupDir = cfg.Ingest.BackupDir
	}
	if !set("concurrency") {
		f.concurrency = cfg.Ingest.Concurrency
	}
	if !set("min-image-edge") {
		f.minEdge = cfg.Ingest.MinImageEdge
	}
	if !set("state") {
		f.statePath = cfg.Sync.StatePath
	}
}
