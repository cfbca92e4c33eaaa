package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalogsync/internal/application"
	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/diag"
)

func newValidateCommand() *cobra.Command {
	var (
		products string
		merge    bool
		flags    ingestFlags
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a products sheet without writing anything",
		Example: `  # Check a new batch
  catalog validate --products products.csv

  # Check updates against the current catalog
  catalog validate --products updates.xlsx --merge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			flags.resolve(cmd, cfg)

			svc := core.NewService(core.Deps{})
			res, err := svc.Validate(cmd.Context(), core.ValidateRequest{
				ProductsPath: products,
				CatalogPath:  cfg.Sync.CatalogPath,
				Merge:        merge,
				Strict:       flags.strict,
			})
			if res == nil {
				return err
			}
			summary := strings.Join([]string{
				countLine("Rows", len(res.Rows)),
				countLine("Warnings", len(res.Report.Warnings())),
				countLine("Errors", len(res.Report.Errors())),
			}, " | ")
			return finish(cmd.OutOrStdout(), res.Report, summary, err)
		},
	}

	cmd.Flags().StringVar(&products, "products", "", "Products sheet (CSV or XLSX)")
	cmd.Flags().BoolVar(&merge, "merge", false, "Rows may update products already in the catalog")
	flags.bindStrict(cmd.Flags())
	_ = cmd.MarkFlagRequired("products")
	return cmd
}

func newImagesCommand() *cobra.Command {
	var (
		images   string
		baseDir  string
		mediaOut string
		flags    ingestFlags
	)

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Upload the images sheet and write the media map",
		Example: `  # Preview which images would be uploaded
  catalog images --images images.csv --dry-run

  # Upload and write the media map
  catalog images --images images.csv --media-out media-map.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.resolve(cmd, configFrom(cmd))

			app, err := buildApp(cmd, application.Options{})
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.UploadImages(cmd.Context(), core.ImagesRequest{
				ImagesPath:  images,
				BaseDir:     baseDir,
				StatePath:   flags.statePath,
				OutPath:     mediaOut,
				Concurrency: flags.concurrency,
				MinEdge:     flags.minEdge,
				Strict:      flags.strict,
				Replace:     flags.replace,
				Recursive:   flags.recursive,
				DryRun:      flags.dryRun,
			})
			if res == nil {
				return err
			}
			summary := res.Counts.Summary(flags.dryRun, flags.replace, flags.recursive)
			return finish(cmd.OutOrStdout(), res.Report, summary, err)
		},
	}

	cmd.Flags().StringVar(&images, "images", "", "Images sheet (CSV or XLSX)")
	cmd.Flags().StringVar(&baseDir, "base", "", "Directory file specs resolve against (default: the sheet's directory)")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "Alias for --base")
	_ = cmd.Flags().MarkHidden("base-dir")
	cmd.Flags().StringVar(&mediaOut, "media-out", "", "Write the media map to this file")
	flags.bindStrict(cmd.Flags())
	flags.bindDryRun(cmd.Flags())
	flags.bindUpload(cmd.Flags())
	_ = cmd.MarkFlagRequired("images")
	return cmd
}

func newImportCommand() *cobra.Command {
	var (
		products string
		out      string
		mediaMap string
		merge    bool
		flags    ingestFlags
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge a products sheet into the catalog",
		Example: `  # Create products from a new sheet
  catalog import --products products.csv --out catalog.json

  # Update existing products with images from a media map
  catalog import --products updates.csv --merge --media media-map.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			flags.resolve(cmd, cfg)

			app, err := buildApp(cmd, application.Options{History: !flags.dryRun})
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Import(cmd.Context(), core.ImportRequest{
				ProductsPath: products,
				CatalogPath:  cfg.Sync.CatalogPath,
				OutPath:      out,
				MediaMapPath: mediaMap,
				Merge:        merge,
				Strict:       flags.strict,
				DryRun:       flags.dryRun,
				Backup:       flags.backup,
				BackupDir:    flags.backupDir,
			})
			if res == nil {
				return err
			}
			summary := strings.Join([]string{
				countLine("Created", res.Stats.Created),
				countLine("Updated", res.Stats.Updated),
				countLine("Products", productCount(res.Catalog)),
			}, " | ") + dryRunSuffix(flags.dryRun)
			return finish(cmd.OutOrStdout(), res.Report, summary, err)
		},
	}

	cmd.Flags().StringVar(&products, "products", "", "Products sheet (CSV or XLSX)")
	cmd.Flags().StringVar(&out, "out", "", "Write the catalog here (default: --catalog)")
	cmd.Flags().StringVar(&mediaMap, "media", "", "Media map (JSON or sheet) from a previous images run")
	cmd.Flags().BoolVar(&merge, "merge", false, "Update products already in the catalog")
	flags.bindStrict(cmd.Flags())
	flags.bindDryRun(cmd.Flags())
	flags.bindBackup(cmd.Flags())
	_ = cmd.MarkFlagRequired("products")
	return cmd
}

func newRunCommand() *cobra.Command {
	var (
		req   core.RunRequest
		flags ingestFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate, upload and merge in one pass",
		Long: `Run validates the products sheet, uploads the images and merges both into
the catalog. Images come from --images or, without it, from the image_files
column of the products sheet. Both sheets are checked and the merge is tried
before anything is uploaded, and the media index is written next to the
catalog.`,
		Example: `  # Full pass over a new drop
  catalog run --products products.csv --images images.csv

  # Preview an update batch
  catalog run --products updates.csv --images images.csv --merge --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			flags.resolve(cmd, cfg)

			app, err := buildApp(cmd, application.Options{History: !flags.dryRun})
			if err != nil {
				return err
			}
			defer app.Close()

			req.CatalogPath = cfg.Sync.CatalogPath
			req.StatePath = flags.statePath
			req.Strict = flags.strict
			req.DryRun = flags.dryRun
			req.Replace = flags.replace
			req.Recursive = flags.recursive
			req.Backup = flags.backup
			req.BackupDir = flags.backupDir
			req.Concurrency = flags.concurrency
			req.MinEdge = flags.minEdge

			res, err := app.Service.Run(cmd.Context(), req)
			if res == nil {
				return err
			}
			parts := []string{
				countLine("Created", res.Stats.Created),
				countLine("Updated", res.Stats.Updated),
			}
			if res.Upload != nil {
				parts = append(parts, res.Upload.Counts.Summary(flags.dryRun, flags.replace, flags.recursive))
			}
			summary := strings.Join(parts, " | ") + dryRunSuffix(flags.dryRun)
			return finish(cmd.OutOrStdout(), res.Report, summary, err)
		},
	}

	cmd.Flags().StringVar(&req.ProductsPath, "products", "", "Products sheet (CSV or XLSX)")
	cmd.Flags().StringVar(&req.ImagesPath, "images", "", "Images sheet (CSV or XLSX); defaults to the products sheet's image_files")
	cmd.Flags().StringVar(&req.BaseDir, "base", "", "Directory image specs resolve against (default: the sheet's directory)")
	cmd.Flags().StringVar(&req.BaseDir, "base-dir", "", "Alias for --base")
	_ = cmd.Flags().MarkHidden("base-dir")
	cmd.Flags().StringVar(&req.MediaOutPath, "media-out", "", "Also write the media map to this file")
	cmd.Flags().StringVar(&req.IndexPath, "index", "", "Media index path (default: media-index.json next to the catalog)")
	cmd.Flags().BoolVar(&req.Merge, "merge", false, "Update products already in the catalog")
	flags.bindStrict(cmd.Flags())
	flags.bindDryRun(cmd.Flags())
	flags.bindUpload(cmd.Flags())
	flags.bindBackup(cmd.Flags())
	_ = cmd.MarkFlagRequired("products")
	return cmd
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Ingest new submissions from the bucket once",
		Long: `Sync lists the submission bucket, skips objects already ingested with the
same ETag, and runs every new zip, CSV or XLSX submission in merge mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp(cmd, application.Options{History: true, Sync: true})
			if err != nil {
				return err
			}
			defer app.Close()

			sum, err := app.Service.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum.String())
			if sum.Failed > 0 {
				return ErrReported
			}
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as a products sheet",
		Long: `Export writes one row per product in the column layout import reads, so an
exported sheet can be edited and merged back with import --merge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := catalog.Load(configFrom(cmd).Sync.CatalogPath)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return catalog.WriteCSV(cmd.OutOrStdout(), c)
			}
			f, err := os.Create(out)
			if err != nil {
				return diag.Wrap(diag.IOError, err, "write export %s", out)
			}
			if err := catalog.WriteCSV(f, c); err != nil {
				f.Close()
				return diag.Wrap(diag.IOError, err, "write export %s", out)
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output CSV file (default: stdout)")
	return cmd
}

func productCount(c *catalog.Catalog) int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}
