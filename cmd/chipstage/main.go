// Command chipstage is the CLI entry point for the staging, history, and
// derive pipelines: subcommands wrap the core packages behind cobra, in
// place of the teacher's single flag-parsed binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/internal/config"
	"github.com/joaquim-lab/chipstage/internal/derive"
	"github.com/joaquim-lab/chipstage/internal/history"
	"github.com/joaquim-lab/chipstage/internal/stage"
	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/singleflight"
)

// Exit codes: 0 clean, 2 rejections present, 3 invalid
// catalog/config, 4 no input files found.
const (
	exitOK             = 0
	exitRejections     = 2
	exitInvalidConfig  = 3
	exitNoInputFiles   = 4
)

var configPath string

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	root := &cobra.Command{
		Use:   "chipstage",
		Short: "Laboratory measurement staging, history, and derived-metrics pipeline",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration YAML file")

	root.AddCommand(
		newStageCmd(logger),
		newHistoryCmd(logger),
		newDeriveCmd(logger),
		newWatchCmd(logger),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidConfig)
	}
}

func loadCatalogAndConfig(logger *logrus.Logger) (*catalog.Catalog, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Load(cfg.CatalogPath, cfg.Strict)
	if err != nil {
		return nil, nil, err
	}
	return cat, cfg, nil
}

func newStageCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Ingest raw measurement files into partitioned columnar storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, cfg, err := loadCatalogAndConfig(logger)
			if err != nil {
				logger.WithError(err).Error("invalid catalog or configuration")
				os.Exit(exitInvalidConfig)
			}

			ctx, cancel := signalContext()
			defer cancel()

			summary, err := stage.Run(ctx, cat, cfg, logger)
			if err != nil {
				logger.WithError(err).Error("staging run failed")
				os.Exit(exitInvalidConfig)
			}

			logger.WithFields(logrus.Fields{
				"discovered": summary.FilesDiscovered,
				"ok":         summary.OKCount,
				"skipped":    summary.SkippedCount,
				"rejected":   summary.RejectedCount,
			}).Info("staging complete")

			if summary.FilesDiscovered == 0 {
				os.Exit(exitNoInputFiles)
			}
			if summary.RejectedCount > 0 {
				os.Exit(exitRejections)
			}
			return nil
		},
	}
}

func newHistoryCmd(logger *logrus.Logger) *cobra.Command {
	var chipGroup, chipNumber string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Build per-chip history artifacts from the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, cfg, err := loadCatalogAndConfig(logger)
			if err != nil {
				logger.WithError(err).Error("invalid catalog or configuration")
				os.Exit(exitInvalidConfig)
			}

			manifest, err := table.Read(cfg.ManifestPath(), manifestSchemaFor(cat))
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}

			historiesDir := cfg.StageRoot + "/chip_histories"
			chips := history.ChipsIn(manifest)
			if chipGroup != "" {
				chips = []history.ChipID{{Group: chipGroup, Number: chipNumber}}
			}

			for _, chip := range chips {
				tbl, err := history.Build(manifest, chip)
				if err != nil {
					logger.WithError(err).WithField("chip", chip.FileName()).Error("history build failed")
					continue
				}
				if err := history.Write(historiesDir, chip, tbl); err != nil {
					logger.WithError(err).WithField("chip", chip.FileName()).Error("history write failed")
					continue
				}
				logger.WithField("chip", chip.FileName()).WithField("rows", tbl.NumRows).Info("history written")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chipGroup, "chip-group", "", "restrict to one chip group (requires --chip-number)")
	cmd.Flags().StringVar(&chipNumber, "chip-number", "", "restrict to one chip number (requires --chip-group)")
	return cmd
}

func newDeriveCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "derive",
		Short: "Run the metric extractor pipeline over staged measurements",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, cfg, err := loadCatalogAndConfig(logger)
			if err != nil {
				logger.WithError(err).Error("invalid catalog or configuration")
				os.Exit(exitInvalidConfig)
			}

			manifest, err := table.Read(cfg.ManifestPath(), manifestSchemaFor(cat))
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}

			reg := builtinRegistry()
			rows := derive.RowsFromManifest(manifest)
			loader := partitionLoader(cat)

			single := derive.RunSingle(cmd.Context(), reg, rows, loader, nil, logger)
			paired := derive.RunPairwise(reg, rows, loader, logger)
			all := append(single, paired...)

			artifact := derive.BuildMetricsArtifact(all)
			metricsPath := cfg.DerivedRoot + "/_metrics/metrics.parquet"
			if err := artifact.Write(metricsPath, "metrics"); err != nil {
				return fmt.Errorf("write metrics artifact: %w", err)
			}

			logger.WithField("rows", artifact.NumRows).Info("derive complete")
			return nil
		},
	}
}

func newWatchCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the raw root for new files and stage them as they arrive",
		Long: "An out-of-core convenience wrapper: each filesystem notification under " +
			"raw-root re-invokes the same staging entry point used by 'stage'. The " +
			"watch loop itself carries no staging semantics of its own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, cfg, err := loadCatalogAndConfig(logger)
			if err != nil {
				logger.WithError(err).Error("invalid catalog or configuration")
				os.Exit(exitInvalidConfig)
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(cfg.RawRoot); err != nil {
				return fmt.Errorf("watch raw root: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			// A burst of fsnotify events (several files dropped at once) would
			// otherwise trigger one stage.Run per event; singleflight collapses
			// concurrent re-stage requests into the one already in flight.
			var restage singleflight.Group

			logger.WithField("raw_root", cfg.RawRoot).Info("watching for new files")
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
						continue
					}
					logger.WithField("event", event.Name).Debug("change detected, re-staging")
					go func() {
						_, err, _ := restage.Do("stage", func() (interface{}, error) {
							return stage.Run(ctx, cat, cfg, logger)
						})
						if err != nil {
							logger.WithError(err).Error("staging run failed")
						}
					}()
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.WithError(err).Warn("watcher error")
				}
			}
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func builtinRegistry() *derive.Registry {
	reg := derive.NewRegistry()
	reg.RegisterSingle(derive.PeakTransconductance{
		GateColumn:    "Vg (V)",
		CurrentColumn: "Ids (A)",
		Procedures:    []string{"IVg"},
	})
	reg.RegisterPair(derive.PhotocurrentDelta{
		CurrentColumn: "Ids (A)",
		Procedures:    []string{"IVg"},
	})
	return reg
}

func partitionLoader(cat *catalog.Catalog) derive.Loader {
	return func(procedure, path string) (*table.Table, error) {
		spec, _ := cat.SpecOf(procedure)
		schema := append(spec.DataColumns(), enrichedColumnDefs()...)
		return table.Read(path, schema)
	}
}

func enrichedColumnDefs() []table.ColumnDef {
	return []table.ColumnDef{
		{Name: "identity", Type: table.TypeString},
		{Name: "procedure", Type: table.TypeString},
		{Name: "start_time_utc", Type: table.TypeTimestamp},
		{Name: "source_file_path", Type: table.TypeString},
		{Name: "illuminated", Type: table.TypeBool},
		{Name: "wavelength", Type: table.TypeFloat},
		{Name: "source_voltage", Type: table.TypeFloat},
		{Name: "chip_group", Type: table.TypeString},
		{Name: "chip_number", Type: table.TypeString},
		{Name: "sample_id", Type: table.TypeString},
		{Name: "procedure_version", Type: table.TypeString},
	}
}

func manifestSchemaFor(cat *catalog.Catalog) []table.ColumnDef {
	defs := []table.ColumnDef{
		{Name: "identity", Type: table.TypeString},
		{Name: "event_timestamp", Type: table.TypeTimestamp},
		{Name: "start_time_utc", Type: table.TypeTimestamp},
		{Name: "status", Type: table.TypeString},
		{Name: "procedure", Type: table.TypeString},
		{Name: "row_count", Type: table.TypeInt},
		{Name: "partition_path", Type: table.TypeString},
		{Name: "source_file_path", Type: table.TypeString},
		{Name: "date_origin", Type: table.TypeString},
		{Name: "validation_errors", Type: table.TypeInt},
		{Name: "validation_warnings", Type: table.TypeInt},
		{Name: "reject_reason", Type: table.TypeString},
		{Name: "chip_group", Type: table.TypeString},
		{Name: "chip_number", Type: table.TypeString},
		{Name: "sample_id", Type: table.TypeString},
		{Name: "procedure_version", Type: table.TypeString},
		{Name: "illuminated", Type: table.TypeString},
		{Name: "wavelength", Type: table.TypeString},
		{Name: "source_voltage", Type: table.TypeString},
	}
	for canonical := range cat.Aliases() {
		found := false
		for _, d := range defs {
			if d.Name == canonical {
				found = true
				break
			}
		}
		if !found {
			defs = append(defs, table.ColumnDef{Name: canonical, Type: table.TypeString})
		}
	}
	return defs
}
