package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/marcus/pollexa/internal/assets"
	"github.com/marcus/pollexa/internal/config"
	"github.com/marcus/pollexa/internal/dataset"
	"github.com/marcus/pollexa/internal/db"
	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/repository"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps each settings flag to the config key it overrides
var flagKeys = map[string]string{
	"source":     "source",
	"dataset":    "dataset",
	"assets":     "asset_dir",
	"db":         "db_path",
	"latency":    "latency",
	"page-size":  "page_size",
	"log-level":  "log_level",
	"log-format": "log_format",
	"log-file":   "log_file",
}

// settingsFlags returns the global flags that override config values
func settingsFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("settings", pflag.ContinueOnError)
	fs.String("source", "", "Feed source: json or sqlite")
	fs.String("dataset", "", "JSON dataset file (default: bundled)")
	fs.String("assets", "", "Image directory for the dataset (default: bundled)")
	fs.String("db", "", "SQLite database path")
	fs.Duration("latency", 0, "Artificial load latency for the feed screen")
	fs.Int("page-size", 0, "Posts per page for the sqlite source (0 loads everything)")
	fs.String("log-level", "", "Log level: debug, info, warn or error")
	fs.String("log-format", "", "Log format: text or json")
	fs.String("log-file", "", "Write logs to this file")
	return fs
}

// loadConfig reads the config file and environment, then applies any
// settings flag given on the command line
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(getBaseDir())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var setErr error
	// Flags parsed through a subcommand are recorded on its own flag set,
	// so walk them all and go by Changed.
	cmd.Root().PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed || setErr != nil {
			return
		}
		if err := cfg.Set(key, f.Value.String()); err != nil {
			setErr = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return nil, setErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// currentConfig returns the config loaded by the root command, loading it
// when the command runs on its own
func currentConfig(cmd *cobra.Command) (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	return loadConfig(cmd)
}

// resolvePath makes p absolute against the base directory
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(getBaseDir(), p)
}

// assetCatalog returns the image catalog for cfg
func assetCatalog(cfg *config.Config) assets.Catalog {
	if cfg.AssetDir != "" {
		return assets.NewDirCatalog(resolvePath(cfg.AssetDir))
	}
	return assets.NewFSCatalog(dataset.FS(), dataset.AssetDir)
}

// datasetSource returns the JSON source for cfg, bundled when no dataset
// file is configured
func datasetSource(cfg *config.Config) *repository.FileSource {
	if cfg.Dataset == "" && cfg.AssetDir == "" {
		return repository.Bundled()
	}
	catalog := assetCatalog(cfg)
	if cfg.Dataset == "" {
		return repository.NewFileSource(dataset.FS(), dataset.PostsFile, catalog)
	}
	return repository.FromPath(resolvePath(cfg.Dataset), catalog)
}

// openSource returns the configured feed source and the file backing it.
// The path is empty for the bundled dataset.
func openSource(cfg *config.Config) (repository.Source, string) {
	if cfg.Source == config.SourceSQLite {
		path := resolvePath(cfg.DBPath)
		return db.NewSource(path, assetCatalog(cfg)).WithPageSize(cfg.PageSize), path
	}
	if cfg.Dataset == "" {
		return datasetSource(cfg), ""
	}
	return datasetSource(cfg), resolvePath(cfg.Dataset)
}

// newEngine starts an engine over src
func newEngine(cfg *config.Config, src repository.Source) *feed.Engine {
	return feed.New(src,
		feed.WithLogger(slog.Default()),
		feed.WithPageTitle(cfg.PageTitle),
	)
}

// loadFeed starts an engine from cfg and waits for the first load. The
// caller closes the engine.
func loadFeed(ctx context.Context, cfg *config.Config) (*feed.Engine, feed.Snapshot, error) {
	src, _ := openSource(cfg)
	engine := newEngine(cfg, src)

	select {
	case <-engine.Ready():
	case <-ctx.Done():
		engine.Close()
		return nil, feed.Snapshot{}, ctx.Err()
	}

	snap, err := engine.Snapshot(ctx)
	if err == nil {
		err = snap.Err
	}
	if err != nil {
		engine.Close()
		return nil, feed.Snapshot{}, err
	}
	return engine, snap, nil
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolvePoll finds the feed position for an id or a fuzzy question match
func resolvePoll(rows []feed.Row, query string) (int, error) {
	matches := feed.Find(rows, query)
	if len(matches) == 0 {
		return -1, fmt.Errorf("no poll matches %q", query)
	}
	return matches[0], nil
}
