package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/jward/sceneref"
	"github.com/jward/sceneref/internal/config"
	"github.com/jward/sceneref/internal/store"
)

var (
	flagConfig  string
	flagFormat  string
	flagRoot    string
	flagWorkers int
	flagBackend string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg and logger are set by the root command's PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sceneref",
	Short:         "Type structure and scene usage for Unity projects",
	Long:          "sceneref parses a Unity project's C# scripts into a type model with dependency edges, and finds where each type is attached in the project's scenes.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c
		logger = newLogger(os.Stderr, cfg.Log)
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(usagesCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(watchCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "config file (default: $SCENEREF_CONFIG or ./"+config.DefaultFile+")")
	flags.StringVar(&flagFormat, "format", "json", "output format: json|text")
	flags.StringVar(&flagRoot, "root", "", "Unity project root (overrides project.root)")
	flags.IntVar(&flagWorkers, "workers", 0, "scenes scanned in parallel (overrides scan.workers)")
	flags.StringVar(&flagBackend, "cache", "", "usage cache backend: file|sqlite|memory (overrides cache.backend)")
}

// loadConfig reads the config file and applies flag overrides. An explicit
// --config or $SCENEREF_CONFIG must exist; the default file is optional.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, optional := flagConfig, false
	if path == "" {
		path = os.Getenv("SCENEREF_CONFIG")
	}
	if path == "" {
		path, optional = config.DefaultFile, true
	}
	c, err := config.LoadFile(path, optional)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		c.Project.Root = flagRoot
	}
	if flags.Changed("workers") {
		c.Scan.Workers = flagWorkers
	}
	if flags.Changed("cache") {
		// The default path names a file cache; give SQLite its own file.
		if flagBackend == config.BackendSQLite && c.Cache.Path == config.NewDefaultConfig().Cache.Path {
			c.Cache.Path = filepath.Join("Library", "sceneref", "cache.db")
		}
		c.Cache.Backend = flagBackend
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.Level}
	if lc.Format == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openEngine builds an Engine from the loaded config. folders, when set,
// replace project.folders.
func openEngine(folders []string) (*sceneref.Engine, error) {
	if len(folders) == 0 {
		folders = cfg.Project.Folders
	}

	backend := cfg.Cache.Backend
	cachePath := cfg.CachePath()
	if backend != config.BackendMemory {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	st, warns, err := store.Open(backend, cachePath)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	logWarnings(warns)

	e, err := sceneref.New(cfg.Project.Root,
		sceneref.WithFolders(folders...),
		sceneref.WithSceneDirs(cfg.Project.Scenes...),
		sceneref.WithAssembly(cfg.Project.Assembly),
		sceneref.WithWorkers(cfg.Scan.Workers),
		sceneref.WithLogger(logger),
		sceneref.WithStore(st),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// closeEngine closes e and reports a cache write failure without failing
// the command: the results were already produced.
func closeEngine(e *sceneref.Engine) {
	if err := e.Close(); err != nil {
		var w sceneref.Warning
		if errors.As(err, &w) {
			w.Log(logger, "sceneref: cache not saved")
			return
		}
		logger.Warn("sceneref: close failed", slog.String("error", err.Error()))
	}
}

// logWarnings writes each recovered failure to the logger.
func logWarnings(warns []sceneref.Warning) {
	for _, w := range warns {
		w.Log(logger, "sceneref: warning")
	}
}
