package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mprscape/pkg/buildinfo"
	"github.com/matzehuels/mprscape/pkg/cache"
	"github.com/matzehuels/mprscape/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "mprscape"
)

// Log levels accepted by [New] and [CLI.SetLogLevel].
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogError = log.ErrorLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	global globalFlags
}

// globalFlags are the persistent flags shared by every engine command.
type globalFlags struct {
	config  string
	noCache bool
	redis   string
	mongo   string
	opts    pipeline.Options
	dup     float64
	xfer    float64
	loss    float64
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "mprscape explores the space of maximum parsimony reconciliations",
		Long: `mprscape reconciles a parasite (gene) tree with a host (species) tree under
the duplication-transfer-loss model. It builds the graph of all maximum
parsimony reconciliations and analyzes it: event frequencies, medians,
uniform samples, pairwise distance histograms, clusters, cost-space regions
and tip-shuffling p-values.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	c.bindGlobalFlags(root)

	root.AddCommand(c.reconcileCommand())
	root.AddCommand(c.medianCommand())
	root.AddCommand(c.sampleCommand())
	root.AddCommand(c.histogramCommand())
	root.AddCommand(c.clusterCommand())
	root.AddCommand(c.regionsCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) bindGlobalFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	g := &c.global
	f.StringVarP(&g.config, "config", "c", "", "options file (TOML, YAML or JSON)")
	f.BoolVar(&g.noCache, "no-cache", false, "disable the result cache")
	f.StringVar(&g.redis, "redis", "", "use the Redis server at this address as cache")
	f.StringVar(&g.mongo, "mongo", "", "use the MongoDB deployment at this URI as cache")
	f.BoolVar(&g.opts.Refresh, "refresh", false, "recompute results even when cached")
	f.Float64VarP(&g.dup, "dup", "d", 0, "duplication cost (overrides the problem file)")
	f.Float64VarP(&g.xfer, "transfer", "t", 0, "transfer cost (overrides the problem file)")
	f.Float64VarP(&g.loss, "loss", "l", 0, "loss cost (overrides the problem file)")
	f.IntVarP(&g.opts.Workers, "workers", "w", 0, "parallel workers (default: number of CPUs)")
	f.Uint64Var(&g.opts.Seed, "seed", 0, "random seed for sampling, medians and shuffling")
}

// options resolves the pipeline options for cmd: the config file first,
// then any flags set on the command line.
func (c *CLI) options(cmd *cobra.Command) (pipeline.Options, error) {
	var base pipeline.Options
	if c.global.config != "" {
		loaded, err := pipeline.LoadOptions(c.global.config)
		if err != nil {
			return pipeline.Options{}, err
		}
		base = loaded
	}

	flags := c.global.opts
	fs := cmd.Flags()
	if fs.Changed("dup") {
		flags.Duplication = &c.global.dup
	}
	if fs.Changed("transfer") {
		flags.Transfer = &c.global.xfer
	}
	if fs.Changed("loss") {
		flags.Loss = &c.global.loss
	}
	opts := flags.Merge(base)
	opts.Logger = c.Logger
	return opts, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, nil, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	switch {
	case c.global.noCache:
		return cache.NewDisabledCache("--no-cache"), nil
	case c.global.redis != "":
		return cache.NewRedisCache(ctx, cache.RedisConfig{Addr: c.global.redis})
	case c.global.mongo != "":
		return cache.NewMongoCache(ctx, cache.MongoConfig{URI: c.global.mongo})
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewDisabledCache("no cache directory"), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/mprscape/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
