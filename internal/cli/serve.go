package cli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mprscape/pkg/api"
	"github.com/matzehuels/mprscape/pkg/observability/prom"
)

type serveOpts struct {
	addr    string
	timeout time.Duration
	metrics bool
}

func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{
		addr:    api.DefaultAddr,
		timeout: api.DefaultTimeout,
		metrics: true,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconciliation engine over HTTP",
		Long: `Serve the engine as a JSON API under /v1 and Prometheus metrics on /metrics.
Global flags such as --workers and costs become defaults for every request.`,
		Example: `  mprscape serve --addr :9090
  mprscape serve --redis localhost:6379 --workers 4
  mprscape serve --mongo mongodb://localhost:27017`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "per-request timeout")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", opts.metrics, "expose Prometheus metrics on /metrics")
	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts serveOpts) error {
	defaults, err := c.options(cmd)
	if err != nil {
		return err
	}
	// Requests fall back to the runner's logger.
	defaults.Logger = nil

	cfg := api.Config{
		Addr:     opts.addr,
		Timeout:  opts.timeout,
		Defaults: defaults,
		Logger:   c.Logger,
	}
	if opts.metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom.Install(reg)
		cfg.Registry = reg
	}

	runner, err := c.newRunner(cmd.Context())
	if err != nil {
		return err
	}
	defer runner.Close()

	printInfo("Serving on %s", StyleHighlight.Render(opts.addr))
	return api.New(runner, cfg).ListenAndServe(cmd.Context())
}
