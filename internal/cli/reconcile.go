package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mprscape/pkg/cache"
	perrors "github.com/matzehuels/mprscape/pkg/errors"
	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/pipeline"
	"github.com/matzehuels/mprscape/pkg/recon"
)

// Graph export formats.
const (
	formatCSV  = "csv"
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

var validFormats = map[string]bool{formatCSV: true, formatJSON: true, formatDOT: true, formatSVG: true}

// =============================================================================
// Session - shared setup of engine commands
// =============================================================================

// session bundles the problem, options and runner of one command run.
type session struct {
	prob   recon.Problem
	opts   pipeline.Options
	runner *pipeline.Runner
	logger *log.Logger
}

// open loads the problem at path ("-" reads JSON from stdin) and builds a
// runner with the resolved options.
func (c *CLI) open(cmd *cobra.Command, path string) (*session, error) {
	opts, err := c.options(cmd)
	if err != nil {
		return nil, err
	}
	var prob recon.Problem
	if path == "-" {
		prob, err = mio.ReadProblem(cmd.InOrStdin(), mio.FormatJSON)
	} else {
		prob, err = mio.ImportProblem(path)
	}
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(cmd.Context())
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded problem",
		"hosts", prob.Host.Len(),
		"parasites", prob.Parasite.Len(),
		"costs", prob.Costs)
	return &session{prob: prob, opts: opts, runner: runner, logger: c.Logger}, nil
}

func (s *session) close() {
	if nc, ok := s.runner.Cache.(*cache.NullCache); ok {
		if entries, size := nc.Dropped(); entries > 0 {
			s.logger.Debug("results not cached", "reason", nc.Reason(), "entries", entries, "bytes", size)
		}
	}
	_ = s.runner.Close()
}

// reconcile builds the reconciliation graph and prints its statistics.
func (s *session) reconcile(ctx context.Context) (*pipeline.Result, error) {
	res, err := s.runner.Reconcile(ctx, s.prob, s.opts)
	if err != nil {
		return nil, err
	}
	g := res.Graph
	printSuccess("Minimum cost %s", StyleNumber.Render(g.MinCost().String()))
	printGraphStats(g.Len(), g.EventCount(), g.TotalCount().String(), res.CacheHit)
	return res, nil
}

// =============================================================================
// reconcile
// =============================================================================

type reconcileOpts struct {
	output      string
	format      string
	frequencies bool
}

func (c *CLI) reconcileCommand() *cobra.Command {
	var opts reconcileOpts

	cmd := &cobra.Command{
		Use:   "reconcile [problem]",
		Short: "Build the graph of all maximum parsimony reconciliations",
		Long: `Build the reconciliation graph of a problem and export it.

The default output is the event table as CSV: one row per (mapping node,
event) with its event code (S, D, T, L or C), its child mapping nodes and
the fraction of MPRs using it. --format json writes the full graph, which
other tools can reload; dot and svg draw it.`,
		Example: `  mprscape reconcile problem.toml
  mprscape reconcile problem.json -o events.csv
  mprscape reconcile problem.yaml -o graph.svg --frequencies
  mprscape reconcile problem.json -d 1 -t 4 -l 1 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(opts.format, opts.output)
			if err != nil {
				return err
			}
			opts.format = format
			return c.runReconcile(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: csv (default), json, dot, svg")
	cmd.Flags().BoolVar(&opts.frequencies, "frequencies", false, "label DOT/SVG events with their frequencies")

	return cmd
}

// outputFormat picks the explicit format, else the output extension, else CSV.
func outputFormat(format, output string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(output), ".")
		if !validFormats[format] {
			format = formatCSV
		}
	}
	if !validFormats[format] {
		return "", perrors.New(perrors.ErrCodeUnsupported, "invalid format: %s (must be csv, json, dot or svg)", format)
	}
	return format, nil
}

func (c *CLI) runReconcile(cmd *cobra.Command, input string, opts reconcileOpts) error {
	ctx := cmd.Context()
	s, err := c.open(cmd, input)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.reconcile(ctx)
	if err != nil {
		return err
	}
	g := res.Graph

	return writeOutput(cmd, opts.output, func(w io.Writer) error {
		switch opts.format {
		case formatJSON:
			return mio.WriteGraph(w, g)
		case formatDOT:
			_, err := io.WriteString(w, mio.ToDOT(g, mio.DOTOptions{Frequencies: opts.frequencies}))
			return err
		case formatSVG:
			svg, err := mio.RenderSVG(ctx, mio.ToDOT(g, mio.DOTOptions{Frequencies: opts.frequencies}))
			if err != nil {
				return err
			}
			_, err = w.Write(svg)
			return err
		default:
			return mio.WriteCSV(w, g)
		}
	})
}

// =============================================================================
// convert
// =============================================================================

func (c *CLI) convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert [input] [output]",
		Short: "Convert a problem file between JSON, TOML and YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prob, err := mio.ImportProblem(args[0])
			if err != nil {
				return err
			}
			if err := mio.ExportProblem(prob, args[1]); err != nil {
				return err
			}
			printSuccess("Converted %s", args[0])
			printFile(args[1])
			return nil
		},
	}
}

// =============================================================================
// Output Helpers
// =============================================================================

// writeOutput runs write against the file at path, or the command's stdout
// when path is empty.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	if err := perrors.ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printFile(path)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
