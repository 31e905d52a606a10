package cli

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon/cluster"
)

// =============================================================================
// median
// =============================================================================

func (c *CLI) medianCommand() *cobra.Command {
	var (
		asJSON bool
		asCSV  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "median [problem]",
		Short: "Print a median reconciliation",
		Long: `Print a symmetric median reconciliation: one that maximizes the sum over
its events of (event frequency - 1/2). Ties between medians are broken at
random using --seed.

With --csv or --output the median is written as an event table whose
frequency column holds each event's frequency among all MPRs.`,
		Example: `  mprscape median problem.toml
  mprscape median problem.toml --csv
  mprscape median problem.toml -o median.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.reconcile(cmd.Context())
			if err != nil {
				return err
			}
			med, err := s.runner.Median(cmd.Context(), res.Graph, s.opts)
			if err != nil {
				return err
			}
			switch {
			case output != "":
				if err := mio.ExportRecords(mio.ReconciliationRecords(res.Graph, med), output); err != nil {
					return err
				}
				printFile(output)
				return nil
			case asCSV:
				return mio.WriteRecords(cmd.OutOrStdout(), mio.ReconciliationRecords(res.Graph, med))
			}
			doc := mio.ReconciliationDocOf(res.Problem, med)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			printReconciliation(cmd.OutOrStdout(), doc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print the frequency-annotated event table")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the event table to a CSV file")
	return cmd
}

// printReconciliation prints one reconciliation as an event table.
func printReconciliation(w io.Writer, doc mio.ReconciliationDoc) {
	printKeyValue(w, "cost", strconv.FormatFloat(doc.Cost, 'g', -1, 64))
	printKeyValue(w, "events", fmt.Sprintf("S=%d D=%d T=%d L=%d",
		doc.Counts.Cospeciation, doc.Counts.Duplication, doc.Counts.Transfer, doc.Counts.Loss))

	rows := make([][]string, 0, len(doc.Events))
	for _, e := range doc.Events {
		kids := make([]string, len(e.Children))
		for i, k := range e.Children {
			kids[i] = k.Parasite + "@" + k.Host
		}
		rows = append(rows, []string{e.Node.Parasite, e.Node.Host, eventCode(e.Code), strings.Join(kids, ", ")})
	}
	printTable(w, []string{"Parasite", "Host", "Event", "Children"}, rows)
}

// =============================================================================
// sample
// =============================================================================

func (c *CLI) sampleCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sample [problem]",
		Short: "Draw reconciliations uniformly at random",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.reconcile(cmd.Context())
			if err != nil {
				return err
			}
			samples, err := s.runner.Sample(cmd.Context(), res.Graph, s.opts)
			if err != nil {
				return err
			}
			docs := make([]mio.ReconciliationDoc, len(samples))
			for i, r := range samples {
				docs[i] = mio.ReconciliationDocOf(res.Problem, r)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), docs)
			}

			rows := make([][]string, len(docs))
			for i, d := range docs {
				rows[i] = []string{
					strconv.Itoa(i + 1),
					d.Root.Parasite + "@" + d.Root.Host,
					strconv.Itoa(d.Counts.Cospeciation),
					strconv.Itoa(d.Counts.Duplication),
					strconv.Itoa(d.Counts.Transfer),
					strconv.Itoa(d.Counts.Loss),
				}
			}
			printTable(cmd.OutOrStdout(), []string{"#", "Root", "S", "D", "T", "L"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&c.global.opts.Samples, "samples", "n", 0, "number of reconciliations to draw (default 1)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// =============================================================================
// histogram
// =============================================================================

func (c *CLI) histogramCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "histogram [problem]",
		Short: "Histogram of pairwise distances between reconciliations",
		Long: `Count, for every distance d, the ordered pairs of MPRs whose event sets
differ in d (mapping node, event) entries. Pairs of a reconciliation with itself are included, so the
counts sum to the square of the number of MPRs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.reconcile(cmd.Context())
			if err != nil {
				return err
			}
			spin := newSpinner(cmd.Context(), "Computing distances...")
			spin.Start()
			h, err := s.runner.Histogram(cmd.Context(), res.Graph, s.opts)
			if err != nil {
				spin.StopWithError("Histogram failed")
				return err
			}
			spin.StopWithSuccess("Diameter %d, mean distance %.3f", h.Diameter(), h.Mean())

			if asJSON {
				return mio.WriteHistogram(cmd.OutOrStdout(), h)
			}
			fractions := h.Fractions()
			var rows [][]string
			for d := 0; d <= h.Diameter(); d++ {
				if h.Count(d).Sign() == 0 {
					continue
				}
				rows = append(rows, []string{
					strconv.Itoa(d),
					h.Count(d).String(),
					strconv.FormatFloat(fractions[d], 'f', 4, 64),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"Distance", "Pairs", "Fraction"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// =============================================================================
// cluster
// =============================================================================

func (c *CLI) clusterCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "cluster [problem]",
		Short: "Partition the reconciliations into k similar groups",
		Long: `Split the reconciliation graph into k sub-graphs whose reconciliations are
close to each other. With --output, each group's event table is written as
group-<i>.csv in that directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.reconcile(cmd.Context())
			if err != nil {
				return err
			}
			spin := newSpinner(cmd.Context(), "Clustering...")
			spin.Start()
			prog := newProgress(c.Logger)
			cl, err := s.runner.Cluster(cmd.Context(), res.Graph, s.opts)
			if err != nil {
				spin.StopWithError("Clustering failed")
				return err
			}
			spin.Stop()
			prog.done("clustered", "groups", len(cl.Groups))

			printClusters(cmd.OutOrStdout(), cl)
			if outDir != "" {
				return writeGroups(outDir, cl)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&c.global.opts.Clusters, "clusters", "k", 0, "number of groups (default 2)")
	cmd.Flags().IntVar(&c.global.opts.Splits, "splits", 0, "groups built before coalescing (default 16)")
	cmd.Flags().IntVar(&c.global.opts.Candidates, "candidates", 0, "split points scored per group (default 8)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "directory for per-group CSV files")
	return cmd
}

func printClusters(w io.Writer, cl *cluster.Result) {
	rows := make([][]string, len(cl.Groups))
	for i, grp := range cl.Groups {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			grp.Count().String(),
			strconv.Itoa(grp.Graph.Len()),
			strconv.FormatFloat(grp.MeanDistance(), 'f', 3, 64),
		}
	}
	printTable(w, []string{"Group", "MPRs", "Nodes", "Mean distance"}, rows)
	printKeyValue(w, "mean distance", strconv.FormatFloat(cl.Histogram.Mean(), 'f', 3, 64))
	printKeyValue(w, "within groups", strconv.FormatFloat(cl.WeightedMeanDistance(), 'f', 3, 64))
	imp := cl.Improvement()
	if math.IsInf(imp, 1) {
		printKeyValue(w, "improvement", "∞")
	} else {
		printKeyValue(w, "improvement", strconv.FormatFloat(imp, 'f', 3, 64))
	}
}

func writeGroups(dir string, cl *cluster.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for i, grp := range cl.Groups {
		path := filepath.Join(dir, fmt.Sprintf("group-%d.csv", i+1))
		if err := mio.ExportCSV(grp.Graph, path); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}
