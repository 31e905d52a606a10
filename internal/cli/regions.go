package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mprscape/pkg/costregion"
)

// =============================================================================
// regions
// =============================================================================

func (c *CLI) regionsCommand() *cobra.Command {
	var (
		asJSON bool
		flags  = costregion.DefaultRect()
	)

	cmd := &cobra.Command{
		Use:   "regions [problem]",
		Short: "Partition cost space by optimal event counts",
		Long: `Partition a rectangle of (transfer, duplication) costs into the convex
regions in which one vector of (duplication, transfer, loss) counts is
optimal. The loss cost stays fixed at the problem's value (or --loss).`,
		Example: `  mprscape regions problem.json
  mprscape regions problem.json --transfer-max 5 --duplication-max 5 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			rect := s.opts.Region
			if rect == (costregion.Rect{}) {
				rect = costregion.DefaultRect()
			}
			fs := cmd.Flags()
			if fs.Changed("transfer-min") {
				rect.TransferMin = flags.TransferMin
			}
			if fs.Changed("transfer-max") {
				rect.TransferMax = flags.TransferMax
			}
			if fs.Changed("duplication-min") {
				rect.DuplicationMin = flags.DuplicationMin
			}
			if fs.Changed("duplication-max") {
				rect.DuplicationMax = flags.DuplicationMax
			}
			s.opts.Region = rect

			spin := newSpinner(cmd.Context(), "Computing cost regions...")
			spin.Start()
			regions, err := s.runner.Regions(cmd.Context(), s.prob, s.opts)
			if err != nil {
				spin.StopWithError("Cost regions failed")
				return err
			}
			spin.StopWithSuccess("%d cost regions", len(regions))

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), regions)
			}
			rows := make([][]string, len(regions))
			for i, r := range regions {
				rows[i] = []string{
					strconv.Itoa(r.Vector.Duplications),
					strconv.Itoa(r.Vector.Transfers),
					strconv.Itoa(r.Vector.Losses),
					strconv.FormatFloat(r.Area, 'f', 4, 64),
					strconv.FormatFloat(r.Centroid.Transfer, 'f', 3, 64),
					strconv.FormatFloat(r.Centroid.Duplication, 'f', 3, 64),
					strconv.FormatFloat(r.Cost, 'g', 6, 64),
				}
			}
			printTable(cmd.OutOrStdout(),
				[]string{"D", "T", "L", "Area", "Transfer", "Duplication", "Cost"}, rows)
			return nil
		},
	}

	cmd.Flags().Float64Var(&flags.TransferMin, "transfer-min", flags.TransferMin, "lower transfer cost bound")
	cmd.Flags().Float64Var(&flags.TransferMax, "transfer-max", flags.TransferMax, "upper transfer cost bound")
	cmd.Flags().Float64Var(&flags.DuplicationMin, "duplication-min", flags.DuplicationMin, "lower duplication cost bound")
	cmd.Flags().Float64Var(&flags.DuplicationMax, "duplication-max", flags.DuplicationMax, "upper duplication cost bound")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// =============================================================================
// stats
// =============================================================================

func (c *CLI) statsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [problem]",
		Short: "P-value of the optimal cost against shuffled tip mappings",
		Long: `Reconcile the problem again after randomly permuting which host leaf each
parasite leaf maps to, and report the fraction of trials whose optimal cost
is at most the observed one. Small values mean the trees are more congruent
than chance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			spin := newSpinner(cmd.Context(), "Shuffling tips...")
			spin.Start()
			res, err := s.runner.Stats(cmd.Context(), s.prob, s.opts)
			if err != nil {
				spin.StopWithError("Trials failed")
				return err
			}
			spin.StopWithSuccess("%d trials", len(res.Costs))

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			w := cmd.OutOrStdout()
			printKeyValue(w, "observed", strconv.FormatFloat(res.Observed, 'g', -1, 64))
			printKeyValue(w, "p-value", strconv.FormatFloat(res.PValue, 'f', 4, 64))
			if n := len(res.Costs); n > 0 {
				printKeyValue(w, "trial range", strconv.FormatFloat(res.Costs[0], 'g', -1, 64)+
					" .. "+strconv.FormatFloat(res.Costs[n-1], 'g', -1, 64))
			}
			if res.PValue > 0.05 {
				printWarning("Optimal cost is not significant at the 5%% level")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&c.global.opts.Trials, "trials", 0, "number of shuffled trials (default 100)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
