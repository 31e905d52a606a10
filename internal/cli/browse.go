package cli

import (
	"fmt"
	"math"
	"math/big"
	"math/rand/v2"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon"
)

// =============================================================================
// browse
// =============================================================================

func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [problem]",
		Short: "Page through reconciliations interactively",
		Long: `Open an interactive view of the most parsimonious reconciliations.

Keys:
  ←/→  previous / next rank     home/end  first / last rank
  r    random sample            m         median
  q    quit`,
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

			m := newBrowseModel(res.Problem, res.Graph, med, s.opts.Seed)
			p := tea.NewProgram(m,
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err = p.Run()
			return err
		},
	}
}

// browseModel is the bubbletea model for the browse command. rank is nil
// while a sample or the median is shown.
type browseModel struct {
	prob   recon.Problem
	graph  *recon.Graph
	total  *big.Int
	median *recon.Reconciliation
	rng    *rand.Rand

	rank  *big.Int
	title string
	doc   mio.ReconciliationDoc
	err   error
}

func newBrowseModel(prob recon.Problem, g *recon.Graph, median *recon.Reconciliation, seed uint64) browseModel {
	m := browseModel{
		prob:   prob,
		graph:  g,
		total:  g.TotalCount(),
		median: median,
		rng:    rand.New(rand.NewPCG(seed, seed^math.MaxUint32)),
	}
	return m.goTo(new(big.Int))
}

func (m browseModel) goTo(rank *big.Int) browseModel {
	r, err := m.graph.Reconciliation(rank)
	if err != nil {
		m.err = err
		return m
	}
	m.rank, m.err = rank, nil
	m.title = fmt.Sprintf("Reconciliation %s of %s", new(big.Int).Add(rank, big.NewInt(1)), m.total)
	m.doc = mio.ReconciliationDocOf(m.prob, r)
	return m
}

func (m browseModel) show(title string, r *recon.Reconciliation) browseModel {
	m.rank, m.err = nil, nil
	m.title = title
	m.doc = mio.ReconciliationDocOf(m.prob, r)
	return m
}

// step moves delta ranks from the current one, wrapping around. From a
// sample or the median it starts over at rank 0.
func (m browseModel) step(delta int64) browseModel {
	if m.rank == nil {
		return m.goTo(new(big.Int))
	}
	next := new(big.Int).Add(m.rank, big.NewInt(delta))
	return m.goTo(next.Mod(next, m.total))
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "right", "l", "n":
		m = m.step(1)
	case "left", "h", "p":
		m = m.step(-1)
	case "home", "g":
		m = m.goTo(new(big.Int))
	case "end", "G":
		m = m.goTo(new(big.Int).Sub(m.total, big.NewInt(1)))
	case "r":
		m = m.show("Random sample", m.graph.Sample(m.rng))
	case "m":
		m = m.show("Median", m.median)
	}
	return m, nil
}

func (m browseModel) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("←/→ navigate  r sample  m median  q quit"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(styleIconError.Render(iconError) + " " + m.err.Error() + "\n")
	}
	printReconciliation(&b, m.doc)
	return b.String()
}
