package cli

import (
	"context"
	"math/big"
	"math/rand/v2"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func newTestBrowser(t *testing.T) browseModel {
	t.Helper()
	prob := recontest.Ambiguous()
	g, err := recon.Reconcile(context.Background(), prob)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	med, err := g.Median(rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("Median: %v", err)
	}
	return newBrowseModel(prob, g, med, 1)
}

func press(t *testing.T, m browseModel, keys ...tea.KeyMsg) browseModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(browseModel)
	}
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestBrowseNavigation(t *testing.T) {
	m := newTestBrowser(t)
	if m.total.Cmp(big.NewInt(1)) <= 0 {
		t.Fatalf("Ambiguous has %s reconciliations, want several", m.total)
	}
	if m.rank.Sign() != 0 {
		t.Errorf("initial rank = %s, want 0", m.rank)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.rank.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("rank after right = %s, want 1", m.rank)
	}
	if want := "Reconciliation 2 of " + m.total.String(); !strings.Contains(m.View(), want) {
		t.Errorf("View() missing %q", want)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft}, tea.KeyMsg{Type: tea.KeyLeft})
	last := new(big.Int).Sub(m.total, big.NewInt(1))
	if m.rank.Cmp(last) != 0 {
		t.Errorf("rank after wrapping left = %s, want %s", m.rank, last)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyHome})
	if m.rank.Sign() != 0 {
		t.Errorf("rank after home = %s, want 0", m.rank)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	if m.rank.Cmp(last) != 0 {
		t.Errorf("rank after end = %s, want %s", m.rank, last)
	}
}

func TestBrowseSampleAndMedian(t *testing.T) {
	m := newTestBrowser(t)
	minCost := m.graph.MinCost().Float()

	m = press(t, m, runeKey('m'))
	if m.rank != nil || m.title != "Median" {
		t.Errorf("after m: rank %v, title %q", m.rank, m.title)
	}
	if m.doc.Cost != minCost {
		t.Errorf("median cost = %v, want %v", m.doc.Cost, minCost)
	}

	m = press(t, m, runeKey('r'))
	if m.title != "Random sample" || m.doc.Cost != minCost {
		t.Errorf("after r: title %q, cost %v", m.title, m.doc.Cost)
	}
	if !strings.Contains(m.View(), "Parasite") {
		t.Error("View() missing event table")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.rank == nil || m.rank.Sign() != 0 {
		t.Errorf("right from a sample: rank %v, want 0", m.rank)
	}
}

func TestBrowseQuit(t *testing.T) {
	m := newTestBrowser(t)
	for _, k := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(k)
		if cmd == nil {
			t.Fatalf("%s: no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: command is not tea.Quit", k)
		}
	}
	if _, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24}); cmd != nil {
		t.Error("window resize returned a command")
	}
}
