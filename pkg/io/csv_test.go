package io_test

import (
	"bytes"
	"context"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func reconcile(t *testing.T, prob recon.Problem) *recon.Graph {
	t.Helper()
	g, err := recon.Reconcile(context.Background(), prob)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return g
}

func TestCSVRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	probs := []recon.Problem{recontest.Transfers(), recontest.Ambiguous(), recontest.Duplications()}
	for range 5 {
		probs = append(probs, recontest.Random(rng, 5, 6))
	}

	for i, prob := range probs {
		g := reconcile(t, prob)
		var buf bytes.Buffer
		if err := io.WriteCSV(&buf, g); err != nil {
			t.Fatalf("#%d WriteCSV: %v", i, err)
		}
		got, err := io.ReadCSV(&buf)
		if err != nil {
			t.Fatalf("#%d ReadCSV: %v", i, err)
		}
		want := io.Records(g)
		if len(got) != len(want) {
			t.Fatalf("#%d read %d records, want %d", i, len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("#%d record %d = %+v, want %+v", i, j, got[j], want[j])
			}
		}

		events, err := io.Events(prob, got)
		if err != nil {
			t.Fatalf("#%d Events: %v", i, err)
		}
		rebuilt, err := recon.FromEvents(prob, events)
		if err != nil {
			t.Fatalf("#%d FromEvents: %v", i, err)
		}
		if rebuilt.TotalCount().Cmp(g.TotalCount()) != 0 || rebuilt.MinCost() != g.MinCost() {
			t.Errorf("#%d rebuilt graph count %v cost %v, want %v %v", i, rebuilt.TotalCount(), rebuilt.MinCost(), g.TotalCount(), g.MinCost())
		}
	}
}

func TestCSVFrequencies(t *testing.T) {
	g := reconcile(t, recontest.Ambiguous())
	sums := make(map[io.NamedNode]float64)
	for _, r := range io.Records(g) {
		if r.Frequency <= 0 || r.Frequency > 1 {
			t.Errorf("record %+v frequency out of range", r)
		}
		sums[r.Node] += r.Frequency
	}
	freq := g.Frequencies()
	for i, m := range g.Nodes() {
		n := io.NamedNode{Parasite: g.Parasite().Name(m.Parasite), Host: g.Host().Name(m.Host)}
		if d := sums[n] - freq.NodeAt(i); d > 1e-9 || d < -1e-9 {
			t.Errorf("node %v event frequencies sum to %v, node frequency %v", n, sums[n], freq.NodeAt(i))
		}
	}
}

func TestMedianRecords(t *testing.T) {
	g := reconcile(t, recontest.Ambiguous())
	med, err := g.Median(rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatalf("Median: %v", err)
	}

	records := io.ReconciliationRecords(g, med)
	if len(records) != len(med.Events) {
		t.Fatalf("len(records) = %d, want %d", len(records), len(med.Events))
	}
	root := io.NamedNode{Parasite: g.Parasite().Name(med.Root.Parasite), Host: g.Host().Name(med.Root.Host)}
	if records[0].Node != root {
		t.Errorf("first record at %v, want root %v", records[0].Node, root)
	}
	freq := g.Frequencies()
	for _, r := range records {
		if r.Frequency <= 0 || r.Frequency > 1 {
			t.Errorf("record %+v frequency out of range", r)
		}
		if r.Node == root && r.Frequency > freq.Node(med.Root)+1e-9 {
			t.Errorf("root event frequency %v exceeds node frequency", r.Frequency)
		}
	}

	path := filepath.Join(t.TempDir(), "median.csv")
	if err := io.ExportRecords(records, path); err != nil {
		t.Fatalf("ExportRecords: %v", err)
	}
	back, err := io.ImportCSV(path)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	events, err := io.Events(g.Problem(), back)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	single, err := recon.FromEvents(g.Problem(), events)
	if err != nil {
		t.Fatalf("FromEvents: %v", err)
	}
	if single.TotalCount().Int64() != 1 {
		t.Errorf("median table holds %v reconciliations, want 1", single.TotalCount())
	}
}

func TestReadCSVErrors(t *testing.T) {
	header := strings.Join(io.CSVHeader, ",") + "\n"
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"bad header", "a,b,c,d,e,f,g,h\n"},
		{"short row", header + "n1,m4,C\n"},
		{"unknown code", header + "n1,m4,X,,,,,1\n"},
		{"bad frequency", header + "n1,m4,C,,,,,high\n"},
		{"leaf with child", header + "n1,m4,C,n2,m4,,,1\n"},
		{"loss without child", header + "n1,m1,L,,,,,1\n"},
		{"half child", header + "n1,m1,L,n1,,,,1\n"},
		{"missing node", header + ",m4,C,,,,,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := io.ReadCSV(strings.NewReader(tt.data))
			if !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
				t.Errorf("ReadCSV error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestEventsUnknownNode(t *testing.T) {
	prob := recontest.Transfers()
	_, err := io.Events(prob, []io.Record{{Node: io.NamedNode{Parasite: "zz", Host: "m0"}, Kind: recon.Leaf}})
	if !perrors.Is(err, perrors.ErrCodeConfiguration) {
		t.Errorf("Events error = %v, want CONFIGURATION", err)
	}
}

func TestExportImportCSV(t *testing.T) {
	g := reconcile(t, recontest.Transfers())
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := io.ExportCSV(g, path); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	recs, err := io.ImportCSV(path)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if len(recs) != g.EventCount() {
		t.Errorf("len(records) = %d, want %d", len(recs), g.EventCount())
	}
}
