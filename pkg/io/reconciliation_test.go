package io_test

import (
	"math/big"
	"testing"

	"github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func TestReconciliationDoc(t *testing.T) {
	prob := recontest.Duplications()
	g := reconcile(t, prob)
	r, err := g.Reconciliation(big.NewInt(0))
	if err != nil {
		t.Fatalf("Reconciliation: %v", err)
	}

	doc := io.ReconciliationDocOf(prob, r)
	if doc.Cost != g.MinCost().Float() {
		t.Errorf("Cost = %v, want %v", doc.Cost, g.MinCost().Float())
	}
	if doc.Counts.Duplication != 2 {
		t.Errorf("Counts.Duplication = %d, want 2", doc.Counts.Duplication)
	}
	if len(doc.Events) != len(r.Events) {
		t.Fatalf("len(Events) = %d, want %d", len(doc.Events), len(r.Events))
	}
	if doc.Events[0].Node != doc.Root {
		t.Errorf("first event at %+v, want root %+v", doc.Events[0].Node, doc.Root)
	}
	for _, e := range doc.Events {
		want := 2
		if e.Code == "C" {
			want = 0
		}
		if len(e.Children) != want {
			t.Errorf("event %+v has %d children, want %d", e, len(e.Children), want)
		}
	}
}
