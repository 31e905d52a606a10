package io_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon/diameter"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func TestGraphRoundTrip(t *testing.T) {
	g := reconcile(t, recontest.Ambiguous())
	data, err := io.MarshalGraph(g)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}
	got, err := io.UnmarshalGraph(data)
	if err != nil {
		t.Fatalf("UnmarshalGraph: %v", err)
	}
	if got.TotalCount().Cmp(g.TotalCount()) != 0 {
		t.Errorf("TotalCount = %v, want %v", got.TotalCount(), g.TotalCount())
	}
	if got.MinCost() != g.MinCost() || got.Len() != g.Len() || got.EventCount() != g.EventCount() {
		t.Errorf("rebuilt graph differs: cost %v len %d events %d", got.MinCost(), got.Len(), got.EventCount())
	}
	if err := got.Verify(context.Background()); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestGraphCountMismatch(t *testing.T) {
	g := reconcile(t, recontest.Transfers())
	data, err := io.MarshalGraph(g)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}
	bad := strings.Replace(string(data), `"count": "`+g.TotalCount().String()+`"`, `"count": "999"`, 1)
	if _, err := io.UnmarshalGraph([]byte(bad)); !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
		t.Errorf("UnmarshalGraph error = %v, want INVALID_FORMAT", err)
	}
}

func TestHistogramJSON(t *testing.T) {
	g := reconcile(t, recontest.Ambiguous())
	h, err := diameter.Self(context.Background(), g)
	if err != nil {
		t.Fatalf("Self: %v", err)
	}
	var buf bytes.Buffer
	if err := io.WriteHistogram(&buf, h); err != nil {
		t.Fatalf("WriteHistogram: %v", err)
	}
	got, err := io.ReadHistogram(&buf)
	if err != nil {
		t.Fatalf("ReadHistogram: %v", err)
	}
	if !got.Equal(h) {
		t.Errorf("histogram = %v, want %v", got.Map(), h.Map())
	}

	if _, err := io.ReadHistogram(strings.NewReader(`{"x": 1}`)); !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
		t.Errorf("ReadHistogram error = %v, want INVALID_FORMAT", err)
	}
}
