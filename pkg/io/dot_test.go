package io_test

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func TestToDOT(t *testing.T) {
	g := reconcile(t, recontest.Transfers())
	dot := io.ToDOT(g, io.DOTOptions{Frequencies: true})

	want := []string{"digraph G {", `"n1@m3#0"`}
	for _, m := range g.Roots() {
		id := g.Parasite().Name(m.Parasite) + "@" + g.Host().Name(m.Host)
		want = append(want, fmt.Sprintf("%q [label=%q, penwidth=3];", id, id))
	}
	for _, w := range want {
		if !strings.Contains(dot, w) {
			t.Errorf("DOT missing %q:\n%s", w, dot)
		}
	}
	if !regexp.MustCompile(`label="[SDTLC] [01]\.\d{3}"`).MatchString(dot) {
		t.Errorf("DOT has no frequency labels:\n%s", dot)
	}
	if got := strings.Count(dot, "shape=ellipse"); got != g.EventCount() {
		t.Errorf("event nodes = %d, want %d", got, g.EventCount())
	}
}

func TestRenderSVG(t *testing.T) {
	g := reconcile(t, recontest.Duplications())
	svg, err := io.RenderSVG(context.Background(), io.ToDOT(g, io.DOTOptions{}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Errorf("output is not SVG: %.80s", svg)
	}
}
