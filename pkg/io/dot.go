package io

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/mprscape/pkg/recon"
)

// DOTOptions configures [ToDOT].
type DOTOptions struct {
	// Frequencies appends event frequencies to event labels.
	Frequencies bool
}

var kindColors = map[recon.EventKind]string{
	recon.Cospeciation: "palegreen",
	recon.Duplication:  "lightgoldenrod",
	recon.Transfer:     "lightsalmon",
	recon.Loss:         "lightgrey",
	recon.Leaf:         "lightblue",
}

// ToDOT renders g as a Graphviz digraph. Roots are drawn with a bold
// outline.
func ToDOT(g *recon.Graph, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("\n")

	var freq *recon.Frequencies
	if opts.Frequencies {
		freq = g.Frequencies()
	}
	roots := make(map[int]bool)
	for _, i := range g.RootIndexes() {
		roots[i] = true
	}

	id := func(m recon.MappingNode) string {
		return g.Parasite().Name(m.Parasite) + "@" + g.Host().Name(m.Host)
	}
	for i, m := range g.Nodes() {
		attrs := ""
		if roots[i] {
			attrs = ", penwidth=3"
		}
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", id(m), id(m), attrs)
	}
	buf.WriteString("\n")
	for i, m := range g.Nodes() {
		for k, e := range g.EventsAt(i) {
			ev := fmt.Sprintf("%s#%d", id(m), k)
			label := e.Kind.Code()
			if freq != nil {
				label += " " + strconv.FormatFloat(freq.EventAt(i, k), 'f', 3, 64)
			}
			fmt.Fprintf(&buf, "  %q [label=%q, shape=ellipse, fontsize=10, fillcolor=%s];\n", ev, label, kindColors[e.Kind])
			fmt.Fprintf(&buf, "  %q -> %q;\n", id(m), ev)
			for _, c := range e.Kids() {
				fmt.Fprintf(&buf, "  %q -> %q;\n", ev, id(c))
			}
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG lays out a DOT graph with Graphviz and returns SVG bytes.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-sized root element with one
// whose width and height follow the view box.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
