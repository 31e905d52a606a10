package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"slices"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/diameter"
)

// GraphDoc is the serialized form of a [recon.Graph].
type GraphDoc struct {
	Problem ProblemDoc `json:"problem"`
	MinCost float64    `json:"min_cost"`
	// Count is the number of reconciliations in decimal.
	Count  string     `json:"count"`
	Events []EventDoc `json:"events"`
}

// EventDoc is one (mapping node, event) pair.
type EventDoc struct {
	Node     NamedNode   `json:"node"`
	Code     string      `json:"code"`
	Children []NamedNode `json:"children,omitempty"`
}

// GraphDocOf serializes g.
func GraphDocOf(g *recon.Graph) GraphDoc {
	doc := GraphDoc{
		Problem: ProblemDocOf(g.Problem()),
		MinCost: g.MinCost().Float(),
		Count:   g.TotalCount().String(),
		Events:  make([]EventDoc, 0, g.EventCount()),
	}
	for _, r := range Records(g) {
		doc.Events = append(doc.Events, EventDoc{
			Node:     r.Node,
			Code:     r.Kind.Code(),
			Children: slices.Clone(r.Children[:r.Kind.Arity()]),
		})
	}
	return doc
}

// Graph rebuilds the graph and checks it against the stored count.
func (d GraphDoc) Graph() (*recon.Graph, error) {
	prob, err := d.Problem.Problem()
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(d.Events))
	for i, e := range d.Events {
		kind, err := recon.ParseEventCode(e.Code)
		if err != nil {
			return nil, err
		}
		if len(e.Children) != kind.Arity() {
			return nil, perrors.New(perrors.ErrCodeInvalidFormat, "%s event at %s@%s has %d children", kind, e.Node.Parasite, e.Node.Host, len(e.Children))
		}
		records[i] = Record{Node: e.Node, Kind: kind}
		copy(records[i].Children[:], e.Children)
	}
	events, err := Events(prob, records)
	if err != nil {
		return nil, err
	}
	g, err := recon.FromEvents(prob, events)
	if err != nil {
		return nil, err
	}
	if d.Count != "" {
		want, ok := new(big.Int).SetString(d.Count, 10)
		if !ok {
			return nil, perrors.New(perrors.ErrCodeInvalidFormat, "count %q is not an integer", d.Count)
		}
		if g.TotalCount().Cmp(want) != 0 {
			return nil, perrors.New(perrors.ErrCodeInvalidFormat, "graph has %s reconciliations, document says %s", g.TotalCount(), want)
		}
	}
	return g, nil
}

// MarshalGraph encodes g as JSON.
func MarshalGraph(g *recon.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes g as JSON to w.
func WriteGraph(w io.Writer, g *recon.Graph) error {
	return encode(w, FormatJSON, GraphDocOf(g))
}

// UnmarshalGraph decodes a graph written by [MarshalGraph].
func UnmarshalGraph(data []byte) (*recon.Graph, error) {
	return ReadGraph(bytes.NewReader(data))
}

// ReadGraph decodes a graph from r.
func ReadGraph(r io.Reader) (*recon.Graph, error) {
	var doc GraphDoc
	if err := decode(r, FormatJSON, &doc); err != nil {
		return nil, err
	}
	return doc.Graph()
}

// WriteHistogram writes h as a JSON object keyed by distance.
func WriteHistogram(w io.Writer, h *diameter.Histogram) error {
	return encode(w, FormatJSON, h)
}

// ReadHistogram decodes a histogram written by [WriteHistogram].
func ReadHistogram(r io.Reader) (*diameter.Histogram, error) {
	h := new(diameter.Histogram)
	if err := json.NewDecoder(r).Decode(h); err != nil {
		if perrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "decode histogram")
	}
	return h, nil
}

// ExportGraph writes g as JSON to path.
func ExportGraph(g *recon.Graph, path string) error {
	data, err := MarshalGraph(g)
	if err != nil {
		return err
	}
	if err := perrors.ValidatePath(path); err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
