package io

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
)

// CSVHeader is the column layout of the event table.
var CSVHeader = []string{
	"parasite_node", "host_node", "event_type_code",
	"child1_parasite", "child1_host", "child2_parasite", "child2_host",
	"frequency",
}

// NamedNode is a mapping node identified by node names.
type NamedNode struct {
	Parasite string `json:"parasite"`
	Host     string `json:"host"`
}

func (n NamedNode) empty() bool { return n.Parasite == "" && n.Host == "" }

// Record is one row of the event table.
type Record struct {
	Node      NamedNode
	Kind      recon.EventKind
	Children  [2]NamedNode
	Frequency float64
}

func named(g *recon.Graph, m recon.MappingNode) NamedNode {
	if m == recon.NoMapping {
		return NamedNode{}
	}
	return NamedNode{Parasite: g.Parasite().Name(m.Parasite), Host: g.Host().Name(m.Host)}
}

// Records lists the (mapping node, event) pairs of g in arena order with
// their event frequencies.
func Records(g *recon.Graph) []Record {
	freq := g.Frequencies()
	out := make([]Record, 0, g.EventCount())
	for i, m := range g.Nodes() {
		node := named(g, m)
		for k, e := range g.EventsAt(i) {
			out = append(out, Record{
				Node:      node,
				Kind:      e.Kind,
				Children:  [2]NamedNode{named(g, e.Children[0]), named(g, e.Children[1])},
				Frequency: freq.EventAt(i, k),
			})
		}
	}
	return out
}

// ReconciliationRecords lists the events of r from the root down, each
// annotated with its frequency among the reconciliations of g. Events that
// g does not store get frequency zero.
func ReconciliationRecords(g *recon.Graph, r *recon.Reconciliation) []Record {
	freq := g.Frequencies()
	order := r.Ordered()
	out := make([]Record, 0, len(order))
	for _, m := range order {
		e := r.Events[m]
		rec := Record{
			Node:     named(g, m),
			Kind:     e.Kind,
			Children: [2]NamedNode{named(g, e.Children[0]), named(g, e.Children[1])},
		}
		if i, ok := g.Index(m); ok {
			if k := slices.Index(g.EventsAt(i), e); k >= 0 {
				rec.Frequency = freq.EventAt(i, k)
			}
		}
		out = append(out, rec)
	}
	return out
}

// WriteCSV writes the event table of g to w.
func WriteCSV(w io.Writer, g *recon.Graph) error {
	return WriteRecords(w, Records(g))
}

// WriteRecords writes an event table.
func WriteRecords(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Node.Parasite, r.Node.Host, r.Kind.Code(),
			r.Children[0].Parasite, r.Children[0].Host,
			r.Children[1].Parasite, r.Children[1].Host,
			strconv.FormatFloat(r.Frequency, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the event table of g to path.
func ExportCSV(g *recon.Graph, path string) error {
	return ExportRecords(Records(g), path)
}

// ExportRecords writes an event table to path.
func ExportRecords(records []Record, path string) error {
	if err := perrors.ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteRecords(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses an event table. The header must match [CSVHeader] and
// the child cells must agree with the event code's arity. Malformed input
// is an INVALID_FORMAT error.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	header, err := cr.Read()
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "read header")
	}
	if !slices.Equal(header, CSVHeader) {
		return nil, perrors.New(perrors.ErrCodeInvalidFormat, "unexpected header %v", header)
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "line %d", line)
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "line %d", line)
		}
		out = append(out, rec)
	}
}

// ImportCSV reads an event table from path.
func ImportCSV(path string) ([]Record, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func parseRow(row []string) (Record, error) {
	kind, err := recon.ParseEventCode(row[2])
	if err != nil {
		return Record{}, err
	}
	freq, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return Record{}, fmt.Errorf("frequency %q: %w", row[7], err)
	}
	rec := Record{
		Node:      NamedNode{Parasite: row[0], Host: row[1]},
		Kind:      kind,
		Children:  [2]NamedNode{{Parasite: row[3], Host: row[4]}, {Parasite: row[5], Host: row[6]}},
		Frequency: freq,
	}
	if rec.Node.Parasite == "" || rec.Node.Host == "" {
		return Record{}, fmt.Errorf("missing mapping node")
	}
	for i, c := range rec.Children {
		present := c.Parasite != "" && c.Host != ""
		if !present && !c.empty() {
			return Record{}, fmt.Errorf("child %d is half filled", i+1)
		}
		if present && i >= kind.Arity() {
			return Record{}, fmt.Errorf("%s event has child %d", kind, i+1)
		}
		if !present && i < kind.Arity() {
			return Record{}, fmt.Errorf("%s event is missing child %d", kind, i+1)
		}
	}
	return rec, nil
}

// Events resolves records against prob's trees, giving the event table
// accepted by [recon.FromEvents]. Unknown names are CONFIGURATION errors.
func Events(prob recon.Problem, records []Record) (map[recon.MappingNode][]recon.Event, error) {
	resolve := func(n NamedNode) (recon.MappingNode, error) {
		if n.empty() {
			return recon.NoMapping, nil
		}
		p, ok := prob.Parasite.ID(n.Parasite)
		if !ok {
			return recon.MappingNode{}, perrors.New(perrors.ErrCodeConfiguration, "unknown parasite node %q", n.Parasite)
		}
		h, ok := prob.Host.ID(n.Host)
		if !ok {
			return recon.MappingNode{}, perrors.New(perrors.ErrCodeConfiguration, "unknown host node %q", n.Host)
		}
		return recon.MappingNode{Parasite: p, Host: h}, nil
	}

	out := make(map[recon.MappingNode][]recon.Event)
	for _, r := range records {
		m, err := resolve(r.Node)
		if err != nil {
			return nil, err
		}
		e := recon.Event{Kind: r.Kind}
		for i, c := range r.Children {
			if e.Children[i], err = resolve(c); err != nil {
				return nil, err
			}
		}
		out[m] = append(out[m], e)
	}
	return out, nil
}
