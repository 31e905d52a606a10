package io

import (
	"github.com/matzehuels/mprscape/pkg/recon"
)

// ReconciliationDoc is the serialized form of a single reconciliation.
// Events are listed from the root down.
type ReconciliationDoc struct {
	Root   NamedNode         `json:"root"`
	Cost   float64           `json:"cost"`
	Counts recon.EventCounts `json:"counts"`
	Events []EventDoc        `json:"events"`
}

// ReconciliationDocOf serializes r, a reconciliation of prob.
func ReconciliationDocOf(prob recon.Problem, r *recon.Reconciliation) ReconciliationDoc {
	name := func(m recon.MappingNode) NamedNode {
		return NamedNode{Parasite: prob.Parasite.Name(m.Parasite), Host: prob.Host.Name(m.Host)}
	}
	doc := ReconciliationDoc{
		Root:   name(r.Root),
		Cost:   r.Cost(prob.Costs).Float(),
		Counts: r.CountEvents(),
	}
	for _, m := range r.Ordered() {
		e := r.Events[m]
		ed := EventDoc{Node: name(m), Code: e.Kind.Code()}
		for _, c := range e.Kids() {
			ed.Children = append(ed.Children, name(c))
		}
		doc.Events = append(doc.Events, ed)
	}
	return doc
}
