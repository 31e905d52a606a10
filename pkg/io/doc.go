// Package io reads and writes the documents exchanged with the outside
// world: reconciliation problems, CSV event tables, graph JSON, distance
// histograms and Graphviz DOT.
//
// # Problem documents
//
// A problem names two binary trees by their root and child pairs, maps each
// parasite leaf to a host leaf, and optionally carries event costs:
//
//	{
//	  "host":     {"root": "m0", "children": {"m0": ["m1", "m2"], "m1": ["m3", "m4"]}},
//	  "parasite": {"root": "n0", "children": {"n0": ["n1", "n2"]}},
//	  "tips":     {"n1": "m3", "n2": "m4"},
//	  "costs":    {"duplication": 2, "transfer": 3, "loss": 1}
//	}
//
// The same structure is accepted as TOML and YAML. [ImportProblem] picks the
// codec from the file extension. Missing costs default to
// [recon.DefaultCosts].
//
// # CSV
//
// [WriteCSV] emits one row per (mapping node, event) of a reconciliation
// graph with the header
//
//	parasite_node,host_node,event_type_code,child1_parasite,child1_host,child2_parasite,child2_host,frequency
//
// Event codes are S (cospeciation), D (duplication), T (transfer), L (loss)
// and C (leaf). Child cells are empty when the event has fewer children.
// The frequency column is the fraction of reconciliations that choose the
// event at that node. [ReadCSV] parses the table back into [Record] values
// and [Events] resolves them against a problem so that the graph can be
// rebuilt with [recon.FromEvents].
//
// # Graph JSON
//
// [MarshalGraph] stores a graph together with its problem so that
// [UnmarshalGraph] can rebuild it without re-running the dynamic program.
// The cache and the HTTP API use this encoding.
//
// # DOT
//
// [ToDOT] draws mapping nodes as boxes and events as small labelled
// ellipses. [RenderSVG] lays the result out with Graphviz.
package io
