// Package recon computes maximum parsimony reconciliations (MPRs) of a
// parasite tree with a host tree under the duplication-transfer-loss model.
//
// # Overview
//
// A reconciliation explains every parasite node by one event on a host
// node: cospeciation (free), duplication, transfer to an incomparable
// host, loss into a host child, or a leaf event where a parasite leaf sits
// on its mapped host leaf. [Reconcile] runs the dynamic program over all
// (parasite, host) cells and returns a [Graph] holding every optimal event
// of every mapping node reachable from an optimal root placement. Ties are
// kept, so the graph represents all MPRs at once.
//
// # Costs
//
// Event costs are converted to fixed point ([Cost], six decimals). Ties are
// decided by exact integer equality, which keeps the retained event set
// independent of summation order.
//
// # Counting and frequencies
//
// [Graph.Count] and [Graph.TotalCount] return exact MPR counts. Every
// reconciliation carries the same weight: [Graph.Frequencies] reports the
// fraction of MPRs that contain a node or choose an event. [Graph.Sample]
// draws uniformly, [Graph.Median] draws from the symmetric median
// sub-graph, and [Graph.Reconciliation] unranks a reconciliation by index.
//
// # Concurrency
//
// The dynamic program fills parasite nodes of equal height in parallel. A
// finished Graph is read-only and may be shared between goroutines; random
// choices always draw from a caller-supplied *rand.Rand.
package recon
