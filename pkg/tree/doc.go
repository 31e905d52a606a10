// Package tree provides the immutable rooted binary trees that host and
// parasite phylogenies are normalized into.
//
// # Overview
//
// Reconciliation algorithms visit every host node for every parasite node,
// so the representation is an arena: nodes are addressed by a dense
// [NodeID] and all derived indexes (postorder position, Euler interval,
// depth, height) are plain slices. A [Tree] never changes after [Builder.Build]
// returns it, which makes it safe to share between goroutines.
//
// # Building
//
//	b := tree.NewBuilder()
//	_ = b.AddEdge("root", "a")
//	_ = b.AddEdge("root", "b")
//	t, err := b.Build()
//
// [Builder.AddEdge] creates unknown nodes on demand. [Build] accepts a
// root name and a child map, which is the shape problem documents use.
// Every internal node must have exactly two children, names must be unique
// and there must be exactly one root; violations are reported as
// STRUCTURAL errors that also match the sentinel errors of this package
// under [errors.Is].
//
// # Ancestry
//
// [Tree.IsAncestor] answers in O(1) using Euler enter/exit numbers. Two
// nodes are [Tree.Comparable] when one is an ancestor of the other, which
// is the relation transfer events must avoid.
//
// # Tip mappings
//
// A [TipMapping] associates each parasite leaf with a host leaf by name.
// [TipMapping.Resolve] validates it against both trees and returns the
// host leaf for every parasite leaf, reporting CONFIGURATION errors.
package tree
