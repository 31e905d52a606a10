package tree

import (
	"errors"
	"slices"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
)

var (
	// ErrEmptyTree is returned by [Builder.Build] when no node was added.
	ErrEmptyTree = errors.New("tree has no nodes")

	// ErrDuplicateName is returned by [Builder.AddNode] when a node with the
	// same name already exists.
	ErrDuplicateName = errors.New("duplicate node name")

	// ErrUnknownNode is returned when a name does not refer to a node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrMultipleParents is returned by [Builder.AddEdge] when the child
	// already has a parent.
	ErrMultipleParents = errors.New("node has more than one parent")

	// ErrNotBinary is returned when a node has a number of children other
	// than zero or two.
	ErrNotBinary = errors.New("internal node must have exactly two children")

	// ErrMultipleRoots is returned by [Builder.Build] when more than one node
	// has no parent.
	ErrMultipleRoots = errors.New("tree has more than one root")

	// ErrCycle is returned by [Builder.Build] when following parents from
	// some node never reaches the root.
	ErrCycle = errors.New("tree contains a cycle")
)

// NodeID addresses a node inside a single [Tree]. IDs are dense in
// [0, Tree.Len()) and are only meaningful for the tree that issued them.
type NodeID int32

// NoNode marks an absent parent or child.
const NoNode NodeID = -1

// Node is one vertex of a tree. Leaves have Left == Right == NoNode.
type Node struct {
	Name   string
	Parent NodeID
	Left   NodeID
	Right  NodeID
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Left == NoNode }

// Tree is an immutable rooted binary tree.
//
// The zero value is not usable; create trees with [Builder] or [Build].
type Tree struct {
	nodes  []Node
	byName map[string]NodeID
	root   NodeID

	post    []NodeID
	postIdx []int32
	enter   []int32
	exit    []int32
	depth   []int32
	height  []int32
	levels  [][]NodeID
	leaves  []NodeID
}

// Root returns the root node.
func (t *Tree) Root() NodeID { return t.root }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given ID.
func (t *Tree) Node(id NodeID) Node { return t.nodes[id] }

// Name returns the name of a node.
func (t *Tree) Name(id NodeID) string { return t.nodes[id].Name }

// ID looks a node up by name.
func (t *Tree) ID(name string) (NodeID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// IsLeaf reports whether id is a leaf.
func (t *Tree) IsLeaf(id NodeID) bool { return t.nodes[id].Left == NoNode }

// Children returns the left and right child of id, or NoNode twice for leaves.
func (t *Tree) Children(id NodeID) (NodeID, NodeID) {
	n := t.nodes[id]
	return n.Left, n.Right
}

// Parent returns the parent of id, or NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].Parent }

// Postorder returns all nodes, children before parents, left subtrees
// before right subtrees. The slice must not be modified.
func (t *Tree) Postorder() []NodeID { return t.post }

// PostIndex returns the position of id in [Tree.Postorder].
func (t *Tree) PostIndex(id NodeID) int { return int(t.postIdx[id]) }

// Leaves returns the leaves in postorder. The slice must not be modified.
func (t *Tree) Leaves() []NodeID { return t.leaves }

// IsAncestor reports whether a is an ancestor of b. Every node is its own
// ancestor.
func (t *Tree) IsAncestor(a, b NodeID) bool {
	return t.enter[a] <= t.enter[b] && t.exit[b] <= t.exit[a]
}

// Comparable reports whether one of a, b is an ancestor of the other.
func (t *Tree) Comparable(a, b NodeID) bool {
	return t.IsAncestor(a, b) || t.IsAncestor(b, a)
}

// Depth returns the number of edges between id and the root.
func (t *Tree) Depth(id NodeID) int { return int(t.depth[id]) }

// Height returns the number of edges on the longest path from id down to a
// leaf. Leaves have height zero.
func (t *Tree) Height(id NodeID) int { return int(t.height[id]) }

// Levels groups nodes by height: Levels()[0] holds the leaves and the last
// level holds the root. Every node's children live in strictly lower levels,
// so the nodes of one level can be processed independently once all lower
// levels are done.
func (t *Tree) Levels() [][]NodeID { return t.levels }

// Names returns the node names indexed by NodeID.
func (t *Tree) Names() []string {
	names := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		names[i] = n.Name
	}
	return names
}

// ChildMap returns the child map of all internal nodes, the inverse of [Build].
func (t *Tree) ChildMap() map[string][2]string {
	m := make(map[string][2]string)
	for _, n := range t.nodes {
		if n.Left != NoNode {
			m[n.Name] = [2]string{t.nodes[n.Left].Name, t.nodes[n.Right].Name}
		}
	}
	return m
}

// index computes every derived slice from nodes and root.
func (t *Tree) index() {
	n := len(t.nodes)
	t.post = make([]NodeID, 0, n)
	t.postIdx = make([]int32, n)
	t.enter = make([]int32, n)
	t.exit = make([]int32, n)
	t.depth = make([]int32, n)
	t.height = make([]int32, n)

	type frame struct {
		id      NodeID
		visited bool
	}
	var clock int32
	stack := []frame{{id: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.nodes[f.id]
		if f.visited {
			t.exit[f.id] = clock
			clock++
			t.postIdx[f.id] = int32(len(t.post))
			t.post = append(t.post, f.id)
			if node.Left != NoNode {
				t.height[f.id] = 1 + max(t.height[node.Left], t.height[node.Right])
			} else {
				t.leaves = append(t.leaves, f.id)
			}
			continue
		}
		t.enter[f.id] = clock
		clock++
		if node.Parent != NoNode {
			t.depth[f.id] = t.depth[node.Parent] + 1
		}
		stack = append(stack, frame{id: f.id, visited: true})
		if node.Left != NoNode {
			stack = append(stack, frame{id: node.Right}, frame{id: node.Left})
		}
	}

	t.levels = make([][]NodeID, t.height[t.root]+1)
	for _, id := range t.post {
		h := t.height[id]
		t.levels[h] = append(t.levels[h], id)
	}
}

// Builder accumulates nodes and parent/child edges and produces a validated
// [Tree]. A Builder is not safe for concurrent use.
type Builder struct {
	names    []string
	index    map[string]NodeID
	parent   []NodeID
	children [][]NodeID
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]NodeID)}
}

// AddNode adds a named node. The name must be unique and valid for export.
func (b *Builder) AddNode(name string) error {
	if err := perrors.ValidateNodeName(name); err != nil {
		return err
	}
	if _, ok := b.index[name]; ok {
		return perrors.Wrap(perrors.ErrCodeStructural, ErrDuplicateName, "node %q", name)
	}
	b.add(name)
	return nil
}

func (b *Builder) add(name string) NodeID {
	id := NodeID(len(b.names))
	b.names = append(b.names, name)
	b.index[name] = id
	b.parent = append(b.parent, NoNode)
	b.children = append(b.children, nil)
	return id
}

func (b *Builder) ensure(name string) (NodeID, error) {
	if id, ok := b.index[name]; ok {
		return id, nil
	}
	if err := perrors.ValidateNodeName(name); err != nil {
		return NoNode, err
	}
	return b.add(name), nil
}

// AddEdge records that child hangs below parent, creating either node if
// it does not exist yet. Children are ordered left to right in the order
// their edges are added.
func (b *Builder) AddEdge(parent, child string) error {
	p, err := b.ensure(parent)
	if err != nil {
		return err
	}
	c, err := b.ensure(child)
	if err != nil {
		return err
	}
	if b.parent[c] != NoNode {
		return perrors.Wrap(perrors.ErrCodeStructural, ErrMultipleParents, "node %q", child)
	}
	if len(b.children[p]) == 2 {
		return perrors.Wrap(perrors.ErrCodeStructural, ErrNotBinary, "node %q", parent)
	}
	b.parent[c] = p
	b.children[p] = append(b.children[p], c)
	return nil
}

// Build validates the accumulated structure and returns the tree.
func (b *Builder) Build() (*Tree, error) {
	if len(b.names) == 0 {
		return nil, perrors.Wrap(perrors.ErrCodeStructural, ErrEmptyTree, "build")
	}

	root := NoNode
	for id, p := range b.parent {
		if p != NoNode {
			continue
		}
		if root != NoNode {
			return nil, perrors.Wrap(perrors.ErrCodeStructural, ErrMultipleRoots,
				"%q and %q have no parent", b.names[root], b.names[id])
		}
		root = NodeID(id)
	}
	if root == NoNode {
		return nil, perrors.Wrap(perrors.ErrCodeStructural, ErrCycle, "every node has a parent")
	}

	nodes := make([]Node, len(b.names))
	for id, name := range b.names {
		kids := b.children[id]
		if len(kids) == 1 {
			return nil, perrors.Wrap(perrors.ErrCodeStructural, ErrNotBinary, "node %q has one child", name)
		}
		n := Node{Name: name, Parent: b.parent[id], Left: NoNode, Right: NoNode}
		if len(kids) == 2 {
			n.Left, n.Right = kids[0], kids[1]
		}
		nodes[id] = n
	}

	// With one root and at most one parent per node, any node the root
	// cannot reach sits on a cycle.
	seen := make([]bool, len(nodes))
	stack := []NodeID{root}
	reached := 0
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		seen[id] = true
		reached++
		if n := nodes[id]; n.Left != NoNode {
			stack = append(stack, n.Left, n.Right)
		}
	}
	if reached != len(nodes) {
		idx := slices.Index(seen, false)
		return nil, perrors.Wrap(perrors.ErrCodeStructural, ErrCycle, "node %q is unreachable from root", b.names[idx])
	}

	t := &Tree{nodes: nodes, byName: make(map[string]NodeID, len(nodes)), root: root}
	for id, n := range nodes {
		t.byName[n.Name] = NodeID(id)
	}
	t.index()
	return t, nil
}

// Build constructs a tree from a root name and a map from every internal
// node to its two children. A single-node tree is given by a root with no
// entry in children.
func Build(root string, children map[string][2]string) (*Tree, error) {
	b := NewBuilder()
	if err := b.AddNode(root); err != nil {
		return nil, err
	}
	// Walk from the root so that node IDs follow a preorder and entries not
	// connected to the root surface as structural errors below.
	stack := []string{root}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		kids, ok := children[name]
		if !ok {
			continue
		}
		for _, c := range kids {
			if err := b.AddEdge(name, c); err != nil {
				return nil, err
			}
		}
		stack = append(stack, kids[1], kids[0])
	}
	for name := range children {
		if _, ok := b.index[name]; !ok {
			return nil, perrors.Wrap(perrors.ErrCodeStructural, ErrMultipleRoots,
				"node %q is not reachable from root %q", name, root)
		}
	}
	return b.Build()
}
