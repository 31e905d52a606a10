package recon

import (
	"fmt"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/tree"
)

// EventKind tags the variant of an [Event].
type EventKind uint8

const (
	// Cospeciation places the parasite children on the two host children.
	Cospeciation EventKind = iota
	// Duplication keeps both parasite children on the same host.
	Duplication
	// Transfer keeps one parasite child on the host and moves the other to
	// an incomparable host.
	Transfer
	// Loss moves the parasite onto one host child.
	Loss
	// Leaf is a parasite leaf sitting on its mapped host leaf.
	Leaf
)

var kindCodes = [...]string{
	Cospeciation: "S",
	Duplication:  "D",
	Transfer:     "T",
	Loss:         "L",
	Leaf:         "C",
}

var kindNames = [...]string{
	Cospeciation: "cospeciation",
	Duplication:  "duplication",
	Transfer:     "transfer",
	Loss:         "loss",
	Leaf:         "leaf",
}

// Code returns the single-letter export code: S, D, T, L or C.
func (k EventKind) Code() string {
	if int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return "?"
}

func (k EventKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", k)
}

// Arity is the number of child mapping nodes an event of this kind carries.
func (k EventKind) Arity() int {
	switch k {
	case Loss:
		return 1
	case Leaf:
		return 0
	default:
		return 2
	}
}

// ParseEventCode is the inverse of [EventKind.Code].
func ParseEventCode(code string) (EventKind, error) {
	for k, c := range kindCodes {
		if c == code {
			return EventKind(k), nil
		}
	}
	return 0, perrors.New(perrors.ErrCodeInvalidFormat, "unknown event code %q", code)
}

// MappingNode places a parasite node on a host node.
type MappingNode struct {
	Parasite tree.NodeID `json:"parasite"`
	Host     tree.NodeID `json:"host"`
}

// NoMapping marks an unused child slot of an [Event].
var NoMapping = MappingNode{Parasite: tree.NoNode, Host: tree.NoNode}

// Event is one minimum-cost way to explain a mapping node.
//
// For cospeciation, duplication and transfer, Children[0] holds the left
// child of the parasite node and Children[1] the right child. Loss uses
// Children[0] only; Leaf uses neither. Unused slots hold [NoMapping], so
// events compare with ==.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Children [2]MappingNode `json:"children"`
}

// NewEvent builds an event, filling unused child slots with NoMapping.
func NewEvent(kind EventKind, children ...MappingNode) Event {
	e := Event{Kind: kind, Children: [2]MappingNode{NoMapping, NoMapping}}
	copy(e.Children[:], children)
	return e
}

// Arity returns the number of child mapping nodes.
func (e Event) Arity() int { return e.Kind.Arity() }

// Kids returns the used child slots.
func (e Event) Kids() []MappingNode { return e.Children[:e.Kind.Arity()] }

// checkShape verifies that e is a structurally valid explanation of m
// within the given trees.
func checkShape(host, parasite *tree.Tree, tips []tree.NodeID, m MappingNode, e Event) error {
	p1, p2 := parasite.Children(m.Parasite)
	h1, h2 := host.Children(m.Host)
	c := e.Children
	bad := func(reason string) error {
		return perrors.New(perrors.ErrCodeStructural, "%s event at (%s, %s): %s",
			e.Kind, parasite.Name(m.Parasite), host.Name(m.Host), reason)
	}

	switch e.Kind {
	case Leaf:
		if p1 != tree.NoNode || !host.IsLeaf(m.Host) {
			return bad("leaf events need a parasite leaf on a host leaf")
		}
		if tips != nil && tips[m.Parasite] != m.Host {
			return bad("host is not the mapped tip")
		}
	case Loss:
		if h1 == tree.NoNode || c[0].Parasite != m.Parasite || (c[0].Host != h1 && c[0].Host != h2) {
			return bad("loss must move the parasite onto a host child")
		}
	case Cospeciation, Duplication, Transfer:
		if p1 == tree.NoNode || c[0].Parasite != p1 || c[1].Parasite != p2 {
			return bad("children must be the parasite's left and right child")
		}
		switch e.Kind {
		case Cospeciation:
			if h1 == tree.NoNode || !((c[0].Host == h1 && c[1].Host == h2) || (c[0].Host == h2 && c[1].Host == h1)) {
				return bad("children must sit on the two host children")
			}
		case Duplication:
			if c[0].Host != m.Host || c[1].Host != m.Host {
				return bad("children must stay on the host")
			}
		case Transfer:
			stay, moved := c[0].Host, c[1].Host
			if stay != m.Host {
				stay, moved = moved, stay
			}
			if stay != m.Host || host.Comparable(m.Host, moved) {
				return bad("one child must stay and the other move to an incomparable host")
			}
		}
	default:
		return bad("unknown event kind")
	}
	return nil
}
