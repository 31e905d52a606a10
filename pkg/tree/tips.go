package tree

import (
	"slices"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
)

// TipMapping maps parasite leaf names to host leaf names. Several parasite
// leaves may map to the same host leaf.
type TipMapping map[string]string

// Resolve validates the mapping against the two trees and returns, for each
// parasite node, the host leaf it is mapped to (NoNode for internal
// parasite nodes).
//
// Every parasite leaf must be mapped, every key must name a parasite leaf
// and every value must name a host leaf. Violations are CONFIGURATION
// errors.
func (m TipMapping) Resolve(host, parasite *Tree) ([]NodeID, error) {
	out := make([]NodeID, parasite.Len())
	for i := range out {
		out[i] = NoNode
	}

	// Sorted so that the first reported problem is deterministic.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, p := range keys {
		h := m[p]
		pid, ok := parasite.ID(p)
		if !ok {
			return nil, perrors.New(perrors.ErrCodeConfiguration, "tip mapping references unknown parasite node %q", p)
		}
		if !parasite.IsLeaf(pid) {
			return nil, perrors.New(perrors.ErrCodeConfiguration, "tip mapping key %q is not a parasite leaf", p)
		}
		hid, ok := host.ID(h)
		if !ok {
			return nil, perrors.New(perrors.ErrCodeConfiguration, "parasite leaf %q maps to unknown host node %q", p, h)
		}
		if !host.IsLeaf(hid) {
			return nil, perrors.New(perrors.ErrCodeConfiguration, "parasite leaf %q maps to internal host node %q", p, h)
		}
		out[pid] = hid
	}

	for _, leaf := range parasite.Leaves() {
		if out[leaf] == NoNode {
			return nil, perrors.New(perrors.ErrCodeConfiguration, "parasite leaf %q has no tip mapping", parasite.Name(leaf))
		}
	}
	return out, nil
}

// Permute returns a mapping that sends the same parasite leaves to the same
// multiset of host leaves, reassigned by perm. perm must be a permutation
// of [0, len(m)) applied to the host leaves in key order; it is typically
// produced by rand.Perm.
func (m TipMapping) Permute(perm []int) TipMapping {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(TipMapping, len(m))
	for i, k := range keys {
		out[k] = m[keys[perm[i]]]
	}
	return out
}
