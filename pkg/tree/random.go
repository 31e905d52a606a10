package tree

import (
	"fmt"
	"math/rand/v2"
)

// Random returns a random binary tree with the given number of leaves (at
// least one), grown by the Yule process. Leaves are named prefix+"L<i>" and
// internal nodes prefix+"I<i>", numbered in creation order.
//
func Random(rng *rand.Rand, leaves int, prefix string) *Tree {
	if leaves < 1 {
		leaves = 1
	}
	children := make(map[string][2]string)
	tips := []string{prefix + "L0"}
	nextLeaf, nextInternal := 1, 0
	root := tips[0]

	for len(tips) < leaves {
		i := rng.IntN(len(tips))
		old := tips[i]
		internal := fmt.Sprintf("%sI%d", prefix, nextInternal)
		nextInternal++
		fresh := fmt.Sprintf("%sL%d", prefix, nextLeaf)
		nextLeaf++

		// Replace the leaf by an internal node carrying it and a new leaf.
		for p, kids := range children {
			if kids[0] == old {
				children[p] = [2]string{internal, kids[1]}
			} else if kids[1] == old {
				children[p] = [2]string{kids[0], internal}
			}
		}
		if root == old {
			root = internal
		}
		if rng.IntN(2) == 0 {
			children[internal] = [2]string{old, fresh}
		} else {
			children[internal] = [2]string{fresh, old}
		}
		tips = append(tips, fresh)
	}

	t, err := Build(root, children)
	if err != nil {
		panic(fmt.Sprintf("tree: random tree is invalid: %v", err))
	}
	return t
}

// RandomTips maps every parasite leaf to a host leaf chosen uniformly.
func RandomTips(rng *rand.Rand, host, parasite *Tree) TipMapping {
	hl := host.Leaves()
	m := make(TipMapping, len(parasite.Leaves()))
	for _, p := range parasite.Leaves() {
		m[parasite.Name(p)] = host.Name(hl[rng.IntN(len(hl))])
	}
	return m
}
