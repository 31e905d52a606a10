package recon

import (
	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/tree"
)

// Problem is a reconciliation instance: the two trees, the tip mapping and
// the event costs.
type Problem struct {
	Host     *tree.Tree
	Parasite *tree.Tree
	Tips     tree.TipMapping
	Costs    Costs
}

// Validate checks the costs and the tip mapping and returns the resolved
// tip of every parasite leaf.
func (p Problem) Validate() ([]tree.NodeID, error) {
	if p.Host == nil || p.Parasite == nil {
		return nil, perrors.New(perrors.ErrCodeStructural, "host and parasite trees are required")
	}
	if err := p.Costs.Validate(); err != nil {
		return nil, err
	}
	return p.Tips.Resolve(p.Host, p.Parasite)
}
