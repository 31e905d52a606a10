package pipeline

import (
	"os"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
)

// ApplyCosts overrides the problem's event costs with any set in o.
func (o *Options) ApplyCosts(prob recon.Problem) recon.Problem {
	if o.Duplication != nil {
		prob.Costs.Duplication = *o.Duplication
	}
	if o.Transfer != nil {
		prob.Costs.Transfer = *o.Transfer
	}
	if o.Loss != nil {
		prob.Costs.Loss = *o.Loss
	}
	return prob
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "%s does not exist", path)
	}
	return f, err
}
