// Package pipeline runs the reconciliation engines with shared options,
// caching and instrumentation. The CLI and the HTTP API both go through a
// [Runner], so defaults, cache keys and log output are identical across
// entry points.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{Clusters: 3}
//	res, err := runner.Reconcile(ctx, prob, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	clusters, err := runner.Cluster(ctx, res.Graph, opts)
package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/mprscape/pkg/costregion"
	perrors "github.com/matzehuels/mprscape/pkg/errors"
	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/cluster"
	"github.com/matzehuels/mprscape/pkg/stats"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultSeed is the default random seed for sampling, medians and
	// p-value trials.
	DefaultSeed = uint64(42)

	// DefaultSamples is the default number of sampled reconciliations.
	DefaultSamples = 1

	// DefaultClusters is the default cluster count.
	DefaultClusters = 2

	// MaxSamples bounds a single sample request.
	MaxSamples = 100_000
)

var validate = validator.New()

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures every engine stage. Zero fields take defaults in
// [Options.SetDefaults]. Options can be loaded from TOML or YAML config
// files with [LoadOptions].
type Options struct {
	Duplication *float64 `json:"duplication,omitempty" toml:"duplication,omitempty" yaml:"duplication,omitempty"`
	Transfer    *float64 `json:"transfer,omitempty" toml:"transfer,omitempty" yaml:"transfer,omitempty"`
	Loss        *float64 `json:"loss,omitempty" toml:"loss,omitempty" yaml:"loss,omitempty"`

	Workers int    `json:"workers,omitempty" toml:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0,lte=1024"`
	Seed    uint64 `json:"seed,omitempty" toml:"seed,omitempty" yaml:"seed,omitempty"`
	Samples int    `json:"samples,omitempty" toml:"samples,omitempty" yaml:"samples,omitempty" validate:"gte=0,lte=100000"`

	Clusters   int `json:"clusters,omitempty" toml:"clusters,omitempty" yaml:"clusters,omitempty" validate:"gte=0"`
	Splits     int `json:"splits,omitempty" toml:"splits,omitempty" yaml:"splits,omitempty" validate:"gte=0,lte=4096"`
	Candidates int `json:"candidates,omitempty" toml:"candidates,omitempty" yaml:"candidates,omitempty" validate:"gte=0,lte=1024"`

	Region costregion.Rect `json:"region" toml:"region" yaml:"region"`

	Trials int `json:"trials,omitempty" toml:"trials,omitempty" yaml:"trials,omitempty" validate:"gte=0,lte=100000"`

	// Refresh bypasses cache reads; results are still written.
	Refresh bool `json:"refresh,omitempty" toml:"refresh,omitempty" yaml:"refresh,omitempty"`

	Logger *log.Logger `json:"-" toml:"-" yaml:"-" validate:"-"`
}

// SetDefaults fills zero-valued fields.
func (o *Options) SetDefaults() {
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Samples == 0 {
		o.Samples = DefaultSamples
	}
	if o.Clusters == 0 {
		o.Clusters = DefaultClusters
	}
	if o.Splits == 0 {
		o.Splits = cluster.DefaultSplits
	}
	if o.Candidates == 0 {
		o.Candidates = cluster.DefaultCandidates
	}
	if o.Region == (costregion.Rect{}) {
		o.Region = costregion.DefaultRect()
	}
	if o.Trials == 0 {
		o.Trials = stats.DefaultTrials
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks ranges with struct tags, the cost rectangle and any
// explicit event costs. Range failures are INVALID_INPUT errors naming the
// first offending field.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return formatValidationError(err)
	}
	if o.Region != (costregion.Rect{}) {
		if err := o.Region.Validate(); err != nil {
			return err
		}
	}
	// Unset costs stand in as zero, which is always valid.
	var c recon.Costs
	for _, f := range []struct {
		dst *float64
		src *float64
	}{{&c.Duplication, o.Duplication}, {&c.Transfer, o.Transfer}, {&c.Loss, o.Loss}} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return c.Validate()
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "invalid options")
	}
	e := verrs[0]
	switch e.Tag() {
	case "gte":
		return perrors.New(perrors.ErrCodeInvalidInput, "%s: must be at least %s", e.Field(), e.Param())
	case "lte":
		return perrors.New(perrors.ErrCodeInvalidInput, "%s: must not exceed %s", e.Field(), e.Param())
	default:
		return perrors.New(perrors.ErrCodeInvalidInput, "%s: validation failed (%s)", e.Field(), e.Tag())
	}
}

// Merge overlays the non-zero fields of o onto base. CLI flags use this to
// override a config file.
func (o Options) Merge(base Options) Options {
	out := base
	if o.Duplication != nil {
		out.Duplication = o.Duplication
	}
	if o.Transfer != nil {
		out.Transfer = o.Transfer
	}
	if o.Loss != nil {
		out.Loss = o.Loss
	}
	if o.Workers != 0 {
		out.Workers = o.Workers
	}
	if o.Seed != 0 {
		out.Seed = o.Seed
	}
	if o.Samples != 0 {
		out.Samples = o.Samples
	}
	if o.Clusters != 0 {
		out.Clusters = o.Clusters
	}
	if o.Splits != 0 {
		out.Splits = o.Splits
	}
	if o.Candidates != 0 {
		out.Candidates = o.Candidates
	}
	if o.Region != (costregion.Rect{}) {
		out.Region = o.Region
	}
	if o.Trials != 0 {
		out.Trials = o.Trials
	}
	out.Refresh = out.Refresh || o.Refresh
	if o.Logger != nil {
		out.Logger = o.Logger
	}
	return out
}

// LoadOptions reads options from a TOML, YAML or JSON file.
func LoadOptions(path string) (Options, error) {
	f, err := mio.FormatOf(path)
	if err != nil {
		return Options{}, err
	}
	if err := perrors.ValidatePath(path); err != nil {
		return Options{}, err
	}
	file, err := openFile(path)
	if err != nil {
		return Options{}, err
	}
	defer file.Close()

	var o Options
	if err := mio.Decode(file, f, &o); err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}
