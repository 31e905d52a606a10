package api

import (
	"time"

	"github.com/matzehuels/mprscape/pkg/buildinfo"
	"github.com/matzehuels/mprscape/pkg/costregion"
	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/pipeline"
	"github.com/matzehuels/mprscape/pkg/recon/diameter"
	"github.com/matzehuels/mprscape/pkg/stats"
)

// Request is the body of every engine endpoint.
type Request struct {
	Problem mio.ProblemDoc   `json:"problem"`
	Options pipeline.Options `json:"options"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Code is the engine error code, such as STRUCTURAL or INVALID_COST.
	Code   string `json:"code,omitempty"`
	Status int    `json:"status"`
}

// HealthResponse reports liveness and build information.
type HealthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
	Uptime string         `json:"uptime"`
	Time   time.Time      `json:"time"`
}

// ReconcileResponse describes the reconciliation graph of a problem.
type ReconcileResponse struct {
	RunID       string       `json:"run_id"`
	ProblemHash string       `json:"problem_hash"`
	MinCost     float64      `json:"min_cost"`
	Count       string       `json:"count"`
	Nodes       int          `json:"nodes"`
	Events      int          `json:"events"`
	CacheHit    bool         `json:"cache_hit"`
	Graph       mio.GraphDoc `json:"graph"`
}

// MedianResponse holds a median reconciliation.
type MedianResponse struct {
	RunID          string                `json:"run_id"`
	Reconciliation mio.ReconciliationDoc `json:"reconciliation"`
}

// SampleResponse holds uniformly drawn reconciliations.
type SampleResponse struct {
	RunID           string                  `json:"run_id"`
	Reconciliations []mio.ReconciliationDoc `json:"reconciliations"`
}

// HistogramResponse holds the pairwise distance histogram.
type HistogramResponse struct {
	RunID     string              `json:"run_id"`
	Histogram *diameter.Histogram `json:"histogram"`
	Diameter  int                 `json:"diameter"`
	Mean      float64             `json:"mean"`
	Pairs     string              `json:"pairs"`
}

// GroupResponse is one cluster.
type GroupResponse struct {
	Count        string              `json:"count"`
	MeanDistance float64             `json:"mean_distance"`
	Histogram    *diameter.Histogram `json:"histogram"`
	Graph        mio.GraphDoc        `json:"graph"`
}

// ClusterResponse holds a partition of the reconciliations.
type ClusterResponse struct {
	RunID                string          `json:"run_id"`
	Groups               []GroupResponse `json:"groups"`
	MeanDistance         float64         `json:"mean_distance"`
	WeightedMeanDistance float64         `json:"weighted_mean_distance"`
	// Improvement is omitted when groups have zero spread and the input
	// does not, which makes the ratio infinite.
	Improvement *float64 `json:"improvement,omitempty"`
}

// RegionsResponse holds the cost-space partition.
type RegionsResponse struct {
	RunID   string              `json:"run_id"`
	Rect    costregion.Rect     `json:"rect"`
	Regions []costregion.Region `json:"regions"`
}

// StatsResponse holds the tip-shuffling p-value.
type StatsResponse struct {
	RunID string `json:"run_id"`
	*stats.Result
}
