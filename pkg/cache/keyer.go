package cache

// Keyer derives cache keys for the results of each engine.
type Keyer interface {
	GraphKey(problemHash string) string
	HistogramKey(graphHash string) string
	RegionsKey(problemHash string, opts RegionsKeyOpts) string
	StatsKey(problemHash string, opts StatsKeyOpts) string
}

// RegionsKeyOpts are the cost-region parameters that affect the result.
// The problem's own transfer and duplication costs are ignored by the
// engine, so callers should hash the problem with those zeroed.
type RegionsKeyOpts struct {
	TransferMin    float64 `json:"transfer_min"`
	TransferMax    float64 `json:"transfer_max"`
	DuplicationMin float64 `json:"duplication_min"`
	DuplicationMax float64 `json:"duplication_max"`
}

// StatsKeyOpts are the p-value parameters that affect the result.
type StatsKeyOpts struct {
	Trials int    `json:"trials"`
	Seed   uint64 `json:"seed"`
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// GraphKey keys a reconciliation graph.
func (DefaultKeyer) GraphKey(problemHash string) string {
	return hashKey("graph", problemHash)
}

// HistogramKey keys a self-distance histogram.
func (DefaultKeyer) HistogramKey(graphHash string) string {
	return hashKey("histogram", graphHash)
}

// RegionsKey keys a cost-region partition.
func (DefaultKeyer) RegionsKey(problemHash string, opts RegionsKeyOpts) string {
	return hashKey("regions", problemHash, opts)
}

// StatsKey keys a p-value computation.
func (DefaultKeyer) StatsKey(problemHash string, opts StatsKeyOpts) string {
	return hashKey("stats", problemHash, opts)
}
