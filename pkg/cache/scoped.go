package cache

// ScopedKeyer prefixes every key of an inner Keyer, giving callers that
// share a backend separate namespaces.
//
//	k := NewScopedKeyer(NewDefaultKeyer(), "v2:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) GraphKey(problemHash string) string {
	return k.prefix + k.inner.GraphKey(problemHash)
}

func (k *ScopedKeyer) HistogramKey(graphHash string) string {
	return k.prefix + k.inner.HistogramKey(graphHash)
}

func (k *ScopedKeyer) RegionsKey(problemHash string, opts RegionsKeyOpts) string {
	return k.prefix + k.inner.RegionsKey(problemHash, opts)
}

func (k *ScopedKeyer) StatsKey(problemHash string, opts StatsKeyOpts) string {
	return k.prefix + k.inner.StatsKey(problemHash, opts)
}
