package cache

// ScopedKeyer wraps a Keyer with a prefix so several tenants can share one
// backend without seeing each other's entries.
//
//	apiKeyer := NewScopedKeyer(NewDefaultKeyer(), "api:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// OffsetKey generates a prefixed key for offset caching.
func (k *ScopedKeyer) OffsetKey(digestA, digestB string, opts OffsetKeyOpts) string {
	return k.prefix + k.inner.OffsetKey(digestA, digestB, opts)
}
