package cache

// ScopedKeyer wraps a Keyer with a prefix for isolation between package
// indexes. Two galleries can publish the same package id with different
// version lists; scoping by the index URL keeps their entries apart.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), Hash([]byte(galleryURL))[:12]+":")
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

// HTTPKey generates a prefixed key for registry response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}
