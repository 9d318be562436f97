package nemweb

import "sync"

// fileCache is a single-entry parse cache for one feed. NEMWEB replaces each
// report with a newer file rather than mutating it, so caching only the most
// recent filename is enough to guarantee a file is never downloaded or
// parsed twice.
type fileCache[T any] struct {
	mu       sync.Mutex
	filename string
	result   T
}

// Observe reports whether filename differs from the cached entry. When it
// does not, the cached parse result is returned and the caller must not
// re-download.
func (c *fileCache[T]) Observe(filename string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if filename != "" && filename == c.filename {
		return c.result, false
	}
	var zero T
	return zero, true
}

// Store replaces the cache with the parse result for filename.
func (c *fileCache[T]) Store(filename string, result T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filename = filename
	c.result = result
}
