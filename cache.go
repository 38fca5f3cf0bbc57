package enqueue

// cacheKind tags what a cached lookup describes.
type cacheKind int

const (
	cacheEnvironment cacheKind = iota + 1
	cacheURLPath
	cacheFingerprint
)

func (k cacheKind) String() string {
	switch k {
	case cacheEnvironment:
		return "environment"
	case cacheURLPath:
		return "url_path"
	case cacheFingerprint:
		return "fingerprint"
	default:
		return "unknown"
	}
}

type cacheKey struct {
	kind cacheKind
	arg  string
}

type cacheEntry struct {
	value string
	ok    bool
}

// RequestCache memoizes environment and filesystem lookups for the lifetime
// of one host request.
type RequestCache struct {
	entries map[cacheKey]cacheEntry
	hits    int
	misses  int
}

// NewRequestCache returns an empty cache.
func NewRequestCache() *RequestCache {
	return &RequestCache{entries: map[cacheKey]cacheEntry{}}
}

func (c *RequestCache) remember(kind cacheKind, arg string, load func() (string, bool)) (string, bool) {
	key := cacheKey{kind: kind, arg: arg}
	if entry, ok := c.entries[key]; ok {
		c.hits++
		return entry.value, entry.ok
	}
	c.misses++
	value, ok := load()
	if c.entries == nil {
		c.entries = map[cacheKey]cacheEntry{}
	}
	c.entries[key] = cacheEntry{value: value, ok: ok}
	return value, ok
}

// Clear drops every memoized lookup.
func (c *RequestCache) Clear() {
	c.entries = map[cacheKey]cacheEntry{}
	c.hits = 0
	c.misses = 0
}

// Len reports how many lookups are memoized.
func (c *RequestCache) Len() int {
	return len(c.entries)
}

// Stats reports hit and miss counts since the last Clear.
func (c *RequestCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
