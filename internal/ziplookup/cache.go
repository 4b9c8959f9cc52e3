package ziplookup

import "sync"

// CityState is a lookup key. State holds the full state name.
type CityState struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// Cache memoizes resolved postal codes for the lifetime of one run. It is
// never persisted and only successful lookups are stored.
type Cache struct {
	mu     sync.Mutex
	data   map[CityState]string
	hits   int
	misses int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{data: make(map[CityState]string)}
}

// Get returns the cached code for key.
func (c *Cache) Get(key CityState) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	zip, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return zip, ok
}

// Set stores zip for key.
func (c *Cache) Set(key CityState, zip string) {
	c.mu.Lock()
	c.data[key] = zip
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Hits returns the number of Get calls that found an entry.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Misses returns the number of Get calls that found nothing.
func (c *Cache) Misses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}
