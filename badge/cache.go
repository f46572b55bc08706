package badge

import "sync"

// Badge references one version of a badge set, as sent along with a chat message.
type Badge struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Mapping maps a badge set id to its versions and the image URL of each version.
type Mapping map[string]map[string]string

// Lookup returns the image URL for id and version. Missing entries on either level are reported
// with ok == false, never with a panic.
func (m Mapping) Lookup(id, version string) (string, bool) {
	versions, ok := m[id]
	if !ok {
		return "", false
	}

	url, ok := versions[version]
	if !ok || url == "" {
		return "", false
	}

	return url, true
}

// Cache holds the process wide badge mapping. The mapping is only ever replaced as a whole,
// a Mapping handed to Replace must not be modified afterwards.
type Cache struct {
	l       *sync.RWMutex
	mapping Mapping
}

func NewCache() *Cache {
	return &Cache{
		l:       &sync.RWMutex{},
		mapping: Mapping{},
	}
}

// Replace swaps the current mapping for m. A nil mapping resets the cache to empty.
func (c *Cache) Replace(m Mapping) {
	if m == nil {
		m = Mapping{}
	}

	c.l.Lock()
	c.mapping = m
	c.l.Unlock()
}

// Mapping returns the current mapping. The result is shared and must be treated as read only.
func (c *Cache) Mapping() Mapping {
	c.l.RLock()
	defer c.l.RUnlock()

	return c.mapping
}

func (c *Cache) Len() int {
	c.l.RLock()
	defer c.l.RUnlock()

	return len(c.mapping)
}
