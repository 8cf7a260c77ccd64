package render

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"
)

// Cache keeps rendered fragments keyed by a hash of their inputs so
// replaying history or re-rendering after an axis edit does not re-run
// sanitizers and markdown conversion.
type Cache struct {
	c *gocache.Cache
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, 2*ttl)}
}

// Key hashes the render inputs.
func (c *Cache) Key(domainName, containerID, label string, content json.RawMessage) string {
	d := xxhash.New()
	d.WriteString(domainName)
	d.WriteString("\x00")
	d.WriteString(containerID)
	d.WriteString("\x00")
	d.WriteString(label)
	d.WriteString("\x00")
	d.Write(content)
	return strconv.FormatUint(d.Sum64(), 16)
}

func (c *Cache) Get(key string) (Fragment, bool) {
	v, ok := c.c.Get(key)
	if !ok {
		return Fragment{}, false
	}
	f, ok := v.(Fragment)
	return f, ok
}

func (c *Cache) Set(key string, f Fragment) {
	c.c.Set(key, f, gocache.DefaultExpiration)
}

// Len returns the number of cached fragments, including expired ones not
// yet swept.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}

// Flush drops every cached fragment.
func (c *Cache) Flush() {
	c.c.Flush()
}
