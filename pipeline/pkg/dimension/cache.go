package dimension

// CacheStats counts cache outcomes per dimension type.
type CacheStats struct {
	Hits   map[Type]int
	Misses map[Type]int
}

// Cache maps (type, encoded natural key) to an identifier. It is owned by
// one resolver for one run and is not safe for concurrent use.
type Cache struct {
	entries map[Type]map[string]ID
	hits    map[Type]int
	misses  map[Type]int
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[Type]map[string]ID),
		hits:    make(map[Type]int),
		misses:  make(map[Type]int),
	}
}

func (c *Cache) Get(t Type, key NaturalKey) (ID, bool) {
	id, ok := c.entries[t][key.Encode()]
	if ok {
		c.hits[t]++
	} else {
		c.misses[t]++
	}
	return id, ok
}

// Put stores a resolved identifier. None is never cached.
func (c *Cache) Put(t Type, key NaturalKey, id ID) {
	if !id.Valid() {
		return
	}
	m, ok := c.entries[t]
	if !ok {
		m = make(map[string]ID)
		c.entries[t] = m
	}
	m[key.Encode()] = id
}

// Len returns the number of cached entries of a type.
func (c *Cache) Len(t Type) int {
	return len(c.entries[t])
}

func (c *Cache) Stats() CacheStats {
	stats := CacheStats{Hits: make(map[Type]int, len(c.hits)), Misses: make(map[Type]int, len(c.misses))}
	for t, n := range c.hits {
		stats.Hits[t] = n
	}
	for t, n := range c.misses {
		stats.Misses[t] = n
	}
	return stats
}
