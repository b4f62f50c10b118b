// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"sort"
	"sync"
)

// Cache keeps the latest Sample per rigid body id. Writers are streaming
// callbacks, readers are user commands; both go through the lock so a reader
// never sees a position from one callback and an orientation from another.
type Cache struct {
	mu      sync.RWMutex
	samples map[int]Sample
}

func NewCache() *Cache {
	return &Cache{samples: make(map[int]Sample)}
}

// Put replaces the slot for s.ID.
func (c *Cache) Put(s Sample) {
	c.mu.Lock()
	c.samples[s.ID] = s
	c.mu.Unlock()
}

// Latest returns the most recent sample for id.
func (c *Cache) Latest(id int) (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.samples[id]
	return s, ok
}

// IDs lists the rigid bodies seen so far in ascending order.
func (c *Cache) IDs() []int {
	c.mu.RLock()
	ids := make([]int, 0, len(c.samples))
	for id := range c.samples {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Ints(ids)
	return ids
}
