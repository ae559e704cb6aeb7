// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vram tracks which cached values occupy which sectors of the
// peripheral's video memory.
//
// The peripheral has a fixed number of sectors and no allocator of its own.
// The host decides where every upload goes, remembers what is resident, and
// reuses a resident copy instead of uploading the same content again. An
// upload that lands on sectors already in use evicts whatever lived there.
package vram

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoSpace is returned when a request cannot be satisfied even after
	// evicting every resident item.
	ErrNoSpace = errors.New("vram: no space")

	// ErrInvalidRange is returned for sector ranges outside the cache.
	ErrInvalidRange = errors.New("vram: invalid sector range")
)

// Item is one resident value and the sector range it occupies
type Item[K comparable] struct {
	First   int
	Sectors int
	Key     K

	// Hits counts lookups that found this item
	Hits uint64

	lastUsed uint64
}

// Last returns the last sector occupied by the item
func (i Item[K]) Last() int {
	return i.First + i.Sectors - 1
}

func (i *Item[K]) overlaps(first, last int) bool {
	return i.First <= last && first <= i.Last()
}

// Cache maps keys to sector ranges. Keys are compared with ==, so pointer
// keys give identity semantics. Ranges of resident items never overlap.
//
// A Cache is not safe for concurrent use; the owner serialises access.
type Cache[K comparable] struct {
	capacity int
	items    []*Item[K]
	clock    uint64
}

// New creates an empty cache with the given number of sectors
func New[K comparable](capacity int) *Cache[K] {
	return &Cache[K]{capacity: capacity}
}

// Capacity returns the total number of sectors
func (c *Cache[K]) Capacity() int {
	return c.capacity
}

// Len returns the number of resident items
func (c *Cache[K]) Len() int {
	return len(c.items)
}

// FreeSectors returns the number of sectors not covered by any item
func (c *Cache[K]) FreeSectors() int {
	used := 0
	for _, it := range c.items {
		used += it.Sectors
	}
	return c.capacity - used
}

// Reset forgets every resident item
func (c *Cache[K]) Reset() {
	c.items = nil
	c.clock = 0
}

func (c *Cache[K]) tick() uint64 {
	c.clock++
	return c.clock
}

// SectorOf returns the first sector of the item holding key. A hit counts
// as a use of the item.
func (c *Cache[K]) SectorOf(key K) (int, bool) {
	for _, it := range c.items {
		if it.Key == key {
			it.Hits++
			it.lastUsed = c.tick()
			return it.First, true
		}
	}
	return 0, false
}

// FreeChunk finds the lowest run of size free sectors. Whenever the proposed
// run collides with an item the search moves just past that item and
// rescans every item from the beginning.
func (c *Cache[K]) FreeChunk(size int) (int, bool) {
	if size <= 0 {
		return 0, false
	}
	start := 0
	for {
		end := start + size - 1
		if end >= c.capacity {
			return 0, false
		}
		collided := false
		for _, it := range c.items {
			if it.overlaps(start, end) {
				start = it.Last() + 1
				collided = true
				break
			}
		}
		if !collided {
			return start, true
		}
	}
}

// Add records key as resident in sectors [first, first+size). Items
// overlapping that range are evicted and returned, as is any older item
// with the same key.
func (c *Cache[K]) Add(first, size int, key K) ([]Item[K], error) {
	if size <= 0 || first < 0 || first+size > c.capacity {
		return nil, fmt.Errorf("%w: [%d, %d) outside [0, %d)", ErrInvalidRange, first, first+size, c.capacity)
	}
	last := first + size - 1

	var evicted []Item[K]
	kept := c.items[:0]
	for _, it := range c.items {
		if it.overlaps(first, last) || it.Key == key {
			evicted = append(evicted, *it)
			continue
		}
		kept = append(kept, it)
	}
	c.items = append(kept, &Item[K]{
		First:    first,
		Sectors:  size,
		Key:      key,
		lastUsed: c.tick(),
	})
	return evicted, nil
}

// Evict drops every item overlapping sectors [first, first+size), as when
// the sectors are overwritten outside the cache. The dropped items are
// returned.
func (c *Cache[K]) Evict(first, size int) []Item[K] {
	if size <= 0 {
		return nil
	}
	last := first + size - 1
	var evicted []Item[K]
	kept := c.items[:0]
	for _, it := range c.items {
		if it.overlaps(first, last) {
			evicted = append(evicted, *it)
			continue
		}
		kept = append(kept, it)
	}
	c.items = kept
	return evicted
}

// Remove drops the item holding key. Returns false if key is not resident.
func (c *Cache[K]) Remove(key K) bool {
	for i, it := range c.items {
		if it.Key == key {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// BestChunk finds room for size sectors when FreeChunk cannot, by evicting
// least recently used items until a free run appears. Ties go to the item
// with fewer hits, then the lower sector. The evicted items are returned.
func (c *Cache[K]) BestChunk(size int) (int, []Item[K], error) {
	if size <= 0 || size > c.capacity {
		return 0, nil, fmt.Errorf("%w: %d sectors requested, capacity %d", ErrNoSpace, size, c.capacity)
	}

	var evicted []Item[K]
	for {
		if first, ok := c.FreeChunk(size); ok {
			return first, evicted, nil
		}
		victim := c.leastRecentlyUsed()
		if victim < 0 {
			// Unreachable while size <= capacity, kept as a guard
			return 0, evicted, ErrNoSpace
		}
		evicted = append(evicted, *c.items[victim])
		c.items = append(c.items[:victim], c.items[victim+1:]...)
	}
}

func (c *Cache[K]) leastRecentlyUsed() int {
	victim := -1
	for i, it := range c.items {
		if victim < 0 {
			victim = i
			continue
		}
		v := c.items[victim]
		switch {
		case it.lastUsed != v.lastUsed:
			if it.lastUsed < v.lastUsed {
				victim = i
			}
		case it.Hits != v.Hits:
			if it.Hits < v.Hits {
				victim = i
			}
		case it.First < v.First:
			victim = i
		}
	}
	return victim
}

// Allocate places key in size sectors: a free run if one exists, otherwise
// room made by BestChunk. Returns the first sector and every evicted item.
func (c *Cache[K]) Allocate(size int, key K) (int, []Item[K], error) {
	first, ok := c.FreeChunk(size)
	var evicted []Item[K]
	if !ok {
		var err error
		first, evicted, err = c.BestChunk(size)
		if err != nil {
			return 0, evicted, err
		}
	}
	more, err := c.Add(first, size, key)
	if err != nil {
		return 0, evicted, err
	}
	return first, append(evicted, more...), nil
}

// Items returns a snapshot of the resident items ordered by first sector
func (c *Cache[K]) Items() []Item[K] {
	out := make([]Item[K], len(c.items))
	for i, it := range c.items {
		out[i] = *it
	}
	sort.Slice(out, func(i, j int) bool { return out[i].First < out[j].First })
	return out
}
