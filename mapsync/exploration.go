// Package mapsync keeps shared map-exploration progress and periodically
// hands it to durable storage.
package mapsync

import (
	"cmp"
	"slices"
	"sync"
)

// Tile is one explored map cell.
type Tile struct {
	X int
	Y int
}

// Exploration is the shared map-exploration state. The host's main loop marks
// tiles while the sync task snapshots them from its own goroutine.
type Exploration struct {
	size int

	mu       sync.RWMutex
	explored map[Tile]struct{}
}

// NewExploration creates an empty grid of size x size tiles.
func NewExploration(size int) *Exploration {
	return &Exploration{size: size, explored: make(map[Tile]struct{})}
}

// Size returns the grid edge length.
func (e *Exploration) Size() int {
	return e.size
}

func (e *Exploration) inBounds(t Tile) bool {
	return t.X >= 0 && t.Y >= 0 && t.X < e.size && t.Y < e.size
}

// Explore marks a tile and reports whether it was newly explored.
func (e *Exploration) Explore(x, y int) bool {
	t := Tile{X: x, Y: y}
	if !e.inBounds(t) {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.explored[t]; exists {
		return false
	}
	e.explored[t] = struct{}{}
	return true
}

// IsExplored reports whether a tile has been explored.
func (e *Exploration) IsExplored(x, y int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, exists := e.explored[Tile{X: x, Y: y}]
	return exists
}

// Len returns the number of explored tiles.
func (e *Exploration) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.explored)
}

// Snapshot returns a point-in-time copy of the explored tiles, row-major.
func (e *Exploration) Snapshot() []Tile {
	e.mu.RLock()
	tiles := make([]Tile, 0, len(e.explored))
	for t := range e.explored {
		tiles = append(tiles, t)
	}
	e.mu.RUnlock()

	slices.SortFunc(tiles, func(a, b Tile) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	return tiles
}

// Merge marks every in-bounds tile and returns how many were new.
func (e *Exploration) Merge(tiles []Tile) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	for _, t := range tiles {
		if !e.inBounds(t) {
			continue
		}
		if _, exists := e.explored[t]; !exists {
			e.explored[t] = struct{}{}
			added++
		}
	}
	return added
}
