package main

import (
	"math/rand/v2"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

var directions = []engine.Coordinate{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

// HuntTarget fires on a checkerboard until it hits, then works outward from
// unresolved hits until the ship sinks
type HuntTarget struct {
	rng   *rand.Rand
	fired map[engine.Coordinate]bool

	// Hits not yet attributed to a sunk ship, oldest first
	open []engine.Coordinate
}

// NewHuntTarget creates a strategy. A nil rng uses the package-level source.
func NewHuntTarget(rng *rand.Rand) *HuntTarget {
	return &HuntTarget{
		rng:   rng,
		fired: make(map[engine.Coordinate]bool),
	}
}

// Resume rebuilds the fired set from an existing shot history
func (s *HuntTarget) Resume(shots []engine.Shot) {
	for _, shot := range shots {
		s.fired[shot.Coordinate()] = true
	}
}

// Observe records the outcome of a shot. sunk is the name of the ship the
// shot sank, if any.
func (s *HuntTarget) Observe(target engine.Coordinate, hit bool, sunk string) {
	s.fired[target] = true
	if !hit {
		return
	}
	s.open = append(s.open, target)
	if sunk != "" {
		s.resolve(target, shipSize(sunk))
	}
}

// Next returns the next cell to fire at, or false when the board is exhausted
func (s *HuntTarget) Next() (engine.Coordinate, bool) {
	if c, ok := s.target(); ok {
		return c, true
	}
	return s.hunt()
}

// target extends a line of open hits, falling back to any open neighbour
func (s *HuntTarget) target() (engine.Coordinate, bool) {
	openSet := s.openSet()

	for i := len(s.open) - 1; i >= 0; i-- {
		hit := s.open[i]
		for _, d := range directions {
			if !openSet[engine.Coordinate{X: hit.X - d.X, Y: hit.Y - d.Y}] {
				continue
			}
			// hit has an open neighbour behind it: keep going along the line
			next := engine.Coordinate{X: hit.X + d.X, Y: hit.Y + d.Y}
			if s.available(next) {
				return next, true
			}
		}
	}

	for i := len(s.open) - 1; i >= 0; i-- {
		hit := s.open[i]
		for _, d := range directions {
			next := engine.Coordinate{X: hit.X + d.X, Y: hit.Y + d.Y}
			if s.available(next) {
				return next, true
			}
		}
	}
	return engine.Coordinate{}, false
}

// hunt picks a random unfired checkerboard cell, then any unfired cell
func (s *HuntTarget) hunt() (engine.Coordinate, bool) {
	var parity, rest []engine.Coordinate
	for y := 0; y < engine.BoardSize; y++ {
		for x := 0; x < engine.BoardSize; x++ {
			c := engine.Coordinate{X: x, Y: y}
			if s.fired[c] {
				continue
			}
			if (x+y)%2 == 0 {
				parity = append(parity, c)
			} else {
				rest = append(rest, c)
			}
		}
	}

	pool := parity
	if len(pool) == 0 {
		pool = rest
	}
	if len(pool) == 0 {
		return engine.Coordinate{}, false
	}
	return pool[s.intN(len(pool))], true
}

// resolve drops the cells of a just-sunk ship from the open hits. The ship
// lies on the longest run of open hits through last.
func (s *HuntTarget) resolve(last engine.Coordinate, size int) {
	openSet := s.openSet()

	var best []engine.Coordinate
	for _, axis := range []engine.Coordinate{{X: 1}, {Y: 1}} {
		run := []engine.Coordinate{last}
		for _, sign := range []int{1, -1} {
			c := last
			for {
				c = engine.Coordinate{X: c.X + sign*axis.X, Y: c.Y + sign*axis.Y}
				if !openSet[c] {
					break
				}
				run = append(run, c)
			}
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if size > 0 && len(best) > size {
		best = best[:size]
	}

	sunk := make(map[engine.Coordinate]bool, len(best))
	for _, c := range best {
		sunk[c] = true
	}
	remaining := s.open[:0]
	for _, c := range s.open {
		if !sunk[c] {
			remaining = append(remaining, c)
		}
	}
	s.open = remaining
}

func (s *HuntTarget) openSet() map[engine.Coordinate]bool {
	set := make(map[engine.Coordinate]bool, len(s.open))
	for _, c := range s.open {
		set[c] = true
	}
	return set
}

func (s *HuntTarget) available(c engine.Coordinate) bool {
	return c.InBounds() && !s.fired[c]
}

func (s *HuntTarget) intN(n int) int {
	if s.rng != nil {
		return s.rng.IntN(n)
	}
	return rand.IntN(n)
}

func shipSize(name string) int {
	for _, class := range engine.StandardFleet {
		if class.Name == name {
			return class.Size
		}
	}
	return 0
}
