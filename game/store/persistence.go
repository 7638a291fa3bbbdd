package store

import (
	"sort"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

// Persistence defines how game snapshots are written outside the process
type Persistence interface {
	// Save persists a game and its players
	Save(snap *Snapshot) error

	// Load retrieves a snapshot by game ID
	Load(gameID string) (*Snapshot, error)

	// Delete removes a snapshot
	Delete(gameID string) error

	// ListAll returns all persisted game IDs
	ListAll() ([]string, error)

	// Exists checks if a snapshot exists
	Exists(gameID string) bool
}

// Snapshot is the persisted form of one game
type Snapshot struct {
	Game    *service.Game     `json:"game"`
	Players []*service.Player `json:"players"`
	SavedAt time.Time         `json:"saved_at"`
}

func cloneGame(g *service.Game) *service.Game {
	cp := *g
	return &cp
}

func clonePlayer(p *service.Player) *service.Player {
	cp := *p
	cp.Board = cloneFleet(p.Board)
	cp.Shots = append([]engine.Shot{}, p.Shots...)
	return &cp
}

func cloneFleet(fleet engine.Fleet) engine.Fleet {
	out := make(engine.Fleet, len(fleet))
	for i, ship := range fleet {
		out[i] = ship
		out[i].Positions = append([]engine.Coordinate(nil), ship.Positions...)
	}
	return out
}

// sortPlayers orders players by seat
func sortPlayers(players []*service.Player) {
	sort.Slice(players, func(i, j int) bool { return players[i].Slot < players[j].Slot })
}
