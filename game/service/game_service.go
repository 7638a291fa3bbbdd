package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Lobby
	CreateGame(ctx context.Context, playerName string) (*JoinResult, error)
	JoinGame(ctx context.Context, code, playerName string) (*JoinResult, error)

	// Authenticate resolves a player token to its player and game
	Authenticate(ctx context.Context, token string) (*Player, *Game, error)

	// Game Operations
	PlaceShips(ctx context.Context, token string, fleet engine.Fleet) (*PlaceResult, error)
	Fire(ctx context.Context, token string, target engine.Coordinate) (*FireResult, error)

	// Game State
	GetGameState(ctx context.Context, token string) (*GameStateView, error)
}

// Repository is the persistence contract consumed by the service.
// Lookups that find nothing return ErrRecordNotFound.
type Repository interface {
	CreateGame(ctx context.Context, code string) (*Game, error)
	CreatePlayer(ctx context.Context, gameID string, slot engine.Slot, name string) (*Player, error)
	GetGameByCode(ctx context.Context, code string) (*Game, error)
	GetGameByID(ctx context.Context, id string) (*Game, error)
	GetPlayerByToken(ctx context.Context, token string) (*Player, error)
	GetPlayersByGame(ctx context.Context, gameID string) ([]*Player, error)
	UpdateGame(ctx context.Context, id string, update GameUpdate) error
	UpdatePlayer(ctx context.Context, id string, update PlayerUpdate) error
}

// Store is a Repository that can run a unit of work atomically. All writes
// made through the Repository passed to fn are applied together when fn
// returns nil and discarded otherwise. Units of work touching the same game
// never interleave.
type Store interface {
	Repository
	Transact(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Pruner is implemented by stores that can drop abandoned games
type Pruner interface {
	PruneStale(ctx context.Context, before time.Time) (int, error)
}

var (
	// ErrRecordNotFound is returned by Repository lookups that match nothing
	ErrRecordNotFound = errors.New("record not found")

	// ErrCodeTaken is returned by CreateGame when the code is already in use
	ErrCodeTaken = errors.New("game code already in use")
)

// Game is a stored game record
type Game struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	Status      engine.Status `json:"status"`
	CurrentTurn engine.Slot   `json:"current_turn,omitempty"`
	Winner      engine.Slot   `json:"winner,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Player is a stored player record. Token is the player's only credential.
type Player struct {
	ID        string        `json:"id"`
	GameID    string        `json:"game_id"`
	Slot      engine.Slot   `json:"player_number"`
	Name      string        `json:"name"`
	Token     string        `json:"token"`
	Board     engine.Fleet  `json:"board"`
	Shots     []engine.Shot `json:"shots"`
	Ready     bool          `json:"ready"`
	CreatedAt time.Time     `json:"created_at"`
}

// GameUpdate is a partial update of a game; nil fields are left unchanged
type GameUpdate struct {
	Status      *engine.Status
	CurrentTurn *engine.Slot
	Winner      *engine.Slot
}

// PlayerUpdate is a partial update of a player; nil fields are left unchanged
type PlayerUpdate struct {
	Board *engine.Fleet
	Shots *[]engine.Shot
	Ready *bool
}

// Apply copies the set fields onto g
func (u GameUpdate) Apply(g *Game) {
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.CurrentTurn != nil {
		g.CurrentTurn = *u.CurrentTurn
	}
	if u.Winner != nil {
		g.Winner = *u.Winner
	}
}

// Apply copies the set fields onto p
func (u PlayerUpdate) Apply(p *Player) {
	if u.Board != nil {
		p.Board = *u.Board
	}
	if u.Shots != nil {
		p.Shots = *u.Shots
	}
	if u.Ready != nil {
		p.Ready = *u.Ready
	}
}
