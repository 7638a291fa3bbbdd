package service

import (
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

// JoinResult is returned when a player takes a seat in a game
type JoinResult struct {
	GameCode    string        `json:"gameCode"`
	GameID      string        `json:"gameId"`
	PlayerToken string        `json:"playerToken"`
	Player      engine.Slot   `json:"player"`
	Status      engine.Status `json:"status"`
}

// GameSummary is the public part of a game record
type GameSummary struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	Status      engine.Status `json:"status"`
	CurrentTurn engine.Slot   `json:"current_turn,omitempty"`
	Winner      engine.Slot   `json:"winner,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PlayerView is what a player sees of themselves
type PlayerView struct {
	Name  string        `json:"name"`
	Slot  engine.Slot   `json:"player"`
	Board engine.Fleet  `json:"board"`
	Shots []engine.Shot `json:"shots"`
	Ready bool          `json:"ready"`
}

// OpponentView is what a player sees of the other seat. It never carries
// the opponent's ship positions.
type OpponentView struct {
	Name      string        `json:"name"`
	Slot      engine.Slot   `json:"player"`
	Shots     []engine.Shot `json:"shots"`
	Ready     bool          `json:"ready"`
	ShipsSunk int           `json:"shipsSunk"`
	SunkShips []string      `json:"sunkShips"`
}

// GameStateView is a single player's view of a game
type GameStateView struct {
	Game       GameSummary   `json:"game"`
	You        PlayerView    `json:"you"`
	Opponent   *OpponentView `json:"opponent"`
	IsYourTurn bool          `json:"isYourTurn"`
}

// PlaceResult reports the game status after a fleet was placed
type PlaceResult struct {
	Status  engine.Status `json:"status"`
	Started bool          `json:"started"`
}

// FireResult is the outcome of a shot. Sunk and Winner are null unless set.
type FireResult struct {
	X           int          `json:"x"`
	Y           int          `json:"y"`
	Hit         bool         `json:"hit"`
	Sunk        *string      `json:"sunk"`
	GameOver    bool         `json:"gameOver"`
	Winner      *engine.Slot `json:"winner"`
	Shooter     engine.Slot  `json:"shooter"`
	CurrentTurn engine.Slot  `json:"currentTurn"`
}

func summarize(g *Game) GameSummary {
	return GameSummary{
		ID:          g.ID,
		Code:        g.Code,
		Status:      g.Status,
		CurrentTurn: g.CurrentTurn,
		Winner:      g.Winner,
		CreatedAt:   g.CreatedAt,
	}
}
