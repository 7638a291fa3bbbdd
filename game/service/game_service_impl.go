package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

const (
	// codeAlphabet leaves out I, O, 0 and 1
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6

	// maxCodeAttempts bounds retries when a generated code is already taken
	maxCodeAttempts = 10
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	store   Store
	log     zerolog.Logger
	newCode func() (string, error)
}

// Option customizes a GameService
type Option func(*gameServiceImpl)

// WithCodeGenerator replaces the join code generator
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *gameServiceImpl) {
		s.newCode = gen
	}
}

// NewGameService creates a new game service backed by store
func NewGameService(store Store, logger zerolog.Logger, opts ...Option) GameService {
	s := &gameServiceImpl{
		store:   store,
		log:     logger.With().Str("component", "game_service").Logger(),
		newCode: GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCode returns a random join code
func GenerateCode() (string, error) {
	base := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// NormalizeCode upper-cases a user supplied join code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateGame opens a new game and seats the caller as player1
func (s *gameServiceImpl) CreateGame(ctx context.Context, playerName string) (*JoinResult, error) {
	const op = "create_game"

	name := strings.TrimSpace(playerName)
	if name == "" {
		return nil, newError(KindInvalidInput, op, "Player name is required")
	}

	var game *Game
	var player *Player
	err := s.store.Transact(ctx, func(ctx context.Context, repo Repository) error {
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			code, err := s.newCode()
			if err != nil {
				return upstream(op, "Failed to generate game code", err)
			}
			game, err = repo.CreateGame(ctx, code)
			if errors.Is(err, ErrCodeTaken) {
				continue
			}
			if err != nil {
				return upstream(op, "Failed to create game", err)
			}
			break
		}
		if game == nil {
			return upstream(op, "Failed to create game", ErrCodeTaken)
		}

		var err error
		player, err = repo.CreatePlayer(ctx, game.ID, engine.Player1, name)
		if err != nil {
			return upstream(op, "Failed to create player", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("game", game.Code).Str("player", name).Msg("game created")

	return &JoinResult{
		GameCode:    game.Code,
		GameID:      game.ID,
		PlayerToken: player.Token,
		Player:      player.Slot,
		Status:      game.Status,
	}, nil
}

// JoinGame seats the caller as player2 and moves the game to placing
func (s *gameServiceImpl) JoinGame(ctx context.Context, code, playerName string) (*JoinResult, error) {
	const op = "join_game"

	name := strings.TrimSpace(playerName)
	if name == "" {
		return nil, newError(KindInvalidInput, op, "Player name is required")
	}
	code = NormalizeCode(code)

	var game *Game
	var player *Player
	err := s.store.Transact(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		game, err = repo.GetGameByCode(ctx, code)
		if errors.Is(err, ErrRecordNotFound) {
			return newError(KindNotFound, op, "Game not found")
		}
		if err != nil {
			return upstream(op, "Failed to load game", err)
		}

		if game.Status != engine.StatusWaiting {
			return newError(KindInvalidState, op, "Game is not available to join")
		}

		players, err := repo.GetPlayersByGame(ctx, game.ID)
		if err != nil {
			return upstream(op, "Failed to fetch players", err)
		}
		if len(players) >= 2 {
			return newError(KindConflict, op, "Game is full")
		}

		player, err = repo.CreatePlayer(ctx, game.ID, engine.Player2, name)
		if err != nil {
			return upstream(op, "Failed to join game", err)
		}

		status := engine.StatusPlacing
		if err := repo.UpdateGame(ctx, game.ID, GameUpdate{Status: &status}); err != nil {
			return upstream(op, "Failed to update game", err)
		}
		game.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("game", game.Code).Str("player", name).Msg("player joined")

	return &JoinResult{
		GameCode:    game.Code,
		GameID:      game.ID,
		PlayerToken: player.Token,
		Player:      player.Slot,
		Status:      game.Status,
	}, nil
}

// Authenticate resolves a token to its player and game
func (s *gameServiceImpl) Authenticate(ctx context.Context, token string) (*Player, *Game, error) {
	const op = "authenticate"

	player, err := lookupPlayer(ctx, s.store, op, token)
	if err != nil {
		return nil, nil, err
	}
	game, err := lookupGame(ctx, s.store, op, player.GameID)
	if err != nil {
		return nil, nil, err
	}
	return player, game, nil
}

// GetGameState returns the caller's view of their game
func (s *gameServiceImpl) GetGameState(ctx context.Context, token string) (*GameStateView, error) {
	const op = "get_game_state"

	var view *GameStateView
	err := s.store.Transact(ctx, func(ctx context.Context, repo Repository) error {
		player, err := lookupPlayer(ctx, repo, op, token)
		if err != nil {
			return err
		}
		game, err := lookupGame(ctx, repo, op, player.GameID)
		if err != nil {
			return err
		}
		players, err := repo.GetPlayersByGame(ctx, game.ID)
		if err != nil {
			return upstream(op, "Failed to fetch players", err)
		}

		view = &GameStateView{
			Game: summarize(game),
			You: PlayerView{
				Name:  player.Name,
				Slot:  player.Slot,
				Board: nonNilFleet(player.Board),
				Shots: nonNilShots(player.Shots),
				Ready: player.Ready,
			},
			IsYourTurn: game.Status == engine.StatusPlaying && game.CurrentTurn == player.Slot,
		}
		if opp := opponentOf(players, player); opp != nil {
			view.Opponent = &OpponentView{
				Name:      opp.Name,
				Slot:      opp.Slot,
				Shots:     nonNilShots(opp.Shots),
				Ready:     opp.Ready,
				ShipsSunk: engine.CountSunk(opp.Board, player.Shots),
				SunkShips: engine.SunkShips(opp.Board, player.Shots),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// PlaceShips stores the caller's fleet and starts the game once both
// players are ready
func (s *gameServiceImpl) PlaceShips(ctx context.Context, token string, fleet engine.Fleet) (*PlaceResult, error) {
	const op = "place_ships"

	var game *Game
	var player *Player
	result := &PlaceResult{}
	err := s.store.Transact(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		player, err = lookupPlayer(ctx, repo, op, token)
		if err != nil {
			return err
		}
		game, err = lookupGame(ctx, repo, op, player.GameID)
		if err != nil {
			return err
		}

		if game.Status != engine.StatusPlacing {
			return newError(KindInvalidState, op, "Cannot place ships at this time")
		}

		if err := engine.ValidatePlacement(fleet); err != nil {
			return &Error{Kind: KindInvalidInput, Op: op, Msg: err.Error(), Err: err}
		}

		board := cloneFleet(fleet)
		ready := true
		if err := repo.UpdatePlayer(ctx, player.ID, PlayerUpdate{Board: &board, Ready: &ready}); err != nil {
			return upstream(op, "Failed to save ships", err)
		}

		// Decide on committed state, not on what this call assumes
		players, err := repo.GetPlayersByGame(ctx, game.ID)
		if err != nil {
			return upstream(op, "Failed to fetch players", err)
		}
		result.Status = game.Status
		if !allReady(players) || !game.Status.CanAdvanceTo(engine.StatusPlaying) {
			return nil
		}

		status, turn := engine.StatusPlaying, engine.Player1
		if err := repo.UpdateGame(ctx, game.ID, GameUpdate{Status: &status, CurrentTurn: &turn}); err != nil {
			return upstream(op, "Failed to start game", err)
		}
		result.Status = status
		result.Started = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("game", game.Code).Str("player", string(player.Slot)).Msg("ships placed")
	if result.Started {
		s.log.Info().Str("game", game.Code).Msg("game started")
	}
	return result, nil
}

// Fire resolves a shot by the caller against the opponent's fleet
func (s *gameServiceImpl) Fire(ctx context.Context, token string, target engine.Coordinate) (*FireResult, error) {
	const op = "fire"

	var game *Game
	var result *FireResult
	err := s.store.Transact(ctx, func(ctx context.Context, repo Repository) error {
		player, err := lookupPlayer(ctx, repo, op, token)
		if err != nil {
			return err
		}
		if !target.InBounds() {
			return newError(KindInvalidInput, op, "Invalid coordinates")
		}
		game, err = lookupGame(ctx, repo, op, player.GameID)
		if err != nil {
			return err
		}

		if game.Status != engine.StatusPlaying {
			return newError(KindInvalidState, op, "Game is not in playing state")
		}
		if game.CurrentTurn != player.Slot {
			return newError(KindInvalidState, op, "Not your turn")
		}
		if engine.HasFired(player.Shots, target) {
			return newError(KindConflict, op, "Already fired at this position")
		}

		players, err := repo.GetPlayersByGame(ctx, game.ID)
		if err != nil {
			return upstream(op, "Failed to fetch players", err)
		}
		opponent := opponentOf(players, player)
		if opponent == nil {
			return newError(KindNotFound, op, "Opponent not found")
		}

		hit := engine.IsHit(opponent.Board, target)
		shots := make([]engine.Shot, 0, len(player.Shots)+1)
		shots = append(shots, player.Shots...)
		shots = append(shots, engine.Shot{X: target.X, Y: target.Y, Hit: hit})
		outcome := engine.Resolve(opponent.Board, shots, target)

		if err := repo.UpdatePlayer(ctx, player.ID, PlayerUpdate{Shots: &shots}); err != nil {
			return upstream(op, "Failed to record shot", err)
		}

		result = &FireResult{
			X:       target.X,
			Y:       target.Y,
			Hit:     outcome.Hit,
			Shooter: player.Slot,
		}
		if outcome.Sunk != "" {
			sunk := outcome.Sunk
			result.Sunk = &sunk
		}

		if outcome.AllSunk {
			status, winner := engine.StatusFinished, player.Slot
			if err := repo.UpdateGame(ctx, game.ID, GameUpdate{Status: &status, Winner: &winner}); err != nil {
				return upstream(op, "Failed to finish game", err)
			}
			result.GameOver = true
			result.Winner = &winner
			result.CurrentTurn = game.CurrentTurn
			return nil
		}

		next := player.Slot.Opponent()
		if err := repo.UpdateGame(ctx, game.ID, GameUpdate{CurrentTurn: &next}); err != nil {
			return upstream(op, "Failed to switch turns", err)
		}
		result.CurrentTurn = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := s.log.Debug()
	if result.GameOver {
		event = s.log.Info()
	}
	event.Str("game", game.Code).
		Str("shooter", string(result.Shooter)).
		Int("x", result.X).
		Int("y", result.Y).
		Bool("hit", result.Hit).
		Bool("game_over", result.GameOver).
		Msg("shot fired")

	return result, nil
}

func lookupPlayer(ctx context.Context, repo Repository, op, token string) (*Player, error) {
	if token == "" {
		return nil, newError(KindUnauthorized, op, "Player token required")
	}
	player, err := repo.GetPlayerByToken(ctx, token)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newError(KindUnauthorized, op, "Invalid player token")
	}
	if err != nil {
		return nil, upstream(op, "Failed to load player", err)
	}
	return player, nil
}

func lookupGame(ctx context.Context, repo Repository, op, id string) (*Game, error) {
	game, err := repo.GetGameByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newError(KindNotFound, op, "Game not found")
	}
	if err != nil {
		return nil, upstream(op, "Failed to load game", err)
	}
	return game, nil
}

func opponentOf(players []*Player, me *Player) *Player {
	for _, p := range players {
		if p.ID != me.ID {
			return p
		}
	}
	return nil
}

func allReady(players []*Player) bool {
	if len(players) != 2 {
		return false
	}
	for _, p := range players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func cloneFleet(fleet engine.Fleet) engine.Fleet {
	out := make(engine.Fleet, len(fleet))
	for i, ship := range fleet {
		out[i] = engine.Ship{
			Name:      ship.Name,
			Size:      ship.Size,
			Positions: append([]engine.Coordinate(nil), ship.Positions...),
		}
	}
	return out
}

func nonNilFleet(f engine.Fleet) engine.Fleet {
	if f == nil {
		return engine.Fleet{}
	}
	return f
}

func nonNilShots(s []engine.Shot) []engine.Shot {
	if s == nil {
		return []engine.Shot{}
	}
	return s
}
