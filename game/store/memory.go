package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

// MemoryStore is a service.Store kept in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	games       map[string]*service.Game   // by ID
	codes       map[string]string          // code -> game ID
	players     map[string]*service.Player // by ID
	tokens      map[string]string          // token -> player ID
	persistence Persistence
	log         zerolog.Logger
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:   make(map[string]*service.Game),
		codes:   make(map[string]string),
		players: make(map[string]*service.Player),
		tokens:  make(map[string]string),
		log:     zerolog.Nop(),
		now:     time.Now,
	}
}

// NewMemoryStoreWithPersistence creates an in-memory store that snapshots
// every committed game through persistence
func NewMemoryStoreWithPersistence(persistence Persistence, logger zerolog.Logger) *MemoryStore {
	m := NewMemoryStore()
	m.persistence = persistence
	m.log = logger.With().Str("component", "store").Logger()
	return m
}

// Transact runs fn with exclusive access to the store. Writes become visible
// only if fn returns nil. Snapshots are written before the lock is released,
// so the file on disk always follows commit order.
func (m *MemoryStore) Transact(ctx context.Context, fn func(ctx context.Context, repo service.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newMemTx(m)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.persistLocked(m.snapshotsLocked(tx.commit()))
	return nil
}

// Repository methods outside a transaction run as a single-statement unit

func (m *MemoryStore) CreateGame(ctx context.Context, code string) (*service.Game, error) {
	var game *service.Game
	err := m.Transact(ctx, func(ctx context.Context, repo service.Repository) error {
		var err error
		game, err = repo.CreateGame(ctx, code)
		return err
	})
	return game, err
}

func (m *MemoryStore) CreatePlayer(ctx context.Context, gameID string, slot engine.Slot, name string) (*service.Player, error) {
	var player *service.Player
	err := m.Transact(ctx, func(ctx context.Context, repo service.Repository) error {
		var err error
		player, err = repo.CreatePlayer(ctx, gameID, slot, name)
		return err
	})
	return player, err
}

func (m *MemoryStore) GetGameByCode(ctx context.Context, code string) (*service.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.codes[code]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	return cloneGame(m.games[id]), nil
}

func (m *MemoryStore) GetGameByID(ctx context.Context, id string) (*service.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	return cloneGame(g), nil
}

func (m *MemoryStore) GetPlayerByToken(ctx context.Context, token string) (*service.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tokens[token]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	return clonePlayer(m.players[id]), nil
}

func (m *MemoryStore) GetPlayersByGame(ctx context.Context, gameID string) ([]*service.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playersOfLocked(gameID), nil
}

func (m *MemoryStore) UpdateGame(ctx context.Context, id string, update service.GameUpdate) error {
	return m.Transact(ctx, func(ctx context.Context, repo service.Repository) error {
		return repo.UpdateGame(ctx, id, update)
	})
}

func (m *MemoryStore) UpdatePlayer(ctx context.Context, id string, update service.PlayerUpdate) error {
	return m.Transact(ctx, func(ctx context.Context, repo service.Repository) error {
		return repo.UpdatePlayer(ctx, id, update)
	})
}

// PruneStale removes games, with their players and snapshots, that have not
// been updated since before
func (m *MemoryStore) PruneStale(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs error
	removed := 0
	for id, g := range m.games {
		if !g.UpdatedAt.Before(before) {
			continue
		}
		m.deleteGameLocked(id)
		removed++
		if m.persistence != nil && m.persistence.Exists(id) {
			errs = multierr.Append(errs, m.persistence.Delete(id))
		}
	}
	return removed, errs
}

// Count returns the number of stored games
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// LoadPersisted loads every snapshot into memory. Snapshots that fail to
// load are skipped and reported together.
func (m *MemoryStore) LoadPersisted() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs error
	loaded := 0
	for _, id := range ids {
		if _, exists := m.games[id]; exists {
			continue
		}
		snap, err := m.persistence.Load(id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		m.putGameLocked(snap.Game)
		for _, p := range snap.Players {
			m.putPlayerLocked(p)
		}
		loaded++
	}

	if loaded > 0 {
		m.log.Info().Int("games", loaded).Msg("loaded persisted games")
	}
	return errs
}

// SaveAll writes a snapshot of every game
func (m *MemoryStore) SaveAll() error {
	if m.persistence == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}

	var errs error
	for _, snap := range m.snapshotsLocked(ids) {
		errs = multierr.Append(errs, m.persistence.Save(snap))
	}
	return errs
}

func (m *MemoryStore) persistLocked(snaps []*Snapshot) {
	if m.persistence == nil {
		return
	}
	for _, snap := range snaps {
		if err := m.persistence.Save(snap); err != nil {
			m.log.Warn().Err(err).Str("game", snap.Game.Code).Msg("failed to persist game")
		}
	}
}

func (m *MemoryStore) snapshotsLocked(gameIDs []string) []*Snapshot {
	if m.persistence == nil {
		return nil
	}
	snaps := make([]*Snapshot, 0, len(gameIDs))
	for _, id := range gameIDs {
		g, ok := m.games[id]
		if !ok {
			continue
		}
		snaps = append(snaps, &Snapshot{
			Game:    cloneGame(g),
			Players: m.playersOfLocked(id),
			SavedAt: m.now(),
		})
	}
	return snaps
}

func (m *MemoryStore) playersOfLocked(gameID string) []*service.Player {
	var out []*service.Player
	for _, p := range m.players {
		if p.GameID == gameID {
			out = append(out, clonePlayer(p))
		}
	}
	sortPlayers(out)
	return out
}

func (m *MemoryStore) putGameLocked(g *service.Game) {
	m.games[g.ID] = g
	m.codes[g.Code] = g.ID
}

func (m *MemoryStore) putPlayerLocked(p *service.Player) {
	m.players[p.ID] = p
	m.tokens[p.Token] = p.ID
}

func (m *MemoryStore) deleteGameLocked(id string) {
	g, ok := m.games[id]
	if !ok {
		return
	}
	delete(m.codes, g.Code)
	delete(m.games, id)
	for pid, p := range m.players {
		if p.GameID == id {
			delete(m.tokens, p.Token)
			delete(m.players, pid)
		}
	}
}

// memTx stages writes on top of a locked MemoryStore
type memTx struct {
	m       *MemoryStore
	games   map[string]*service.Game
	players map[string]*service.Player
	dirty   map[string]bool // games written in this transaction
}

func newMemTx(m *MemoryStore) *memTx {
	return &memTx{
		m:       m,
		games:   make(map[string]*service.Game),
		players: make(map[string]*service.Player),
		dirty:   make(map[string]bool),
	}
}

func (tx *memTx) CreateGame(ctx context.Context, code string) (*service.Game, error) {
	if _, err := tx.GetGameByCode(ctx, code); err == nil {
		return nil, service.ErrCodeTaken
	}
	now := tx.m.now()
	g := &service.Game{
		ID:        uuid.NewString(),
		Code:      code,
		Status:    engine.StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx.games[g.ID] = g
	tx.dirty[g.ID] = true
	return cloneGame(g), nil
}

func (tx *memTx) CreatePlayer(ctx context.Context, gameID string, slot engine.Slot, name string) (*service.Player, error) {
	g, err := tx.game(gameID)
	if err != nil {
		return nil, err
	}
	p := &service.Player{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Slot:      slot,
		Name:      name,
		Token:     uuid.NewString(),
		Board:     engine.Fleet{},
		Shots:     []engine.Shot{},
		CreatedAt: tx.m.now(),
	}
	tx.players[p.ID] = p
	tx.touch(g)
	return clonePlayer(p), nil
}

func (tx *memTx) GetGameByCode(ctx context.Context, code string) (*service.Game, error) {
	for _, g := range tx.games {
		if g.Code == code {
			return cloneGame(g), nil
		}
	}
	id, ok := tx.m.codes[code]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	return tx.GetGameByID(ctx, id)
}

func (tx *memTx) GetGameByID(ctx context.Context, id string) (*service.Game, error) {
	g, err := tx.game(id)
	if err != nil {
		return nil, err
	}
	return cloneGame(g), nil
}

func (tx *memTx) GetPlayerByToken(ctx context.Context, token string) (*service.Player, error) {
	for _, p := range tx.players {
		if p.Token == token {
			return clonePlayer(p), nil
		}
	}
	id, ok := tx.m.tokens[token]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	p, err := tx.player(id)
	if err != nil {
		return nil, err
	}
	return clonePlayer(p), nil
}

func (tx *memTx) GetPlayersByGame(ctx context.Context, gameID string) ([]*service.Player, error) {
	seen := make(map[string]bool)
	var out []*service.Player
	for id, p := range tx.players {
		if p.GameID == gameID {
			seen[id] = true
			out = append(out, clonePlayer(p))
		}
	}
	for id, p := range tx.m.players {
		if p.GameID == gameID && !seen[id] {
			out = append(out, clonePlayer(p))
		}
	}
	sortPlayers(out)
	return out, nil
}

func (tx *memTx) UpdateGame(ctx context.Context, id string, update service.GameUpdate) error {
	g, err := tx.game(id)
	if err != nil {
		return err
	}
	update.Apply(g)
	tx.touch(g)
	return nil
}

func (tx *memTx) UpdatePlayer(ctx context.Context, id string, update service.PlayerUpdate) error {
	p, err := tx.player(id)
	if err != nil {
		return err
	}
	if update.Board != nil {
		board := cloneFleet(*update.Board)
		update.Board = &board
	}
	if update.Shots != nil {
		shots := append([]engine.Shot(nil), (*update.Shots)...)
		update.Shots = &shots
	}
	update.Apply(p)

	g, err := tx.game(p.GameID)
	if err != nil {
		return err
	}
	tx.touch(g)
	return nil
}

// game returns the staged copy of a game, staging it on first access
func (tx *memTx) game(id string) (*service.Game, error) {
	if g, ok := tx.games[id]; ok {
		return g, nil
	}
	g, ok := tx.m.games[id]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	staged := cloneGame(g)
	tx.games[id] = staged
	return staged, nil
}

func (tx *memTx) player(id string) (*service.Player, error) {
	if p, ok := tx.players[id]; ok {
		return p, nil
	}
	p, ok := tx.m.players[id]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	staged := clonePlayer(p)
	tx.players[id] = staged
	return staged, nil
}

func (tx *memTx) touch(g *service.Game) {
	g.UpdatedAt = tx.m.now()
	tx.dirty[g.ID] = true
}

// commit applies the records of written games and returns their IDs
func (tx *memTx) commit() []string {
	ids := make([]string, 0, len(tx.dirty))
	for id := range tx.dirty {
		tx.m.putGameLocked(tx.games[id])
		ids = append(ids, id)
	}
	for _, p := range tx.players {
		if tx.dirty[p.GameID] {
			tx.m.putPlayerLocked(p)
		}
	}
	return ids
}
