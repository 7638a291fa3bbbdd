package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

// MockStore implements service.Store for testing
type MockStore struct {
	mu      sync.Mutex
	games   map[string]*service.Game
	players map[string]*service.Player
	seq     int

	// FailUpdates makes every update return an error
	FailUpdates bool
}

func NewMockStore() *MockStore {
	return &MockStore{
		games:   make(map[string]*service.Game),
		players: make(map[string]*service.Player),
	}
}

func (m *MockStore) next(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_%d", prefix, m.seq)
}

func (m *MockStore) Transact(ctx context.Context, fn func(ctx context.Context, repo service.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m)
}

func (m *MockStore) CreateGame(ctx context.Context, code string) (*service.Game, error) {
	for _, g := range m.games {
		if g.Code == code {
			return nil, service.ErrCodeTaken
		}
	}
	g := &service.Game{ID: m.next("game"), Code: code, Status: engine.StatusWaiting, CreatedAt: time.Now()}
	m.games[g.ID] = g
	cp := *g
	return &cp, nil
}

func (m *MockStore) CreatePlayer(ctx context.Context, gameID string, slot engine.Slot, name string) (*service.Player, error) {
	p := &service.Player{ID: m.next("player"), GameID: gameID, Slot: slot, Name: name, Token: m.next("token")}
	m.players[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *MockStore) GetGameByCode(ctx context.Context, code string) (*service.Game, error) {
	for _, g := range m.games {
		if g.Code == code {
			cp := *g
			return &cp, nil
		}
	}
	return nil, service.ErrRecordNotFound
}

func (m *MockStore) GetGameByID(ctx context.Context, id string) (*service.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *MockStore) GetPlayerByToken(ctx context.Context, token string) (*service.Player, error) {
	for _, p := range m.players {
		if p.Token == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, service.ErrRecordNotFound
}

func (m *MockStore) GetPlayersByGame(ctx context.Context, gameID string) ([]*service.Player, error) {
	var out []*service.Player
	for _, p := range m.players {
		if p.GameID == gameID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateGame(ctx context.Context, id string, update service.GameUpdate) error {
	if m.FailUpdates {
		return errors.New("disk full")
	}
	g, ok := m.games[id]
	if !ok {
		return service.ErrRecordNotFound
	}
	update.Apply(g)
	return nil
}

func (m *MockStore) UpdatePlayer(ctx context.Context, id string, update service.PlayerUpdate) error {
	if m.FailUpdates {
		return errors.New("disk full")
	}
	p, ok := m.players[id]
	if !ok {
		return service.ErrRecordNotFound
	}
	update.Apply(p)
	return nil
}

func (m *MockStore) game(code string) *service.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.Code == code {
			return g
		}
	}
	return nil
}

// testFleet returns a valid fleet laid out in horizontal rows 0-4
func testFleet() engine.Fleet {
	fleet := make(engine.Fleet, 0, len(engine.StandardFleet))
	for row, class := range engine.StandardFleet {
		ship := engine.Ship{Name: class.Name, Size: class.Size}
		for x := 0; x < class.Size; x++ {
			ship.Positions = append(ship.Positions, engine.Coordinate{X: x, Y: row})
		}
		fleet = append(fleet, ship)
	}
	return fleet
}

func newTestService(t *testing.T) (service.GameService, *MockStore) {
	t.Helper()
	st := NewMockStore()
	return service.NewGameService(st, zerolog.Nop()), st
}

// startGame creates, joins and places both fleets
func startGame(t *testing.T, svc service.GameService) (p1, p2 *service.JoinResult) {
	t.Helper()
	ctx := context.Background()

	p1, err := svc.CreateGame(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	p2, err = svc.JoinGame(ctx, p1.GameCode, "Bob")
	if err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if _, err := svc.PlaceShips(ctx, p1.PlayerToken, testFleet()); err != nil {
		t.Fatalf("PlaceShips p1 failed: %v", err)
	}
	if _, err := svc.PlaceShips(ctx, p2.PlayerToken, testFleet()); err != nil {
		t.Fatalf("PlaceShips p2 failed: %v", err)
	}
	return p1, p2
}

func assertKind(t *testing.T, err error, expected service.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", expected)
	}
	if kind := service.KindOf(err); kind != expected {
		t.Errorf("Expected %s error, got %s (%v)", expected, kind, err)
	}
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := service.GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("Expected 6 character code, got %q", code)
		}
		if strings.ContainsAny(code, "IO01") {
			t.Errorf("Code %q contains an ambiguous character", code)
		}
		if strings.ToUpper(code) != code {
			t.Errorf("Expected upper case code, got %q", code)
		}
	}
}

func TestCreateGame(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("valid name", func(t *testing.T) {
		res, err := svc.CreateGame(ctx, "  Alice ")
		if err != nil {
			t.Fatalf("CreateGame failed: %v", err)
		}
		if res.Status != engine.StatusWaiting {
			t.Errorf("Expected status waiting, got %s", res.Status)
		}
		if res.Player != engine.Player1 {
			t.Errorf("Expected player1, got %s", res.Player)
		}
		if res.PlayerToken == "" || res.GameID == "" {
			t.Error("Expected token and game id to be set")
		}

		player, _, err := svc.Authenticate(ctx, res.PlayerToken)
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if player.Name != "Alice" {
			t.Errorf("Expected trimmed name Alice, got %q", player.Name)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := svc.CreateGame(ctx, "   ")
		assertKind(t, err, service.KindInvalidInput)
	})
}

func TestCreateGame_RetriesTakenCode(t *testing.T) {
	st := NewMockStore()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	i := 0
	gen := func() (string, error) {
		code := codes[i]
		i++
		return code, nil
	}
	svc := service.NewGameService(st, zerolog.Nop(), service.WithCodeGenerator(gen))
	ctx := context.Background()

	first, err := svc.CreateGame(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	second, err := svc.CreateGame(ctx, "Carol")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if first.GameCode != "AAAAAA" || second.GameCode != "BBBBBB" {
		t.Errorf("Expected codes AAAAAA and BBBBBB, got %s and %s", first.GameCode, second.GameCode)
	}
}

func TestJoinGame(t *testing.T) {
	ctx := context.Background()

	t.Run("moves game to placing", func(t *testing.T) {
		svc, st := newTestService(t)
		created, _ := svc.CreateGame(ctx, "Alice")

		joined, err := svc.JoinGame(ctx, strings.ToLower(created.GameCode), "Bob")
		if err != nil {
			t.Fatalf("JoinGame failed: %v", err)
		}
		if joined.Player != engine.Player2 {
			t.Errorf("Expected player2, got %s", joined.Player)
		}
		if joined.Status != engine.StatusPlacing {
			t.Errorf("Expected status placing, got %s", joined.Status)
		}
		if joined.GameID != created.GameID {
			t.Errorf("Expected game id %s, got %s", created.GameID, joined.GameID)
		}
		if g := st.game(created.GameCode); g.Status != engine.StatusPlacing {
			t.Errorf("Expected stored status placing, got %s", g.Status)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.JoinGame(ctx, "ZZZZZZ", "Bob")
		assertKind(t, err, service.KindNotFound)
	})

	t.Run("missing name", func(t *testing.T) {
		svc, _ := newTestService(t)
		created, _ := svc.CreateGame(ctx, "Alice")
		_, err := svc.JoinGame(ctx, created.GameCode, "")
		assertKind(t, err, service.KindInvalidInput)
	})

	states := []engine.Status{engine.StatusPlacing, engine.StatusPlaying, engine.StatusFinished}
	for _, status := range states {
		t.Run("rejects "+string(status), func(t *testing.T) {
			svc, st := newTestService(t)
			created, _ := svc.CreateGame(ctx, "Alice")
			st.game(created.GameCode).Status = status

			_, err := svc.JoinGame(ctx, created.GameCode, "Mallory")
			assertKind(t, err, service.KindInvalidState)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Authenticate(ctx, "")
	assertKind(t, err, service.KindUnauthorized)

	_, _, err = svc.Authenticate(ctx, "nope")
	assertKind(t, err, service.KindUnauthorized)
	if err.Error() != "Invalid player token" {
		t.Errorf("Expected 'Invalid player token', got %q", err.Error())
	}

	created, _ := svc.CreateGame(ctx, "Alice")
	player, game, err := svc.Authenticate(ctx, created.PlayerToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if player.Slot != engine.Player1 || game.Code != created.GameCode {
		t.Errorf("Expected player1 of %s, got %s of %s", created.GameCode, player.Slot, game.Code)
	}
}

func TestPlaceShips(t *testing.T) {
	ctx := context.Background()

	t.Run("before opponent joins", func(t *testing.T) {
		svc, _ := newTestService(t)
		created, _ := svc.CreateGame(ctx, "Alice")

		_, err := svc.PlaceShips(ctx, created.PlayerToken, testFleet())
		assertKind(t, err, service.KindInvalidState)
	})

	t.Run("invalid fleet", func(t *testing.T) {
		svc, _ := newTestService(t)
		created, _ := svc.CreateGame(ctx, "Alice")
		svc.JoinGame(ctx, created.GameCode, "Bob")

		fleet := testFleet()
		fleet[2].Positions = []engine.Coordinate{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}

		_, err := svc.PlaceShips(ctx, created.PlayerToken, fleet)
		assertKind(t, err, service.KindInvalidInput)
		if err.Error() != "Ship Cruiser must be placed in a straight line" {
			t.Errorf("Expected straight line error, got %q", err.Error())
		}

		var perr *engine.PlacementError
		if !errors.As(err, &perr) {
			t.Error("Expected placement error to be unwrappable")
		}

		view, _ := svc.GetGameState(ctx, created.PlayerToken)
		if view.You.Ready || len(view.You.Board) != 0 {
			t.Error("Expected rejected placement to leave player unchanged")
		}
	})

	t.Run("both ready starts game", func(t *testing.T) {
		svc, st := newTestService(t)
		created, _ := svc.CreateGame(ctx, "Alice")
		joined, _ := svc.JoinGame(ctx, created.GameCode, "Bob")

		res, err := svc.PlaceShips(ctx, joined.PlayerToken, testFleet())
		if err != nil {
			t.Fatalf("PlaceShips failed: %v", err)
		}
		if res.Started || res.Status != engine.StatusPlacing {
			t.Errorf("Expected placing after first fleet, got %s started=%v", res.Status, res.Started)
		}

		res, err = svc.PlaceShips(ctx, created.PlayerToken, testFleet())
		if err != nil {
			t.Fatalf("PlaceShips failed: %v", err)
		}
		if !res.Started || res.Status != engine.StatusPlaying {
			t.Errorf("Expected playing after second fleet, got %s started=%v", res.Status, res.Started)
		}

		g := st.game(created.GameCode)
		if g.CurrentTurn != engine.Player1 {
			t.Errorf("Expected player1 to move first, got %s", g.CurrentTurn)
		}
	})

	t.Run("after game started", func(t *testing.T) {
		svc, _ := newTestService(t)
		p1, _ := startGame(t, svc)

		_, err := svc.PlaceShips(ctx, p1.PlayerToken, testFleet())
		assertKind(t, err, service.KindInvalidState)
		if err.Error() != "Cannot place ships at this time" {
			t.Errorf("Expected 'Cannot place ships at this time', got %q", err.Error())
		}
	})
}

func TestFire_TurnAlternation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	p1, p2 := startGame(t, svc)

	_, err := svc.Fire(ctx, p2.PlayerToken, engine.Coordinate{X: 9, Y: 9})
	assertKind(t, err, service.KindInvalidState)

	res, err := svc.Fire(ctx, p1.PlayerToken, engine.Coordinate{X: 9, Y: 9})
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if res.Hit || res.Sunk != nil || res.GameOver || res.Winner != nil {
		t.Errorf("Expected plain miss, got %+v", res)
	}
	if res.CurrentTurn != engine.Player2 {
		t.Errorf("Expected turn to pass to player2, got %s", res.CurrentTurn)
	}

	_, err = svc.Fire(ctx, p1.PlayerToken, engine.Coordinate{X: 0, Y: 0})
	assertKind(t, err, service.KindInvalidState)
	if err.Error() != "Not your turn" {
		t.Errorf("Expected 'Not your turn', got %q", err.Error())
	}

	res, err = svc.Fire(ctx, p2.PlayerToken, engine.Coordinate{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if !res.Hit {
		t.Error("Expected hit on Carrier")
	}
	if g := st.game(p1.GameCode); g.CurrentTurn != engine.Player1 {
		t.Errorf("Expected turn back to player1, got %s", g.CurrentTurn)
	}
}

func TestFire_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("out of range", func(t *testing.T) {
		svc, _ := newTestService(t)
		p1, _ := startGame(t, svc)

		for _, c := range []engine.Coordinate{{X: 10, Y: 0}, {X: -1, Y: 5}} {
			_, err := svc.Fire(ctx, p1.PlayerToken, c)
			assertKind(t, err, service.KindInvalidInput)
		}
	})

	t.Run("before playing", func(t *testing.T) {
		svc, _ := newTestService(t)
		created, _ := svc.CreateGame(ctx, "Alice")

		_, err := svc.Fire(ctx, created.PlayerToken, engine.Coordinate{X: 1, Y: 1})
		assertKind(t, err, service.KindInvalidState)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Fire(ctx, "bogus", engine.Coordinate{X: 1, Y: 1})
		assertKind(t, err, service.KindUnauthorized)
	})

	t.Run("unknown token with out of range target", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Fire(ctx, "bogus", engine.Coordinate{X: 10, Y: 0})
		assertKind(t, err, service.KindUnauthorized)

		_, err = svc.Fire(ctx, "", engine.Coordinate{X: -1, Y: 5})
		assertKind(t, err, service.KindUnauthorized)
	})

	t.Run("out of range before playing", func(t *testing.T) {
		svc, _ := newTestService(t)
		created, _ := svc.CreateGame(ctx, "Alice")

		_, err := svc.Fire(ctx, created.PlayerToken, engine.Coordinate{X: 10, Y: 0})
		assertKind(t, err, service.KindInvalidInput)
	})

	t.Run("duplicate shot leaves state alone", func(t *testing.T) {
		svc, st := newTestService(t)
		p1, p2 := startGame(t, svc)
		target := engine.Coordinate{X: 5, Y: 5}

		svc.Fire(ctx, p1.PlayerToken, target)
		svc.Fire(ctx, p2.PlayerToken, target)

		_, err := svc.Fire(ctx, p1.PlayerToken, target)
		assertKind(t, err, service.KindConflict)

		view, _ := svc.GetGameState(ctx, p1.PlayerToken)
		if len(view.You.Shots) != 1 {
			t.Errorf("Expected 1 recorded shot, got %d", len(view.You.Shots))
		}
		if g := st.game(p1.GameCode); g.CurrentTurn != engine.Player1 {
			t.Errorf("Expected turn to stay with player1, got %s", g.CurrentTurn)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		svc, st := newTestService(t)
		p1, _ := startGame(t, svc)
		st.FailUpdates = true

		_, err := svc.Fire(ctx, p1.PlayerToken, engine.Coordinate{X: 3, Y: 3})
		assertKind(t, err, service.KindUpstream)
		if !strings.Contains(err.Error(), "disk full") {
			t.Errorf("Expected cause in message, got %q", err.Error())
		}
	})
}

// TestFullGame plays a complete game where player1 sinks every ship
func TestFullGame(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	p1, p2 := startGame(t, svc)

	var targets []engine.Coordinate
	for _, ship := range testFleet() {
		targets = append(targets, ship.Positions...)
	}

	var sunk []string
	var last *service.FireResult
	for i, target := range targets {
		res, err := svc.Fire(ctx, p1.PlayerToken, target)
		if err != nil {
			t.Fatalf("Shot %d failed: %v", i, err)
		}
		if !res.Hit {
			t.Fatalf("Shot %d at %v expected to hit", i, target)
		}
		if res.Sunk != nil {
			sunk = append(sunk, *res.Sunk)
		}
		last = res
		if res.GameOver {
			break
		}

		// player2 misses into open water
		miss := engine.Coordinate{X: 9 - i%10, Y: 9 - i/10}
		if _, err := svc.Fire(ctx, p2.PlayerToken, miss); err != nil {
			t.Fatalf("player2 shot %d failed: %v", i, err)
		}
	}

	if len(sunk) != engine.FleetSize {
		t.Errorf("Expected %d sunk ships, got %v", engine.FleetSize, sunk)
	}
	if !last.GameOver || last.Winner == nil || *last.Winner != engine.Player1 {
		t.Fatalf("Expected player1 win, got %+v", last)
	}

	g := st.game(p1.GameCode)
	if g.Status != engine.StatusFinished || g.Winner != engine.Player1 {
		t.Errorf("Expected finished with winner player1, got %s / %s", g.Status, g.Winner)
	}
	if g.CurrentTurn != engine.Player1 {
		t.Errorf("Expected winning turn to stay with player1, got %s", g.CurrentTurn)
	}

	_, err := svc.Fire(ctx, p2.PlayerToken, engine.Coordinate{X: 0, Y: 9})
	assertKind(t, err, service.KindInvalidState)
}

func TestFire_SunkDestroyer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p1, p2 := startGame(t, svc)

	// Destroyer sits at (0,4),(1,4)
	svc.Fire(ctx, p1.PlayerToken, engine.Coordinate{X: 0, Y: 4})
	svc.Fire(ctx, p2.PlayerToken, engine.Coordinate{X: 9, Y: 9})

	res, err := svc.Fire(ctx, p1.PlayerToken, engine.Coordinate{X: 1, Y: 4})
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if !res.Hit || res.Sunk == nil || *res.Sunk != "Destroyer" || res.GameOver {
		t.Errorf("Expected {hit:true, sunk:Destroyer, gameOver:false}, got %+v", res)
	}
	if res.CurrentTurn != engine.Player2 {
		t.Errorf("Expected turn to flip to player2, got %s", res.CurrentTurn)
	}
}

func TestGetGameState_FogOfWar(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateGame(ctx, "Alice")
	view, err := svc.GetGameState(ctx, created.PlayerToken)
	if err != nil {
		t.Fatalf("GetGameState failed: %v", err)
	}
	if view.Opponent != nil {
		t.Error("Expected no opponent before join")
	}
	if view.You.Shots == nil || view.You.Board == nil {
		t.Error("Expected empty, non-nil board and shots")
	}

	joined, _ := svc.JoinGame(ctx, created.GameCode, "Bob")
	svc.PlaceShips(ctx, created.PlayerToken, testFleet())
	svc.PlaceShips(ctx, joined.PlayerToken, testFleet())
	svc.Fire(ctx, created.PlayerToken, engine.Coordinate{X: 0, Y: 4})
	svc.Fire(ctx, joined.PlayerToken, engine.Coordinate{X: 8, Y: 8})
	svc.Fire(ctx, created.PlayerToken, engine.Coordinate{X: 1, Y: 4})

	view, err = svc.GetGameState(ctx, created.PlayerToken)
	if err != nil {
		t.Fatalf("GetGameState failed: %v", err)
	}
	if view.Opponent == nil {
		t.Fatal("Expected opponent view")
	}
	if view.Opponent.Name != "Bob" || !view.Opponent.Ready {
		t.Errorf("Expected ready opponent Bob, got %+v", view.Opponent)
	}
	if view.Opponent.ShipsSunk != 1 || len(view.Opponent.SunkShips) != 1 || view.Opponent.SunkShips[0] != "Destroyer" {
		t.Errorf("Expected Destroyer sunk, got %d %v", view.Opponent.ShipsSunk, view.Opponent.SunkShips)
	}
	if len(view.Opponent.Shots) != 1 {
		t.Errorf("Expected 1 opponent shot, got %d", len(view.Opponent.Shots))
	}
	if view.IsYourTurn {
		t.Error("Expected it to be Bob's turn")
	}
	if len(view.You.Board) != engine.FleetSize || len(view.You.Shots) != 2 {
		t.Errorf("Expected own fleet and 2 shots, got %d ships %d shots", len(view.You.Board), len(view.You.Shots))
	}
}
