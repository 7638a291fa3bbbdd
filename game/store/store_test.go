package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

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

// runRepositoryContract exercises the behaviour every service.Store must share
func runRepositoryContract(t *testing.T, st service.Store) {
	ctx := context.Background()

	game, err := st.CreateGame(ctx, "ABCDEF")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	if game.Status != engine.StatusWaiting || game.ID == "" {
		t.Fatalf("Expected waiting game with id, got %+v", game)
	}

	t.Run("code is unique", func(t *testing.T) {
		_, err := st.CreateGame(ctx, "ABCDEF")
		if !errors.Is(err, service.ErrCodeTaken) {
			t.Errorf("Expected ErrCodeTaken, got %v", err)
		}
	})

	t.Run("lookups", func(t *testing.T) {
		byCode, err := st.GetGameByCode(ctx, "ABCDEF")
		if err != nil || byCode.ID != game.ID {
			t.Fatalf("Expected game %s by code, got %v %v", game.ID, byCode, err)
		}
		if _, err := st.GetGameByCode(ctx, "NOPE22"); !errors.Is(err, service.ErrRecordNotFound) {
			t.Errorf("Expected ErrRecordNotFound, got %v", err)
		}
		if _, err := st.GetGameByID(ctx, "missing"); !errors.Is(err, service.ErrRecordNotFound) {
			t.Errorf("Expected ErrRecordNotFound, got %v", err)
		}
		if _, err := st.GetPlayerByToken(ctx, "missing"); !errors.Is(err, service.ErrRecordNotFound) {
			t.Errorf("Expected ErrRecordNotFound, got %v", err)
		}
	})

	p2, err := st.CreatePlayer(ctx, game.ID, engine.Player2, "Bob")
	if err != nil {
		t.Fatalf("CreatePlayer failed: %v", err)
	}
	p1, err := st.CreatePlayer(ctx, game.ID, engine.Player1, "Alice")
	if err != nil {
		t.Fatalf("CreatePlayer failed: %v", err)
	}

	t.Run("players", func(t *testing.T) {
		if p1.Token == "" || p1.Token == p2.Token {
			t.Fatalf("Expected distinct tokens, got %q and %q", p1.Token, p2.Token)
		}
		players, err := st.GetPlayersByGame(ctx, game.ID)
		if err != nil {
			t.Fatalf("GetPlayersByGame failed: %v", err)
		}
		if len(players) != 2 || players[0].Slot != engine.Player1 || players[1].Slot != engine.Player2 {
			t.Fatalf("Expected player1 then player2, got %d players", len(players))
		}
		got, err := st.GetPlayerByToken(ctx, p2.Token)
		if err != nil || got.Name != "Bob" {
			t.Errorf("Expected Bob by token, got %v %v", got, err)
		}
	})

	t.Run("partial updates", func(t *testing.T) {
		fleet := testFleet()
		ready := true
		if err := st.UpdatePlayer(ctx, p1.ID, service.PlayerUpdate{Board: &fleet, Ready: &ready}); err != nil {
			t.Fatalf("UpdatePlayer failed: %v", err)
		}
		shots := []engine.Shot{{X: 1, Y: 2, Hit: true}}
		if err := st.UpdatePlayer(ctx, p1.ID, service.PlayerUpdate{Shots: &shots}); err != nil {
			t.Fatalf("UpdatePlayer failed: %v", err)
		}

		got, _ := st.GetPlayerByToken(ctx, p1.Token)
		if !got.Ready || len(got.Board) != engine.FleetSize || len(got.Shots) != 1 || !got.Shots[0].Hit {
			t.Errorf("Expected ready player with fleet and one hit, got %+v", got)
		}
		if got.Board[0].Positions[4] != (engine.Coordinate{X: 4, Y: 0}) {
			t.Errorf("Expected Carrier to end at (4, 0), got %v", got.Board[0].Positions[4])
		}

		status, turn := engine.StatusPlaying, engine.Player1
		if err := st.UpdateGame(ctx, game.ID, service.GameUpdate{Status: &status, CurrentTurn: &turn}); err != nil {
			t.Fatalf("UpdateGame failed: %v", err)
		}
		g, _ := st.GetGameByID(ctx, game.ID)
		if g.Status != engine.StatusPlaying || g.CurrentTurn != engine.Player1 || g.Winner != "" {
			t.Errorf("Expected playing with player1 to move, got %+v", g)
		}

		if err := st.UpdateGame(ctx, "missing", service.GameUpdate{Status: &status}); !errors.Is(err, service.ErrRecordNotFound) {
			t.Errorf("Expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := st.Transact(ctx, func(ctx context.Context, repo service.Repository) error {
			winner, status := engine.Player2, engine.StatusFinished
			if err := repo.UpdateGame(ctx, game.ID, service.GameUpdate{Status: &status, Winner: &winner}); err != nil {
				return err
			}
			if _, err := repo.CreateGame(ctx, "ROLLBK"); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}

		g, _ := st.GetGameByID(ctx, game.ID)
		if g.Status != engine.StatusPlaying || g.Winner != "" {
			t.Errorf("Expected rolled back game, got %+v", g)
		}
		if _, err := st.GetGameByCode(ctx, "ROLLBK"); !errors.Is(err, service.ErrRecordNotFound) {
			t.Errorf("Expected rolled back insert, got %v", err)
		}
	})

	t.Run("reads see own writes", func(t *testing.T) {
		err := st.Transact(ctx, func(ctx context.Context, repo service.Repository) error {
			g, err := repo.CreateGame(ctx, "INSIDE")
			if err != nil {
				return err
			}
			p, err := repo.CreatePlayer(ctx, g.ID, engine.Player1, "Carol")
			if err != nil {
				return err
			}
			if _, err := repo.GetPlayerByToken(ctx, p.Token); err != nil {
				return err
			}
			players, err := repo.GetPlayersByGame(ctx, g.ID)
			if err != nil {
				return err
			}
			if len(players) != 1 {
				t.Errorf("Expected 1 player inside transaction, got %d", len(players))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Transact failed: %v", err)
		}
	})
}

// runConcurrentFire fires from both seats at once and checks that exactly
// one shot per turn is accepted
func runConcurrentFire(t *testing.T, st service.Store) {
	ctx := context.Background()
	svc := service.NewGameService(st, zerolog.Nop())

	p1, err := svc.CreateGame(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	p2, err := svc.JoinGame(ctx, p1.GameCode, "Bob")
	if err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	// Both fleets at once exercise the ready check
	var wg sync.WaitGroup
	for _, token := range []string{p1.PlayerToken, p2.PlayerToken} {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			if _, err := svc.PlaceShips(ctx, token, testFleet()); err != nil {
				t.Errorf("PlaceShips failed: %v", err)
			}
		}(token)
	}
	wg.Wait()

	view, err := svc.GetGameState(ctx, p1.PlayerToken)
	if err != nil {
		t.Fatalf("GetGameState failed: %v", err)
	}
	if view.Game.Status != engine.StatusPlaying {
		t.Fatalf("Expected playing after both placements, got %s", view.Game.Status)
	}

	// player1 fires the same shot from several goroutines
	const attempts = 8
	var accepted int
	var mu sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Fire(ctx, p1.PlayerToken, engine.Coordinate{X: 9, Y: 9}); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("Expected exactly 1 accepted shot, got %d", accepted)
	}
	view, _ = svc.GetGameState(ctx, p1.PlayerToken)
	if len(view.You.Shots) != 1 || view.Game.CurrentTurn != engine.Player2 {
		t.Errorf("Expected 1 shot and player2 to move, got %d shots, turn %s", len(view.You.Shots), view.Game.CurrentTurn)
	}
}

func runPrune(t *testing.T, st interface {
	service.Store
	service.Pruner
}) {
	ctx := context.Background()
	g, err := st.CreateGame(ctx, "PRUNE2")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	p, _ := st.CreatePlayer(ctx, g.ID, engine.Player1, "Alice")

	n, err := st.PruneStale(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("Expected nothing pruned, got %d %v", n, err)
	}

	n, err = st.PruneStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PruneStale failed: %v", err)
	}
	if n < 1 {
		t.Errorf("Expected at least 1 pruned game, got %d", n)
	}
	if _, err := st.GetGameByID(ctx, g.ID); !errors.Is(err, service.ErrRecordNotFound) {
		t.Errorf("Expected pruned game to be gone, got %v", err)
	}
	if _, err := st.GetPlayerByToken(ctx, p.Token); !errors.Is(err, service.ErrRecordNotFound) {
		t.Errorf("Expected pruned player to be gone, got %v", err)
	}
}
