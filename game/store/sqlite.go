package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is a service.Store backed by a SQLite database
type SQLiteStore struct {
	db *sql.DB
	sqlRepo
}

// OpenSQLite opens (creating if missing) the database at path and applies
// pending migrations
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, sqlRepo: sqlRepo{q: db}}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Transact runs fn inside a database transaction
func (s *SQLiteStore) Transact(ctx context.Context, fn func(ctx context.Context, repo service.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(ctx, &sqlRepo{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PruneStale deletes games not updated since before. Players go with them.
func (s *SQLiteStore) PruneStale(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE updated_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// openDB opens a SQLite database with a busy timeout, WAL journaling,
// foreign keys and immediate write transactions
func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

// migrate applies the embedded migrations in lexical order, recording each
// in _migrations
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := migrationFiles.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlRepo implements service.Repository on a querier
type sqlRepo struct {
	q querier
}

const (
	gameColumns   = `id, code, status, current_turn, winner, created_at, updated_at`
	playerColumns = `id, game_id, player_number, name, token, board, shots, ready, created_at`
)

func (r *sqlRepo) CreateGame(ctx context.Context, code string) (*service.Game, error) {
	now := time.Now().UTC()
	g := &service.Game{
		ID:        uuid.NewString(),
		Code:      code,
		Status:    engine.StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO games(id, code, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Code, g.Status, g.CreatedAt, g.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, service.ErrCodeTaken
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *sqlRepo) CreatePlayer(ctx context.Context, gameID string, slot engine.Slot, name string) (*service.Player, error) {
	p := &service.Player{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Slot:      slot,
		Name:      name,
		Token:     uuid.NewString(),
		Board:     engine.Fleet{},
		Shots:     []engine.Shot{},
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO players(id, game_id, player_number, name, token, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.GameID, p.Slot, p.Name, p.Token, p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := r.touchGame(ctx, gameID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *sqlRepo) GetGameByCode(ctx context.Context, code string) (*service.Game, error) {
	return scanGame(r.q.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE code=?`, code))
}

func (r *sqlRepo) GetGameByID(ctx context.Context, id string) (*service.Game, error) {
	return scanGame(r.q.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=?`, id))
}

func (r *sqlRepo) GetPlayerByToken(ctx context.Context, token string) (*service.Player, error) {
	return scanPlayer(r.q.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE token=?`, token))
}

func (r *sqlRepo) GetPlayersByGame(ctx context.Context, gameID string) ([]*service.Player, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE game_id=? ORDER BY player_number`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*service.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *sqlRepo) UpdateGame(ctx context.Context, id string, update service.GameUpdate) error {
	sets := []string{"updated_at=?"}
	args := []any{time.Now().UTC()}
	if update.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, *update.Status)
	}
	if update.CurrentTurn != nil {
		sets = append(sets, "current_turn=?")
		args = append(args, *update.CurrentTurn)
	}
	if update.Winner != nil {
		sets = append(sets, "winner=?")
		args = append(args, *update.Winner)
	}
	args = append(args, id)

	res, err := r.q.ExecContext(ctx, `UPDATE games SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *sqlRepo) UpdatePlayer(ctx context.Context, id string, update service.PlayerUpdate) error {
	var sets []string
	var args []any
	if update.Board != nil {
		b, err := json.Marshal(*update.Board)
		if err != nil {
			return err
		}
		sets = append(sets, "board=?")
		args = append(args, string(b))
	}
	if update.Shots != nil {
		b, err := json.Marshal(*update.Shots)
		if err != nil {
			return err
		}
		sets = append(sets, "shots=?")
		args = append(args, string(b))
	}
	if update.Ready != nil {
		sets = append(sets, "ready=?")
		args = append(args, *update.Ready)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.q.ExecContext(ctx, `UPDATE players SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		`UPDATE games SET updated_at=? WHERE id=(SELECT game_id FROM players WHERE id=?)`,
		time.Now().UTC(), id)
	return err
}

func (r *sqlRepo) touchGame(ctx context.Context, gameID string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE games SET updated_at=? WHERE id=?`, time.Now().UTC(), gameID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*service.Game, error) {
	var g service.Game
	err := row.Scan(&g.ID, &g.Code, &g.Status, &g.CurrentTurn, &g.Winner, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func scanPlayer(row rowScanner) (*service.Player, error) {
	var p service.Player
	var board, shots string
	err := row.Scan(&p.ID, &p.GameID, &p.Slot, &p.Name, &p.Token, &board, &shots, &p.Ready, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(board), &p.Board); err != nil {
		return nil, fmt.Errorf("decode board of player %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(shots), &p.Shots); err != nil {
		return nil, fmt.Errorf("decode shots of player %s: %w", p.ID, err)
	}
	return &p, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return service.ErrRecordNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
