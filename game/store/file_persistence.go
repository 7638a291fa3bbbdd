package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a game
var ErrSnapshotNotFound = errors.New("snapshot not found")

// FilePersistence implements Persistence with one JSON file per game
type FilePersistence struct {
	dir string
}

// NewFilePersistence creates a file-based persistence layer rooted at dir
func NewFilePersistence(dir string) (*FilePersistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create games directory: %w", err)
	}
	return &FilePersistence{dir: dir}, nil
}

// Save writes the snapshot to <dir>/<game id>.json
func (fp *FilePersistence) Save(snap *Snapshot) error {
	if snap == nil || snap.Game == nil {
		return fmt.Errorf("snapshot cannot be empty")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game %s: %w", snap.Game.ID, err)
	}

	// Write then rename so readers never see a partial file
	tmp, err := os.CreateTemp(fp.dir, snap.Game.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write game file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write game file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write game file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fp.path(snap.Game.ID)); err != nil {
		return fmt.Errorf("failed to write game file: %w", err)
	}
	return nil
}

// Load reads a snapshot from disk
func (fp *FilePersistence) Load(gameID string) (*Snapshot, error) {
	data, err := os.ReadFile(fp.path(gameID))
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", gameID, err)
	}
	if snap.Game == nil || snap.Game.ID != gameID {
		return nil, fmt.Errorf("game file %s does not match its name", gameID)
	}
	return &snap, nil
}

// Delete removes a snapshot file
func (fp *FilePersistence) Delete(gameID string) error {
	if !fp.Exists(gameID) {
		return ErrSnapshotNotFound
	}
	if err := os.Remove(fp.path(gameID)); err != nil {
		return fmt.Errorf("failed to remove game file: %w", err)
	}
	return nil
}

// ListAll returns the IDs of all snapshots on disk
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read games directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

// Exists checks if a snapshot file exists
func (fp *FilePersistence) Exists(gameID string) bool {
	_, err := os.Stat(fp.path(gameID))
	return err == nil
}

func (fp *FilePersistence) path(gameID string) string {
	return filepath.Join(fp.dir, gameID+".json")
}
