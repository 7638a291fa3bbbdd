// Package validate checks fleet layout JSON files offline. A file holds
// either a bare array of ships or an object with a "ships" array, the same
// shapes the place-ships endpoint accepts. It checks:
//   - JSON structure
//   - Fleet composition (one each of Carrier, Battleship, Cruiser, Submarine, Destroyer)
//   - Every ship is a straight, in-bounds run of the right length
//   - No two ships overlap
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

// Result captures the outcome of validating a single file.
// If Valid is true, Messages contains informational lines; otherwise it
// holds the problems that were found.
type Result struct {
	File     string
	Valid    bool
	Messages []string
	Fleet    engine.Fleet
}

// fleetFile accepts {"ships": [...]}
type fleetFile struct {
	Ships engine.Fleet `json:"ships"`
}

// ParseFleet decodes a fleet from either supported JSON shape
func ParseFleet(data []byte) (engine.Fleet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	if trimmed[0] == '[' {
		var fleet engine.Fleet
		if err := json.Unmarshal(trimmed, &fleet); err != nil {
			return nil, err
		}
		return fleet, nil
	}

	var file fleetFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, err
	}
	if file.Ships == nil {
		return nil, fmt.Errorf("missing \"ships\" array")
	}
	return file.Ships, nil
}

// File loads and validates a single fleet JSON file
func File(filePath string) Result {
	result := Result{
		File:     filepath.Base(filePath),
		Valid:    true,
		Messages: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Messages = append(result.Messages, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	fleet, err := ParseFleet(data)
	if err != nil {
		result.Valid = false
		result.Messages = append(result.Messages, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}
	result.Fleet = fleet

	if err := engine.ValidatePlacement(fleet); err != nil {
		result.Valid = false
		result.Messages = append(result.Messages, err.Error())
		return result
	}

	for _, ship := range fleet {
		result.Messages = append(result.Messages, fmt.Sprintf("✓ %s (%d): %s", ship.Name, ship.Size, describePositions(ship.Positions)))
	}
	result.Messages = append(result.Messages, fmt.Sprintf("✓ Cells: %d", engine.CountShipCells(fleet)))

	return result
}

// Files validates every path, expanding directories to their *.json files
func Files(paths []string) ([]Result, error) {
	var results []Result
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			results = append(results, File(p))
			continue
		}
		if !info.IsDir() {
			results = append(results, File(p))
			continue
		}

		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", p, err)
		}
		for _, m := range matches {
			results = append(results, File(m))
		}
	}
	return results, nil
}

// Report prints a concise report and returns whether every file was valid
func Report(w io.Writer, results []Result) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Messages {
				fmt.Fprintln(w, "  "+info)
			}
			fmt.Fprint(w, engine.FormatGrid(engine.RenderOwnBoard(result.Fleet, nil)))
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, msg := range result.Messages {
				fmt.Fprintln(w, "  ❌ "+msg)
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case len(results) == 0:
		fmt.Fprintln(w, "❌ No fleet files found")
		return false
	case allValid:
		fmt.Fprintln(w, "✅ All fleets are valid!")
	default:
		fmt.Fprintln(w, "❌ Some fleets have errors")
	}
	return allValid
}

func describePositions(positions []engine.Coordinate) string {
	parts := make([]string, 0, len(positions))
	for _, p := range positions {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " ")
}
