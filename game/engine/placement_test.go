package engine

import (
	"errors"
	"testing"
)

// createTestFleet returns a valid fleet laid out in horizontal rows 0-4
func createTestFleet() Fleet {
	return Fleet{
		{Name: "Carrier", Size: 5, Positions: line(0, 0, 5, false)},
		{Name: "Battleship", Size: 4, Positions: line(0, 1, 4, false)},
		{Name: "Cruiser", Size: 3, Positions: line(0, 2, 3, false)},
		{Name: "Submarine", Size: 3, Positions: line(0, 3, 3, false)},
		{Name: "Destroyer", Size: 2, Positions: line(0, 4, 2, false)},
	}
}

func line(x, y, size int, vertical bool) []Coordinate {
	out := make([]Coordinate, 0, size)
	for i := 0; i < size; i++ {
		if vertical {
			out = append(out, Coordinate{X: x, Y: y + i})
		} else {
			out = append(out, Coordinate{X: x + i, Y: y})
		}
	}
	return out
}

func TestValidatePlacement_Valid(t *testing.T) {
	tests := []struct {
		name  string
		fleet func() Fleet
	}{
		{"horizontal rows", createTestFleet},
		{
			"mixed orientation",
			func() Fleet {
				return Fleet{
					{Name: "Carrier", Size: 5, Positions: line(9, 0, 5, true)},
					{Name: "Battleship", Size: 4, Positions: line(0, 9, 4, false)},
					{Name: "Cruiser", Size: 3, Positions: line(4, 4, 3, true)},
					{Name: "Submarine", Size: 3, Positions: line(5, 4, 3, false)},
					{Name: "Destroyer", Size: 2, Positions: line(0, 0, 2, true)},
				}
			},
		},
		{
			"unsorted positions and ships",
			func() Fleet {
				return Fleet{
					{Name: "Destroyer", Size: 2, Positions: []Coordinate{{X: 7, Y: 7}, {X: 6, Y: 7}}},
					{Name: "Cruiser", Size: 3, Positions: []Coordinate{{X: 2, Y: 8}, {X: 2, Y: 6}, {X: 2, Y: 7}}},
					{Name: "Carrier", Size: 5, Positions: line(0, 0, 5, false)},
					{Name: "Submarine", Size: 3, Positions: line(5, 2, 3, false)},
					{Name: "Battleship", Size: 4, Positions: line(9, 3, 4, true)},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePlacement(tt.fleet()); err != nil {
				t.Errorf("Expected valid fleet, got %v", err)
			}
		})
	}
}

func TestValidatePlacement_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(Fleet) Fleet
		expectRule  PlacementRule
		expectError string
	}{
		{
			name:        "too few ships",
			mutate:      func(f Fleet) Fleet { return f[:4] },
			expectRule:  RuleFleetSize,
			expectError: "Must place exactly 5 ships",
		},
		{
			name: "too many ships",
			mutate: func(f Fleet) Fleet {
				return append(f, Ship{Name: "Destroyer", Size: 2, Positions: line(8, 8, 2, false)})
			},
			expectRule: RuleFleetSize,
		},
		{
			name: "wrong size composition",
			mutate: func(f Fleet) Fleet {
				f[4] = Ship{Name: "Destroyer", Size: 3, Positions: line(0, 4, 3, false)}
				return f
			},
			expectRule:  RuleShipSize,
			expectError: "Ship Destroyer has wrong size. Expected 2, got 3",
		},
		{
			name: "position count differs from size",
			mutate: func(f Fleet) Fleet {
				f[0].Positions = line(0, 0, 4, false)
				return f
			},
			expectRule:  RulePositionCount,
			expectError: "Ship Carrier must have 5 positions",
		},
		{
			name: "x out of range",
			mutate: func(f Fleet) Fleet {
				f[4].Positions = []Coordinate{{X: 9, Y: 4}, {X: 10, Y: 4}}
				return f
			},
			expectRule:  RuleBounds,
			expectError: "Ship Destroyer has invalid position: (10, 4)",
		},
		{
			name: "negative coordinate",
			mutate: func(f Fleet) Fleet {
				f[4].Positions = []Coordinate{{X: -1, Y: 5}, {X: 0, Y: 5}}
				return f
			},
			expectRule:  RuleBounds,
			expectError: "Ship Destroyer has invalid position: (-1, 5)",
		},
		{
			name: "diagonal ship",
			mutate: func(f Fleet) Fleet {
				f[2].Positions = []Coordinate{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}
				return f
			},
			expectRule:  RuleShape,
			expectError: "Ship Cruiser must be placed in a straight line",
		},
		{
			name: "gap in line",
			mutate: func(f Fleet) Fleet {
				f[3].Positions = []Coordinate{{X: 0, Y: 3}, {X: 1, Y: 3}, {X: 3, Y: 3}}
				return f
			},
			expectRule: RuleShape,
		},
		{
			name: "duplicate cell inside a ship",
			mutate: func(f Fleet) Fleet {
				f[4].Positions = []Coordinate{{X: 0, Y: 4}, {X: 0, Y: 4}}
				return f
			},
			expectRule: RuleShape,
		},
		{
			name: "overlapping ships",
			mutate: func(f Fleet) Fleet {
				f[4].Positions = []Coordinate{{X: 0, Y: 0}, {X: 0, Y: 1}}
				return f
			},
			expectRule:  RuleOverlap,
			expectError: "Ships cannot overlap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlacement(tt.mutate(createTestFleet()))
			if err == nil {
				t.Fatal("Expected placement error, got nil")
			}

			var perr *PlacementError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *PlacementError, got %T", err)
			}
			if perr.Rule != tt.expectRule {
				t.Errorf("Expected rule %s, got %s (%s)", tt.expectRule, perr.Rule, perr.Message)
			}
			if tt.expectError != "" && err.Error() != tt.expectError {
				t.Errorf("Expected error %q, got %q", tt.expectError, err.Error())
			}
		})
	}
}

func TestValidatePlacement_Precedence(t *testing.T) {
	// Bounds failure on the larger ship wins over a shape failure on a smaller one
	fleet := createTestFleet()
	fleet[0].Positions = line(6, 0, 5, false)
	fleet[4].Positions = []Coordinate{{X: 0, Y: 4}, {X: 1, Y: 5}}

	err := ValidatePlacement(fleet)
	var perr *PlacementError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *PlacementError, got %v", err)
	}
	if perr.Rule != RuleBounds || perr.Ship != "Carrier" {
		t.Errorf("Expected bounds error on Carrier, got %s on %s", perr.Rule, perr.Ship)
	}
}

func TestIsStraightLine(t *testing.T) {
	tests := []struct {
		name      string
		positions []Coordinate
		expected  bool
	}{
		{"empty", nil, true},
		{"single cell", []Coordinate{{X: 4, Y: 4}}, true},
		{"horizontal", line(2, 3, 4, false), true},
		{"vertical", line(2, 3, 4, true), true},
		{"reversed vertical", []Coordinate{{X: 1, Y: 3}, {X: 1, Y: 2}, {X: 1, Y: 1}}, true},
		{"diagonal", []Coordinate{{X: 0, Y: 0}, {X: 1, Y: 1}}, false},
		{"l shape", []Coordinate{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, false},
		{"gap", []Coordinate{{X: 0, Y: 0}, {X: 2, Y: 0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStraightLine(tt.positions); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRandomFleet(t *testing.T) {
	for i := 0; i < 50; i++ {
		fleet, err := RandomFleet(nil)
		if err != nil {
			t.Fatalf("RandomFleet failed: %v", err)
		}
		if err := ValidatePlacement(fleet); err != nil {
			t.Fatalf("RandomFleet produced invalid fleet: %v", err)
		}
		if CountShipCells(fleet) != TotalShipCells {
			t.Errorf("Expected %d ship cells, got %d", TotalShipCells, CountShipCells(fleet))
		}
	}
}
