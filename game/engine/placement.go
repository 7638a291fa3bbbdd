package engine

import (
	"fmt"
	"sort"
)

// PlacementRule identifies which placement rule a fleet broke
type PlacementRule string

const (
	RuleFleetSize     PlacementRule = "fleet_size"
	RuleMissingShip   PlacementRule = "missing_ship"
	RuleShipSize      PlacementRule = "ship_size"
	RulePositionCount PlacementRule = "position_count"
	RuleBounds        PlacementRule = "bounds"
	RuleShape         PlacementRule = "shape"
	RuleOverlap       PlacementRule = "overlap"
)

// PlacementError describes the first rule an invalid fleet broke
type PlacementError struct {
	Rule    PlacementRule
	Ship    string
	Message string
}

func (e *PlacementError) Error() string {
	return e.Message
}

func placementErrorf(rule PlacementRule, ship, format string, args ...any) *PlacementError {
	return &PlacementError{Rule: rule, Ship: ship, Message: fmt.Sprintf(format, args...)}
}

// ValidatePlacement checks a candidate fleet against the standard fleet.
// Rules are checked in order and the first failure is returned:
// fleet size, ship sizes (ships compared largest first), position count,
// bounds, straight contiguous shape, and finally overlap across the fleet.
func ValidatePlacement(fleet Fleet) error {
	if len(fleet) != len(StandardFleet) {
		return placementErrorf(RuleFleetSize, "", "Must place exactly %d ships", len(StandardFleet))
	}

	expected := make([]ShipClass, len(StandardFleet))
	copy(expected, StandardFleet)
	sort.SliceStable(expected, func(i, j int) bool { return expected[i].Size > expected[j].Size })

	provided := make([]Ship, len(fleet))
	copy(provided, fleet)
	sort.SliceStable(provided, func(i, j int) bool { return provided[i].Size > provided[j].Size })

	for i, want := range expected {
		if i >= len(provided) {
			return placementErrorf(RuleMissingShip, want.Name, "Missing ship: %s", want.Name)
		}
		ship := provided[i]

		if ship.Size != want.Size {
			return placementErrorf(RuleShipSize, ship.Name,
				"Ship %s has wrong size. Expected %d, got %d", ship.Name, want.Size, ship.Size)
		}

		if len(ship.Positions) != ship.Size {
			return placementErrorf(RulePositionCount, ship.Name,
				"Ship %s must have %d positions", ship.Name, ship.Size)
		}

		for _, pos := range ship.Positions {
			if !pos.InBounds() {
				return placementErrorf(RuleBounds, ship.Name,
					"Ship %s has invalid position: (%d, %d)", ship.Name, pos.X, pos.Y)
			}
		}

		if !IsStraightLine(ship.Positions) {
			return placementErrorf(RuleShape, ship.Name,
				"Ship %s must be placed in a straight line", ship.Name)
		}
	}

	occupied := make(map[Coordinate]struct{}, TotalShipCells)
	total := 0
	for _, ship := range fleet {
		for _, pos := range ship.Positions {
			occupied[pos] = struct{}{}
			total++
		}
	}
	if len(occupied) != total {
		return placementErrorf(RuleOverlap, "", "Ships cannot overlap")
	}

	return nil
}

// IsStraightLine reports whether positions form one horizontal or vertical
// run of consecutive cells. A single cell trivially passes.
func IsStraightLine(positions []Coordinate) bool {
	if len(positions) <= 1 {
		return true
	}

	sorted := make([]Coordinate, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	horizontal, vertical := true, true
	for _, pos := range sorted[1:] {
		if pos.Y != sorted[0].Y {
			horizontal = false
		}
		if pos.X != sorted[0].X {
			vertical = false
		}
	}
	if !horizontal && !vertical {
		return false
	}

	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		if horizontal && curr.X != prev.X+1 {
			return false
		}
		if vertical && curr.Y != prev.Y+1 {
			return false
		}
	}

	return true
}
