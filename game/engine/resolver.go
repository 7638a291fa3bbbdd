package engine

// Outcome is the resolved result of a single shot
type Outcome struct {
	Hit     bool   `json:"hit"`
	Sunk    string `json:"sunk,omitempty"` // name of the ship this shot sank
	AllSunk bool   `json:"all_sunk"`
}

// Resolve computes the outcome of firing at target. shots is the attacker's
// full history and must already include the shot at target.
func Resolve(fleet Fleet, shots []Shot, target Coordinate) Outcome {
	hits := hitSet(shots)
	out := Outcome{Hit: IsHit(fleet, target)}

	for _, ship := range fleet {
		if !ship.Occupies(target) {
			continue
		}
		if covered(ship, hits) {
			out.Sunk = ship.Name
			break
		}
	}

	out.AllSunk = allCovered(fleet, hits)
	return out
}

// IsHit reports whether target lies on any ship of the fleet
func IsHit(fleet Fleet, target Coordinate) bool {
	for _, ship := range fleet {
		if ship.Occupies(target) {
			return true
		}
	}
	return false
}

// SunkShip returns the name of the ship containing lastShot if every one of
// its cells has been hit, or "" otherwise.
func SunkShip(fleet Fleet, shots []Shot, lastShot Coordinate) string {
	return Resolve(fleet, shots, lastShot).Sunk
}

// AllSunk reports whether every cell of every ship has been hit.
// An empty fleet is never considered sunk.
func AllSunk(fleet Fleet, shots []Shot) bool {
	return allCovered(fleet, hitSet(shots))
}

// CountSunk returns how many ships of the fleet are fully hit
func CountSunk(fleet Fleet, shots []Shot) int {
	hits := hitSet(shots)
	count := 0
	for _, ship := range fleet {
		if covered(ship, hits) {
			count++
		}
	}
	return count
}

// SunkShips returns the names of fully hit ships in fleet order
func SunkShips(fleet Fleet, shots []Shot) []string {
	hits := hitSet(shots)
	names := []string{}
	for _, ship := range fleet {
		if covered(ship, hits) {
			names = append(names, ship.Name)
		}
	}
	return names
}

// HasFired reports whether target already appears in the shot history
func HasFired(shots []Shot, target Coordinate) bool {
	for _, s := range shots {
		if s.X == target.X && s.Y == target.Y {
			return true
		}
	}
	return false
}

func hitSet(shots []Shot) map[Coordinate]bool {
	hits := make(map[Coordinate]bool, len(shots))
	for _, s := range shots {
		if s.Hit {
			hits[s.Coordinate()] = true
		}
	}
	return hits
}

func covered(ship Ship, hits map[Coordinate]bool) bool {
	for _, pos := range ship.Positions {
		if !hits[pos] {
			return false
		}
	}
	return true
}

func allCovered(fleet Fleet, hits map[Coordinate]bool) bool {
	if len(fleet) == 0 {
		return false
	}
	for _, ship := range fleet {
		if !covered(ship, hits) {
			return false
		}
	}
	return true
}
