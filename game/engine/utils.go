package engine

import (
	"errors"
	"math/rand/v2"
)

// maxPlacementTries bounds RandomFleet's retry loop
const maxPlacementTries = 10000

// RandomFleet places the standard fleet at random without overlap.
// A nil rng uses the package-level source.
func RandomFleet(rng *rand.Rand) (Fleet, error) {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	taken := make(map[Coordinate]bool, TotalShipCells)
	fleet := make(Fleet, 0, len(StandardFleet))
	tries := 0

	for _, class := range StandardFleet {
		for {
			tries++
			if tries > maxPlacementTries {
				return nil, errors.New("failed to place ships")
			}

			vertical := intN(2) == 0
			x, y := intN(BoardSize), intN(BoardSize)
			if vertical && y+class.Size > BoardSize {
				continue
			}
			if !vertical && x+class.Size > BoardSize {
				continue
			}

			positions := make([]Coordinate, 0, class.Size)
			free := true
			for i := 0; i < class.Size; i++ {
				c := Coordinate{X: x + i, Y: y}
				if vertical {
					c = Coordinate{X: x, Y: y + i}
				}
				if taken[c] {
					free = false
					break
				}
				positions = append(positions, c)
			}
			if !free {
				continue
			}

			for _, c := range positions {
				taken[c] = true
			}
			fleet = append(fleet, Ship{Name: class.Name, Size: class.Size, Positions: positions})
			break
		}
	}

	return fleet, nil
}

// CountShipCells counts the cells covered by the fleet
func CountShipCells(fleet Fleet) int {
	count := 0
	for _, ship := range fleet {
		count += len(ship.Positions)
	}
	return count
}
