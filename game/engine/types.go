package engine

import "fmt"

const (
	// BoardSize is the width and height of the grid
	BoardSize = 10

	// FleetSize is the number of ships every player places
	FleetSize = 5

	// TotalShipCells is the number of cells covered by a standard fleet
	TotalShipCells = 17
)

// ShipClass names one of the standard fleet ships
type ShipClass struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// StandardFleet is the required fleet composition
var StandardFleet = []ShipClass{
	{Name: "Carrier", Size: 5},
	{Name: "Battleship", Size: 4},
	{Name: "Cruiser", Size: 3},
	{Name: "Submarine", Size: 3},
	{Name: "Destroyer", Size: 2},
}

// Coordinate represents x,y grid coordinates
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether the coordinate lies on the board
func (c Coordinate) InBounds() bool {
	return c.X >= 0 && c.X < BoardSize && c.Y >= 0 && c.Y < BoardSize
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Ship is a placed ship and the cells it occupies
type Ship struct {
	Name      string       `json:"name"`
	Size      int          `json:"size"`
	Positions []Coordinate `json:"positions"`
}

// Occupies reports whether the ship covers the coordinate
func (s Ship) Occupies(c Coordinate) bool {
	for _, pos := range s.Positions {
		if pos == c {
			return true
		}
	}
	return false
}

// Fleet is a player's full set of ships
type Fleet []Ship

// Shot is a fired coordinate and its result
type Shot struct {
	X   int  `json:"x"`
	Y   int  `json:"y"`
	Hit bool `json:"hit"`
}

// Coordinate returns the shot's target cell
func (s Shot) Coordinate() Coordinate {
	return Coordinate{X: s.X, Y: s.Y}
}
