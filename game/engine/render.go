package engine

import (
	"fmt"
	"strings"
)

// Grid characters used by the text renderings
const (
	CellWater   = '.'
	CellShip    = '#'
	CellHit     = 'X'
	CellMiss    = 'o'
	CellUnknown = '~'
)

// RenderOwnBoard draws a player's own fleet overlaid with the opponent's
// shots. Row y is line y; column x is character x.
func RenderOwnBoard(fleet Fleet, incoming []Shot) []string {
	var grid [BoardSize][BoardSize]rune
	for y := range grid {
		for x := range grid[y] {
			grid[y][x] = CellWater
		}
	}
	for _, ship := range fleet {
		for _, pos := range ship.Positions {
			if pos.InBounds() {
				grid[pos.Y][pos.X] = CellShip
			}
		}
	}
	for _, s := range incoming {
		c := s.Coordinate()
		if !c.InBounds() {
			continue
		}
		if grid[c.Y][c.X] == CellShip || s.Hit {
			grid[c.Y][c.X] = CellHit
		} else {
			grid[c.Y][c.X] = CellMiss
		}
	}
	return gridLines(grid)
}

// RenderTargetBoard draws what a player knows of the opponent's grid:
// only the results of their own shots.
func RenderTargetBoard(shots []Shot) []string {
	var grid [BoardSize][BoardSize]rune
	for y := range grid {
		for x := range grid[y] {
			grid[y][x] = CellUnknown
		}
	}
	for _, s := range shots {
		c := s.Coordinate()
		if !c.InBounds() {
			continue
		}
		if s.Hit {
			grid[c.Y][c.X] = CellHit
		} else {
			grid[c.Y][c.X] = CellMiss
		}
	}
	return gridLines(grid)
}

// FormatGrid joins rendered rows under a column header with row numbers
func FormatGrid(rows []string) string {
	var b strings.Builder
	b.WriteString("  ")
	for x := 0; x < BoardSize; x++ {
		b.WriteString(fmt.Sprintf("%d", x))
	}
	b.WriteString("\n")
	for y, row := range rows {
		b.WriteString(fmt.Sprintf("%d %s\n", y, row))
	}
	return b.String()
}

func gridLines(grid [BoardSize][BoardSize]rune) []string {
	lines := make([]string, 0, BoardSize)
	for y := 0; y < BoardSize; y++ {
		lines = append(lines, string(grid[y][:]))
	}
	return lines
}
