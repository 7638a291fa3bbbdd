// Package engine provides the core rules for the Battleship game.
//
// The engine package implements the game mechanics including:
//   - The 10x10 coordinate grid and ship shape primitives
//   - Fleet placement validation against the standard fleet
//   - Shot resolution with hit, sunk and all-sunk detection
//   - The forward-only game lifecycle and player slots
//
// Core Types:
//
// Coordinate addresses a single grid cell. Ship is a named, sized run of
// coordinates and Fleet is the five ships a player places. Shot records a
// fired coordinate and whether it hit.
//
// Usage:
//
//	if err := engine.ValidatePlacement(fleet); err != nil {
//		return err // *engine.PlacementError with a human-readable reason
//	}
//
//	hit := engine.IsHit(fleet, target)
//	shots = append(shots, engine.Shot{X: target.X, Y: target.Y, Hit: hit})
//	outcome := engine.Resolve(fleet, shots, target)
//
// Game Rules:
//
// Each player places Carrier (5), Battleship (4), Cruiser (3), Submarine (3)
// and Destroyer (2) in straight, contiguous, non-overlapping lines. Players
// alternate firing at the opponent's grid. A ship is sunk when every one of
// its cells has been hit, and the game ends when the whole fleet is sunk.
//
// Everything in this package is pure: sunk ships and game over are always
// recomputed from the fleet and the append-only shot log.
package engine
