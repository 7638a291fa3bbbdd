// Package service provides the turn state machine for the Battleship server.
//
// The service package implements:
//   - Game creation with shareable join codes
//   - Seating the second player and moving the game into placement
//   - Fleet placement and the transition to play once both fleets are down
//   - Turn arbitration, shot recording and win detection
//   - Per-player views of a game that never reveal the opponent's fleet
//
// Core Interfaces:
//
// GameService is the main service interface used by the REST and MCP
// transports. Repository is the persistence contract the service consumes,
// and Store adds Transact, the atomic unit every read-modify-write runs in.
//
// Architecture:
//
// The service layer sits between the transports and the game engine. It holds
// no game state of its own: each operation opens a transaction on the Store,
// re-reads the game and its players, delegates rules to the engine package and
// writes the result back before the transaction commits. Concurrent Fire or
// PlaceShips calls on the same game are therefore serialized by the Store.
//
// Usage:
//
//	st := store.NewMemoryStore()
//	svc := service.NewGameService(st, log.Logger)
//
//	created, err := svc.CreateGame(ctx, "Alice")
//	if err != nil {
//		log.Fatal().Err(err).Msg("create failed")
//	}
//	joined, _ := svc.JoinGame(ctx, created.GameCode, "Bob")
//
//	svc.PlaceShips(ctx, created.PlayerToken, fleetA)
//	svc.PlaceShips(ctx, joined.PlayerToken, fleetB)
//	result, err := svc.Fire(ctx, created.PlayerToken, engine.Coordinate{X: 3, Y: 4})
//
// Errors:
//
// Every failure is an *Error carrying a Kind (NotFound, InvalidState,
// InvalidInput, Unauthorized, Conflict, Upstream) and a message meant for the
// end user. Transports map the kind to a status code with KindOf.
package service
