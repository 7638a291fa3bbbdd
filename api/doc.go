// Package api provides HTTP REST API handlers for the Battleship server.
//
// The api package implements:
//   - Game lobby endpoints (create and join)
//   - Authenticated game endpoints (state, ship placement, firing)
//   - WebSocket upgrade for live game events
//   - Health checks
//
// Endpoints:
//
// Lobby:
//   - POST /api/games - Create a game, body {"name": "Alice"}
//   - POST /api/games/{code}/join - Join a game, body {"name": "Bob"}
//
// Game Operations (player token required):
//   - GET /api/games/{code} - The caller's view of the game
//   - POST /api/games/{code}/place-ships - Body {"ships": [...]}
//   - POST /api/games/{code}/fire - Body {"x": 3, "y": 4}
//
// The same three operations are available without the code under /api/me
// (GET /api/me, POST /api/me/place-ships, POST /api/me/fire), for clients
// that only hold a player token.
//
// Helpers:
//   - GET /api/fleet/random - A valid random fleet
//   - GET /ws?game={code} - Live events for a game
//   - GET /health
//
// The same game routes are also served under /games for older clients.
//
// Authentication:
//
// Game operations take the player token from the X-Player-Token header or an
// Authorization: Bearer header. A token only grants access to the game it
// was issued for; using it with another game's code returns 403.
//
// Error Handling:
//
// Errors are returned as JSON with a status code derived from the service
// error kind:
//
//	{"error": "Not your turn"}
//
// invalid input, invalid state and conflicts map to 400, unauthorized to 401,
// not found to 404 and storage failures to 500.
package api
