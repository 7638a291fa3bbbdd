// Package mcp provides the Model Context Protocol server for Battleship.
//
// The server is a thin client of the REST API: every tool call becomes one
// HTTP request, so MCP players and REST players share the same games and
// the same rules.
//
// MCP Tools:
//   - create_game: Create a game and receive a code and player token
//   - join_game: Join a game by code
//   - get_game_state: Your view of the game with ASCII boards
//   - place_ships: Place your fleet
//   - fire: Fire at the opponent's grid
//   - random_fleet: A valid random fleet for place_ships
//   - game_instructions: Rules and board legend
//
// Every tool returns a JSON text payload with a success flag. Failures set
// isError and carry {"success": false, "error": "..."}.
//
// Transport Modes:
//
// The MCP server returned by GetMCPServer can be served over stdio
// (server.ServeStdio), SSE or streamable HTTP; main wires all three.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
