// Package websocket provides live game events for the Battleship server.
//
// The websocket package implements:
//   - Per-game subscriptions keyed by join code
//   - Fan-out of public game events to every subscriber of a game
//   - Keepalive pings and cleanup of slow or closed connections
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// subscriptions. Registration, removal and broadcasts all pass through the
// hub's channels and are applied by the single goroutine running Run, so the
// subscription map has one writer. Each connection has a read pump, which
// only keeps the connection alive, and a write pump.
//
// Message Protocol:
//
// Clients connect with ?game=CODE. Outgoing messages are JSON events:
//
//	{"event": "shot_fired", "game_code": "ABCDEF", "data": {...}, "timestamp": "..."}
//
// Event types are player_joined, ships_placed, game_started, shot_fired and
// game_over. Events never carry ship positions, so anyone holding the join
// code may subscribe.
//
// Usage:
//
//	hub := websocket.NewHub(log.Logger)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("game"))
//	})
//
//	hub.Publish("ABCDEF", websocket.EventShotFired, shot)
package websocket
