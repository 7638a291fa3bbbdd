package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
	"github.com/wricardo/mcp-training/battleship/transport/websocket"
)

// TokenHeader carries the player token
const TokenHeader = "X-Player-Token"

type contextKey string

const (
	playerCtxKey = contextKey("player")
	gameCtxKey   = contextKey("game")
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	log     zerolog.Logger
}

// NewServer creates a new API server. hub may be nil.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger zerolog.Logger) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	for _, prefix := range []string{"/api/games", "/games"} {
		games := s.router.PathPrefix(prefix).Subrouter()

		// Lobby
		games.HandleFunc("", s.handleCreateGame).Methods("POST")
		games.HandleFunc("/{code}/join", s.handleJoinGame).Methods("POST")

		// Game operations
		games.Handle("/{code}", s.requirePlayer(s.handleGetGameState)).Methods("GET")
		games.Handle("/{code}/place-ships", s.requirePlayer(s.handlePlaceShips)).Methods("POST")
		games.Handle("/{code}/fire", s.requirePlayer(s.handleFire)).Methods("POST")
	}

	// Token-scoped aliases for clients that only hold a player token
	me := s.router.PathPrefix("/api/me").Subrouter()
	me.Handle("", s.requirePlayer(s.handleGetGameState)).Methods("GET")
	me.Handle("/place-ships", s.requirePlayer(s.handlePlaceShips)).Methods("POST")
	me.Handle("/fire", s.requirePlayer(s.handleFire)).Methods("POST")

	s.router.HandleFunc("/api/fleet/random", s.handleRandomFleet).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api", s.handleHealth).Methods("GET")
}

// Router exposes the router so other handlers can be mounted next to the API
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// StatusCode maps a service error to an HTTP status
func StatusCode(err error) int {
	switch service.KindOf(err) {
	case service.KindInvalidInput, service.KindInvalidState, service.KindConflict:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

// PlayerToken extracts the player token from X-Player-Token or a bearer
// Authorization header
func PlayerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}

// requirePlayer authenticates the token and, on routes with a {code}, checks
// the token belongs to that game
func (s *Server) requirePlayer(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := PlayerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Player token required")
			return
		}

		player, game, err := s.service.Authenticate(r.Context(), token)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}

		if code, ok := mux.Vars(r)["code"]; ok && game.Code != service.NormalizeCode(code) {
			respondError(w, http.StatusForbidden, "Player token does not belong to this game")
			return
		}

		ctx := context.WithValue(r.Context(), playerCtxKey, player)
		ctx = context.WithValue(ctx, gameCtxKey, game)
		next(w, r.WithContext(ctx))
	})
}

func currentPlayer(r *http.Request) *service.Player {
	p, _ := r.Context().Value(playerCtxKey).(*service.Player)
	return p
}

func currentGame(r *http.Request) *service.Game {
	g, _ := r.Context().Value(gameCtxKey).(*service.Game)
	return g
}

func (s *Server) publish(code, event string, data interface{}) {
	if s.hub != nil {
		s.hub.Publish(code, event, data)
	}
}

// Lobby Handlers

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Player name is required")
		return
	}

	result, err := s.service.CreateGame(r.Context(), req.Name)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Player name is required")
		return
	}

	result, err := s.service.JoinGame(r.Context(), mux.Vars(r)["code"], req.Name)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.publish(result.GameCode, websocket.EventPlayerJoined, map[string]interface{}{
		"player": result.Player,
		"name":   strings.TrimSpace(req.Name),
		"status": result.Status,
	})

	respondJSON(w, http.StatusOK, result)
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetGameState(r.Context(), PlayerToken(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

type placeShipsRequest struct {
	Ships engine.Fleet `json:"ships"`
}

func (s *Server) handlePlaceShips(w http.ResponseWriter, r *http.Request) {
	var req placeShipsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ships == nil {
		respondError(w, http.StatusBadRequest, "Ships array is required")
		return
	}

	result, err := s.service.PlaceShips(r.Context(), PlayerToken(r), req.Ships)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	game, player := currentGame(r), currentPlayer(r)
	s.publish(game.Code, websocket.EventShipsPlaced, map[string]interface{}{"player": player.Slot})

	message := "Ships placed successfully. Waiting for opponent."
	if result.Started {
		message = "Ships placed successfully. Game started!"
		s.publish(game.Code, websocket.EventGameStarted, map[string]interface{}{"current_turn": engine.Player1})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
		"status":  result.Status,
	})
}

type fireRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (s *Server) handleFire(w http.ResponseWriter, r *http.Request) {
	var req fireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.X == nil || req.Y == nil {
		respondError(w, http.StatusBadRequest, "x and y coordinates are required")
		return
	}

	result, err := s.service.Fire(r.Context(), PlayerToken(r), engine.Coordinate{X: *req.X, Y: *req.Y})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	game := currentGame(r)
	s.publish(game.Code, websocket.EventShotFired, result)
	if result.GameOver {
		s.publish(game.Code, websocket.EventGameOver, map[string]interface{}{"winner": result.Winner})
	}

	// Compact server log for observability
	sunk := ""
	if result.Sunk != nil {
		sunk = *result.Sunk
	}
	s.log.Info().
		Str("game", game.Code).
		Str("shooter", string(result.Shooter)).
		Int("x", result.X).
		Int("y", result.Y).
		Bool("hit", result.Hit).
		Str("sunk", sunk).
		Bool("game_over", result.GameOver).
		Msg("[FIRE]")

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRandomFleet(w http.ResponseWriter, r *http.Request) {
	fleet, err := engine.RandomFleet(nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ships": fleet})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := service.NormalizeCode(r.URL.Query().Get("game"))
	if code == "" {
		http.Error(w, "game parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "live events are not enabled", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, code)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
