package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

// tokenHeader must match the header the REST API reads
const tokenHeader = "X-Player-Token"

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"battleship",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Battleship - MCP Interface

Two players each hide a fleet on a 10x10 grid and take turns firing at the
other's grid. Sink all five enemy ships to win.

FLOW:
1. create_game (you get a game code and a player token) or join_game with a code
2. place_ships once both players are seated (random_fleet gives a valid layout)
3. get_game_state to see whose turn it is, then fire at x,y (0-9)

Keep your player token private; it is the only proof of your seat.
Call game_instructions for the full rules.`),
	)

	c.registerTools()
}

var coordinateSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"x": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 9, "description": "X coordinate (0-9)"},
		"y": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 9, "description": "Y coordinate (0-9)"},
	},
	"required": []string{"x", "y"},
}

func tokenProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Your player token from create_game or join_game",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Lobby
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Create a new battleship game. Returns a game code to share with your opponent and a player token for authentication.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Your player name",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join an existing battleship game using a game code.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "The 6-character game code",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Your player name",
				},
			},
			Required: []string{"code", "name"},
		},
	}, c.handleJoinGame)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game_state",
		Description: "Get the current state of your game including your board, shots fired, and whether it's your turn.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"playerToken": tokenProperty(),
			},
			Required: []string{"playerToken"},
		},
	}, c.handleGetGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name: "place_ships",
		Description: "Place your ships on the board. Ships required: Carrier (5), Battleship (4), Cruiser (3), Submarine (3), Destroyer (2). " +
			"Each ship needs positions as {x, y} coordinates (0-9). Ships must be in a straight line (horizontal or vertical) and cannot overlap.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"playerToken": tokenProperty(),
				"ships": map[string]interface{}{
					"type":        "array",
					"description": "Array of 5 ships with their positions",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"name": map[string]interface{}{
								"type":        "string",
								"description": "Ship name: Carrier, Battleship, Cruiser, Submarine, or Destroyer",
							},
							"size": map[string]interface{}{
								"type":        "integer",
								"description": "Ship size: 5, 4, 3, 3, or 2",
							},
							"positions": map[string]interface{}{
								"type":        "array",
								"description": "Array of {x, y} positions the ship occupies",
								"items":       coordinateSchema,
							},
						},
						"required": []string{"name", "size", "positions"},
					},
				},
			},
			Required: []string{"playerToken", "ships"},
		},
	}, c.handlePlaceShips)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "fire",
		Description: "Fire at a position on your opponent's board. Coordinates are 0-9 for both x and y.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"playerToken": tokenProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate to fire at (0-9)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate to fire at (0-9)",
				},
			},
			Required: []string{"playerToken", "x", "y"},
		},
	}, c.handleFire)

	// Helpers
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "random_fleet",
		Description: "Generate a valid random fleet layout that can be passed straight to place_ships",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRandomFleet)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the complete rules, the board legend and the tool workflow",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path, token string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool results

func success(fields map[string]interface{}) *mcp.CallToolResult {
	payload := map[string]interface{}{"success": true}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return failure(err)
	}
	return mcp.NewToolResultText(string(data))
}

func failure(err error) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
	result := mcp.NewToolResultText(string(data))
	result.IsError = true
	return result
}

// toFields flattens a JSON-tagged struct into a field map
func toFields(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, _ := args[key].(string)
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func requireInt(args map[string]interface{}, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(v), nil
	case int:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

// Tool handlers

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["name"].(string)

	var result service.JoinResult
	if err := c.apiCall(ctx, "POST", "/api/games", "", map[string]string{"name": name}, &result); err != nil {
		return failure(err), nil
	}

	return success(map[string]interface{}{
		"gameCode":    result.GameCode,
		"playerToken": result.PlayerToken,
		"player":      result.Player,
		"message":     fmt.Sprintf("Game created! Share code %s with your opponent.", result.GameCode),
	}), nil
}

func (c *Client) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, err := requireString(args, "code")
	if err != nil {
		return failure(err), nil
	}
	name, _ := args["name"].(string)

	var result service.JoinResult
	path := fmt.Sprintf("/api/games/%s/join", service.NormalizeCode(code))
	if err := c.apiCall(ctx, "POST", path, "", map[string]string{"name": name}, &result); err != nil {
		return failure(err), nil
	}

	return success(map[string]interface{}{
		"gameCode":    result.GameCode,
		"playerToken": result.PlayerToken,
		"player":      result.Player,
		"message":     fmt.Sprintf("Joined game %s. Both players can now place ships.", result.GameCode),
	}), nil
}

func (c *Client) handleGetGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := requireString(arguments(request), "playerToken")
	if err != nil {
		return failure(err), nil
	}

	var view service.GameStateView
	if err := c.apiCall(ctx, "GET", "/api/me", token, nil, &view); err != nil {
		return failure(err), nil
	}

	fields, err := toFields(view)
	if err != nil {
		return failure(err), nil
	}
	fields["boards"] = formatBoards(&view)
	fields["message"] = describeState(&view)
	return success(fields), nil
}

func (c *Client) handlePlaceShips(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	token, err := requireString(args, "playerToken")
	if err != nil {
		return failure(err), nil
	}

	fleet, err := decodeFleet(args["ships"])
	if err != nil {
		return failure(err), nil
	}

	var result struct {
		Message string        `json:"message"`
		Status  engine.Status `json:"status"`
	}
	if err := c.apiCall(ctx, "POST", "/api/me/place-ships", token, map[string]interface{}{"ships": fleet}, &result); err != nil {
		return failure(err), nil
	}

	return success(map[string]interface{}{
		"message": result.Message,
		"status":  result.Status,
	}), nil
}

func (c *Client) handleFire(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	token, err := requireString(args, "playerToken")
	if err != nil {
		return failure(err), nil
	}
	x, err := requireInt(args, "x")
	if err != nil {
		return failure(err), nil
	}
	y, err := requireInt(args, "y")
	if err != nil {
		return failure(err), nil
	}

	var result service.FireResult
	if err := c.apiCall(ctx, "POST", "/api/me/fire", token, engine.Coordinate{X: x, Y: y}, &result); err != nil {
		return failure(err), nil
	}

	fields, err := toFields(result)
	if err != nil {
		return failure(err), nil
	}
	fields["message"] = formatFireResult(&result)
	return success(fields), nil
}

func (c *Client) handleRandomFleet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var result struct {
		Ships engine.Fleet `json:"ships"`
	}
	if err := c.apiCall(ctx, "GET", "/api/fleet/random", "", nil, &result); err != nil {
		return failure(err), nil
	}

	return success(map[string]interface{}{
		"ships": result.Ships,
		"board": engine.FormatGrid(engine.RenderOwnBoard(result.Ships, nil)),
	}), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return success(map[string]interface{}{"instructions": instructions}), nil
}

// decodeFleet converts the raw ships argument into a fleet
func decodeFleet(raw interface{}) (engine.Fleet, error) {
	if raw == nil {
		return nil, fmt.Errorf("Ships array is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var fleet engine.Fleet
	if err := json.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("ships must be an array of {name, size, positions}: %v", err)
	}
	return fleet, nil
}

// formatFireResult builds the one-line summary of a shot
func formatFireResult(result *service.FireResult) string {
	message := "Miss!"
	if result.Hit {
		message = "Hit!"
	}
	if result.Sunk != nil {
		message += fmt.Sprintf(" You sunk their %s!", *result.Sunk)
	}
	if result.GameOver {
		message += " Game over - you win!"
	}
	return message
}

// formatBoards renders the caller's own board and their target grid
func formatBoards(view *service.GameStateView) map[string]string {
	var incoming []engine.Shot
	if view.Opponent != nil {
		incoming = view.Opponent.Shots
	}
	return map[string]string{
		"own":    engine.FormatGrid(engine.RenderOwnBoard(view.You.Board, incoming)),
		"target": engine.FormatGrid(engine.RenderTargetBoard(view.You.Shots)),
	}
}

// describeState summarizes what the caller should do next
func describeState(view *service.GameStateView) string {
	switch view.Game.Status {
	case engine.StatusWaiting:
		return fmt.Sprintf("Waiting for an opponent to join with code %s.", view.Game.Code)
	case engine.StatusPlacing:
		if view.You.Ready {
			return "Ships placed. Waiting for opponent to place ships."
		}
		return "Place your ships with place_ships."
	case engine.StatusPlaying:
		if view.IsYourTurn {
			return "Your turn. Fire with fire."
		}
		return "Opponent's turn. Check back with get_game_state."
	case engine.StatusFinished:
		if view.Game.Winner == view.You.Slot {
			return "Game over - you win!"
		}
		return "Game over - you lost."
	default:
		return ""
	}
}

const instructions = `BATTLESHIP RULES

BOARD
- 10x10 grid, x is the column and y is the row, both 0-9.

FLEET (place exactly these five ships)
- Carrier (5), Battleship (4), Cruiser (3), Submarine (3), Destroyer (2)
- Each ship is one straight horizontal or vertical run of adjacent cells.
- Ships may touch but never overlap.

GAME FLOW
1. create_game {name} returns gameCode and playerToken. Share only the code.
2. The opponent calls join_game {code, name}. Both players now place ships.
3. place_ships {playerToken, ships}. You may re-place until both players are ready.
   random_fleet returns a valid layout if you do not want to design one.
4. When both fleets are placed the game starts and player1 fires first.
5. fire {playerToken, x, y} on your turn. Turns alternate after every shot,
   hit or miss. Firing twice at the same cell is rejected.
6. The first player to sink all 17 ship cells of the enemy fleet wins.

BOARD LEGEND (get_game_state boards)
  own board:    . water   # your ship   X hit   o miss
  target board: ~ unknown X hit         o miss

TIPS
- After a hit, try the four neighbouring cells to find the ship's direction.
- Sunk ships are reported by name; the opponent's layout is never revealed.`
