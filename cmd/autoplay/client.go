package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
)

// Client talks to the Battleship REST API as a single player
type Client struct {
	baseURL string
	code    string
	token   string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Player-Token", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &errResp)
		if errResp.Error == "" {
			errResp.Error = string(data)
		}
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

// CreateGame opens a game and keeps the returned seat
func (c *Client) CreateGame(ctx context.Context, name string) (*service.JoinResult, error) {
	var result service.JoinResult
	if err := c.do(ctx, "POST", "/api/games", map[string]string{"name": name}, &result); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	c.code, c.token = result.GameCode, result.PlayerToken
	return &result, nil
}

// JoinGame takes the second seat of code
func (c *Client) JoinGame(ctx context.Context, code, name string) (*service.JoinResult, error) {
	var result service.JoinResult
	if err := c.do(ctx, "POST", "/api/games/"+code+"/join", map[string]string{"name": name}, &result); err != nil {
		return nil, fmt.Errorf("join game: %w", err)
	}
	c.code, c.token = result.GameCode, result.PlayerToken
	return &result, nil
}

func (c *Client) State(ctx context.Context) (*service.GameStateView, error) {
	var view service.GameStateView
	if err := c.do(ctx, "GET", "/api/games/"+c.code, nil, &view); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &view, nil
}

func (c *Client) PlaceShips(ctx context.Context, fleet engine.Fleet) error {
	if err := c.do(ctx, "POST", "/api/games/"+c.code+"/place-ships", map[string]interface{}{"ships": fleet}, nil); err != nil {
		return fmt.Errorf("place ships: %w", err)
	}
	return nil
}

func (c *Client) Fire(ctx context.Context, target engine.Coordinate) (*service.FireResult, error) {
	var result service.FireResult
	if err := c.do(ctx, "POST", "/api/games/"+c.code+"/fire", target, &result); err != nil {
		return nil, fmt.Errorf("fire %s: %w", target, err)
	}
	return &result, nil
}
