// Package backend is a client for the QuestLab REST API: it loads game
// definitions and submits finished session results.
//
// Requests carry the player's bearer token when one is attached to the
// context with WithToken.
//
//	c := backend.NewClient(backend.Config{BaseURL: "http://localhost:8000/api"})
//	def, err := c.LoadGame(backend.WithToken(ctx, token), "42")
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/questlab/player/internal/questlab"
)

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8000/api". Required.
	BaseURL string

	// Timeout bounds every request. Defaults to 10 seconds if zero.
	Timeout time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header. Optional.
	UserAgent string
}

// Client talks to the QuestLab backend. It is safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{config: cfg, http: httpClient}
}

func (c *Client) BaseURL() string { return c.config.BaseURL }

type tokenKey struct{}

// WithToken attaches a bearer token to ctx for all requests made with it.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token attached with WithToken, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// FetchGame returns the raw definition document for a game.
func (c *Client) FetchGame(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "games/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("backend: game %s: invalid JSON response", id)
	}
	return body, nil
}

// LoadGame fetches and decodes a game definition.
func (c *Client) LoadGame(ctx context.Context, id string) (questlab.Definition, error) {
	raw, err := c.FetchGame(ctx, id)
	if err != nil {
		return questlab.Definition{}, err
	}
	return questlab.DecodeDefinition(raw)
}

type submitRequest struct {
	GameID    string     `json:"game_id"`
	Score     int        `json:"score"`
	TimeTaken int        `json:"time_taken"`
	Data      submitData `json:"data"`
}

type submitData struct {
	BonusPoints int `json:"bonus_points"`
}

// SubmitResult posts a finished session's result. The returned receipt
// carries the points the backend credited.
func (c *Client) SubmitResult(ctx context.Context, res questlab.Result) (questlab.Receipt, error) {
	body, err := c.do(ctx, http.MethodPost, "games/"+url.PathEscape(res.GameID)+"/submit", submitRequest{
		GameID:    res.GameID,
		Score:     res.Score,
		TimeTaken: res.TimeTaken,
		Data:      submitData{BonusPoints: res.BonusPoints},
	})
	if err != nil {
		return questlab.Receipt{}, err
	}
	return decodeReceipt(body)
}

// Ping checks the backend is reachable. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.config.BaseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// decodeReceipt reads points_earned and keeps every other field as passthrough.
func decodeReceipt(body []byte) (questlab.Receipt, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return questlab.Receipt{}, fmt.Errorf("backend: invalid submit response: %w", err)
	}

	var r questlab.Receipt
	for _, key := range []string{"points_earned", "pointsEarned"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		n, ok := v.(float64)
		if !ok {
			return questlab.Receipt{}, fmt.Errorf("backend: %s is %T, not a number", key, v)
		}
		r.PointsEarned = int(n)
		delete(fields, key)
	}
	if len(fields) > 0 {
		r.Extra = fields
	}
	return r, nil
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(body []byte) string {
	var e struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return strings.TrimSpace(string(body))
}
