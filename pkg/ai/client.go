package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Turn is one message of recent conversation context passed to generation.
type Turn struct {
	Role    string `json:"role"` // "lead" or "agent"
	Content string `json:"content"`
}

// Generator produces the next follow-up for an AI drip. Treated as a black
// box; the engine only requires that it respect the context deadline.
type Generator interface {
	Generate(ctx context.Context, persona string, turns []Turn) (string, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the completion API over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Model   string `json:"model"`
	Persona string `json:"persona"`
	Turns   []Turn `json:"turns"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (c *Client) Generate(ctx context.Context, persona string, turns []Turn) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.cfg.Model,
		Persona: persona,
		Turns:   turns,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	if resp.StatusCode >= 400 || gr.Error != "" {
		return "", fmt.Errorf("generation failed (status %d): %s", resp.StatusCode, gr.Error)
	}
	return gr.Text, nil
}
