// Package generator calls the remote Pokémon generation endpoint and maps
// its responses into domain items.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ArthurPoncin/google-ai-gen/internal/model"
)

// DefaultTimeout bounds one generation request end to end.
const DefaultTimeout = 30 * time.Second

// Generation errors. One of these wraps every failure out of Generate.
var (
	ErrTimeout           = errors.New("generation timed out")
	ErrUnreachable       = errors.New("generator unreachable")
	ErrRejected          = errors.New("generation rejected")
	ErrMalformedResponse = errors.New("malformed generator response")
)

// Client issues authenticated generation requests against a fixed endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a generator client. timeout <= 0 falls back to
// DefaultTimeout.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// generateResponse is the success payload from the remote endpoint.
type generateResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rarity    string `json:"rarity"`
	Image     string `json:"image"`
	CreatedAt string `json:"created_at"`
}

// errorResponse is the failure payload from the remote endpoint.
type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Generate requests one new item. On success the item is always Owned and
// not favorited; its ID, rarity, image and creation time come from the
// remote side and are never regenerated locally.
func (c *Client) Generate(ctx context.Context) (*model.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, c.httpClient.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, c.httpClient.Timeout)
		}
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrRejected, rejectionMessage(resp.StatusCode, body))
	}

	var payload generateResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.ID == "" || payload.Name == "" || payload.Rarity == "" ||
		payload.Image == "" || payload.CreatedAt == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrMalformedResponse)
	}

	createdAt, err := time.Parse(time.RFC3339, payload.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad created_at %q: %v", ErrMalformedResponse, payload.CreatedAt, err)
	}

	return &model.Item{
		ID:        payload.ID,
		Name:      payload.Name,
		Rarity:    mapRarityCode(payload.Rarity),
		Image:     payload.Image,
		Status:    model.StatusOwned,
		Favorite:  false,
		CreatedAt: createdAt,
	}, nil
}

// mapRarityCode translates the legacy tier alphabet used by the remote side
// into rarity tiers. Unrecognized codes fall back to common so a paid-for
// item is never discarded.
func mapRarityCode(code string) model.Rarity {
	switch code {
	case "F", "E":
		return model.RarityCommon
	case "D", "C":
		return model.RarityRare
	case "B":
		return model.RarityEpic
	case "A", "S":
		return model.RarityLegendary
	case "S+":
		return model.RarityMythic
	default:
		log.Printf("[Generator] Unknown rarity code %q, defaulting to common", code)
		return model.RarityCommon
	}
}

// rejectionMessage prefers the remote-supplied message, falling back to the
// HTTP status when the error payload is not parseable.
func rejectionMessage(status int, body []byte) string {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("generator returned HTTP %d", status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
