// Package reputation provides a client for the external identity service
// that owns user reputation scores.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crowdsong/crowdsong/internal/logger"
)

// ErrUnavailable is returned when no reputation service is configured
var ErrUnavailable = errors.New("reputation service unavailable")

// Score is the response of the reputation lookup
type Score struct {
	UserID     string  `json:"user_id"`
	Reputation float64 `json:"reputation"`
}

// AwardRequest is the body of an award call
type AwardRequest struct {
	Points float64 `json:"points"`
	Reason string  `json:"reason"`
}

// Client defines the interface for reputation operations
type Client interface {
	// GetReputation returns the user's current reputation score
	GetReputation(ctx context.Context, userID string) (float64, error)
	// AwardReputation adds points to the user's score and returns the new score
	AwardReputation(ctx context.Context, userID string, points float64, reason string) (float64, error)
}

// Weight maps a reputation score to a vote weight
func Weight(score float64) float64 {
	switch {
	case score < 50:
		return 1.0
	case score < 75:
		return 1.5
	case score < 90:
		return 2.0
	default:
		return 3.0
	}
}

// WeightFor looks up userID and returns the score with its vote weight.
// A failed lookup yields score 0 and weight 1.
func WeightFor(ctx context.Context, c Client, userID string) (float64, float64, error) {
	score, err := c.GetReputation(ctx, userID)
	if err != nil {
		return 0, 1.0, err
	}
	return score, Weight(score), nil
}

// HTTPClient is a real HTTP client for the reputation service
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a new reputation HTTP client
func NewHTTPClient(baseURL string, log logger.Logger) *HTTPClient {
	return NewHTTPClientWithHTTPClient(baseURL, &http.Client{Timeout: 5 * time.Second}, log)
}

// NewHTTPClientWithHTTPClient creates a new client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the configured base URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// doRequest executes a request and decodes a JSON Score from a 200 response
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body interface{}) (Score, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Score{}, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	apiURL := c.baseURL + path
	c.log.Debug("Reputation request", "method", method, "url", apiURL)

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return Score{}, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Score{}, fmt.Errorf("failed to connect to reputation service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Score{}, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Reputation response", "status", resp.StatusCode, "body", string(data))

	if resp.StatusCode != http.StatusOK {
		return Score{}, fmt.Errorf("reputation service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var score Score
	if err := json.Unmarshal(data, &score); err != nil {
		return Score{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return score, nil
}

// GetReputation retrieves the user's reputation score
func (c *HTTPClient) GetReputation(ctx context.Context, userID string) (float64, error) {
	score, err := c.doRequest(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/reputation", nil)
	if err != nil {
		return 0, err
	}
	return score.Reputation, nil
}

// AwardReputation credits points to the user
func (c *HTTPClient) AwardReputation(ctx context.Context, userID string, points float64, reason string) (float64, error) {
	score, err := c.doRequest(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/reputation/awards", AwardRequest{Points: points, Reason: reason})
	if err != nil {
		return 0, err
	}
	c.log.Info("Reputation awarded", "user_id", userID, "points", points, "reason", reason, "reputation", score.Reputation)
	return score.Reputation, nil
}

// Offline is used when no reputation service is configured
type Offline struct{}

// GetReputation always fails with ErrUnavailable
func (Offline) GetReputation(context.Context, string) (float64, error) {
	return 0, ErrUnavailable
}

// AwardReputation always fails with ErrUnavailable
func (Offline) AwardReputation(context.Context, string, float64, string) (float64, error) {
	return 0, ErrUnavailable
}

// Ensure implementations satisfy Client
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = Offline{}
)
