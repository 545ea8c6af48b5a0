package reputation

import (
	"context"
	"sync"
)

// Award is one recorded AwardReputation call
type Award struct {
	UserID string
	Points float64
	Reason string
}

// MockClient is an in-memory reputation client for testing
type MockClient struct {
	mu           sync.Mutex
	scores       map[string]float64
	defaultScore float64
	getErr       error
	awardErr     error
	awards       []Award
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithScores sets per-user scores
func WithScores(scores map[string]float64) MockOption {
	return func(m *MockClient) {
		for k, v := range scores {
			m.scores[k] = v
		}
	}
}

// WithDefaultScore sets the score for users without an explicit one
func WithDefaultScore(score float64) MockOption {
	return func(m *MockClient) {
		m.defaultScore = score
	}
}

// WithGetError sets an error to return from GetReputation
func WithGetError(err error) MockOption {
	return func(m *MockClient) {
		m.getErr = err
	}
}

// WithAwardError sets an error to return from AwardReputation
func WithAwardError(err error) MockOption {
	return func(m *MockClient) {
		m.awardErr = err
	}
}

// NewMockClient creates a new mock reputation client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{scores: make(map[string]float64)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetScore changes a user's score
func (m *MockClient) SetScore(userID string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[userID] = score
}

// GetReputation returns the configured score or error
func (m *MockClient) GetReputation(ctx context.Context, userID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	if score, ok := m.scores[userID]; ok {
		return score, nil
	}
	return m.defaultScore, nil
}

// AwardReputation records the award and raises the user's score
func (m *MockClient) AwardReputation(ctx context.Context, userID string, points float64, reason string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.awardErr != nil {
		return 0, m.awardErr
	}
	score, ok := m.scores[userID]
	if !ok {
		score = m.defaultScore
	}
	score += points
	m.scores[userID] = score
	m.awards = append(m.awards, Award{UserID: userID, Points: points, Reason: reason})
	return score, nil
}

// Awards returns the recorded awards (for testing)
func (m *MockClient) Awards() []Award {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Award(nil), m.awards...)
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)
