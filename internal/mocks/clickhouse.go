package mocks

import (
	"math/rand"

	"github.com/gunbamguy/lolpick/internal/logger"
	"github.com/gunbamguy/lolpick/internal/roster"
)

// MockClickHouseClient provides a mock ClickHouse client for local development.
// Base form scores are derived from the player catalog so every player
// gets a stable, plausible score without a real warehouse.
type MockClickHouseClient struct {
	baseScores map[string]int
}

// NewMockClickHouseClient creates a mock ClickHouse client
func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")

	baseScores := make(map[string]int)
	for _, p := range roster.DefaultCatalog().Players() {
		seed := 0
		for _, c := range p.ID {
			seed += int(c)
		}
		// Keep scores in a realistic 200-320 band
		baseScores[p.ID] = 200 + seed%121
	}

	return &MockClickHouseClient{baseScores: baseScores}
}

// GetFormScore returns a mock form score with slight variation
func (m *MockClickHouseClient) GetFormScore(playerID string) (int, error) {
	base, ok := m.baseScores[playerID]
	if !ok {
		base = 200 // Default for unknown players
	}

	// Add some randomness for realism (±10%)
	variance := rand.Intn(int(float64(base)*0.2)) - int(float64(base)*0.1)
	return base + variance, nil
}

// GetAllFormScores returns mock form scores for the whole catalog
func (m *MockClickHouseClient) GetAllFormScores() (map[string]int, error) {
	result := make(map[string]int)
	for id, base := range m.baseScores {
		variance := rand.Intn(int(float64(base)*0.2)) - int(float64(base)*0.1)
		result[id] = base + variance
	}
	return result, nil
}

// SyncFormScores pushes mock scores through updateFunc
func (m *MockClickHouseClient) SyncFormScores(updateFunc func(playerID string, score int) error) error {
	allScores, err := m.GetAllFormScores()
	if err != nil {
		return err
	}

	for playerID, score := range allScores {
		if err := updateFunc(playerID, score); err != nil {
			logger.Warn("Failed to update form score", "player_id", playerID, "error", err)
		}
	}

	logger.Debug("Mock ClickHouse: Synced form scores for all players")
	return nil
}

// Close is a no-op for mock client
func (m *MockClickHouseClient) Close() error {
	return nil
}
