package mocks

import (
	"github.com/gunbamguy/lolpick/internal/logger"
	"github.com/gunbamguy/lolpick/internal/store"
)

// MockPostgresStore provides a mock Postgres implementation using SQLite for local development
type MockPostgresStore struct {
	store.Store
}

// NewMockPostgresStore creates a mock Postgres store backed by SQLite
func NewMockPostgresStore(sqliteFile string) (*MockPostgresStore, error) {
	logger.Info("Using MOCK Postgres (SQLite) for local development")

	sqliteStore, err := store.NewSQLiteStore(sqliteFile)
	if err != nil {
		return nil, err
	}

	return &MockPostgresStore{
		Store: sqliteStore,
	}, nil
}
