package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Client provides ClickHouse integration for player form scores.
// Form scores summarize recent match activity and are shown next to
// each player in the catalog.
type Client struct {
	conn driver.Conn
}

// NewClient creates a new ClickHouse client
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{conn: conn}, nil
}

// GetFormScore retrieves the form score for a single player
func (c *Client) GetFormScore(playerID string) (int, error) {
	var score int

	query := `
		SELECT
			toInt32(
				sum(win) * 3 +                  -- Wins weigh the most
				count() +                        -- Games played
				avg(kda_ratio) * 10              -- Average KDA
			) as form_score
		FROM player_matches
		WHERE player_id = $1
		AND played_at >= now() - INTERVAL 30 DAY
	`

	row := c.conn.QueryRow(context.Background(), query, playerID)
	if err := row.Scan(&score); err != nil {
		return 0, err
	}

	return score, nil
}

// GetAllFormScores retrieves form scores for every player with recent matches
func (c *Client) GetAllFormScores() (map[string]int, error) {
	scores := make(map[string]int)

	query := `
		SELECT
			player_id,
			toInt32(
				sum(win) * 3 +
				count() +
				avg(kda_ratio) * 10
			) as form_score
		FROM player_matches
		WHERE played_at >= now() - INTERVAL 30 DAY
		GROUP BY player_id
	`

	rows, err := c.conn.Query(context.Background(), query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var score int
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		scores[id] = score
	}

	return scores, nil
}

// SyncFormScores pushes fresh scores through updateFunc. Called
// periodically to keep the cached scores up to date.
func (c *Client) SyncFormScores(updateFunc func(playerID string, score int) error) error {
	allScores, err := c.GetAllFormScores()
	if err != nil {
		return err
	}

	for playerID, score := range allScores {
		if err := updateFunc(playerID, score); err != nil {
			return fmt.Errorf("failed to update form score for %s: %w", playerID, err)
		}
	}

	return nil
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
