package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var DB *sql.DB

// InitDatabase opens the connection pool and verifies it with a ping.
func InitDatabase(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	DB, err = sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("connected to database")
	return nil
}

// CreateTables creates the schema if it does not exist.
func CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookmarks (
			id SERIAL PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			site_name TEXT NOT NULL DEFAULT '',
			is_tracked BOOLEAN DEFAULT FALSE,
			currency VARCHAR(3) DEFAULT 'INR',
			current_price DECIMAL(12,2),
			previous_price DECIMAL(12,2),
			last_checked TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id SERIAL PRIMARY KEY,
			bookmark_id INTEGER REFERENCES bookmarks(id) ON DELETE CASCADE,
			price DECIMAL(12,2) NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookmarks_tracked ON bookmarks (is_tracked) WHERE is_tracked`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_bookmark ON price_history (bookmark_id, recorded_at)`,
	}

	for _, query := range queries {
		if _, err := DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// CloseDatabase closes the connection pool.
func CloseDatabase() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
