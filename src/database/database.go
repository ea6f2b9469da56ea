package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/steuerfolio/src/logger"
	_ "modernc.org/sqlite"
)

// InitDB opens the cache database and ensures the schema exists. The same
// file backs both durable caches (classification decisions and exchange
// rates); concurrent runs against it are not supported.
func InitDB(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Printf("failed to open cache database at %s: %v", databasePath, err)
		return nil, err
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS classification_cache (
		asset_key TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		fund_type TEXT,
		notes TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rate_cache (
		day TEXT NOT NULL,
		currency TEXT NOT NULL,
		rate TEXT NOT NULL, -- decimal string; '' marks a known-missing rate
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (day, currency)
	);
	`

	if _, err := db.Exec(createTableStatement); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create cache tables", "error", err)
		}
		db.Close()
		return nil, err
	}
	if logger.L != nil {
		logger.L.Info("Cache database tables ensured/created.", "databasePath", databasePath)
	}
	return db, nil
}
