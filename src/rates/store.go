package rates

import (
	"database/sql"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/logger"
)

// missMarker is stored for (day, currency) pairs the fetcher definitively
// had no rate for, so a later run does not retry the network for them.
const missMarker = ""

// Store is the durable exchange-rate cache. Like the classification cache it
// loads fully at construction and flushes dirty entries after the enrichment
// pass rather than per lookup.
type Store struct {
	db      *sql.DB
	entries map[string]string // "day|ccy" -> decimal string or missMarker
	dirty   map[string]bool
}

func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:      db,
		entries: make(map[string]string),
		dirty:   make(map[string]bool),
	}
	if db == nil {
		logger.L.Warn("Rate cache running without a database, rates will not persist")
		return s
	}

	rows, err := db.Query(`SELECT day, currency, rate FROM rate_cache`)
	if err != nil {
		logger.L.Warn("Failed to load rate cache, starting empty", "error", err)
		return s
	}
	defer rows.Close()

	for rows.Next() {
		var day, currency, rate string
		if err := rows.Scan(&day, &currency, &rate); err != nil {
			logger.L.Warn("Failed to scan rate cache row", "error", err)
			continue
		}
		s.entries[day+"|"+currency] = rate
	}
	if err := rows.Err(); err != nil {
		logger.L.Warn("Error iterating rate cache rows", "error", err)
	}
	logger.L.Info("Rate cache loaded", "entries", len(s.entries))
	return s
}

// Get returns (rate, found, isMiss): found=false means the pair was never
// cached, isMiss=true means it is cached as a known-missing rate.
func (s *Store) Get(day, currency string) (decimal.Decimal, bool, bool) {
	v, ok := s.entries[day+"|"+currency]
	if !ok {
		return decimal.Zero, false, false
	}
	if v == missMarker {
		return decimal.Zero, true, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		logger.L.Warn("Discarding malformed rate cache entry", "day", day, "currency", currency, "value", v)
		delete(s.entries, day+"|"+currency)
		return decimal.Zero, false, false
	}
	return d, true, false
}

// PutRate caches a fetched rate.
func (s *Store) PutRate(day, currency string, rate decimal.Decimal) {
	key := day + "|" + currency
	s.entries[key] = rate.String()
	s.dirty[key] = true
}

// PutMiss caches an explicit no-rate-for-this-day result.
func (s *Store) PutMiss(day, currency string) {
	key := day + "|" + currency
	s.entries[key] = missMarker
	s.dirty[key] = true
}

// Flush persists dirty entries. Failures are logged, never fatal.
func (s *Store) Flush() {
	if s.db == nil || len(s.dirty) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		logger.L.Warn("Failed to begin rate cache flush", "error", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO rate_cache (day, currency, rate) VALUES (?, ?, ?)
		ON CONFLICT(day, currency) DO UPDATE SET rate=excluded.rate, updated_at=CURRENT_TIMESTAMP`)
	if err != nil {
		logger.L.Warn("Failed to prepare rate cache flush", "error", err)
		return
	}
	defer stmt.Close()

	for key := range s.dirty {
		// key is "day|ccy"; both halves are free of '|'.
		day, currency := key[:10], key[11:]
		if _, err := stmt.Exec(day, currency, s.entries[key]); err != nil {
			logger.L.Warn("Failed to write rate cache entry", "key", key, "error", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		logger.L.Warn("Failed to commit rate cache flush", "error", err)
		return
	}
	flushed := len(s.dirty)
	s.dirty = make(map[string]bool)
	logger.L.Debug("Rate cache flushed", "entries", flushed)
}
