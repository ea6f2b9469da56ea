package classification

import (
	"database/sql"

	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// CacheEntry is one persisted classification decision, keyed by the asset's
// stable identifier string (never the run-local asset id).
type CacheEntry struct {
	Category models.AssetCategory
	FundType models.FundType
	Notes    string
}

// CacheStore is the durable classification cache. All entries are loaded at
// construction; decisions accumulate in memory and Flush writes the dirty
// ones after a classification pass, not per decision.
type CacheStore struct {
	db      *sql.DB
	entries map[string]CacheEntry
	dirty   map[string]bool
}

// NewCacheStore loads the persisted cache. Load failures are logged and the
// store starts empty; classification proceeds without history for the run.
func NewCacheStore(db *sql.DB) *CacheStore {
	s := &CacheStore{
		db:      db,
		entries: make(map[string]CacheEntry),
		dirty:   make(map[string]bool),
	}
	if db == nil {
		logger.L.Warn("Classification cache running without a database, decisions will not persist")
		return s
	}

	rows, err := db.Query(`SELECT asset_key, category, fund_type, notes FROM classification_cache`)
	if err != nil {
		logger.L.Warn("Failed to load classification cache, starting empty", "error", err)
		return s
	}
	defer rows.Close()

	for rows.Next() {
		var key, category, fundType, notes string
		if err := rows.Scan(&key, &category, &fundType, &notes); err != nil {
			logger.L.Warn("Failed to scan classification cache row", "error", err)
			continue
		}
		cat, err := models.ParseAssetCategory(category)
		if err != nil {
			logger.L.Warn("Discarding malformed classification cache entry", "key", key, "error", err)
			continue
		}
		ft, err := models.ParseFundType(fundType)
		if err != nil {
			logger.L.Warn("Discarding malformed classification cache entry", "key", key, "error", err)
			continue
		}
		s.entries[key] = CacheEntry{Category: cat, FundType: ft, Notes: notes}
	}
	if err := rows.Err(); err != nil {
		logger.L.Warn("Error iterating classification cache rows", "error", err)
	}
	logger.L.Info("Classification cache loaded", "entries", len(s.entries))
	return s
}

// Get returns the cached decision for a key, if any.
func (s *CacheStore) Get(key string) (CacheEntry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Put records a decision in memory and marks it for the next Flush.
func (s *CacheStore) Put(key string, entry CacheEntry) {
	s.entries[key] = entry
	s.dirty[key] = true
}

// Len reports the number of cached decisions.
func (s *CacheStore) Len() int {
	return len(s.entries)
}

// Flush writes the dirty entries to durable storage. Failures are logged and
// the entries stay dirty for a later attempt; they are never lost in memory.
func (s *CacheStore) Flush() {
	if s.db == nil || len(s.dirty) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		logger.L.Warn("Failed to begin classification cache flush", "error", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO classification_cache (asset_key, category, fund_type, notes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset_key) DO UPDATE SET category=excluded.category, fund_type=excluded.fund_type, notes=excluded.notes, updated_at=CURRENT_TIMESTAMP`)
	if err != nil {
		logger.L.Warn("Failed to prepare classification cache flush", "error", err)
		return
	}
	defer stmt.Close()

	for key := range s.dirty {
		e := s.entries[key]
		if _, err := stmt.Exec(key, string(e.Category), string(e.FundType), e.Notes); err != nil {
			logger.L.Warn("Failed to write classification cache entry", "key", key, "error", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		logger.L.Warn("Failed to commit classification cache flush", "error", err)
		return
	}
	flushed := len(s.dirty)
	s.dirty = make(map[string]bool)
	logger.L.Debug("Classification cache flushed", "entries", flushed)
}
