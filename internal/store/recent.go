package store

import (
	"encoding/json"
	"sync"

	"glasscast/internal/models"

	"go.uber.org/zap"
)

const recentSearchesKey = "recentSearches"

// RecentSearchCache keeps the last searched cities, most recent first,
// deduplicated by exact coordinates and capped at a fixed size. The list is
// persisted through the local store so it survives restarts; a missing or
// undecodable blob just means an empty list.
type RecentSearchCache struct {
	mu      sync.Mutex
	entries []models.WeatherSnapshot
	max     int
	local   *LocalStore
	logger  *zap.Logger
}

func NewRecentSearchCache(local *LocalStore, max int, logger *zap.Logger) *RecentSearchCache {
	c := &RecentSearchCache{
		max:    max,
		local:  local,
		logger: logger,
	}
	c.load()
	return c
}

func (c *RecentSearchCache) load() {
	data, ok, err := c.local.Get(recentSearchesKey)
	if err != nil {
		c.logger.Warn("Failed to load recent searches", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	var entries []models.WeatherSnapshot
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("Discarding undecodable recent searches", zap.Error(err))
		return
	}
	c.entries = entries
}

func (c *RecentSearchCache) save() {
	data, err := json.Marshal(c.entries)
	if err != nil {
		c.logger.Warn("Failed to encode recent searches", zap.Error(err))
		return
	}
	if err := c.local.Put(recentSearchesKey, data); err != nil {
		c.logger.Warn("Failed to persist recent searches", zap.Error(err))
	}
}

// Add inserts a snapshot at the front. An entry with the same exact
// coordinates is replaced and moved to the front; on overflow the oldest
// entry is evicted.
func (c *RecentSearchCache) Add(snapshot models.WeatherSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.Coordinates == snapshot.Coordinates {
			continue
		}
		kept = append(kept, e)
	}

	c.entries = append([]models.WeatherSnapshot{snapshot}, kept...)
	if len(c.entries) > c.max {
		c.entries = c.entries[:c.max]
	}

	c.save()
}

// List returns the entries most recent first.
func (c *RecentSearchCache) List() []models.WeatherSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.WeatherSnapshot, len(c.entries))
	copy(out, c.entries)
	return out
}

// Clear drops all entries and the persisted blob.
func (c *RecentSearchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	if err := c.local.Delete(recentSearchesKey); err != nil {
		c.logger.Warn("Failed to clear persisted recent searches", zap.Error(err))
	}
}
