package coordinator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// CacheKey identity of one estimation call
type CacheKey struct {
	TargetPoints    float64
	CurrentPoints   *float64 // nil = derived from the series
	Start           time.Time
	End             time.Time
	Mode            contracts.Mode
	ConfidenceLevel float64
	ItemID          string
}

// String canonical text form
func (k CacheKey) String() string {
	current := "auto"
	if k.CurrentPoints != nil {
		current = strconv.FormatFloat(*k.CurrentPoints, 'g', -1, 64)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		strconv.FormatFloat(k.TargetPoints, 'g', -1, 64),
		current,
		k.Start.Format("2006-01-02"),
		k.End.Format("2006-01-02"),
		k.Mode,
		strconv.FormatFloat(k.ConfidenceLevel, 'g', -1, 64),
		k.ItemID,
	)
}

// Fingerprint short stable hash for external stores
func (k CacheKey) Fingerprint() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:16])
}

type cacheEntry struct {
	result   contracts.CompositeResult
	storedAt time.Time
}

// CacheStats cache counters
type CacheStats struct {
	Entries    int     `json:"entries"`
	Fresh      int     `json:"fresh"`
	Expired    int     `json:"expired"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	RemoteHits int64   `json:"remote_hits"`
	HitRate    float64 `json:"hit_rate"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// ResultCache in-memory TTL store of composite results
// ⭐ SSOT: 추정 결과 캐싱은 이 구조체에서만
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	hits       int64
	misses     int64
	remoteHits int64
}

// NewResultCache creates a cache; now is the clock used for expiry
func NewResultCache(ttl time.Duration, now func() time.Time, logger zerolog.Logger) *ResultCache {
	if now == nil {
		now = time.Now
	}
	return &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
		logger:  logger.With().Str("component", "coordinator.cache").Logger(),
	}
}

// Get returns a stored result still inside the TTL
func (c *ResultCache) Get(key CacheKey) (contracts.CompositeResult, bool) {
	k := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[k]
	if !ok {
		c.misses++
		return contracts.CompositeResult{}, false
	}

	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, k)
		c.misses++
		c.logger.Debug().Str("key", k).Msg("cache entry expired")
		return contracts.CompositeResult{}, false
	}

	c.hits++
	return entry.result.Clone(), true
}

// Put stores a copy of result stamped with the current time.
// Get also hands out copies, so callers may modify what they receive.
func (c *ResultCache) Put(key CacheKey, result contracts.CompositeResult) {
	stored := result.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.String()] = cacheEntry{result: stored, storedAt: c.now()}
}

// recordRemoteHit counts a hit served by the second tier
func (c *ResultCache) recordRemoteHit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remoteHits++
	// the memory lookup before it was counted as a miss
	c.misses--
	c.hits++
}

// Clear drops every entry and returns how many were removed
func (c *ResultCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	c.logger.Info().Int("count", n).Msg("cleared result cache")
	return n
}

// CleanExpired removes entries past the TTL
func (c *ResultCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for k, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, k)
			count++
		}
	}

	if count > 0 {
		c.logger.Info().Int("count", count).Msg("cleaned expired results from cache")
	}
	return count
}

// Len returns the number of stored entries, expired ones included
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Stats returns cache statistics
func (c *ResultCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Entries:    len(c.entries),
		Hits:       c.hits,
		Misses:     c.misses,
		RemoteHits: c.remoteHits,
		TTLSeconds: c.ttl.Seconds(),
	}

	now := c.now()
	for _, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			stats.Expired++
		}
	}
	stats.Fresh = stats.Entries - stats.Expired

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
