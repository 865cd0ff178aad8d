package api

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"wetterpost/internal/errorutil"
	"wetterpost/internal/logger"
	"wetterpost/post"
)

const cacheSchemaVersion = 1

// WeatherCache is the on-disk forecast cache. It is only valid on the local
// date it was created.
type WeatherCache struct {
	CreatedOn     string       `toml:"created_on"` // YYYY-MM-DD, local time
	CreatedAt     int64        `toml:"created_at"`
	SchemaVersion int          `toml:"schema_version"`
	Entries       []CacheEntry `toml:"entries"`
}

// CacheEntry holds one normalized forecast for a coordinate pair.
type CacheEntry struct {
	Key      string        `toml:"key"`
	Provider string        `toml:"provider"`
	Days     []ForecastDay `toml:"days"`
}

// CacheManager handles weather cache operations
type CacheManager struct {
	filePath string
	now      func() time.Time
}

// NewCacheManager creates a new cache manager instance
func NewCacheManager(filePath string) *CacheManager {
	return &CacheManager{filePath: filePath, now: time.Now}
}

func cacheKey(at post.Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f", at.Lat, at.Lon)
}

func (cm *CacheManager) today() string {
	return cm.now().Format("2006-01-02")
}

// IsValidForToday checks if the cache is valid for the current day
func (cm *CacheManager) IsValidForToday() bool {
	cache, err := cm.Read()
	if err != nil {
		logger.Debug("Cache not valid: %v", err)
		return false
	}
	return cache.CreatedOn == cm.today()
}

// Read loads and validates the cache file
func (cm *CacheManager) Read() (*WeatherCache, error) {
	data, err := os.ReadFile(cm.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cache file does not exist: %s", cm.filePath)
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var cache WeatherCache
	if err := toml.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse cache TOML: %w", err)
	}
	if cache.SchemaVersion != cacheSchemaVersion {
		return nil, fmt.Errorf("unsupported cache schema version: %d", cache.SchemaVersion)
	}
	return &cache, nil
}

// Lookup returns today's cached forecast for at if it covers days.
func (cm *CacheManager) Lookup(at post.Coordinates, days int) ([]ForecastDay, bool) {
	cache, err := cm.Read()
	if err != nil || cache.CreatedOn != cm.today() {
		return nil, false
	}

	key := cacheKey(at)
	for _, entry := range cache.Entries {
		if entry.Key == key && len(entry.Days) >= days {
			logger.Debug("Forecast cache hit: key=%s, provider=%s", key, entry.Provider)
			return append([]ForecastDay(nil), entry.Days[:days]...), true
		}
	}
	return nil, false
}

// Store records a forecast for at. A cache from an earlier day is replaced.
func (cm *CacheManager) Store(at post.Coordinates, provider string, days []ForecastDay) error {
	complete := logger.LogOperationStart("cache_write", map[string]any{
		"file_path": cm.filePath,
		"key":       cacheKey(at),
	})

	cache, err := cm.Read()
	if err != nil || cache.CreatedOn != cm.today() {
		now := cm.now()
		cache = &WeatherCache{
			CreatedOn:     now.Format("2006-01-02"),
			CreatedAt:     now.Unix(),
			SchemaVersion: cacheSchemaVersion,
		}
	}

	entry := CacheEntry{Key: cacheKey(at), Provider: provider, Days: days}
	replaced := false
	for i := range cache.Entries {
		if cache.Entries[i].Key == entry.Key {
			cache.Entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		cache.Entries = append(cache.Entries, entry)
	}

	data, err := toml.Marshal(cache)
	if err != nil {
		complete(err)
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := errorutil.SafeFileWrite(logger.Get().Logger, cm.filePath, data, 0644); err != nil {
		complete(err)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	logger.LogFileOperation("cache_write", cm.filePath, int64(len(data)))
	complete(nil)
	return nil
}

// Delete removes the cache file (used for testing or manual cache clearing)
func (cm *CacheManager) Delete() error {
	if err := os.Remove(cm.filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}
