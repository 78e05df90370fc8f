package statistics

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/cache"
)

const (
	CacheKeySnapshot = "statistics:requests:snapshot"
	CacheKeyTotal    = "statistics:requests:total"
	CacheKeyActive   = "statistics:requests:active"
	CacheExpiration  = 30 * time.Minute
)

// Variablen fuer die Cache-Aktualisierungslogik
var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache prueft, ob der Cache aktualisiert werden sollte
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded aktualisiert den Cache, wenn noetig
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer setzt den Timer fuer die Cache-Aktualisierung zurueck
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes the request counters and stores them in
// the cache.
func UpdateStatisticsCache() error {
	repos := repository.GetGlobalRepositories()

	stats, err := repos.TrackedRequest.Statistics()
	if err != nil {
		log.Printf("Error computing request statistics: %v", err)
		return err
	}

	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := cache.Set(CacheKeySnapshot, string(b), CacheExpiration); err != nil {
		log.Printf("Error caching statistics snapshot: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyTotal, strconv.FormatInt(stats.Total, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total requests: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyActive, strconv.FormatInt(stats.Active, 10), CacheExpiration); err != nil {
		log.Printf("Error caching active requests: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Total: %d, Active: %d, Completed: %d",
		stats.Total, stats.Active, stats.Completed)

	return nil
}

// GetTotalRequests returns the total request count from cache or database
func GetTotalRequests() int {
	val, err := cache.Get(CacheKeyTotal)
	if err != nil {
		repos := repository.GetGlobalRepositories()
		count, err := repos.TrackedRequest.Count()
		if err != nil {
			log.Printf("Error counting requests: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total requests: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns the full counter set, refreshing the cache when
// it is stale and falling back to the database on a cold cache.
func GetStatisticsData() (*repository.RequestStatistics, error) {
	UpdateCacheIfNeeded()

	if val, err := cache.Get(CacheKeySnapshot); err == nil && val != "" {
		var stats repository.RequestStatistics
		if err := json.Unmarshal([]byte(val), &stats); err == nil {
			return &stats, nil
		}
	}

	repos := repository.GetGlobalRepositories()
	return repos.TrackedRequest.Statistics()
}
