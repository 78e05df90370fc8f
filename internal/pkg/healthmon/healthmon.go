package healthmon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/app/repository"
	"github.com/trackarr/trackarr/internal/pkg/cache"
	"github.com/trackarr/trackarr/internal/pkg/database"
	"github.com/trackarr/trackarr/internal/pkg/notify"
)

const (
	// SnapshotCacheKey holds the JSON snapshot served by GET /health.
	SnapshotCacheKey = "health:snapshot"
	snapshotTTL      = 10 * time.Minute

	probeTimeout = 10 * time.Second

	// alertThreshold is the consecutive-failure count that triggers an
	// outage notification; alertCooldown throttles repeats per service.
	alertThreshold = 3
	alertCooldown  = time.Hour
)

// Prober is the slice of the external client the monitor depends on.
type Prober interface {
	Health(ctx context.Context) (time.Duration, error)
}

// ServiceStatus is one service's entry in the cached snapshot.
type ServiceStatus struct {
	ServiceName         string     `json:"service_name"`
	Healthy             bool       `json:"healthy"`
	ResponseTimeMs      *int       `json:"response_time_ms"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at"`
	CheckedAt           time.Time  `json:"checked_at"`
}

// Snapshot is the aggregate health view cached in Redis.
type Snapshot struct {
	Healthy     bool            `json:"healthy"`
	Services    []ServiceStatus `json:"services"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Monitor probes the external service, the database and the cache, persists
// the results and raises webhook alerts on sustained outages.
type Monitor struct {
	health   repository.ServiceHealthRepository
	prober   Prober
	notifier notify.Notifier

	mu          sync.Mutex
	alerted     map[string]bool
	lastAlertAt map[string]time.Time
}

// NewMonitor wires a monitor onto the health repository, the external
// prober and the notifier.
func NewMonitor(health repository.ServiceHealthRepository, prober Prober, notifier notify.Notifier) *Monitor {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Monitor{
		health:      health,
		prober:      prober,
		notifier:    notifier,
		alerted:     make(map[string]bool),
		lastAlertAt: make(map[string]time.Time),
	}
}

// RunOnce probes every service, records the results and refreshes the
// cached snapshot. Probe failures are recorded, never returned.
func (m *Monitor) RunOnce(ctx context.Context) {
	m.probeJellyseerr(ctx)
	m.probeDatabase(ctx)
	m.probeCache(ctx)
	m.refreshSnapshot()
}

func (m *Monitor) probeJellyseerr(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	latency, err := m.prober.Health(probeCtx)
	if err != nil {
		m.record(ctx, models.ServiceJellyseerr, false, nil, err.Error())
		return
	}
	ms := int(latency.Milliseconds())
	m.record(ctx, models.ServiceJellyseerr, true, &ms, "")
}

func (m *Monitor) probeDatabase(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	db := database.GetDB()
	if db == nil {
		m.record(ctx, models.ServiceDatabase, false, nil, "database not initialized")
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		m.record(ctx, models.ServiceDatabase, false, nil, err.Error())
		return
	}

	start := time.Now()
	if err := sqlDB.PingContext(probeCtx); err != nil {
		m.record(ctx, models.ServiceDatabase, false, nil, err.Error())
		return
	}
	ms := int(time.Since(start).Milliseconds())
	m.record(ctx, models.ServiceDatabase, true, &ms, "")
}

func (m *Monitor) probeCache(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := cache.Ping(probeCtx); err != nil {
		m.record(ctx, models.ServiceCache, false, nil, err.Error())
		return
	}
	ms := int(time.Since(start).Milliseconds())
	m.record(ctx, models.ServiceCache, true, &ms, "")
}

func (m *Monitor) record(ctx context.Context, serviceName string, healthy bool, responseTimeMs *int, probeErr string) {
	if err := m.health.Record(serviceName, healthy, responseTimeMs, probeErr); err != nil {
		log.Errorf("[HealthMon] Recording %s health failed: %v", serviceName, err)
		return
	}
	if !healthy {
		log.Warnf("[HealthMon] %s unhealthy: %s", serviceName, probeErr)
	}
	m.maybeAlert(ctx, serviceName, healthy, probeErr)
}

// maybeAlert sends an outage alert after alertThreshold consecutive
// failures, throttled by alertCooldown, and a recovery alert once the
// service comes back.
func (m *Monitor) maybeAlert(ctx context.Context, serviceName string, healthy bool, probeErr string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if healthy {
		if m.alerted[serviceName] {
			m.alerted[serviceName] = false
			if err := m.notifier.NotifyHealthAlert(ctx, serviceName, true, ""); err != nil {
				log.Errorf("[HealthMon] Recovery alert for %s failed: %v", serviceName, err)
			}
		}
		return
	}

	row, err := m.health.Get(serviceName)
	if err != nil {
		log.Errorf("[HealthMon] Loading %s health row failed: %v", serviceName, err)
		return
	}
	if row.ConsecutiveFailures < alertThreshold {
		return
	}
	if time.Since(m.lastAlertAt[serviceName]) < alertCooldown {
		return
	}

	m.alerted[serviceName] = true
	m.lastAlertAt[serviceName] = time.Now()
	log.Warnf("[HealthMon] %s down for %d consecutive checks, alerting", serviceName, row.ConsecutiveFailures)
	if err := m.notifier.NotifyHealthAlert(ctx, serviceName, false, probeErr); err != nil {
		log.Errorf("[HealthMon] Outage alert for %s failed: %v", serviceName, err)
	}
}

// refreshSnapshot rebuilds the cached JSON snapshot from the stored rows.
func (m *Monitor) refreshSnapshot() {
	rows, err := m.health.GetAll()
	if err != nil {
		log.Errorf("[HealthMon] Loading health rows failed: %v", err)
		return
	}

	snap := Snapshot{Healthy: true, GeneratedAt: time.Now()}
	for _, row := range rows {
		snap.Services = append(snap.Services, ServiceStatus{
			ServiceName:         row.ServiceName,
			Healthy:             row.IsHealthy,
			ResponseTimeMs:      row.ResponseTimeMs,
			ConsecutiveFailures: row.ConsecutiveFailures,
			LastError:           row.LastError,
			LastSuccessAt:       row.LastSuccessAt,
			CheckedAt:           row.LastCheckAt,
		})
		if !row.IsHealthy {
			snap.Healthy = false
		}
	}

	b, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("[HealthMon] Marshalling health snapshot failed: %v", err)
		return
	}
	if err := cache.Set(SnapshotCacheKey, string(b), snapshotTTL); err != nil {
		log.Errorf("[HealthMon] Caching health snapshot failed: %v", err)
	}
}

// GetSnapshot serves the cached snapshot, falling back to the stored rows
// when the cache is cold.
func (m *Monitor) GetSnapshot() (*Snapshot, error) {
	if val, err := cache.Get(SnapshotCacheKey); err == nil && val != "" {
		var snap Snapshot
		if err := json.Unmarshal([]byte(val), &snap); err == nil {
			return &snap, nil
		}
	}

	rows, err := m.health.GetAll()
	if err != nil {
		return nil, fmt.Errorf("load service health: %w", err)
	}
	snap := Snapshot{Healthy: true, GeneratedAt: time.Now()}
	for _, row := range rows {
		snap.Services = append(snap.Services, ServiceStatus{
			ServiceName:         row.ServiceName,
			Healthy:             row.IsHealthy,
			ResponseTimeMs:      row.ResponseTimeMs,
			ConsecutiveFailures: row.ConsecutiveFailures,
			LastError:           row.LastError,
			LastSuccessAt:       row.LastSuccessAt,
			CheckedAt:           row.LastCheckAt,
		})
		if !row.IsHealthy {
			snap.Healthy = false
		}
	}
	return &snap, nil
}
