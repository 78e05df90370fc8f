package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/internal/pkg/healthmon"
	"github.com/trackarr/trackarr/internal/pkg/metrics/counter"
	"github.com/trackarr/trackarr/internal/pkg/notify"
	"github.com/trackarr/trackarr/internal/pkg/postermirror"
	"github.com/trackarr/trackarr/internal/pkg/statistics"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

// Manager runs the background task loops: status polling, failed-request
// retries, health checks and maintenance. Each task kind runs in its own
// goroutine and never overlaps itself.
type Manager struct {
	engine   *tracker.Engine
	notifier notify.Notifier
	health   *healthmon.Monitor
	mirror   *postermirror.Mirror // nil when the poster mirror is disabled

	pollTicker        *time.Ticker
	retryTicker       *time.Ticker
	healthTicker      *time.Ticker
	maintenanceTicker *time.Ticker

	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	running bool
}

// NewManager wires a scheduler onto its collaborators. The mirror may be
// nil.
func NewManager(engine *tracker.Engine, notifier notify.Notifier, health *healthmon.Monitor, mirror *postermirror.Mirror) *Manager {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Manager{
		engine:   engine,
		notifier: notifier,
		health:   health,
		mirror:   mirror,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the background task loops
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	log.Info("[Scheduler] Starting background tasks")

	settings := models.GetTrackerSettings()
	stopCh := m.stopCh

	m.pollTicker = time.NewTicker(settings.PollInterval)
	m.wg.Add(1)
	go m.pollWorker(ctx, stopCh, settings.PollInterval)

	m.retryTicker = time.NewTicker(settings.FailedRetryInterval)
	m.wg.Add(1)
	go m.retryWorker(ctx, stopCh, settings.FailedRetryInterval)

	m.healthTicker = time.NewTicker(settings.HealthInterval)
	m.wg.Add(1)
	go m.healthWorker(ctx, stopCh, settings.HealthInterval)

	m.maintenanceTicker = time.NewTicker(settings.MaintenanceInterval)
	m.wg.Add(1)
	go m.maintenanceWorker(ctx, stopCh, settings.MaintenanceInterval)

	log.Info("[Scheduler] Started successfully")
}

// Stop stops the background task loops and waits for in-flight runs
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Scheduler] Stopping background tasks...")

	if m.pollTicker != nil {
		m.pollTicker.Stop()
	}
	if m.retryTicker != nil {
		m.retryTicker.Stop()
	}
	if m.healthTicker != nil {
		m.healthTicker.Stop()
	}
	if m.maintenanceTicker != nil {
		m.maintenanceTicker.Stop()
	}

	// Signal workers to stop
	m.cancel()
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	log.Info("[Scheduler] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// pollWorker polls for status updates. The first run happens immediately so
// a fresh deployment catches up without waiting a full interval.
func (m *Manager) pollWorker(ctx context.Context, stopCh chan struct{}, interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Scheduler] Started poll worker (interval: %s)", interval)

	// run once immediately
	m.runPollOnce(ctx)

	for {
		select {
		case <-stopCh:
			log.Info("[Scheduler] Poll worker stopping")
			return
		case <-m.pollTicker.C:
			m.runPollOnce(ctx)
		}
	}
}

func (m *Manager) runPollOnce(ctx context.Context) {
	updates, err := m.engine.CheckForUpdates(ctx)
	if err != nil {
		log.Errorf("[Scheduler] Status poll error: %v", err)
	}
	if len(updates) == 0 {
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := m.notifier.NotifyStatusChanges(notifyCtx, updates); err != nil {
		log.Errorf("[Scheduler] Notification delivery error: %v", err)
		return
	}
	m.engine.MarkUpdatesNotified(updates)
}

// retryWorker re-submits failed requests whose backoff has elapsed
func (m *Manager) retryWorker(ctx context.Context, stopCh chan struct{}, interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Scheduler] Started failed-request retry worker (interval: %s)", interval)

	for {
		select {
		case <-stopCh:
			log.Info("[Scheduler] Retry worker stopping")
			return
		case <-m.retryTicker.C:
			stats, err := m.engine.ProcessFailedRequests(ctx, models.GetTrackerSettings().RetryBatchLimit)
			if err != nil {
				log.Errorf("[Scheduler] Failed-request retry error: %v", err)
			}
			if stats.Retried+stats.FailedAgain+stats.MaxFailuresReached > 0 {
				log.Infof("[Scheduler] Retry pass: %d resubmitted, %d failed again, %d gave up",
					stats.Retried, stats.FailedAgain, stats.MaxFailuresReached)
			}
		}
	}
}

// healthWorker probes the collaborators. Runs once immediately so GET
// /health has data right after startup.
func (m *Manager) healthWorker(ctx context.Context, stopCh chan struct{}, interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Scheduler] Started health worker (interval: %s)", interval)

	// run once immediately
	m.health.RunOnce(ctx)

	for {
		select {
		case <-stopCh:
			log.Info("[Scheduler] Health worker stopping")
			return
		case <-m.healthTicker.C:
			m.health.RunOnce(ctx)
		}
	}
}

// maintenanceWorker runs the housekeeping pass: cleanup, history repair,
// statistics refresh and poster mirroring
func (m *Manager) maintenanceWorker(ctx context.Context, stopCh chan struct{}, interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[Scheduler] Started maintenance worker (interval: %s)", interval)

	for {
		select {
		case <-stopCh:
			log.Info("[Scheduler] Maintenance worker stopping")
			return
		case <-m.maintenanceTicker.C:
			m.runMaintenanceOnce(ctx)
		}
	}
}

func (m *Manager) runMaintenanceOnce(ctx context.Context) {
	log.Debug("[Scheduler] Running maintenance pass")

	settings := models.GetTrackerSettings()
	if _, err := m.engine.CleanupInactiveRequests(settings.CleanupAfterDays); err != nil {
		log.Errorf("[Scheduler] Cleanup error: %v", err)
	}
	if repaired, err := m.engine.ReconcileHistory(ctx); err != nil {
		log.Errorf("[Scheduler] History reconciliation error: %v", err)
	} else if repaired > 0 {
		log.Warnf("[Scheduler] Repaired %d inconsistent history trails", repaired)
	}
	if err := statistics.UpdateStatisticsCache(); err != nil {
		log.Errorf("[Scheduler] Statistics refresh error: %v", err)
	}
	if err := counter.FlushAll(); err != nil {
		log.Errorf("[Scheduler] Counter flush error: %v", err)
	}
	if m.mirror != nil {
		if _, err := m.mirror.RunOnce(ctx, settings.RetryBatchLimit); err != nil {
			log.Errorf("[Scheduler] Poster mirror error: %v", err)
		}
	}
}

// RunMaintenanceOnce exposes a manual trigger for a single maintenance pass (admin use).
func (m *Manager) RunMaintenanceOnce(ctx context.Context) {
	m.runMaintenanceOnce(ctx)
}
