package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// ErrOffline is returned by a manual sync while the backend is unreachable
var ErrOffline = errors.New("backend is offline")

// Trigger names what started a sync run
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerPeriodic  Trigger = "periodic"
	TriggerReconnect Trigger = "reconnect"
)

// Sync run results reported to the Recorder
const (
	resultCompleted = "completed"
	resultFailed    = "failed"
	resultSkipped   = "skipped"
)

// SyncService keeps local storage in step with the backend. It probes
// connectivity, uploads queued sales and pulls catalogue deltas.
type SyncService struct {
	api      BackendAPI
	store    repositories.SyncStore
	events   *EventBus
	recorder Recorder
	logger   *logrus.Logger
	now      func() time.Time

	syncing atomic.Bool

	mu           sync.RWMutex
	config       models.SyncConfig
	online       bool
	lastSyncTime *time.Time
	errors       []string
	running      bool
	lifeCtx      context.Context
	lifeCancel   context.CancelFunc
	loopCancel   context.CancelFunc
	syncCancel   context.CancelFunc

	loopWG sync.WaitGroup
	syncWG sync.WaitGroup
}

// NewSyncService creates a stopped orchestrator
func NewSyncService(api BackendAPI, store repositories.SyncStore, events *EventBus, cfg models.SyncConfig, logger *logrus.Logger) *SyncService {
	if logger == nil {
		logger = logrus.New()
	}
	if events == nil {
		events = NewEventBus(logger)
	}

	return &SyncService{
		api:      api,
		store:    store,
		events:   events,
		recorder: nopRecorder{},
		logger:   logger,
		now:      time.Now,
		config:   cfg.WithDefaults(),
	}
}

// WithRecorder reports sync measurements to r
func (s *SyncService) WithRecorder(r Recorder) *SyncService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// Events returns the bus the service publishes to
func (s *SyncService) Events() *EventBus {
	return s.events
}

// Start runs one heartbeat immediately and schedules the heartbeat and
// periodic sync loops. Calling Start on a running service does nothing.
func (s *SyncService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.lifeCtx, s.lifeCancel = context.WithCancel(context.Background())
	cfg := s.config
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"sync_interval":      cfg.SyncInterval(),
		"heartbeat_interval": cfg.HeartbeatInterval(),
		"max_retry_attempts": cfg.MaxRetryAttempts,
	}).Info("Starting sync service")

	s.startLoops(cfg)
}

func (s *SyncService) startLoops(cfg models.SyncConfig) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(s.lifeCtx)
	s.loopCancel = cancel
	s.mu.Unlock()

	s.loopWG.Add(2)
	go s.heartbeatLoop(ctx, cfg.HeartbeatInterval())
	go s.periodicLoop(ctx, cfg.SyncInterval())
}

func (s *SyncService) stopLoops() {
	s.mu.Lock()
	cancel := s.loopCancel
	s.loopCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.loopWG.Wait()
}

// Stop cancels both loops and any sync in flight. It is idempotent and
// must not be called from an event handler.
func (s *SyncService) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.online = false
	lifeCancel := s.lifeCancel
	loopCancel := s.loopCancel
	syncCancel := s.syncCancel
	s.lifeCancel = nil
	s.loopCancel = nil
	s.mu.Unlock()

	s.syncing.Store(false)

	if loopCancel != nil {
		loopCancel()
	}
	if lifeCancel != nil {
		lifeCancel()
	}
	if syncCancel != nil {
		syncCancel()
	}

	s.loopWG.Wait()
	s.syncWG.Wait()
	s.recorder.SetOnline(false)

	if wasRunning {
		s.logger.Info("Sync service stopped")
	}
}

func (s *SyncService) heartbeatLoop(ctx context.Context, interval time.Duration) {
	defer s.loopWG.Done()

	s.CheckConnection(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckConnection(ctx)
		}
	}
}

func (s *SyncService) periodicLoop(ctx context.Context, interval time.Duration) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsOnline() {
				s.logger.Debug("Skipping periodic sync while offline")
				s.recorder.RecordSync(string(TriggerPeriodic), resultSkipped, 0)
				continue
			}
			s.goSync(TriggerPeriodic)
		}
	}
}

// goSync runs a background sync bound to the service lifetime
func (s *SyncService) goSync(trigger Trigger) {
	s.mu.RLock()
	ctx := s.lifeCtx
	running := s.running
	s.mu.RUnlock()

	if !running {
		return
	}

	s.syncWG.Add(1)
	go func() {
		defer s.syncWG.Done()
		if err := s.runSync(ctx, trigger); err != nil {
			s.logger.WithError(err).WithField("trigger", trigger).Warn("Background sync failed")
		}
	}()
}

// CheckConnection probes the backend and applies the connectivity edge.
// Going online while the service runs starts a reconnect sync.
func (s *SyncService) CheckConnection(ctx context.Context) bool {
	ok := s.api.Heartbeat(ctx)
	if ctx.Err() != nil {
		return s.IsOnline()
	}

	s.mu.Lock()
	changed := s.online != ok
	s.online = ok
	s.mu.Unlock()

	if !changed {
		return ok
	}

	s.recorder.SetOnline(ok)
	if ok {
		s.logger.Info("Backend connection established")
		s.events.Publish(EventConnectionOnline, nil)
		s.goSync(TriggerReconnect)
	} else {
		s.logger.Warn("Backend connection lost")
		s.events.Publish(EventConnectionOffline, nil)
	}
	return ok
}

// SyncNow runs the full pipeline in the caller's goroutine. A run already in
// progress makes this a no-op.
func (s *SyncService) SyncNow(ctx context.Context) error {
	if s.syncing.Load() {
		s.logger.Info("Sync already in progress, ignoring manual trigger")
		return nil
	}
	if !s.IsOnline() {
		return ErrOffline
	}
	return s.runSync(ctx, TriggerManual)
}

func (s *SyncService) runSync(ctx context.Context, trigger Trigger) error {
	log := s.logger.WithField("trigger", trigger)

	if !s.syncing.CompareAndSwap(false, true) {
		log.Info("Sync already in progress, skipping")
		s.recorder.RecordSync(string(trigger), resultSkipped, 0)
		return nil
	}
	defer s.syncing.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.syncCancel = cancel
	s.errors = nil
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.syncCancel = nil
		s.mu.Unlock()
	}()

	started := s.now()
	log.Info("Sync started")
	s.events.Publish(EventSyncStarted, SyncStartedPayload{Trigger: trigger})

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"sales upload", s.uploadQueuedSales},
		{"products", s.syncProducts},
		{"customers", s.syncCustomers},
		{"users", s.syncUsers},
	}

	for _, stage := range stages {
		if err := stage.run(ctx); err != nil {
			err = fmt.Errorf("%s sync failed: %w", stage.name, err)
			s.addError(err.Error())

			log.WithError(err).WithField("stage", stage.name).Error("Sync failed")
			s.events.Publish(EventSyncFailed, SyncFailedPayload{Error: err.Error(), Errors: s.errorsSnapshot()})
			s.recorder.RecordSync(string(trigger), resultFailed, s.now().Sub(started))
			return err
		}
	}

	if err := s.syncFiscalConfig(ctx); err != nil {
		s.addError(fmt.Sprintf("fiscal config: %v", err))
		log.WithError(err).Warn("Fiscal config sync failed")
	}

	finished := s.now().UTC()
	s.mu.Lock()
	s.lastSyncTime = &finished
	s.mu.Unlock()

	errs := s.errorsSnapshot()
	log.WithFields(logrus.Fields{
		"duration":    finished.Sub(started),
		"soft_errors": len(errs),
	}).Info("Sync completed")

	s.events.Publish(EventSyncCompleted, SyncCompletedPayload{Errors: errs})
	s.recorder.RecordSync(string(trigger), resultCompleted, finished.Sub(started))
	return nil
}

// uploadQueuedSales sends every eligible queued sale in one batch
func (s *SyncService) uploadQueuedSales(ctx context.Context) error {
	queued, err := s.store.GetQueuedSales(ctx)
	if err != nil {
		return err
	}
	s.recorder.SetQueueDepth(len(queued))
	if len(queued) == 0 {
		return nil
	}

	maxRetry := s.Config().MaxRetryAttempts
	valid := make([]*models.QueuedSale, 0, len(queued))
	for _, sale := range queued {
		if sale.Uploadable(maxRetry) {
			valid = append(valid, sale)
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"local_id":    sale.LocalID,
			"retry_count": sale.RetryCount,
		}).Warn("Skipping sale that exhausted its retry attempts")
	}

	if len(valid) == 0 {
		return nil
	}

	s.logger.WithField("count", len(valid)).Info("Uploading queued sales")

	result, err := s.api.UploadSales(ctx, valid)
	if err != nil {
		// The batch never reached the backend; every sale in it used an attempt
		bookkeeping := context.WithoutCancel(ctx)
		for _, sale := range valid {
			if rerr := s.store.UpdateSaleRetryCount(bookkeeping, sale.LocalID); rerr != nil {
				s.logger.WithError(rerr).WithField("local_id", sale.LocalID).Error("Failed to increment sale retry count")
			}
		}
		return err
	}

	total := len(result.Results) + len(result.Failed)
	current := 0
	s.events.Publish(EventSyncProgress, NewProgress("sales", current, total))

	for _, r := range result.Results {
		synced := s.store.MarkSaleAsSynced(ctx, r.LocalID, r.ServerSaleID)
		if err := s.skipUnknownSale(synced, r.LocalID, "mark_synced"); err != nil {
			return err
		}
		current++
		s.events.Publish(EventSyncProgress, NewProgress("sales", current, total))
	}

	for _, f := range result.Failed {
		failed := s.store.MarkSaleAsFailed(ctx, f.LocalID, f.Error)
		if failed == nil {
			failed = s.store.UpdateSaleRetryCount(ctx, f.LocalID)
		}
		if err := s.skipUnknownSale(failed, f.LocalID, "mark_failed"); err != nil {
			return err
		}
		s.addError(fmt.Sprintf("Sale %d: %s", f.LocalID, f.Error))
		current++
		s.events.Publish(EventSyncProgress, NewProgress("sales", current, total))
	}

	s.recorder.RecordSalesUploaded(len(result.Results), len(result.Failed))
	if remaining, err := s.store.CountQueuedSales(ctx); err == nil {
		s.recorder.SetQueueDepth(int(remaining))
	}

	s.logger.WithFields(logrus.Fields{
		"synced": len(result.Results),
		"failed": len(result.Failed),
	}).Info("Queued sales uploaded")
	return nil
}

// skipUnknownSale drops a per-item outcome whose local_id is not in the queue,
// so one stray id does not stall the rest of the batch
func (s *SyncService) skipUnknownSale(err error, localID int64, op string) error {
	if err == nil || !repositories.IsNotFound(err) {
		return err
	}
	s.logger.WithError(err).WithFields(logrus.Fields{
		"local_id": localID,
		"op":       op,
	}).Warn("Backend reported a sale that is not in the local queue")
	return nil
}

func (s *SyncService) syncProducts(ctx context.Context) error {
	return syncDelta(ctx, s, models.SyncResourceProducts, s.api.GetProductsDelta, s.store.UpsertProducts, s.store.DeleteProducts)
}

func (s *SyncService) syncCustomers(ctx context.Context) error {
	return syncDelta(ctx, s, models.SyncResourceCustomers, s.api.GetCustomersDelta, s.store.UpsertCustomers, s.store.DeleteCustomers)
}

func (s *SyncService) syncUsers(ctx context.Context) error {
	return syncDelta(ctx, s, models.SyncResourceUsers, s.api.GetUsersDelta, s.store.UpsertUsers, s.store.DeleteUsers)
}

// syncDelta applies upserts, then deletes, and only then advances the watermark
func syncDelta[T any](
	ctx context.Context,
	s *SyncService,
	resource models.SyncResource,
	fetch func(context.Context, *time.Time) (*models.Delta[T], error),
	upsert func(context.Context, []T) error,
	remove func(context.Context, []int64) error,
) error {
	log := s.logger.WithField("resource", resource)

	since, err := s.store.GetLastSyncTime(ctx, resource)
	if err != nil {
		return err
	}

	delta, err := fetch(ctx, since)
	if err != nil {
		return err
	}
	if delta == nil || delta.IsEmpty() {
		log.Debug("No changes since last sync")
		return nil
	}

	total := len(delta.Items) + len(delta.DeletedIDs)
	s.events.Publish(EventSyncProgress, NewProgress(string(resource), 0, total))

	if len(delta.Items) > 0 {
		if err := upsert(ctx, delta.Items); err != nil {
			return err
		}
		s.events.Publish(EventSyncProgress, NewProgress(string(resource), len(delta.Items), total))
	}

	if len(delta.DeletedIDs) > 0 {
		if err := remove(ctx, delta.DeletedIDs); err != nil {
			return err
		}
		s.events.Publish(EventSyncProgress, NewProgress(string(resource), total, total))
	}

	if delta.SyncTimestamp.IsZero() {
		log.Warn("Delta carried no sync timestamp, watermark left unchanged")
	} else if err := s.store.UpdateSyncMetadata(ctx, resource, delta.SyncTimestamp); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"upserted": len(delta.Items),
		"deleted":  len(delta.DeletedIDs),
	}).Info("Delta applied")
	return nil
}

func (s *SyncService) syncFiscalConfig(ctx context.Context) error {
	cfg, err := s.api.GetFiscalConfig(ctx)
	if backend.IsNotFound(err) || (err == nil && cfg == nil) {
		s.logger.Info("No fiscal config available for this branch")
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.UpdateFiscalConfig(ctx, cfg); err != nil {
		return err
	}
	if err := s.store.UpdateSyncMetadata(ctx, models.SyncResourceFiscalConfig, s.now().UTC()); err != nil {
		return err
	}

	s.events.Publish(EventSyncProgress, NewProgress(string(models.SyncResourceFiscalConfig), 1, 1))
	s.logger.WithField("provider", cfg.Provider).Info("Fiscal config updated")
	return nil
}

// UpdateSyncConfig applies a new schedule. Changed intervals restart both
// loops; anything else is swapped in place.
func (s *SyncService) UpdateSyncConfig(cfg models.SyncConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.config
	s.config = cfg
	running := s.running
	s.mu.Unlock()

	changed := old.SyncIntervalSeconds != cfg.SyncIntervalSeconds ||
		old.HeartbeatIntervalSeconds != cfg.HeartbeatIntervalSeconds

	s.logger.WithFields(logrus.Fields{
		"sync_interval_seconds":      cfg.SyncIntervalSeconds,
		"heartbeat_interval_seconds": cfg.HeartbeatIntervalSeconds,
		"max_retry_attempts":         cfg.MaxRetryAttempts,
		"restart":                    changed && running,
	}).Info("Sync config updated")

	if changed && running {
		s.stopLoops()
		s.mu.RLock()
		stillRunning := s.running
		s.mu.RUnlock()
		if stillRunning {
			s.startLoops(cfg)
		}
	}
	return nil
}

// Config returns the active sync configuration
func (s *SyncService) Config() models.SyncConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// IsOnline reports the result of the last heartbeat
func (s *SyncService) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// IsSyncing reports whether a pipeline run is in progress
func (s *SyncService) IsSyncing() bool {
	return s.syncing.Load()
}

// GetSyncStatus returns a consistent snapshot of the orchestrator state
func (s *SyncService) GetSyncStatus() models.SyncStatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	if s.lastSyncTime != nil {
		t := *s.lastSyncTime
		last = &t
	}

	return models.SyncStatusSnapshot{
		IsOnline:     s.online,
		IsSyncing:    s.syncing.Load(),
		LastSyncTime: last,
		Errors:       append([]string{}, s.errors...),
	}
}

func (s *SyncService) addError(msg string) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}

func (s *SyncService) errorsSnapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.errors...)
}
