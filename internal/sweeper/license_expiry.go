package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/openrelief/supply-registry/internal/adapter"
	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/logger"
	"github.com/openrelief/supply-registry/internal/messaging"
	"github.com/openrelief/supply-registry/internal/store"
)

// LicenseExpirySweeperConfig holds configuration for the license expiry sweeper
type LicenseExpirySweeperConfig struct {
	BatchSize      int           // License rows to scan per cycle
	WorkerPoolSize int           // Concurrent publish workers
	CycleInterval  time.Duration // Time to sleep between sweep cycles
}

// licenseExpirySweeper scans license rows past expiry and publishes
// license-expired events for the external audit module. It never mutates
// rows: expired grants stay in place until the owner revokes them, so the
// sweeper remembers which rows it has already reported.
type licenseExpirySweeper struct {
	config    *LicenseExpirySweeperConfig
	store     store.Store
	publisher messaging.Publisher
	clock     adapter.Clock
	pool      pond.Pool
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}

	mu       sync.Mutex
	reported map[uint64]struct{}
}

// NewLicenseExpirySweeper creates a new license expiry sweeper
func NewLicenseExpirySweeper(
	config *LicenseExpirySweeperConfig,
	st store.Store,
	publisher messaging.Publisher,
	clock adapter.Clock,
) Sweeper {
	return &licenseExpirySweeper{
		config:    config,
		store:     st,
		publisher: publisher,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
		reported:  make(map[uint64]struct{}),
	}
}

// Name returns the sweeper's name
func (s *licenseExpirySweeper) Name() string {
	return "license-expiry-sweeper"
}

// Start begins the sweeper's main loop
func (s *licenseExpirySweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting license expiry sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("cycle_interval", s.config.CycleInterval),
	)

	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "License expiry sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "License expiry sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *licenseExpirySweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *licenseExpirySweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping license expiry sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "License expiry sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "License expiry sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle runs a single sweep cycle
func (s *licenseExpirySweeper) runSweepCycle(ctx context.Context) error {
	now := s.clock.Now()

	licenses, err := s.store.ListExpiredLicenses(ctx, now, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired licenses: %w", err)
	}

	var published atomic.Int32
	for _, license := range licenses {
		if s.alreadyReported(license.ID) {
			continue
		}

		s.pool.Submit(func() {
			licensee := license.Licensee
			event := &domain.RegistryEvent{
				ID:        domain.NewEventID(),
				BatchID:   license.BatchID,
				Action:    domain.EventLicenseExpired,
				Actor:     licensee,
				Subject:   &licensee,
				Timestamp: now,
			}
			if err := s.publisher.PublishEvent(ctx, event); err != nil {
				logger.ErrorCtx(ctx, err,
					zap.Uint64("batch_id", license.BatchID),
					zap.String("licensee", licensee.String()))
				s.forget(license.ID)
				return
			}
			published.Add(1)
		})
		s.markReported(license.ID)
	}

	s.pool.StopAndWait()

	if published.Load() > 0 {
		logger.InfoCtx(ctx, "Sweep cycle completed",
			zap.Int("scanned", len(licenses)),
			zap.Int32("published", published.Load()),
		)
	}

	// Recreate pool for next cycle
	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	if !s.sleep(ctx, s.config.CycleInterval) {
		return ctx.Err()
	}

	return nil
}

func (s *licenseExpirySweeper) alreadyReported(licenseID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reported[licenseID]
	return ok
}

func (s *licenseExpirySweeper) markReported(licenseID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reported[licenseID] = struct{}{}
}

// forget drops a license from the reported set so a failed publish is
// retried on the next cycle
func (s *licenseExpirySweeper) forget(licenseID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reported, licenseID)
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request. Returns false if interrupted.
func (s *licenseExpirySweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-time.After(duration):
		return true
	case <-s.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}
