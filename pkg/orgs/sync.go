package orgs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/warden/pkg/observability"
)

// DefaultSyncSchedule refreshes the in-memory directory every 30 seconds
const DefaultSyncSchedule = "@every 30s"

// maxSyncAttempts bounds how often one Sync re-reads the source after a
// concurrent write to the directory
const maxSyncAttempts = 3

// ErrSyncConflict is returned when the directory kept changing while a sync
// was reading the source
var ErrSyncConflict = errors.New("directory changed during sync")

// Source lists the full contents of a persistent directory
type Source interface {
	ListOrganizations(ctx context.Context) ([]Organization, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// Syncer periodically copies a persistent directory into a MemoryDirectory so
// evaluations read a local snapshot.
type Syncer struct {
	source   Source
	target   *MemoryDirectory
	schedule string
	logger   *observability.Logger
	timeout  time.Duration

	mu       sync.Mutex
	cron     *cron.Cron
	lastSync time.Time
}

// NewSyncer creates a syncer. An empty schedule uses DefaultSyncSchedule.
func NewSyncer(source Source, target *MemoryDirectory, schedule string, logger *observability.Logger) *Syncer {
	if schedule == "" {
		schedule = DefaultSyncSchedule
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Syncer{
		source:   source,
		target:   target,
		schedule: schedule,
		logger:   logger.WithField("component", "directory_sync"),
		timeout:  10 * time.Second,
	}
}

// Sync performs one full refresh. A write applied to the directory while the
// source is being read makes the listing stale, so the swap is skipped and the
// source is read again.
func (s *Syncer) Sync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for attempt := 1; attempt <= maxSyncAttempts; attempt++ {
		gen := s.target.Generation()

		orgs, err := s.source.ListOrganizations(ctx)
		if err != nil {
			return fmt.Errorf("failed to load organizations: %w", err)
		}
		users, err := s.source.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to load users: %w", err)
		}

		if !s.target.ReplaceIfUnchanged(gen, orgs, users) {
			s.logger.WithField("attempt", attempt).Debug("Directory changed during sync, reloading")
			continue
		}

		s.mu.Lock()
		s.lastSync = time.Now()
		s.mu.Unlock()

		s.logger.WithFields(map[string]interface{}{
			"organizations": len(orgs),
			"users":         len(users),
		}).Debug("Directory snapshot refreshed")
		return nil
	}

	return ErrSyncConflict
}

// LastSync returns the time of the last successful refresh
func (s *Syncer) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Start runs an initial sync and schedules periodic refreshes
func (s *Syncer) Start(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil {
		return err
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if err := s.Sync(context.Background()); err != nil {
			s.logger.WithError(err).Error("Directory sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", s.schedule, err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Infof("Directory sync scheduled: %s", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sync to finish
func (s *Syncer) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
