package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically reconciles durable membership lists against live
// connections, pruning entries left behind when a disconnect message was
// lost (process crash, dropped reconciler command).
type Sweeper struct {
	store     Store
	manager   *Manager
	interval  time.Duration
	grace     time.Duration
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSweeper creates a reconciliation sweeper.
func NewSweeper(store Store, manager *Manager, interval, grace time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		manager:  manager,
		interval: interval,
		grace:    grace,
		log:      log.With().Str("component", "session-sweeper").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in background. Safe to call multiple
// times; only the first call starts the loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run(ctx)
		s.log.Info().Dur("interval", s.interval).Msg("session sweeper started")
	})
}

// Stop gracefully shuts down the sweeper.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.log.Info().Msg("session sweeper stopped")
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	records, err := s.store.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list sessions for sweep")
		return
	}

	for _, rec := range records {
		if !rec.Active || len(rec.Members) == 0 {
			continue
		}
		if err := s.manager.Reconcile(ctx, rec.ID, s.grace); err != nil {
			s.log.Warn().Err(err).Str("session_id", rec.ID).Msg("reconcile sweep")
		}
	}
}
