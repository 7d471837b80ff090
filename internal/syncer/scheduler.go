package syncer

import (
	"context"
	"log"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
)

const (
	// DefaultDebounce is how long the scheduler waits after the last
	// local mutation before starting a silent sync.
	DefaultDebounce = 3 * time.Second

	// DefaultInterval is the background sync period while authenticated.
	DefaultInterval = 5 * time.Minute
)

// SyncRunner is what the scheduler drives; satisfied by *Engine.
type SyncRunner interface {
	PerformSync(ctx context.Context, force bool) models.SyncResult
}

type SchedulerConfig struct {
	Debounce time.Duration
	Interval time.Duration
}

type trigger struct {
	force  bool
	silent bool
}

// Scheduler decides when PerformSync runs and guarantees at most one
// round is in flight. All inputs (mutation signals, interval ticks,
// manual triggers, auth changes) funnel into a single owner goroutine;
// anything arriving while a round is running is dropped, never queued —
// the next debounce, tick, or manual trigger covers the gap.
type Scheduler struct {
	runner   SyncRunner
	status   *StatusSurface
	notifier Notifier
	logger   *log.Logger

	debounce time.Duration
	interval time.Duration

	mutations chan struct{}
	triggers  chan trigger
	authCh    chan bool
}

func NewScheduler(runner SyncRunner, status *StatusSurface, notifier Notifier, logger *log.Logger, cfg SchedulerConfig) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		runner:    runner,
		status:    status,
		notifier:  notifier,
		logger:    logger,
		debounce:  cfg.Debounce,
		interval:  cfg.Interval,
		mutations: make(chan struct{}, 1),
		triggers:  make(chan trigger, 4),
		authCh:    make(chan bool, 1),
	}
}

// NotifyMutation signals that a local record changed. Never blocks.
func (s *Scheduler) NotifyMutation() {
	select {
	case s.mutations <- struct{}{}:
	default:
	}
}

// TriggerSync requests a sync now. force ignores the watermark on both
// phases; silent suppresses user-facing notices. Never blocks; dropped
// when the scheduler is saturated or a round is already running.
func (s *Scheduler) TriggerSync(force, silent bool) {
	select {
	case s.triggers <- trigger{force: force, silent: silent}:
	default:
	}
}

// SetAuthenticated feeds auth state changes. Authenticating arms the
// background interval; unauthenticating tears it down and makes every
// trigger a no-op.
func (s *Scheduler) SetAuthenticated(authed bool) {
	select {
	case s.authCh <- authed:
	default:
	}
}

// Run owns the state machine until ctx is cancelled. The timers keep
// running across failed rounds; a failure only ends that attempt.
func (s *Scheduler) Run(ctx context.Context) {
	var (
		authed        bool
		debounceTimer *time.Timer
		debounceC     <-chan time.Time
		ticker        *time.Ticker
		tickerC       <-chan time.Time
		syncDone      chan models.SyncResult
		silentRound   bool
	)

	stopDebounce := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
			debounceTimer = nil
			debounceC = nil
		}
	}
	defer stopDebounce()
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	start := func(tr trigger) {
		stopDebounce()
		silentRound = tr.silent
		syncDone = make(chan models.SyncResult, 1)
		s.status.setSyncing(true)
		done := syncDone
		go func() {
			done <- s.runner.PerformSync(ctx, tr.force)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.mutations:
			s.status.setPendingChanges(true)
			if !authed || syncDone != nil {
				continue
			}
			// Restart the window: a burst of mutations collapses into
			// one sync after the last one settles.
			stopDebounce()
			debounceTimer = time.NewTimer(s.debounce)
			debounceC = debounceTimer.C

		case <-debounceC:
			debounceTimer = nil
			debounceC = nil
			if !authed || syncDone != nil {
				continue
			}
			start(trigger{silent: true})

		case <-tickerC:
			if !authed || syncDone != nil {
				continue
			}
			start(trigger{silent: true})

		case tr := <-s.triggers:
			if !authed || syncDone != nil {
				continue
			}
			start(tr)

		case authed = <-s.authCh:
			s.status.setAuthenticated(authed)
			if authed {
				if ticker == nil {
					ticker = time.NewTicker(s.interval)
					tickerC = ticker.C
				}
			} else {
				if ticker != nil {
					ticker.Stop()
					ticker = nil
					tickerC = nil
				}
				stopDebounce()
			}

		case result := <-syncDone:
			syncDone = nil
			s.status.recordResult(result)
			if result.Success {
				s.logger.Printf("sync complete: pushed=%d pulled=%d", result.Pushed, result.Pulled)
			} else {
				s.logger.Printf("sync failed: %v", result.Err)
			}
			if s.notifier != nil && !silentRound {
				if result.Success {
					s.notifier.SyncSucceeded(result)
				} else {
					s.notifier.SyncFailed(result.Err)
				}
			}
		}
	}
}
