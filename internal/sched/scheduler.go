// Package sched owns the poll loop: it discovers unread messages on a
// fixed interval and fans each one out to a pipeline run, while making
// sure no message is ever owned by two runs at once.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/mailstore"
	"github.com/nhle/mail-triage/internal/model"
)

// listTimeout bounds one unread-listing call so a stuck mail store
// cannot stall the loop. persistTimeout bounds one audit write.
const (
	listTimeout    = 30 * time.Second
	persistTimeout = 5 * time.Second
)

// Runner executes one pipeline run for one message id.
type Runner interface {
	Run(ctx context.Context, id string, attempt int) *model.Record
}

// Recorder persists finished runs for the audit trail. The scheduler
// works without one; admission decisions never depend on it.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome *model.Outcome) error
}

// Scheduler drives the discovery loop. All shared admission state,
// the in-flight set, per-id attempt counts and the excluded set, lives
// behind one mutex; pipeline runs themselves share nothing.
type Scheduler struct {
	runner   Runner
	gateway  mailstore.Gateway
	recorder Recorder
	cfg      model.TriageConfig
	logger   logrus.FieldLogger
	runID    string

	sem       chan struct{}
	triggerCh chan struct{}
	wg        sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	attempts map[string]int
	fatal    map[string]struct{}
	running  bool
}

// New creates a scheduler. recorder may be nil to disable the audit
// trail.
func New(
	runner Runner,
	gateway mailstore.Gateway,
	recorder Recorder,
	cfg model.TriageConfig,
	logger logrus.FieldLogger,
) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &Scheduler{
		runner:    runner,
		gateway:   gateway,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
		runID:     uuid.NewString(),
		sem:       make(chan struct{}, cfg.Workers),
		triggerCh: make(chan struct{}, 1),
		inflight:  make(map[string]struct{}),
		attempts:  make(map[string]int),
		fatal:     make(map[string]struct{}),
	}
}

// Start runs the poll loop until ctx is canceled, sweeping once
// immediately and then on every tick. On shutdown it stops admitting
// new work and waits for in-flight runs to finish, so a reply that
// already went out still gets its cleanup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	interval := time.Duration(s.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested, waiting for in-flight runs")
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.triggerCh:
			s.sweep(ctx)
		}
	}
}

// RunOnce performs a single sweep and waits for every admitted run to
// finish.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.sweep(ctx)
	s.wg.Wait()
	return nil
}

// TriggerSweep requests an immediate sweep without blocking. A sweep
// already pending is enough; extra requests are dropped.
func (s *Scheduler) TriggerSweep() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Snapshot reports the scheduler's current admission state.
type Snapshot struct {
	InFlight int `json:"in_flight"`
	Excluded int `json:"excluded"`
}

// Stats returns a point-in-time view of admission state.
func (s *Scheduler) Stats() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		InFlight: len(s.inflight),
		Excluded: len(s.fatal),
	}
}

// sweep lists currently unread messages and admits each one that is
// not already owned by an active run.
func (s *Scheduler) sweep(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, listTimeout)
	ids, err := s.gateway.ListUnread(lctx, s.cfg.PageSize)
	cancel()
	if err != nil {
		if mailstore.IsAuthError(err) {
			s.logger.WithError(err).Error("mail store rejected credentials")
			return
		}
		s.logger.WithError(err).Warn("listing unread messages failed")
		return
	}

	admitted := 0
	for _, id := range ids {
		if s.admit(id) {
			admitted++
		}
	}

	if len(ids) > 0 {
		s.logger.WithFields(logrus.Fields{
			"discovered": len(ids),
			"admitted":   admitted,
		}).Debug("sweep finished")
	}
}

// admit launches a pipeline run for id unless the id is already in
// flight or permanently excluded. The check and the insert happen
// under one lock so concurrent discoveries of the same id admit
// exactly one run.
func (s *Scheduler) admit(id string) bool {
	s.mu.Lock()
	if _, ok := s.fatal[id]; ok {
		s.mu.Unlock()
		return false
	}
	if _, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		return false
	}
	attempt := s.attempts[id] + 1
	s.inflight[id] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		// Runs are never canceled once admitted; each stage carries
		// its own deadline, and shutdown waits for completion so a
		// sent reply cannot be left without its cleanup.
		rec := s.runner.Run(context.Background(), id, attempt)
		s.complete(rec)
	}()
	return true
}

// complete releases the finished run's id and settles its attempt
// bookkeeping. A terminal record is forgotten entirely; anything else
// keeps its count and, at the cap, is excluded for the rest of the
// process lifetime.
func (s *Scheduler) complete(rec *model.Record) {
	s.persist(rec)

	s.mu.Lock()
	delete(s.inflight, rec.ID)
	if rec.Stage.Terminal() {
		delete(s.attempts, rec.ID)
		s.mu.Unlock()
		return
	}
	s.attempts[rec.ID] = rec.Attempt
	exhausted := rec.Attempt >= s.cfg.MaxAttempts
	if exhausted {
		s.fatal[rec.ID] = struct{}{}
	}
	s.mu.Unlock()

	if exhausted {
		s.logger.WithFields(logrus.Fields{
			"id":       rec.ID,
			"attempts": rec.Attempt,
		}).Error("attempt cap reached, message excluded until restart")
	}
}

// persist writes the run's audit row, if a recorder is configured.
func (s *Scheduler) persist(rec *model.Record) {
	if s.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.recorder.RecordOutcome(ctx, model.OutcomeFromRecord(s.runID, rec)); err != nil {
		s.logger.WithError(err).WithField("id", rec.ID).Warn("recording outcome failed")
	}
}
