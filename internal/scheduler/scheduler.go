// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package scheduler drains the relay outbox. Each cycle reads due items
// fresh from the store, claims them, hands them to the delivery transport
// on a bounded worker pool, and records the outcome on the item:
//
//	Pending --Claim--> InFlight --Success----------------> Delivered (removed)
//	                            --Retryable, attempts left--> Pending (backoff)
//	                            --Retryable, exhausted-----> Abandoned
//	                            --Terminal-----------------> Abandoned
//	                            --shutdown mid-flight------> Pending (lease released)
//
// Delivery errors never propagate to callers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/momoflow/internal/delivery"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/outbox"
)

// releaseTimeout bounds the lease release performed after shutdown
// interrupted a delivery.
const releaseTimeout = 5 * time.Second

// Store is the subset of the outbox the scheduler drives.
type Store interface {
	DueItems(ctx context.Context, now time.Time, limit int) ([]*outbox.Item, error)
	Claim(ctx context.Context, id, holder string) (bool, error)
	Release(ctx context.Context, id string) error
	RecordSuccess(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error
	Abandon(ctx context.Context, id, reason string) error
}

// Deliverer performs one delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, item *outbox.Item) delivery.Outcome
}

// CycleResult summarizes one scheduler cycle.
type CycleResult struct {
	Due       int
	Delivered int
	Retried   int
	Abandoned int
	Skipped   int
	Released  int
	Errors    int
	Duration  time.Duration
}

// Scheduler runs delivery cycles on a ticker and on demand.
type Scheduler struct {
	store       Store
	transport   Deliverer
	config      Config
	leaseHolder string
	limiter     *rate.Limiter
	now         func() time.Time

	trigger chan struct{}
	cycleMu sync.Mutex

	// Control
	ctx    context.Context
	cancel context.CancelFunc

	// State - all protected by mu
	mu       sync.Mutex
	running  bool
	stopping bool          // true while Stop() is waiting for goroutine
	stopDone chan struct{} // closed when Stop() completes

	totalCycles atomic.Int64
}

// New creates a scheduler. Invalid numeric settings fall back to defaults.
func New(store Store, transport Deliverer, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}

	var limiter *rate.Limiter
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}

	return &Scheduler{
		store:       store,
		transport:   transport,
		config:      cfg,
		leaseHolder: fmt.Sprintf("scheduler-%s", uuid.New().String()[:8]),
		limiter:     limiter,
		now:         time.Now,
		trigger:     make(chan struct{}, 1),
	}
}

// Start begins the recurring loop. A first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	// Wait for any in-progress Stop() to complete
	for s.stopping {
		stopDone := s.stopDone
		s.mu.Unlock()
		<-stopDone
		s.mu.Lock()
	}

	if s.running {
		s.mu.Unlock()
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.stopDone = make(chan struct{})

	loopCtx := s.ctx
	done := s.stopDone

	s.mu.Unlock()

	go s.run(loopCtx, done)

	logging.Info().
		Dur("interval", s.config.Interval).
		Int("workers", s.config.Workers).
		Int("max_attempts", s.config.MaxAttempts).
		Str("lease_holder", s.leaseHolder).
		Msg("Retry scheduler started")
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish. Items
// in flight when Stop is called are released, not failed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running || s.stopping {
		s.mu.Unlock()
		return
	}

	s.cancel()
	s.running = false
	s.stopping = true
	stopDone := s.stopDone
	s.mu.Unlock()

	<-stopDone

	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()

	logging.Info().Msg("Retry scheduler stopped")
}

// IsRunning returns whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger requests an immediate cycle. It never blocks; triggers that
// arrive while one is already queued are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() int64 {
	return s.totalCycles.Load()
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.trigger:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cycle and returns its summary. Concurrent
// calls are serialized.
func (s *Scheduler) RunOnce(ctx context.Context) CycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)

	var res CycleResult
	items, err := s.store.DueItems(ctx, s.now(), s.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to read due items")
		res.Errors++
		res.Duration = time.Since(start)
		return res
	}
	res.Due = len(items)

	if len(items) > 0 {
		var counts cycleCounts
		var g errgroup.Group
		g.SetLimit(s.config.Workers)

		for _, item := range items {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				counts.add(s.process(ctx, item))
				return nil
			})
		}
		_ = g.Wait()
		counts.into(&res)
	}

	res.Duration = time.Since(start)
	s.totalCycles.Add(1)
	metrics.RecordSchedulerCycle(res.Duration)

	if res.Due > 0 {
		log.Info().
			Int("due", res.Due).
			Int("delivered", res.Delivered).
			Int("retried", res.Retried).
			Int("abandoned", res.Abandoned).
			Int("skipped", res.Skipped).
			Int("released", res.Released).
			Int("errors", res.Errors).
			Dur("duration", res.Duration).
			Msg("Scheduler cycle complete")
	}
	return res
}

type itemResult int

const (
	resultDelivered itemResult = iota
	resultRetried
	resultAbandoned
	resultSkipped
	resultReleased
	resultError
)

type cycleCounts struct {
	mu     sync.Mutex
	counts [resultError + 1]int
}

func (c *cycleCounts) add(r itemResult) {
	c.mu.Lock()
	c.counts[r]++
	c.mu.Unlock()
}

func (c *cycleCounts) into(res *CycleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res.Delivered = c.counts[resultDelivered]
	res.Retried = c.counts[resultRetried]
	res.Abandoned = c.counts[resultAbandoned]
	res.Skipped = c.counts[resultSkipped]
	res.Released = c.counts[resultReleased]
	res.Errors = c.counts[resultError]
}

// process claims and delivers one item and records the outcome.
func (s *Scheduler) process(ctx context.Context, item *outbox.Item) itemResult {
	log := logging.Ctx(ctx).With().Str("item_id", item.ID).Logger()

	claimed, err := s.store.Claim(ctx, item.ID, s.leaseHolder)
	if err != nil {
		log.Warn().Err(err).Msg("Scheduler: claim failed")
		return resultSkipped
	}
	if !claimed {
		return resultSkipped
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.release(ctx, item)
		}
	}

	out := s.transport.Deliver(ctx, item)
	if ctx.Err() != nil {
		return s.release(ctx, item)
	}

	switch out.Kind {
	case delivery.Success:
		if err := s.store.RecordSuccess(ctx, item.ID); err != nil {
			log.Error().Err(err).Msg("Scheduler: failed to record success")
			return resultError
		}
		metrics.RecordDeliveryOutcome("success")
		ev := log.Debug().Int("status", out.StatusCode)
		if out.Response != nil {
			ev = ev.Str("record_id", out.Response.ID).Bool("duplicate", out.Response.Duplicate).Bool("skipped", out.Response.Skipped)
		}
		ev.Msg("Scheduler: item delivered")
		return resultDelivered

	case delivery.Retryable:
		metrics.RecordDeliveryOutcome("retryable")
		if item.AttemptCount+1 >= s.config.MaxAttempts {
			reason := "max attempts exceeded: " + out.Reason
			if err := s.store.Abandon(ctx, item.ID, reason); err != nil {
				log.Error().Err(err).Msg("Scheduler: failed to abandon item")
				return resultError
			}
			log.Warn().
				Int("attempts", item.AttemptCount+1).
				Str("reason", out.Reason).
				Msg("Scheduler: item abandoned after max attempts")
			return resultAbandoned
		}

		next := s.now().Add(Delay(item.AttemptCount, s.config.BaseDelay))
		if err := s.store.RecordFailure(ctx, item.ID, out.Reason, next); err != nil {
			log.Error().Err(err).Msg("Scheduler: failed to record failure")
			return resultError
		}
		log.Info().
			Int("attempt", item.AttemptCount+1).
			Int("status", out.StatusCode).
			Str("reason", out.Reason).
			Time("next_attempt_at", next).
			Msg("Scheduler: delivery failed, will retry")
		return resultRetried

	default:
		metrics.RecordDeliveryOutcome("terminal")
		if err := s.store.Abandon(ctx, item.ID, out.Reason); err != nil {
			log.Error().Err(err).Msg("Scheduler: failed to abandon item")
			return resultError
		}
		log.Warn().
			Int("status", out.StatusCode).
			Str("reason", out.Reason).
			Msg("Scheduler: terminal delivery failure, item abandoned")
		return resultAbandoned
	}
}

// release returns an interrupted item to Pending without consuming an
// attempt. The parent context is already canceled, so the store call runs
// on a detached one.
func (s *Scheduler) release(ctx context.Context, item *outbox.Item) itemResult {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	metrics.RecordDeliveryOutcome("released")
	if err := s.store.Release(relCtx, item.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("item_id", item.ID).Msg("Scheduler: failed to release lease")
		return resultError
	}
	return resultReleased
}
