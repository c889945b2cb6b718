// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// StartStopper is the lifecycle of background loops that manage their own
// goroutine.
//
// Satisfied by:
//   - *scheduler.Scheduler
//   - *outbox.Compactor
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// StartStopService adapts a StartStopper to suture's Serve pattern:
// Start, wait for cancellation, then Stop. Stop blocks until the loop's
// goroutine has exited.
type StartStopService struct {
	component StartStopper
	name      string
}

// NewStartStopService wraps component under name.
func NewStartStopService(name string, component StartStopper) *StartStopService {
	return &StartStopService{component: component, name: name}
}

// Serve implements suture.Service. A Start failure is returned so the
// supervisor restarts the service with backoff.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

func (s *StartStopService) String() string {
	return s.name
}

// RunService supervises a function that runs until ctx is done or its
// input is exhausted. A nil return before cancellation stops the service
// for good instead of restarting it.
type RunService struct {
	run  func(ctx context.Context) error
	name string
}

// NewRunService wraps run under name.
func NewRunService(name string, run func(ctx context.Context) error) *RunService {
	return &RunService{run: run, name: name}
}

// Serve implements suture.Service.
func (s *RunService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if err == nil && ctx.Err() == nil {
		return suture.ErrDoNotRestart
	}
	return err
}

func (s *RunService) String() string {
	return s.name
}
