// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package services

import (
	"context"
	"fmt"
)

// StartStopper matches the background loops of the gateway:
//   - *queue.Compactor
//   - *connectivity.Monitor
//   - *syncer.Coordinator
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// ComponentService adapts a StartStopper to suture's Serve pattern:
//  1. Start(ctx) spawns the component's goroutine
//  2. Serve blocks until ctx is canceled
//  3. Stop() waits for the goroutine to exit
//
// A Start error is returned immediately so suture restarts the component
// with backoff.
type ComponentService struct {
	component StartStopper
	name      string
}

// NewComponentService wraps component under name.
func NewComponentService(name string, component StartStopper) *ComponentService {
	return &ComponentService{component: component, name: name}
}

// Serve implements suture.Service.
func (s *ComponentService) Serve(ctx context.Context) error {
	// A previous Serve that returned on a panic may have left it running
	if s.component.IsRunning() {
		s.component.Stop()
	}

	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture log events.
func (s *ComponentService) String() string {
	return s.name
}

// FuncService runs a blocking function under supervision.
type FuncService struct {
	fn   func(ctx context.Context) error
	name string
}

// NewFuncService wraps fn under name. fn must return when ctx is canceled.
func NewFuncService(name string, fn func(ctx context.Context) error) *FuncService {
	return &FuncService{fn: fn, name: name}
}

// Serve implements suture.Service.
func (s *FuncService) Serve(ctx context.Context) error {
	if err := s.fn(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture log events.
func (s *FuncService) String() string {
	return s.name
}
