// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package services adapts the core's long-running components (the UDP
// listener, the distributor's overlay socket, the maintenance scheduler,
// the scene-controller connection manager) to suture.Service, so the
// orchestrator can supervise all of them uniformly regardless of each
// component's own Start/Stop shape.
package services

import "context"

// FuncService adapts a blocking run function to suture.Service. The
// function must return promptly once ctx is canceled.
type FuncService struct {
	name string
	run  func(ctx context.Context) error
}

// NewFuncService wraps run, identified as name in supervisor logs.
func NewFuncService(name string, run func(ctx context.Context) error) *FuncService {
	return &FuncService{name: name, run: run}
}

// Serve implements suture.Service.
func (s *FuncService) Serve(ctx context.Context) error {
	return s.run(ctx)
}

// String implements fmt.Stringer for supervisor log messages.
func (s *FuncService) String() string {
	return s.name
}

// StartStopper is satisfied by components with an explicit Start/Stop
// lifecycle (the UDP listener, the distributor, the maintenance scheduler).
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// StartStopService adapts a StartStopper to suture.Service: Start is
// called once, then Serve blocks until ctx is canceled, at which point
// Stop is called.
type StartStopService struct {
	name string
	comp StartStopper
}

// NewStartStopService wraps comp, identified as name in supervisor logs.
func NewStartStopService(name string, comp StartStopper) *StartStopService {
	return &StartStopService{name: name, comp: comp}
}

// Serve implements suture.Service.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.comp.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.comp.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor log messages.
func (s *StartStopService) String() string {
	return s.name
}
