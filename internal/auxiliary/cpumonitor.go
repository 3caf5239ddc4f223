// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auxiliary groups the small supporting services that feed the UI
// side-channel but sit outside the core event pipeline: host CPU sampling
// and the live configuration feed.
package auxiliary

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/tkdvta/corevta/internal/logging"
)

// EventEmitter is the UI side-channel a status event is published through.
type EventEmitter interface {
	EmitCustomEvent(name string, payload interface{})
}

// CPUStatus is the payload of the "cpu_status" custom event.
type CPUStatus struct {
	PercentTotal float64 `json:"percent_total"`
	SampledAt    time.Time `json:"sampled_at"`
}

// CPUMonitor periodically samples host CPU utilization and publishes it to
// the UI so an operator can see whether encoding headroom is running out.
type CPUMonitor struct {
	emitter  EventEmitter
	interval time.Duration
	log      *logging.PSSLogger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCPUMonitor builds a CPUMonitor sampling at the given interval
// (defaults to 5s for a non-positive value).
func NewCPUMonitor(emitter EventEmitter, interval time.Duration) *CPUMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &CPUMonitor{emitter: emitter, interval: interval, log: logging.NewPSSLogger("auxiliary.cpu")}
}

// Start begins sampling on a background goroutine.
func (m *CPUMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop halts sampling.
func (m *CPUMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

func (m *CPUMonitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *CPUMonitor) sample(ctx context.Context) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		return
	}
	m.emitter.EmitCustomEvent("cpu_status", CPUStatus{PercentTotal: percents[0], SampledAt: time.Now()})
}
