// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package auxiliary

import (
	"context"

	"github.com/tkdvta/corevta/internal/config"
)

// ConfigFeed republishes every config.Manager update to the UI side-channel
// as a "config_updated" custom event, so the UI reflects runtime edits
// (e.g. a scene-controller endpoint added through the operator panel)
// without polling.
type ConfigFeed struct {
	manager *config.Manager
	emitter EventEmitter

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConfigFeed builds a ConfigFeed bridging manager's updates to emitter.
func NewConfigFeed(manager *config.Manager, emitter EventEmitter) *ConfigFeed {
	return &ConfigFeed{manager: manager, emitter: emitter}
}

// Start emits the current configuration immediately, then forwards every
// subsequent Manager.Update until ctx is canceled or Stop is called.
func (f *ConfigFeed) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	f.emitter.EmitCustomEvent("config_updated", f.manager.Get())

	sub := f.manager.Subscribe()
	go f.loop(ctx, sub)
}

// Stop halts the forwarding loop.
func (f *ConfigFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.done != nil {
		<-f.done
	}
}

func (f *ConfigFeed) loop(ctx context.Context, sub <-chan *config.Config) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-sub:
			f.emitter.EmitCustomEvent("config_updated", cfg)
		}
	}
}
