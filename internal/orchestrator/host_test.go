// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tkdvta/corevta/internal/distributor"
	"github.com/tkdvta/corevta/internal/domain"
)

type recordingHost struct {
	customEvents []string
	broadcasts   int
	sequences    []uint64
}

func (r *recordingHost) EmitCustomEvent(name string, payload interface{}) {
	r.customEvents = append(r.customEvents, name)
}

func (r *recordingHost) BroadcastPssEvent(sessionID int64, matchID string, sequence uint64, payload domain.PssPayload, raw string) {
	r.broadcasts++
	r.sequences = append(r.sequences, sequence)
}

func TestHostDelegatesToDistributor(t *testing.T) {
	rh := &recordingHost{}
	dist := distributor.New(rh)
	h := newHost(dist)

	h.EmitCustomEvent("cpu_status", map[string]int{"x": 1})

	// EmitCustomEvent must reach the distributor's own EmitCustomEvent,
	// which hands the event to the distributor's Host side-channel.
	assert.Equal(t, []string{"cpu_status"}, rh.customEvents)
}

func TestOverlayEmitterPublishesOverlayCustomEvent(t *testing.T) {
	rh := &recordingHost{}
	oe := &overlayEmitter{host: rh}

	oe.EmitOverlay(context.Background(), "ReplayScene")

	assert.Equal(t, []string{"overlay"}, rh.customEvents)
}

func TestUIBridgeSatisfiesDistributorHost(t *testing.T) {
	var h distributor.Host = newUIBridge()
	assert.NotPanics(t, func() { h.EmitCustomEvent("pss_event", nil) })
}
