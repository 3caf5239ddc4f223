// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"

	"github.com/tkdvta/corevta/internal/distributor"
	"github.com/tkdvta/corevta/internal/domain"
	"github.com/tkdvta/corevta/internal/logging"
)

// Host is the side-channel every component in the pipeline emits UI-facing
// events through: named custom events (pss_event, log_event,
// obs_path_decision_needed, component status) and the typed PSS broadcast
// helper. The orchestrator is the sole concrete holder of a Host; it is
// passed by reference into each component constructor rather than reached
// for as a package-level singleton.
type Host interface {
	EmitCustomEvent(name string, payload interface{})
	BroadcastPssEvent(sessionID int64, matchID string, sequence uint64, payload domain.PssPayload, raw string)
}

// uiBridge is the terminal attachment point for the UI frontend's generic
// "emit custom event" side-channel (§6, "owned by the host shell"). The UI
// shell itself is an external collaborator outside this repo's scope; this
// bridge logs every emission so the behavior is observable without one.
type uiBridge struct {
	log *logging.PSSLogger
}

func newUIBridge() *uiBridge {
	return &uiBridge{log: logging.NewPSSLogger("host")}
}

// EmitCustomEvent implements distributor.Host.
func (b *uiBridge) EmitCustomEvent(name string, payload interface{}) {
	b.log.LogEventReceived(context.Background(), "ui:"+name, 0)
}

var _ distributor.Host = (*uiBridge)(nil)

// host is the concrete Host implementation: custom events are fanned out
// through the distributor (which relays them to uiBridge), and
// BroadcastPssEvent delegates directly to the distributor's publish
// channel. It is constructed once a Distributor exists and is the only
// thing downstream components (recording, auxiliary, triggers) hold a
// reference to.
type host struct {
	dist *distributor.Distributor
}

func newHost(dist *distributor.Distributor) *host {
	return &host{dist: dist}
}

// EmitCustomEvent implements Host, recording.EventEmitter, and
// auxiliary.EventEmitter.
func (h *host) EmitCustomEvent(name string, payload interface{}) {
	h.dist.EmitCustomEvent(name, payload)
}

// BroadcastPssEvent implements Host.
func (h *host) BroadcastPssEvent(sessionID int64, matchID string, sequence uint64, payload domain.PssPayload, raw string) {
	h.dist.EmitPssEvent(sessionID, matchID, sequence, payload, raw)
}

var _ Host = (*host)(nil)

// overlayEmitter adapts Host to triggers.OverlayEmitter: an "overlay"
// action logs the animation intent and relays a typed overlay custom event
// on the distributor for UI/overlay consumers (§4.F).
type overlayEmitter struct {
	host Host
}

// overlayEvent is the payload of the "overlay" custom event.
type overlayEvent struct {
	TargetID string `json:"target_id"`
}

func (o *overlayEmitter) EmitOverlay(ctx context.Context, targetID string) {
	o.host.EmitCustomEvent("overlay", overlayEvent{TargetID: targetID})
}
