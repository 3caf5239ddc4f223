// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package udpserver binds a UDP socket, decodes PSS datagrams, and fans
// out successfully parsed events to persistence, the trigger engine, and
// the distributor without blocking on any of them.
package udpserver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/tkdvta/corevta/internal/domain"
	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/metrics"
	"github.com/tkdvta/corevta/internal/pssparser"
)

// State is the listener's lifecycle position.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateError    State = "error"
)

const (
	receiveBufferSize = 1024
	idleEvictionAfter = 30 * time.Second
	pollInterval      = 10 * time.Millisecond
)

// Received is handed to every fan-out sink for a successfully parsed
// datagram, or an invalid one (Payload nil, Err set) so sinks can still
// persist the raw line.
type Received struct {
	Payload   domain.PssPayload
	Raw       string
	Err       error
	Peer      net.Addr
	Timestamp time.Time
}

// Sink receives datagrams off the listener's fan-out. Implementations must
// not block; the listener never awaits sink completion.
type Sink interface {
	Handle(ctx context.Context, r Received)
}

// Stats mirrors the per-listener packet statistics required by the spec.
type Stats struct {
	PacketsReceived   uint64
	TotalBytes        uint64
	ParseErrors       uint64
	AverageSize       float64
	LastPacketTime    time.Time
	ActiveConnections int
}

// Listener is the PSS UDP receive loop.
type Listener struct {
	conn net.PacketConn
	bind string

	persistence Sink
	triggers    Sink
	distributor Sink

	mu    sync.Mutex
	state State
	errMsg string

	statsMu sync.Mutex
	stats   Stats
	peers   map[string]time.Time

	log *logging.PSSLogger

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Listener that fans out to the given sinks.
func New(persistence, triggers, distributor Sink) *Listener {
	return &Listener{
		persistence: persistence,
		triggers:    triggers,
		distributor: distributor,
		peers:       make(map[string]time.Time),
		log:         logging.NewPSSLogger("udpserver"),
		state:       StateStopped,
	}
}

// State returns the listener's current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State, errMsg string) {
	l.mu.Lock()
	l.state = s
	l.errMsg = errMsg
	l.mu.Unlock()
}

// Start binds the socket at bindAddress:port and begins the receive loop
// on a dedicated goroutine. It returns once the socket is bound.
func (l *Listener) Start(ctx context.Context, bindAddress string, port int) error {
	l.setState(StateStarting, "")

	addr := fmt.Sprintf("%s:%d", bindAddress, port)
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		l.setState(StateError, err.Error())
		return fmt.Errorf("bind udp listener on %s: %w", addr, err)
	}
	l.conn = conn
	l.bind = addr

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	l.setState(StateRunning, "")
	go l.receiveLoop(loopCtx)
	return nil
}

// Stop terminates the receive loop and closes the socket.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.conn != nil {
		_ = l.conn.Close()
	}
	if l.done != nil {
		<-l.done
	}
	l.setState(StateStopped, "")
}

// Snapshot returns a copy of the current packet statistics.
func (l *Listener) Snapshot() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	l.evictIdlePeers(time.Now())
	s := l.stats
	s.ActiveConnections = len(l.peers)
	return s
}

func (l *Listener) evictIdlePeers(now time.Time) {
	for addr, last := range l.peers {
		if now.Sub(last) > idleEvictionAfter {
			delete(l.peers, addr)
		}
	}
}

func (l *Listener) recordPacket(peer net.Addr, n int) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()

	now := time.Now()
	l.stats.PacketsReceived++
	l.stats.TotalBytes += uint64(n)
	l.stats.AverageSize = float64(l.stats.TotalBytes) / float64(l.stats.PacketsReceived)
	l.stats.LastPacketTime = now
	if peer != nil {
		l.peers[peer.String()] = now
	}
	l.evictIdlePeers(now)
}

func (l *Listener) recordParseError() {
	l.statsMu.Lock()
	l.stats.ParseErrors++
	l.statsMu.Unlock()
}

func (l *Listener) receiveLoop(ctx context.Context) {
	defer close(l.done)

	buf := make([]byte, receiveBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = l.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, peer, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			l.setState(StateError, err.Error())
			return
		}

		metrics.UDPPacketsReceived.Inc()
		metrics.UDPBytesReceived.Add(float64(n))
		l.recordPacket(peer, n)
		metrics.UDPActiveConnections.Set(float64(len(l.peers)))

		line := strings.TrimRight(string(buf[:n]), " \t\r\n")
		l.dispatch(ctx, peer, line)
	}
}

func (l *Listener) dispatch(ctx context.Context, peer net.Addr, line string) {
	payload, err := pssparser.Parse(line)
	r := Received{Payload: payload, Raw: line, Err: err, Peer: peer, Timestamp: time.Now()}

	if err != nil {
		metrics.UDPParseErrors.Inc()
		l.recordParseError()
		l.log.LogParseFailure(ctx, line, err)
	} else {
		code := ""
		if payload != nil {
			code = payload.Code()
		}
		l.log.LogEventReceived(ctx, code, l.stats.PacketsReceived)
	}

	// Non-blocking fan-out: persistence, trigger engine, distributor, in
	// that order, none of which the listener waits on.
	if l.persistence != nil {
		l.persistence.Handle(ctx, r)
	}
	if l.triggers != nil {
		l.triggers.Handle(ctx, r)
	}
	if l.distributor != nil {
		l.distributor.Handle(ctx, r)
	}
}
