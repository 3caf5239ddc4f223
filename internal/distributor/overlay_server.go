// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package distributor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/metrics"
)

const (
	clientSendBuffer = 64
	clientSendWait   = 100 * time.Millisecond
)

// overlayServer is the TCP loopback socket consumers (broadcast overlays,
// third-party tooling) connect to for a line-delimited JSON feed of every
// PSS event. The server never reads from a connection; writes are
// best-effort and a slow client is dropped rather than slowing everyone
// else down.
type overlayServer struct {
	ln  net.Listener
	log *logging.PSSLogger

	mu      sync.Mutex
	clients map[net.Conn]chan []byte

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newOverlayServer(port int, log *logging.PSSLogger) (*overlayServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind overlay socket on port %d: %w", port, err)
	}
	return &overlayServer{
		ln:      ln,
		log:     log,
		clients: make(map[net.Conn]chan []byte),
	}, nil
}

// Start accepts connections until ctx is canceled.
func (s *overlayServer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.acceptLoop(ctx)
}

// Stop closes the listener and every connected client.
func (s *overlayServer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.ln.Close()
	s.mu.Lock()
	for conn := range s.clients {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *overlayServer) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				return
			}
		}
		s.addClient(conn)
	}
}

func (s *overlayServer) addClient(conn net.Conn) {
	ch := make(chan []byte, clientSendBuffer)
	s.mu.Lock()
	s.clients[conn] = ch
	metrics.DistributorClients.Set(float64(len(s.clients)))
	s.mu.Unlock()

	s.wg.Add(1)
	go s.writeLoop(conn, ch)
}

func (s *overlayServer) writeLoop(conn net.Conn, ch chan []byte) {
	defer s.wg.Done()
	defer s.removeClient(conn)
	for frame := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(clientSendWait))
		if _, err := conn.Write(append(frame, '\n')); err != nil {
			return
		}
	}
}

func (s *overlayServer) removeClient(conn net.Conn) {
	s.mu.Lock()
	if ch, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(ch)
	}
	metrics.DistributorClients.Set(float64(len(s.clients)))
	s.mu.Unlock()
	_ = conn.Close()
}

// Broadcast fans a single JSON frame out to every connected client,
// dropping delivery to (and disconnecting) any client whose send buffer is
// full rather than blocking the publisher.
func (s *overlayServer) Broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- frame:
		default:
			metrics.DistributorDropped.Inc()
			if s.log != nil {
				s.log.LogBroadcastDropped(context.Background(), conn.RemoteAddr().String())
			}
			delete(s.clients, conn)
			close(ch)
			_ = conn.Close()
		}
	}
}
