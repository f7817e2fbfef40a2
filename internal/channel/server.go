// Package channel carries the alert stream: one enc_alert= line per packet,
// written to stdout and optionally relayed to TCP subscribers, and read back
// line by line on the decoding side.
package channel

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/gridguard/internal/connection"
	"github.com/smukkama/gridguard/internal/metrics"
)

// ServerConfig holds relay server configuration
type ServerConfig struct {
	Addr         string
	WriteTimeout time.Duration
}

// Server relays stream lines to every connected subscriber. Subscribers only
// read; anything they send is discarded.
type Server struct {
	config      ServerConfig
	connManager *connection.Manager
	metrics     *metrics.Metrics
	listener    net.Listener
	wg          sync.WaitGroup
	stopCh      chan struct{}
}

// NewServer creates a new relay server
func NewServer(cfg ServerConfig, connManager *connection.Manager, m *metrics.Metrics) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Server{
		config:      cfg,
		connManager: connManager,
		metrics:     m,
		stopCh:      make(chan struct{}),
	}
}

// Start starts the relay server
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to start relay server: %w", err)
	}

	s.listener = listener
	log.Printf("Relay server listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the address the server is bound to
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the relay server and disconnects all subscribers
func (s *Server) Stop() {
	close(s.stopCh)

	if s.listener != nil {
		s.listener.Close()
	}
	for _, sub := range s.connManager.Snapshot() {
		sub.Conn.Close()
	}

	s.wg.Wait()
	log.Println("Relay server stopped")
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				log.Printf("Failed to accept connection: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connectionID := uuid.New().String()

	if err := s.connManager.Register(connectionID, conn); err != nil {
		log.Printf("Rejecting subscriber %s: %v", conn.RemoteAddr(), err)
		return
	}
	defer s.unregister(connectionID)

	select {
	case <-s.stopCh:
		return
	default:
	}

	s.metrics.RelaySubscribers.Set(float64(s.connManager.Count()))
	log.Printf("New subscriber: %s from %s", connectionID, conn.RemoteAddr())

	// Block until the subscriber hangs up or the server stops.
	io.Copy(io.Discard, bufio.NewReader(conn))
	if sub, ok := s.connManager.Get(connectionID); ok {
		log.Printf("Subscriber %s disconnected after %d lines (last delivery %s)",
			connectionID, sub.GetDelivered(), sub.GetLastDelivered().Format(time.RFC3339))
	}
}

// Stats returns subscriber statistics for the relay
func (s *Server) Stats() connection.ManagerStats {
	return s.connManager.Stats()
}

func (s *Server) unregister(connectionID string) {
	if err := s.connManager.Unregister(connectionID); err == nil {
		s.metrics.RelaySubscribers.Set(float64(s.connManager.Count()))
	}
}

// Broadcast writes line to every subscriber. A subscriber whose write fails
// or misses the write deadline is disconnected.
func (s *Server) Broadcast(line string) {
	for _, sub := range s.connManager.Snapshot() {
		sub.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if _, err := io.WriteString(sub.Conn, line); err != nil {
			log.Printf("Dropping subscriber %s: %v", sub.ConnectionID, err)
			s.metrics.RelayDropped.Inc()
			sub.Conn.Close()
			s.unregister(sub.ConnectionID)
			continue
		}
		sub.MarkDelivered()
	}
}
