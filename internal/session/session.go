// Package session implements the accept/handshake/teardown state machine
// that binds a transport.Handle and a registry.Registry to exactly one
// WebSocket connection at a time (spec §4.8). Grounded on
// Generativebots-ocx-backend-go-svc/internal/fabric/websocket.go for the
// upgrader/ping-ticker/read-write task split and
// internal/protocol/session.go for the mutex-guarded state-enum shape.
package session

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/ocx/statefabric/internal/dispatch"
	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/telemetry"
	"github.com/ocx/statefabric/internal/transport"
	"github.com/ocx/statefabric/internal/wire"
)

// State is the session's lifecycle state (spec §4.8).
type State int

const (
	Idle State = iota
	Listening
	Handshaking
	Connected
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Handshaking:
		return "handshaking"
	case Connected:
		return "connected"
	case Draining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Config carries the handshake and network parameters a Server is
// constructed with (spec §4.8, §6).
type Config struct {
	Addr             string
	Version          uint64
	HandshakeCookies map[uint64]bool // empty/nil means any cookie is accepted

	// AllowedOrigins restricts the Origin header an upgrade request may
	// carry, comma-separated; empty means any origin is accepted. Mirrors
	// the teacher's OCX_ALLOWED_ORIGINS convention for a deployment that
	// fronts this protocol with a browser-facing viewer.
	AllowedOrigins string
}

// Server runs the accept loop and owns the single active connection, if
// any. It never touches slot internals directly — only
// transport.Handle and registry.Registry (spec §9: "slots never
// reference the session").
type Server struct {
	cfg        Config
	reg        *registry.Registry
	handle     *transport.Handle
	logger     *log.Logger
	metrics    *telemetry.Metrics
	dispatcher *dispatch.Dispatcher

	upgrader websocket.Upgrader

	mu       sync.Mutex
	state    State
	listener net.Listener
	httpSrv  *http.Server
	current  *activeConn
}

type activeConn struct {
	id   string
	conn *websocket.Conn
	done chan struct{}
}

// New constructs a Server bound to reg and handle. reg must already be
// frozen; handle is reused across reconnects (spec §4.8, §9). metrics
// may be nil, in which case the server runs without telemetry.
// dispatcher may be nil, in which case protocol/transport events are
// only logged to stderr rather than also posted to the id-0 diagnostic
// signal (spec §4.10, §7).
func New(cfg Config, reg *registry.Registry, handle *transport.Handle, metrics *telemetry.Metrics, dispatcher *dispatch.Dispatcher) *Server {
	checkOrigin := func(*http.Request) bool { return true }
	if cfg.AllowedOrigins != "" {
		allowed := originAllowlist(cfg.AllowedOrigins)
		checkOrigin = func(r *http.Request) bool { return allowed[r.Header.Get("Origin")] }
	}
	return &Server{
		cfg:        cfg,
		reg:        reg,
		handle:     handle,
		metrics:    metrics,
		dispatcher: dispatcher,
		logger:     log.New(os.Stderr, "[session] ", log.LstdFlags),
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: checkOrigin},
	}
}

func (s *Server) recordHandshake(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordHandshake(outcome)
	}
}

// diagf logs a protocol/transport event to stderr and, when a dispatcher
// is attached, also posts it to the id-0 diagnostic signal (spec §4.10,
// §7: "the only log sink observable by the driver"). Every session-level
// rejection and I/O error funnels through here rather than s.logger
// alone, so the driver can observe it through WaitSignal.
func (s *Server) diagf(level dispatch.Level, format string, args ...any) {
	s.logger.Printf(format, args...)
	if s.dispatcher != nil {
		s.dispatcher.Logf(level, format, args...)
	}
}

// State returns the session's current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether the accept loop is active (spec §6's
// is_running()).
func (s *Server) IsRunning() bool {
	st := s.State()
	return st != Idle
}

// IsConnected reports whether a viewer is currently attached (spec §6's
// is_connected()).
func (s *Server) IsConnected() bool {
	return s.handle.Connected.Load()
}

// Send enqueues a pre-encoded frame on the writer channel, for control
// traffic that does not originate from a slot (spec §6's Update frame).
// A no-op when no viewer is connected.
func (s *Server) Send(frame []byte) {
	if s.handle.Connected.Load() {
		s.handle.Send(frame)
	}
}

// Start binds the listener and begins accepting one viewer connection at
// a time (spec §4.8's start()).
func (s *Server) Start() error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return fmt.Errorf("session: Start called in state %s", s.state)
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("session: listen %s: %w", s.cfg.Addr, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	srv := &http.Server{Handler: mux}
	s.listener = ln
	s.httpSrv = srv
	s.state = Listening
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("accept loop exited: %v", err)
		}
	}()
	return nil
}

// Stop disables listening and, if a viewer is attached, tears it down
// (spec §4.8's stop()). Go's net.Listener.Close unblocks any in-flight
// Accept natively, so no loopback self-dial is needed here (see
// DESIGN.md's resolution of this open question).
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return nil
	}
	cur := s.current
	ln := s.listener
	srv := s.httpSrv
	s.state = Draining
	s.mu.Unlock()

	if cur != nil {
		cur.conn.Close()
		<-cur.done
	}
	if srv != nil {
		srv.Close()
	}
	if ln != nil {
		ln.Close()
	}

	s.mu.Lock()
	s.state = Idle
	s.listener = nil
	s.httpSrv = nil
	s.mu.Unlock()
	return nil
}

// DisconnectViewer forcibly tears down the current connection, if any,
// without stopping the accept loop (spec §6's disconnect_client()).
func (s *Server) DisconnectViewer() {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return
	}
	cur.conn.Close()
	<-cur.done
}

// handleUpgrade is the HTTP handler behind every accepted TCP connection.
// Only one viewer is connected at a time; a second handshake arriving
// while one is active tears down the previous session first and waits
// for its writer to finish before rebinding (spec §4.8).
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	prev := s.current
	s.mu.Unlock()
	if prev != nil {
		prev.conn.Close()
		<-prev.done
	}

	s.mu.Lock()
	s.state = Handshaking
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.diagf(dispatch.LevelError, "upgrade failed: %v", err)
		s.backToListening()
		return
	}

	if err := s.performHandshake(conn); err != nil {
		s.diagf(dispatch.LevelError, "handshake rejected: %v", err)
		conn.Close()
		s.backToListening()
		return
	}

	id := uuid.NewString()
	s.logger.Printf("viewer %s connected", id)

	// Drain any stale frames left in the outbound channel from before this
	// connection (spec §4.8: "drain pending outbound queue").
	drainHandle(s.handle)

	s.recordHandshake("accepted")
	s.handle.Connected.Store(true)
	if s.metrics != nil {
		s.metrics.SetConnected(true)
	}
	s.reg.SyncAll()

	cur := &activeConn{id: id, conn: conn, done: make(chan struct{})}
	s.mu.Lock()
	s.current = cur
	s.state = Connected
	s.mu.Unlock()

	go s.runConnection(cur)
}

func (s *Server) backToListening() {
	s.mu.Lock()
	if s.state != Draining {
		s.state = Listening
	}
	s.mu.Unlock()
}

func drainHandle(h *transport.Handle) {
	for {
		select {
		case <-h.Out:
		default:
			return
		}
	}
}

// performHandshake reads exactly the first frame and validates it is a
// Control:Handshake whose version and cookie are acceptable (spec §6).
func (s *Server) performHandshake(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return fmt.Errorf("first message was not binary")
	}
	h, _, err := wire.DecodeFrame(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if h.Kind != wire.KindControl || h.ControlSubtype != wire.ControlHandshake {
		s.recordHandshake("malformed")
		return fmt.Errorf("expected Control:Handshake, got %s", h.Kind)
	}
	if h.HandshakeVersion != s.cfg.Version {
		s.recordHandshake("version_mismatch")
		return fmt.Errorf("version mismatch: got %d, want %d", h.HandshakeVersion, s.cfg.Version)
	}
	if len(s.cfg.HandshakeCookies) > 0 && !s.cfg.HandshakeCookies[h.HandshakeCookie] {
		s.recordHandshake("cookie_rejected")
		return fmt.Errorf("cookie %d not in allow-list", h.HandshakeCookie)
	}
	return nil
}

// runConnection spawns the reader and writer tasks and blocks until both
// have returned, then clears s.current so the next handshake can bind
// freely (spec §4.8, §5's "writer hands its receiver back").
func (s *Server) runConnection(cur *activeConn) {
	var wg sync.WaitGroup
	wg.Add(2)

	readerDone := make(chan struct{})
	go func() {
		defer wg.Done()
		s.readerLoop(cur.conn)
		close(readerDone)
	}()
	go func() {
		defer wg.Done()
		s.writerLoop(cur.conn)
	}()

	<-readerDone
	s.handle.RequestShutdown()
	cur.conn.Close()
	wg.Wait()

	s.reg.ResetAllInFlight()
	s.handle.Connected.Store(false)
	if s.metrics != nil {
		s.metrics.SetConnected(false)
	}
	s.logger.Printf("viewer %s disconnected", cur.id)

	s.mu.Lock()
	if s.current == cur {
		s.current = nil
		if s.state != Draining {
			s.state = Listening
		}
	}
	s.mu.Unlock()
	close(cur.done)
}

// readerLoop is the only code that touches the receive half of the
// socket (spec §5). It decodes each frame and dispatches it to the
// registry; a malformed frame or socket error ends the connection.
func (s *Server) readerLoop(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.diagf(dispatch.LevelError, "reader socket error: %v", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if !s.dispatchFrame(data) {
			return
		}
	}
}

// dispatchFrame routes one viewer frame. It reports false for a frame
// that does not decode, which ends the connection (spec §4.10).
func (s *Server) dispatchFrame(data []byte) bool {
	h, payload, err := wire.DecodeFrame(data)
	if err != nil {
		s.diagf(dispatch.LevelError, "malformed frame: %v", err)
		return false
	}
	if s.metrics != nil {
		s.metrics.RecordReceived(h.Kind.String())
	}
	if h.Kind == wire.KindControl {
		switch h.ControlSubtype {
		case wire.ControlAck:
			id, ok := s.reg.Lookup(wire.WireID(h.AckTarget))
			if !ok || !s.reg.Acknowledge(id) {
				s.diagf(dispatch.LevelWarning, "ack for unknown id %d", h.AckTarget)
			}
		default:
			s.diagf(dispatch.LevelWarning, "unexpected control subtype %d from viewer", h.ControlSubtype)
		}
		return true
	}
	id, ok := s.reg.Lookup(h.ID)
	if !ok {
		s.diagf(dispatch.LevelWarning, "non-control frame on unknown wire id %d", h.ID)
		return true
	}
	s.reg.Update(id, h, payload)
	return true
}

// writerLoop is the only code that touches the send half of the socket
// (spec §5). It drains handle.Out until it observes the shutdown
// sentinel, then returns without closing the channel so the next
// connection can reuse it (spec §4.8, §5).
func (s *Server) writerLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		if s.metrics != nil {
			s.metrics.SetWriterQueueDepth(len(s.handle.Out))
		}
		select {
		case frame := <-s.handle.Out:
			if transport.IsSentinel(frame) {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.reg.Logger().Printf("writer channel send error: %v", err)
				return
			}
			if s.metrics != nil {
				if fh, ferr := wire.DecodeHeader(frame); ferr == nil {
					s.metrics.RecordSent(fh.Kind.String())
				}
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// originAllowlist mirrors the teacher's OCX_ALLOWED_ORIGINS convention,
// kept available for a deployment that wants to restrict viewer origins;
// Server's default upgrader accepts any origin since this protocol is not
// browser-facing by default.
func originAllowlist(raw string) map[string]bool {
	allowed := make(map[string]bool)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}
	return allowed
}
