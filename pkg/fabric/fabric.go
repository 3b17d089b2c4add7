// Package fabric is the driver-facing SDK: the concrete Go realization
// of spec.md §6's "Driver API surface". It wires internal/registry,
// internal/session, internal/dispatch, and internal/telemetry behind a
// small constructor taking a Config struct and a RegisterFunc, the way the
// teacher's pkg/sdk/client.go documents its own Client — worked
// "Quick Start" example in the package doc, one doc comment per public
// method (DESIGN.md).
//
// # Quick Start
//
//	driver, err := fabric.New(fabric.Config{Port: 9870}, func(b *fabric.Builder) {
//	    exposure := fabric.NewValue(b, "camera.exposure", wire.Float32, 0.5)
//	    _ = exposure
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	driver.Start()
//	defer driver.Stop()
//
//	for {
//	    p := driver.WaitSignal()
//	    // handle p.ID / p.Value
//	    driver.DoneSignal(p.ID)
//	}
package fabric

import (
	"fmt"
	"time"

	"github.com/ocx/statefabric/internal/dispatch"
	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/session"
	"github.com/ocx/statefabric/internal/slot"
	"github.com/ocx/statefabric/internal/telemetry"
	"github.com/ocx/statefabric/internal/transport"
	"github.com/ocx/statefabric/internal/wire"
)

// Config carries the construction-time parameters spec §6's
// "Construction: new(port, ip?, cookies?)" describes.
type Config struct {
	// Port is the TCP port to bind (required).
	Port int
	// IP is the interface to bind; defaults to "0.0.0.0" (spec §6).
	IP string
	// Cookies is the handshake cookie allow-list; empty means any
	// cookie is accepted (spec §6).
	Cookies []uint64
	// Version is the protocol version exchanged at handshake. Defaults
	// to 1 if zero.
	Version uint64
	// AllowedOrigins restricts the WebSocket upgrade's Origin header,
	// comma-separated; empty means any origin (internal/session.Config).
	AllowedOrigins string
}

// RegisterFunc declares a driver's state tree against b. Called exactly
// once, synchronously, from New — spec §4.7: "all slots are created
// during the registration phase before the session starts".
type RegisterFunc func(b *Builder)

// Driver is the running fabric instance: one registry, one session
// accept loop, one signal dispatcher (spec §3's "Lifecycle").
type Driver struct {
	reg        *registry.Registry
	server     *session.Server
	dispatcher *dispatch.Dispatcher
	metrics    *telemetry.Metrics
	stopSample chan struct{}
}

// New builds the slot tree by calling register against a fresh Builder,
// freezes the registry, and constructs (but does not start) the
// session server (spec §4.7, §6). A panic raised while registering
// (such as a duplicate slot name) is returned as an error.
func New(cfg Config, register RegisterFunc) (*Driver, error) {
	if cfg.Port == 0 {
		return nil, fmt.Errorf("fabric: Config.Port is required")
	}
	if cfg.IP == "" {
		cfg.IP = "0.0.0.0"
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	builder := registry.NewBuilder()
	handle := transport.NewHandle()
	dispatcher := dispatch.New()
	ctx := slot.Context{Builder: builder, Transport: handle, Dispatcher: dispatcher}

	var regErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				regErr = fmt.Errorf("fabric: registration: %v", r)
			}
		}()
		register(&Builder{ctx: ctx})
	}()
	if regErr != nil {
		return nil, regErr
	}

	reg, err := builder.Freeze()
	if err != nil {
		return nil, fmt.Errorf("fabric: %w", err)
	}

	metrics := telemetry.New()
	sessCfg := session.Config{
		Addr:             fmt.Sprintf("%s:%d", cfg.IP, cfg.Port),
		Version:          cfg.Version,
		HandshakeCookies: cookieAllowlist(cfg.Cookies),
		AllowedOrigins:   cfg.AllowedOrigins,
	}
	srv := session.New(sessCfg, reg, handle, metrics, dispatcher)

	return &Driver{reg: reg, server: srv, dispatcher: dispatcher, metrics: metrics}, nil
}

func cookieAllowlist(cookies []uint64) map[uint64]bool {
	if len(cookies) == 0 {
		return nil
	}
	allow := make(map[uint64]bool, len(cookies))
	for _, c := range cookies {
		allow[c] = true
	}
	return allow
}

// Start begins accepting one viewer connection at a time (spec §4.8,
// §6), and starts a background sampler that periodically reports the
// signal dispatcher's backlog to telemetry (internal/dispatch has no
// push hook of its own, so this polls rather than subscribes).
func (d *Driver) Start() error {
	if err := d.server.Start(); err != nil {
		return err
	}
	d.stopSample = make(chan struct{})
	go d.sampleDispatchQueue()
	return nil
}

func (d *Driver) sampleDispatchQueue() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.metrics.SetDispatchQueueDepth(d.dispatcher.QueueDepth())
		case <-d.stopSample:
			return
		}
	}
}

// Stop disables listening and, if a viewer is attached, tears it down
// (spec §4.8, §6).
func (d *Driver) Stop() error {
	if d.stopSample != nil {
		close(d.stopSample)
		d.stopSample = nil
	}
	return d.server.Stop()
}

// DisconnectViewer forcibly drops the current viewer connection without
// stopping the accept loop (spec §6's disconnect_client()).
func (d *Driver) DisconnectViewer() { d.server.DisconnectViewer() }

// IsRunning reports whether the accept loop is active (spec §6).
func (d *Driver) IsRunning() bool { return d.server.IsRunning() }

// IsConnected reports whether a viewer is currently attached (spec §6).
func (d *Driver) IsConnected() bool { return d.server.IsConnected() }

// WaitSignal blocks until a viewer-originated signal is deliverable and
// returns it, holding its id exclusive until DoneSignal(p.ID) is called
// (spec §4.9, §6's wait_signal). Any number of goroutines may call this
// concurrently as driver worker threads; Go's goroutines are the
// concurrency unit spec.md's "thread_id" parameter indexes in the
// original, so this signature drops it.
func (d *Driver) WaitSignal() dispatch.Payload { return d.dispatcher.Wait() }

// DoneSignal releases id so another goroutine's WaitSignal call may
// take its next pending payload (spec §4.9).
func (d *Driver) DoneSignal(id uint64) { d.dispatcher.Done(id) }

// SetSignalMode switches id between dispatch.Single and dispatch.Multi
// delivery (spec §4.9, §6's set_signal_mode).
func (d *Driver) SetSignalMode(id uint64, mode dispatch.Mode) { d.dispatcher.SetMode(id, mode) }

// InterestToggle is implemented by any slot handle whose viewer-
// originated writes can be opted out of signal dispatch (currently
// *slot.Value[T]; spec §6's register_signal_interest(id, bool)).
type InterestToggle interface {
	RegisterSignalInterest(enabled bool)
}

// RegisterSignalInterest toggles whether s's viewer-originated writes
// post to the signal dispatcher. Exposed as a free function rather than
// a Driver method keyed by a bare id, since every slot constructor
// already returns a typed handle — calling s.RegisterSignalInterest
// directly works too; this wrapper exists for symmetry with spec §6's
// API surface naming.
func RegisterSignalInterest(s InterestToggle, enabled bool) {
	s.RegisterSignalInterest(enabled)
}

// Update asks the viewer to schedule a repaint at or before seconds
// from now (0 means immediate), by sending a Control:Update frame
// (spec §6's update(duration?)). A no-op when no viewer is connected.
func (d *Driver) Update(seconds float32) {
	if !d.server.IsConnected() {
		return
	}
	d.server.Send(wire.EncodeFrame(wire.Header{
		Kind:           wire.KindControl,
		ControlSubtype: wire.ControlUpdate,
		UpdateSeconds:  seconds,
	}, nil))
}

// Metrics returns the Prometheus collectors backing this driver's
// telemetry, for wiring into an HTTP /metrics handler (cmd/fabricd).
func (d *Driver) Metrics() *telemetry.Metrics { return d.metrics }
