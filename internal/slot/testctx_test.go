package slot

import (
	"github.com/ocx/statefabric/internal/dispatch"
	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/transport"
	"github.com/ocx/statefabric/internal/wire"
)

// newTestCtx builds a standalone Context backed by a fresh Builder,
// a connected transport.Handle, and a Dispatcher, for exercising slot
// constructors without a real session.
func newTestCtx() (Context, *registry.Builder) {
	b := registry.NewBuilder()
	h := transport.NewHandle()
	h.Connected.Store(true)
	return Context{Builder: b, Transport: h, Dispatcher: dispatch.New()}, b
}

func drain(ctx Context) [][]byte {
	h := ctx.Transport
	var out [][]byte
	for {
		select {
		case f := <-h.Out:
			out = append(out, f)
		default:
			return out
		}
	}
}

func decodeOne(t interface{ Fatalf(string, ...any) }, frame []byte) (wire.Header, []byte) {
	h, payload, err := wire.DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return h, payload
}
