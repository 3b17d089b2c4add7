// Package slot implements the seven state-slot flavours (spec §3, §4.2-
// §4.6): Value, Static, Signal, List, Map, Image, Graph. Value/Static/
// Signal are grounded on original_source's values.rs; List/Map follow
// the same source tree's list.rs/dict.rs siblings; Image and Graph are
// grounded on egui-pytransport's pyimage.rs/graphs.rs shapes. Every slot
// captures a transport.Handle and a dispatch.Dispatcher by reference at
// construction and never references the session directly (spec §9).
package slot

import (
	"github.com/ocx/statefabric/internal/dispatch"
	"github.com/ocx/statefabric/internal/registry"
	"github.com/ocx/statefabric/internal/transport"
)

// Context bundles the shared collaborators every slot constructor needs:
// the registration builder, the session's outbound handle, and the
// signal dispatcher.
type Context struct {
	Builder    *registry.Builder
	Transport  *transport.Handle
	Dispatcher *dispatch.Dispatcher
}

// Sub scopes ctx's Builder under name, for composing a nested state tree
// the same way registry.Builder.Sub does.
func (c Context) Sub(name string) Context {
	return Context{Builder: c.Builder.Sub(name), Transport: c.Transport, Dispatcher: c.Dispatcher}
}

func (c Context) connected() bool {
	return c.Transport != nil && c.Transport.Connected.Load()
}

func (c Context) send(frame []byte) {
	if c.Transport != nil {
		c.Transport.Send(frame)
	}
}
