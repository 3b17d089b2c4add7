package registry

import (
	"testing"

	"github.com/ocx/statefabric/internal/wire"
)

func TestBuilder_DeclareAndFreeze(t *testing.T) {
	b := NewBuilder()
	cam := b.Sub("camera")
	id := cam.Declare("exposure", wire.Float32.TypeHash())

	var acked bool
	cam.RegisterAck(id, AckFuncs{
		Acknowledge:   func() { acked = true },
		ResetInFlight: func() {},
	})

	synced := false
	cam.RegisterSync(func() { synced = true })

	reg, err := b.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}

	if !reg.Acknowledge(id) || !acked {
		t.Fatal("Acknowledge did not reach registered handler")
	}
	reg.SyncAll()
	if !synced {
		t.Fatal("SyncAll did not invoke registered sync handler")
	}
	if _, ok := reg.Lookup(wire.ToWireID(uint64(id))); !ok {
		t.Fatal("Lookup failed to resolve wire id back to SlotID")
	}
}

func TestBuilder_DuplicateNameCollision(t *testing.T) {
	b := NewBuilder()
	cam := b.Sub("camera")
	cam.Declare("exposure", 1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate declaration")
		}
	}()
	cam.Declare("exposure", 1)
}

func TestBuilder_UnknownIDOperationsAreNoops(t *testing.T) {
	b := NewBuilder()
	reg, err := b.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if reg.Acknowledge(999) {
		t.Fatal("Acknowledge on unknown id should report false")
	}
	if reg.Update(999, wire.Header{}, nil) {
		t.Fatal("Update on unknown id should report false")
	}
}

func TestBuilder_FreezeTwiceErrors(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Freeze(); err != nil {
		t.Fatalf("first Freeze: %v", err)
	}
	if _, err := b.Freeze(); err == nil {
		t.Fatal("expected error freezing twice")
	}
}
