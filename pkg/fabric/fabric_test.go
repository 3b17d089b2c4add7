package fabric

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/statefabric/internal/dispatch"
	"github.com/ocx/statefabric/internal/wire"
)

// freePort asks the OS for an ephemeral port and immediately releases it,
// the same "bind :0, read back Addr, close" trick the standard library's
// own net/http tests use to avoid fixed port collisions.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestNew_RequiresPort(t *testing.T) {
	_, err := New(Config{}, func(b *Builder) {})
	assert.Error(t, err)
}

func TestNew_RunsRegisterExactlyOnce(t *testing.T) {
	calls := 0
	driver, err := New(Config{Port: freePort(t)}, func(b *Builder) {
		calls++
		NewValue(b, "x", wire.Int32, int32(1))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, driver.IsRunning())
	assert.False(t, driver.IsConnected())
}

func TestNew_DuplicateSlotNameReturnsError(t *testing.T) {
	_, err := New(Config{Port: freePort(t)}, func(b *Builder) {
		NewValue(b, "x", wire.Int32, int32(1))
		NewValue(b, "x", wire.Int32, int32(2))
	})
	assert.Error(t, err)
}

func TestDriver_StartStop(t *testing.T) {
	driver, err := New(Config{Port: freePort(t)}, func(b *Builder) {
		NewValue(b, "x", wire.Int32, int32(1))
	})
	require.NoError(t, err)

	require.NoError(t, driver.Start())
	assert.True(t, driver.IsRunning())

	require.NoError(t, driver.Stop())
	assert.False(t, driver.IsRunning())
}

func TestDriver_WaitSignalDoneSignal(t *testing.T) {
	driver, err := New(Config{Port: freePort(t)}, func(b *Builder) {})
	require.NoError(t, err)

	driver.dispatcher.Post(7, "pressed")

	done := make(chan dispatch.Payload, 1)
	go func() { done <- driver.WaitSignal() }()

	select {
	case p := <-done:
		assert.EqualValues(t, 7, p.ID)
		assert.Equal(t, "pressed", p.Value)
	case <-time.After(time.Second):
		t.Fatal("WaitSignal did not return a posted payload")
	}
	driver.DoneSignal(7)
}

func TestDriver_SetSignalMode_Multi(t *testing.T) {
	driver, err := New(Config{Port: freePort(t)}, func(b *Builder) {})
	require.NoError(t, err)

	driver.SetSignalMode(3, dispatch.Multi)
	driver.dispatcher.Post(3, "a")
	driver.dispatcher.Post(3, "b")

	p1 := driver.WaitSignal()
	driver.DoneSignal(p1.ID)
	p2 := driver.WaitSignal()
	driver.DoneSignal(p2.ID)

	assert.Equal(t, "a", p1.Value)
	assert.Equal(t, "b", p2.Value)
}

func TestDriver_Update_NoopWhenNoViewer(t *testing.T) {
	driver, err := New(Config{Port: freePort(t)}, func(b *Builder) {})
	require.NoError(t, err)
	require.NoError(t, driver.Start())
	defer driver.Stop()

	assert.NotPanics(t, func() { driver.Update(0.5) })
}

func TestRegisterSignalInterest_TogglesValue(t *testing.T) {
	driver, err := New(Config{Port: freePort(t)}, func(b *Builder) {})
	require.NoError(t, err)
	_ = driver

	var toggled bool
	fake := fakeToggle{onToggle: func(enabled bool) { toggled = enabled }}
	RegisterSignalInterest(fake, true)
	assert.True(t, toggled)
}

type fakeToggle struct {
	onToggle func(bool)
}

func (f fakeToggle) RegisterSignalInterest(enabled bool) { f.onToggle(enabled) }

func TestDriver_Metrics_NotNil(t *testing.T) {
	driver, err := New(Config{Port: freePort(t)}, func(b *Builder) {})
	require.NoError(t, err)
	assert.NotNil(t, driver.Metrics())
}
