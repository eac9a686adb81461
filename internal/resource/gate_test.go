package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSerializesAccess(t *testing.T) {
	g := NewGate()

	guard1, err := g.Acquire(context.Background(), nil)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		guard2, err := g.Acquire(context.Background(), nil)
		require.NoError(t, err)
		close(acquired)
		guard2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not succeed while first holds the gate")
	case <-time.After(50 * time.Millisecond):
	}

	guard1.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should succeed once first is released")
	}
}

func TestGateReleaseRunsCleanupOnce(t *testing.T) {
	g := NewGate()
	calls := 0

	guard, err := g.Acquire(context.Background(), func() { calls++ })
	require.NoError(t, err)

	guard.Release()
	guard.Release()

	assert.Equal(t, 1, calls)
}

func TestGateAcquireFailsFastOnCancelledContext(t *testing.T) {
	g := NewGate()
	guard, err := g.Acquire(context.Background(), nil)
	require.NoError(t, err)
	defer guard.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.Acquire(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGateCleanupRunsBetweenAcquisitionsEvenAfterError(t *testing.T) {
	g := NewGate()
	cleaned := false

	guard, err := g.Acquire(context.Background(), func() { cleaned = true })
	require.NoError(t, err)

	// Simulate a stage that errors after acquiring: cleanup must still
	// run via the deferred Release.
	func() {
		defer guard.Release()
	}()

	assert.True(t, cleaned)

	guard2, err := g.Acquire(context.Background(), nil)
	require.NoError(t, err)
	guard2.Release()
}
