package irrecoverable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrow(t *testing.T) {
	boom := errors.New("boom")

	ctx, errChan := WithSignaler(context.Background())

	// Throw never returns, so it must run in its own goroutine
	go func() {
		ctx.Throw(boom)
		t.Error("code after Throw must be unreachable")
	}()

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("expected thrown error")
	}
}

// Only the first thrown error is delivered; later throws terminate their
// goroutine without blocking.
func TestThrowTwice(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	ctx, errChan := WithSignaler(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		go func() {
			ctx.Throw(first)
		}()
		<-errChan
		ctx.Throw(second)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second throw must not block")
	}

	err, ok := <-errChan
	require.False(t, ok || err != nil, "channel must be closed with no second error")
}

func TestSignalerContextIsContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, _ := WithSignaler(parent)

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("cancellation must pass through")
	}
}
