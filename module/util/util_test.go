package util_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cipherworks/machina/module"
	"github.com/cipherworks/machina/module/util"
	"github.com/cipherworks/machina/utils/unittest"
)

// readyDone is a minimal ReadyDoneAware double.
type readyDone struct {
	ready chan struct{}
	done  chan struct{}
}

var _ module.ReadyDoneAware = (*readyDone)(nil)

func newReadyDone() *readyDone {
	return &readyDone{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (r *readyDone) Ready() <-chan struct{} { return r.ready }
func (r *readyDone) Done() <-chan struct{}  { return r.done }

func TestAllReady(t *testing.T) {
	a := newReadyDone()
	b := newReadyDone()

	all := util.AllReady(a, b)
	unittest.RequireNotClosed(t, all, "all must wait for every component")

	close(a.ready)
	unittest.RequireNotClosed(t, all, "all must wait for every component")

	close(b.ready)
	unittest.RequireCloseBefore(t, all, 100*time.Millisecond, "all components ready")
}

func TestAllDone(t *testing.T) {
	a := newReadyDone()
	b := newReadyDone()

	all := util.AllDone(a, b)
	close(a.done)
	close(b.done)
	unittest.RequireCloseBefore(t, all, 100*time.Millisecond, "all components done")
}

func TestCheckClosed(t *testing.T) {
	ch := make(chan struct{})
	require.False(t, util.CheckClosed(ch))
	close(ch)
	require.True(t, util.CheckClosed(ch))
}

func TestWaitError(t *testing.T) {
	t.Run("returns nil when done closes", func(t *testing.T) {
		errChan := make(chan error, 1)
		done := make(chan struct{})
		close(done)
		require.NoError(t, util.WaitError(errChan, done))
	})

	t.Run("returns the error", func(t *testing.T) {
		boom := errors.New("boom")
		errChan := make(chan error, 1)
		errChan <- boom
		done := make(chan struct{})
		require.ErrorIs(t, util.WaitError(errChan, done), boom)
	})

	t.Run("prefers the error when both are available", func(t *testing.T) {
		boom := errors.New("boom")
		errChan := make(chan error, 1)
		errChan <- boom
		done := make(chan struct{})
		close(done)
		require.ErrorIs(t, util.WaitError(errChan, done), boom)
	})
}
