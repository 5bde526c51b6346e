package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/cipherworks/machina/module/irrecoverable"
	"github.com/cipherworks/machina/utils/unittest"
)

func TestComponentManager_Lifecycle(t *testing.T) {
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	manager.Start(signalerCtx)
	unittest.RequireCloseBefore(t, manager.Ready(), 100*time.Millisecond, "manager readiness")

	cancel()
	unittest.RequireCloseBefore(t, manager.ShutdownSignal(), 100*time.Millisecond, "shutdown signal")
	unittest.RequireCloseBefore(t, manager.Done(), 100*time.Millisecond, "manager shutdown")

	select {
	case err := <-errChan:
		require.NoError(t, err)
	default:
	}
}

func TestComponentManager_ReadyWaitsForAllWorkers(t *testing.T) {
	release := make(chan struct{})
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			<-release
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalerCtx, _ := irrecoverable.WithSignaler(ctx)

	manager.Start(signalerCtx)
	unittest.RequireNotClosed(t, manager.Ready(), "ready must wait for all workers")

	close(release)
	unittest.RequireCloseBefore(t, manager.Ready(), 100*time.Millisecond, "manager readiness")
}

func TestComponentManager_WorkerErrorPropagates(t *testing.T) {
	boom := errors.New("storage corrupted")
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ctx.Throw(boom)
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			// sibling workers are shut down when any worker throws
			<-ctx.Done()
		}).
		Build()

	ctx := context.Background()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	manager.Start(signalerCtx)

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("expected the worker error to propagate")
	}
	unittest.RequireCloseBefore(t, manager.Done(), time.Second, "manager shutdown after error")
}

func TestComponentManager_StartIdempotent(t *testing.T) {
	starts := atomic.NewInt32(0)
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			starts.Inc()
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, _ := irrecoverable.WithSignaler(ctx)

	manager.Start(signalerCtx)
	unittest.RequireCloseBefore(t, manager.Ready(), 100*time.Millisecond, "manager readiness")

	// a second Start while running is a no-op and must not relaunch workers
	require.NotPanics(t, func() {
		manager.Start(signalerCtx)
	})
	require.Equal(t, int32(1), starts.Load())

	cancel()
	unittest.RequireCloseBefore(t, manager.Done(), 100*time.Millisecond, "manager shutdown")
}
