// Package irrecoverable provides a context through which components signal
// errors they cannot recover from. Throwing such an error terminates the
// calling goroutine; the error surfaces on the channel returned by
// WithSignaler, where the component's supervisor decides how to react.
package irrecoverable

import (
	"context"
	"runtime"

	"go.uber.org/atomic"
)

// Signaler sends the error out.
type Signaler struct {
	errChan   chan error
	errThrown *atomic.Bool
}

func NewSignaler() (*Signaler, <-chan error) {
	errChan := make(chan error, 1)
	return &Signaler{
		errChan:   errChan,
		errThrown: atomic.NewBool(false),
	}, errChan
}

// Throw is a narrow drop-in replacement for panic or log.Fatal anywhere
// there is something connected to the error channel. It only sends the first
// error thrown and does not return.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	if s.errThrown.CompareAndSwap(false, true) {
		s.errChan <- err
		close(s.errChan)
	}
}

// SignalerContext is a constrained drop-in replacement for context.Context
// that additionally carries a Signaler. Components thread it down to every
// worker so any of them can throw.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain derivation to WithSignaler
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc signalerCtx) sealed() {}

// WithSignaler is the One True Way of getting a SignalerContext.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return signalerCtx{parent, sig}, errChan
}
