package service

import (
	"context"
	"fmt"
	"time"
)

// Clock is the time source for per-call timeouts and idle timers. Tests swap in a
// manual clock so timer behaviour can be checked without real I/O.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of *time.Timer the gateway uses.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// boundedCall runs fn with a context that is cancelled once d elapses on clk. A call
// that fails after the deadline fired is reported as ErrGatewayTimeout.
func boundedCall(ctx context.Context, clk Clock, d time.Duration, op string, fn func(context.Context) error) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := clk.AfterFunc(d, cancel)
	err := fn(cctx)
	stopped := t.Stop()
	if err != nil && !stopped {
		return fmt.Errorf("%s after %s: %w", op, d, ErrGatewayTimeout)
	}
	return err
}
