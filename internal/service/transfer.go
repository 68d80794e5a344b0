package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediagateway/internal/model"
)

// State is a step of a transfer session.
type State int

const (
	StateInit State = iota
	StateMetadataFetched
	StateRangeRejected
	StateStreaming
	StateComplete
	StateAborted
	StateTimedOut
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateMetadataFetched:
		return "metadata_fetched"
	case StateRangeRejected:
		return "range_rejected"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateAborted:
		return "aborted"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRangeRejected || s >= StateComplete
}

// Transfer is one in-flight download. Once streaming it is the response body: it
// owns exactly one upstream stream and one idle timer, and releases both on the first
// terminal transition, whichever path gets there.
type Transfer struct {
	id        string
	direction string
	key       string
	category  model.Category
	clock     Clock
	started   time.Time
	logger    zerolog.Logger
	metrics   *Metrics

	bytes    atomic.Int64
	expected int64

	mu        sync.Mutex
	state     State
	err       error
	upstream  io.ReadCloser
	cancel    context.CancelFunc
	idle      *idleTimer
	stopWatch func() bool

	releaseOnce sync.Once
}

func newTransfer(direction, key string, category model.Category, clk Clock, logger zerolog.Logger, m *Metrics) *Transfer {
	id := uuid.NewString()
	return &Transfer{
		id:        id,
		direction: direction,
		key:       key,
		category:  category,
		clock:     clk,
		started:   clk.Now(),
		logger:    logger.With().Str("transfer_id", id).Str("direction", direction).Logger(),
		metrics:   m,
	}
}

// ID identifies the session in logs.
func (t *Transfer) ID() string { return t.id }

// State returns the current state.
func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// BytesRelayed is the number of bytes handed to the reader so far.
func (t *Transfer) BytesRelayed() int64 { return t.bytes.Load() }

// IdleTimerActive reports whether an idle timer is still pending.
func (t *Transfer) IdleTimerActive() bool {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()
	return idle != nil && idle.Active()
}

func (t *Transfer) advance(to State) {
	t.mu.Lock()
	if !t.state.Terminal() {
		t.state = to
	}
	t.mu.Unlock()
}

// beginStreaming hands the upstream stream to the session and arms the idle timer and
// the cancellation watch on ctx. cancel aborts the upstream request.
func (t *Transfer) beginStreaming(ctx context.Context, upstream io.ReadCloser, cancel context.CancelFunc, expected int64, idleWindow time.Duration) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		cancel()
		_ = upstream.Close()
		return
	}
	t.upstream = upstream
	t.cancel = cancel
	t.expected = expected
	t.state = StateStreaming
	t.metrics.inFlightAdd(t.direction, 1)
	t.idle = startIdleTimer(t.clock, idleWindow, func() {
		t.finish(StateTimedOut, ErrTransferStalled)
	})
	t.stopWatch = context.AfterFunc(ctx, func() {
		t.finish(StateAborted, ErrTransferAborted)
	})
	t.mu.Unlock()

	t.logger.Debug().Str("key", t.key).Int64("expected_bytes", expected).Msg("transfer streaming")
}

// finish moves the session into a terminal state and releases its resources. Only the
// first call has any effect; it reports whether it was that call.
func (t *Transfer) finish(state State, err error) bool {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return false
	}
	wasStreaming := t.state == StateStreaming
	t.state = state
	t.err = err
	t.mu.Unlock()

	t.release()
	if wasStreaming {
		t.metrics.inFlightAdd(t.direction, -1)
	}
	t.record(state, err)
	return true
}

func (t *Transfer) release() {
	t.releaseOnce.Do(func() {
		t.mu.Lock()
		idle, stop, cancel, upstream := t.idle, t.stopWatch, t.cancel, t.upstream
		t.mu.Unlock()

		if idle != nil {
			idle.Stop()
		}
		if stop != nil {
			stop()
		}
		if cancel != nil {
			cancel()
		}
		if upstream != nil {
			if err := upstream.Close(); err != nil {
				t.logger.Debug().Err(err).Msg("closing upstream stream")
			}
		}
	})
}

func (t *Transfer) record(state State, err error) {
	n := t.bytes.Load()
	elapsed := t.clock.Now().Sub(t.started)
	t.metrics.observe(t.direction, t.category, state.String(), n, elapsed)

	var ev *zerolog.Event
	switch state {
	case StateComplete, StateAborted, StateRangeRejected:
		ev = t.logger.Info()
	default:
		ev = t.logger.Warn().Err(err)
	}
	ev.Str("key", t.key).
		Str("category", string(t.category)).
		Str("state", state.String()).
		Int64("bytes", n).
		Str("size", humanize.IBytes(uint64(n))).
		Dur("elapsed", elapsed).
		Msg("transfer finished")
}

func (t *Transfer) terminalErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		return io.EOF
	}
	return t.err
}

// Read relays the next chunk from the upstream stream and resets the idle timer.
func (t *Transfer) Read(p []byte) (int, error) {
	t.mu.Lock()
	if t.state != StateStreaming {
		t.mu.Unlock()
		return 0, t.terminalErr()
	}
	upstream, idle := t.upstream, t.idle
	t.mu.Unlock()

	n, err := upstream.Read(p)
	if n > 0 {
		idle.Touch()
		t.bytes.Add(int64(n))
	}

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		if got := t.bytes.Load(); got != t.expected {
			t.finish(StateErrored, io.ErrUnexpectedEOF)
			return n, io.ErrUnexpectedEOF
		}
		t.finish(StateComplete, nil)
		return n, io.EOF
	default:
		if t.finish(StateErrored, err) {
			return n, err
		}
		// Lost the race to a stall or an abort, which already closed upstream.
		return n, t.terminalErr()
	}
}

// Close is the client-side abort signal. Closing before EOF tears down the idle timer
// and the upstream stream immediately; closing after completion is a no-op.
func (t *Transfer) Close() error {
	t.finish(StateAborted, ErrTransferAborted)
	return nil
}
