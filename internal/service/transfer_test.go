package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagateway/internal/model"
)

// trackingStream is an upstream body that records Close.
type trackingStream struct {
	io.Reader
	mu     sync.Mutex
	closed int
}

func newTrackingStream(data string) *trackingStream {
	return &trackingStream{Reader: strings.NewReader(data)}
}

func (s *trackingStream) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *trackingStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed > 0
}

// silentStream never returns data until closed.
type silentStream struct {
	done chan struct{}
	once sync.Once
}

func newSilentStream() *silentStream { return &silentStream{done: make(chan struct{})} }

func (s *silentStream) Read(p []byte) (int, error) {
	<-s.done
	return 0, errors.New("use of closed stream")
}

func (s *silentStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *silentStream) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func newTestTransfer(clk Clock, m *Metrics) *Transfer {
	return newTransfer(DirectionDownload, "video/owner/file.mp4", model.CategoryVideo, clk, zerolog.Nop(), m)
}

func TestTransfer_CompletesOnExactEOF(t *testing.T) {
	clk := newManualClock()
	tr := newTestTransfer(clk, nil)
	up := newTrackingStream("0123456789")
	cancelled := false
	tr.beginStreaming(context.Background(), up, func() { cancelled = true }, 10, 20*time.Second)

	assert.Equal(t, StateStreaming, tr.State())
	assert.True(t, tr.IdleTimerActive())

	got, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))
	assert.Equal(t, StateComplete, tr.State())
	assert.Equal(t, int64(10), tr.BytesRelayed())
	assert.True(t, up.Closed())
	assert.True(t, cancelled)
	assert.False(t, tr.IdleTimerActive())
	assert.Equal(t, 0, clk.Pending())

	// Close after completion changes nothing.
	require.NoError(t, tr.Close())
	assert.Equal(t, StateComplete, tr.State())
}

func TestTransfer_ShortUpstreamIsAnError(t *testing.T) {
	clk := newManualClock()
	tr := newTestTransfer(clk, nil)
	up := newTrackingStream("01234")
	tr.beginStreaming(context.Background(), up, func() {}, 10, 20*time.Second)

	_, err := io.ReadAll(tr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, StateErrored, tr.State())
	assert.True(t, up.Closed())
}

func TestTransfer_ClientCloseReleasesEverything(t *testing.T) {
	clk := newManualClock()
	tr := newTestTransfer(clk, nil)
	up := newTrackingStream(strings.Repeat("x", 1000))
	tr.beginStreaming(context.Background(), up, func() {}, 1000, 20*time.Second)

	buf := make([]byte, 100)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	require.NoError(t, tr.Close())
	assert.Equal(t, StateAborted, tr.State())
	assert.True(t, up.Closed())
	assert.False(t, tr.IdleTimerActive())
	assert.Equal(t, 0, clk.Pending())

	_, err = tr.Read(buf)
	assert.ErrorIs(t, err, ErrTransferAborted)
}

func TestTransfer_ContextCancellationAborts(t *testing.T) {
	clk := newManualClock()
	tr := newTestTransfer(clk, nil)
	up := newSilentStream()
	ctx, cancel := context.WithCancel(context.Background())
	tr.beginStreaming(ctx, up, func() {}, 1000, 20*time.Second)

	cancel()

	assert.Eventually(t, func() bool { return tr.State() == StateAborted }, time.Second, 5*time.Millisecond)
	assert.True(t, up.Closed())
	assert.False(t, tr.IdleTimerActive())
}

func TestTransfer_StallTimesOut(t *testing.T) {
	clk := newManualClock()
	tr := newTestTransfer(clk, nil)
	up := newSilentStream()
	tr.beginStreaming(context.Background(), up, func() {}, 1000, 20*time.Second)

	readErr := make(chan error, 1)
	go func() {
		_, err := tr.Read(make([]byte, 10))
		readErr <- err
	}()

	clk.Advance(20 * time.Second)

	assert.Equal(t, StateTimedOut, tr.State())
	assert.True(t, up.Closed())
	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, ErrTransferStalled)
		assert.ErrorIs(t, err, ErrGatewayTimeout)
	case <-time.After(time.Second):
		t.Fatal("blocked read was not released by the stall")
	}
	assert.Equal(t, 0, clk.Pending())
}

func TestTransfer_BeginAfterTerminalClosesUpstream(t *testing.T) {
	clk := newManualClock()
	tr := newTestTransfer(clk, nil)
	tr.finish(StateErrored, errors.New("earlier failure"))

	up := newTrackingStream("data")
	cancelled := false
	tr.beginStreaming(context.Background(), up, func() { cancelled = true }, 4, time.Second)

	assert.True(t, up.Closed())
	assert.True(t, cancelled)
	assert.Equal(t, StateErrored, tr.State())
	assert.Equal(t, 0, clk.Pending())
}

func TestTransfer_OnlyFirstTerminalStateWins(t *testing.T) {
	tr := newTestTransfer(newManualClock(), nil)
	tr.beginStreaming(context.Background(), newTrackingStream("abc"), func() {}, 3, time.Second)

	assert.True(t, tr.finish(StateAborted, ErrTransferAborted))
	assert.False(t, tr.finish(StateTimedOut, ErrTransferStalled))
	assert.False(t, tr.finish(StateComplete, nil))
	assert.Equal(t, StateAborted, tr.State())
}

func TestTransfer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	tr := newTestTransfer(newManualClock(), m)
	tr.beginStreaming(context.Background(), newTrackingStream("hello"), func() {}, 5, time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inFlight.WithLabelValues(DirectionDownload)))

	_, err = io.ReadAll(tr)
	require.NoError(t, err)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight.WithLabelValues(DirectionDownload)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transfers.WithLabelValues(DirectionDownload, "video", "complete")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.bytes.WithLabelValues(DirectionDownload, "video")))
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{StateRangeRejected, StateComplete, StateAborted, StateTimedOut, StateErrored} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []State{StateInit, StateMetadataFetched, StateStreaming} {
		assert.False(t, s.Terminal(), s.String())
	}
}
