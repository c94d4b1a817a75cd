package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("debug", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("info", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

func (l *recordingLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func setup(t *testing.T) (*Dispatcher, *recordingLogger) {
	t.Helper()
	log := &recordingLogger{}
	d, err := New(log)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, log
}

func TestDispatch_Synchronous(t *testing.T) {
	d, _ := setup(t)

	var got Event
	d.Register("host.tap", func(e Event) (any, error) {
		got = e
		return len(e.Payload.([2]float32)), nil
	})

	res, err := d.Dispatch(Event{Command: "host.tap", Payload: [2]float32{12, 34}})
	require.NoError(t, err)
	assert.Equal(t, 2, res)
	assert.Equal(t, [2]float32{12, 34}, got.Payload)
	assert.False(t, got.Timestamp.IsZero())

	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err = d.Dispatch(Event{Command: "host.tap", Payload: [2]float32{}, Timestamp: stamp})
	require.NoError(t, err)
	assert.Equal(t, stamp, got.Timestamp, "caller timestamp kept")
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, _ := setup(t)
	_, err := d.Dispatch(Event{Command: "host.nothing"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.False(t, d.HasHandler("host.nothing"))
}

func TestBuffered_HandledInOrder(t *testing.T) {
	d, _ := setup(t)

	var seen []int
	d.Register("ui.message", func(e Event) (any, error) {
		seen = append(seen, e.Payload.(int))
		return nil, nil
	}, Buffered(8))

	for i := range 6 {
		res, err := d.Dispatch(Event{Command: "ui.message", Payload: i})
		require.NoError(t, err)
		assert.Equal(t, Queued, res)
	}
	d.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, seen)
	_, err := d.Dispatch(Event{Command: "ui.message", Payload: 6})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBuffered_DropsWhenFull(t *testing.T) {
	d, _ := setup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register("ui.scan_busy", func(Event) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}, Buffered(1))
	defer close(release)

	_, err := d.Dispatch(Event{Command: "ui.scan_busy"})
	require.NoError(t, err)
	<-started

	_, err = d.Dispatch(Event{Command: "ui.scan_busy"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: "ui.scan_busy"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestBuffered_BlockingWaitsForRoom(t *testing.T) {
	d, _ := setup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register("storage.anchor_event", func(Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(Event{Command: "storage.anchor_event"})
	<-started
	_, _ = d.Dispatch(Event{Command: "storage.anchor_event"})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(Event{Command: "storage.anchor_event"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch stayed blocked after the worker drained")
	}
}

func TestLogged(t *testing.T) {
	d, log := setup(t)

	d.Register("host.reset", func(Event) (any, error) { return "ok", nil }, Logged())
	d.Register("host.scan", func(Event) (any, error) { return nil, errors.New("scan in flight") }, Logged())

	_, err := d.Dispatch(Event{Command: "host.reset", Payload: "button"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: "host.scan"})
	require.Error(t, err)

	lines := log.snapshot()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "debug event handled"), lines[0])
	assert.Contains(t, lines[0], "string")
	assert.True(t, strings.HasPrefix(lines[1], "error event failed"), lines[1])
	assert.Contains(t, lines[1], "scan in flight")
}

func TestLogged_BufferedLogsOnWorker(t *testing.T) {
	d, log := setup(t)

	d.Register("ui.error", func(Event) (any, error) { return nil, nil }, Buffered(4), Logged())

	res, err := d.Dispatch(Event{Command: "ui.error"})
	require.NoError(t, err)
	assert.Equal(t, Queued, res)

	d.Close()
	assert.Len(t, log.snapshot(), 1)
}

func TestClose_Idempotent(t *testing.T) {
	d, _ := setup(t)
	d.Register("ui.hide", func(Event) (any, error) { return nil, nil }, Buffered(1))
	assert.True(t, d.HasHandler("ui.hide"))

	d.Close()
	d.Close()
}
