// Package dispatcher routes named commands to handlers. A handler runs on
// the caller's goroutine unless it is registered Buffered, in which case a
// dedicated worker drains its queue in order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/arlens/flicker/internal/dispatcher"

// Queued is the result of a successful dispatch to a buffered handler.
const Queued = "queued"

var (
	ErrClosed         = errors.New("dispatcher closed")
	ErrQueueFull      = errors.New("dispatcher queue full")
	ErrUnknownCommand = errors.New("unknown command")
)

// Event is a command routed to a handler. The handler owns Payload once
// dispatched.
type Event struct {
	Command   string
	Payload   any
	Timestamp time.Time
}

type HandlerFunc func(Event) (any, error)

// Logger is the subset of a structured logger the dispatcher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type Option func(*route)

// Buffered queues up to size events for a worker goroutine. Dispatch
// returns Queued immediately.
func Buffered(size int) Option { return func(r *route) { r.size = size } }

// Blocking makes Dispatch wait for room in a full queue instead of
// returning ErrQueueFull.
func Blocking() Option { return func(r *route) { r.blocking = true } }

// Logged logs every handled event at debug and every failure at error.
func Logged() Option { return func(r *route) { r.logged = true } }

type route struct {
	command  string
	attr     metric.MeasurementOption
	size     int
	blocking bool
	logged   bool
	queue    chan Event
	handle   HandlerFunc
}

type instruments struct {
	depth     metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

// Dispatcher is safe for concurrent Dispatch. Register is expected during
// setup, before events flow.
type Dispatcher struct {
	log    Logger
	inst   instruments
	routes map[string]*route

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// New reports metrics through the global OTel meter, a no-op until a meter
// provider is installed.
func New(log Logger) (*Dispatcher, error) {
	d := &Dispatcher{log: log, routes: map[string]*route{}}
	if err := d.instrument(otel.Meter(meterName)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) instrument(m metric.Meter) error {
	var err error
	if d.inst.depth, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered handler's queue")); err != nil {
		return fmt.Errorf("dispatcher: queue gauge: %w", err)
	}
	if d.inst.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handled by buffered workers")); err != nil {
		return fmt.Errorf("dispatcher: processed counter: %w", err)
	}
	if d.inst.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events refused by a full queue")); err != nil {
		return fmt.Errorf("dispatcher: dropped counter: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for _, r := range d.routes {
			if r.queue != nil {
				o.ObserveInt64(d.inst.depth, int64(len(r.queue)), r.attr)
			}
		}
		return nil
	}, d.inst.depth)
	if err != nil {
		return fmt.Errorf("dispatcher: gauge callback: %w", err)
	}
	return nil
}

// Register installs h for command, replacing any earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{
		command: command,
		attr:    metric.WithAttributes(attribute.String("command", command)),
		handle:  h,
	}
	for _, o := range opts {
		o(r)
	}
	if r.logged {
		r.handle = d.logged(command, r.handle)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r.size > 0 {
		r.queue = make(chan Event, r.size)
		d.workers.Add(1)
		go d.work(r)
	}
	d.routes[command] = r
}

func (d *Dispatcher) work(r *route) {
	defer d.workers.Done()
	for e := range r.queue {
		_, _ = r.handle(e)
		d.inst.processed.Add(context.Background(), 1, r.attr)
	}
}

// Dispatch stamps e if needed and hands it to its handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	r, ok := d.routes[e.Command]
	if !ok {
		d.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if r.queue == nil {
		d.mu.RUnlock()
		return r.handle(e)
	}
	// The read lock is held while enqueueing so Close cannot close the
	// channel underneath a send.
	defer d.mu.RUnlock()
	return d.enqueue(r, e)
}

func (d *Dispatcher) enqueue(r *route, e Event) (any, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if r.blocking {
		r.queue <- e
		return Queued, nil
	}
	select {
	case r.queue <- e:
		return Queued, nil
	default:
		d.inst.dropped.Add(context.Background(), 1, r.attr)
		return nil, fmt.Errorf("%w: %s", ErrQueueFull, r.command)
	}
}

// Close refuses further buffered events and waits for the queues to drain.
// It is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		res, err := h(e)
		took := time.Since(start)
		if err != nil {
			d.log.Error("event failed", "command", command, "payload", fmt.Sprintf("%T", e.Payload), "took", took, "error", err)
			return res, err
		}
		d.log.Debug("event handled", "command", command, "payload", fmt.Sprintf("%T", e.Payload), "took", took)
		return res, nil
	}
}
