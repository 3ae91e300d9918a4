// Package dispatcher hands the commands drained at the end of a tick to
// their handlers, either inline or through a bounded queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrClosed is returned when dispatching to a buffered handler after Close.
	ErrClosed = errors.New("dispatcher closed")
	// ErrUnknownCommand is returned for a command with no registered handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking buffer has no room.
	ErrQueueFull = errors.New("queue full")
)

// queuedResult is returned by buffered handlers once the event is enqueued.
const queuedResult = "queued"

// Event is one handoff from the simulation loop, e.g. the drained commands
// of a tick.
type Event struct {
	Command   string
	Tick      uint64
	Payload   any
	Timestamp time.Time
}

// HandlerFunc handles one event.
type HandlerFunc func(Event) (any, error)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option adjusts how Register wraps a handler.
type Option func(*route)

// route is the registration shape of one command.
type route struct {
	queue    int  // buffered when > 0
	blocking bool // wait for room instead of dropping
	logged   bool
}

// Buffered runs the handler on its own goroutine behind a queue of size events.
func Buffered(size int) Option { return func(r *route) { r.queue = size } }

// Blocking makes a full Buffered queue wait instead of dropping the event.
func Blocking() Option { return func(r *route) { r.blocking = true } }

// Logged logs each event at debug level, and failures at error level.
func Logged() Option { return func(r *route) { r.logged = true } }

// Dispatcher routes events to registered handlers. Register must not be
// called concurrently with Dispatch.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  *instruments

	mu      sync.RWMutex
	buffers map[string]chan Event
	closed  bool
	wg      sync.WaitGroup
}

// New returns a Dispatcher logging to logger, which may be nil. Its metrics
// go to the global meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	in, err := newInstruments(meter(), d.eachQueue)
	if err != nil {
		return nil, err
	}
	d.metrics = in
	return d, nil
}

// Register adds a handler for command, replacing any previous one. The
// handler is always timed; opts add a queue and logging around it.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var r route
	for _, opt := range opts {
		opt(&r)
	}

	h = d.timed(command, h)
	if r.queue > 0 {
		h = d.withBuffer(command, r.queue, r.blocking, h)
	}
	if r.logged && d.logger != nil {
		h = d.withLogging(command, h)
	}
	d.handlers[command] = h
}

// Dispatch routes an event to its registered handler. A zero Timestamp is
// set to the current time.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler reports whether command has a handler.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// QueueLen returns the number of events waiting in a buffered handler's
// queue. It is 0 for inline handlers.
func (d *Dispatcher) QueueLen(command string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers[command])
}

// Close stops accepting buffered events and waits until every queued event
// has been handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) eachQueue(observe func(command string, size int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, buf := range d.buffers {
		observe(cmd, len(buf))
	}
}

func (d *Dispatcher) timed(command string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(commandAttr(command))
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)
		d.metrics.latency.Record(context.Background(), time.Since(start).Seconds(), attrs)
		return result, err
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	attrs := metric.WithAttributes(commandAttr(command))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			if _, err := h(e); err != nil && d.logger != nil {
				d.logger.Error("buffered dispatch failed", "command", command, "tick", e.Tick, "error", err)
			}
			d.metrics.processed.Add(context.Background(), 1, attrs)
		}
	}()

	// The read lock keeps Close from closing the buffer mid-send.
	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		if blocking {
			buffer <- e
			return queuedResult, nil
		}
		select {
		case buffer <- e:
			return queuedResult, nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		d.logger.Debug("dispatch", "command", command, "tick", e.Tick)
		start := time.Now()
		result, err := h(e)
		took := time.Since(start)
		if err != nil {
			d.logger.Error("dispatch failed", "command", command, "tick", e.Tick, "duration", took, "error", err)
			return result, err
		}
		d.logger.Debug("dispatched", "command", command, "tick", e.Tick, "duration", took)
		return result, nil
	}
}
