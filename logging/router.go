package logging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// Router fans events out to the configured sinks from a single dispatch
// goroutine so slow sinks never stall the simulation tick. Events are dropped
// (and counted) when the buffer is full.
type Router struct {
	cfg         Config
	queue       chan Event
	sinks       map[string]Sink
	clock       Clock
	fallback    *log.Logger
	closed      atomic.Bool
	minSeverity Severity
	fields      map[string]any
	wg          sync.WaitGroup

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	lastDropLog  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

func NewRouter(cfg Config, clock Clock, fallback *log.Logger, sinks map[string]Sink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	enabled := make(map[string]Sink, len(sinks))
	for name, sink := range sinks {
		if sink == nil {
			return nil, fmt.Errorf("logging: sink %q is nil", name)
		}
		if cfg.HasSink(name) {
			enabled[name] = sink
		}
	}
	r := &Router{
		cfg:         cfg,
		queue:       make(chan Event, bufferSize),
		sinks:       enabled,
		clock:       clock,
		fallback:    fallback,
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
	}
	r.wg.Add(1)
	go r.dispatch()
	return r, nil
}

// Publish satisfies Publisher. Non-blocking: events beyond the buffer are
// dropped and surfaced through the fallback logger at a bounded rate.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || r.closed.Load() {
		return
	}
	if event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if event.TraceID == "" {
		event.TraceID = uuid.NewString()
	}
	if len(r.fields) > 0 {
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	select {
	case r.queue <- event:
		r.eventsTotal.Add(1)
	default:
		r.noteDrop()
	}
}

func (r *Router) noteDrop() {
	dropped := r.droppedTotal.Add(1)
	if r.fallback == nil {
		return
	}
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := r.clock.Now().UnixNano()
	last := r.lastDropLog.Load()
	if now-last < interval.Nanoseconds() {
		return
	}
	if r.lastDropLog.CompareAndSwap(last, now) {
		r.fallback.Printf("logging: queue full, %d events dropped so far", dropped)
	}
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	for event := range r.queue {
		for name, sink := range r.sinks {
			if err := sink.Write(event); err != nil && r.fallback != nil {
				r.fallback.Printf("logging: sink %q write failed: %v", name, err)
			}
		}
	}
}

func (r *Router) Stats() RouterStats {
	if r == nil {
		return RouterStats{}
	}
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

// Close drains the queue, then closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.queue)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for name, sink := range r.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("logging: close sink %q: %w", name, err)
		}
	}
	return firstErr
}
