package auth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples engine hot paths from sink latency: Emit hands
// the event to a buffered queue and a single goroutine drives the sink.
// Closing the queue is the shutdown signal; the worker drains what is
// buffered and exits.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	dropIfFull bool
	dropped    atomic.Uint64

	mu      sync.RWMutex
	closing bool
	stop    sync.Once
	drained sync.WaitGroup
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, buffer),
		dropIfFull: cfg.DropIfFull,
	}

	d.drained.Add(1)
	go func() {
		defer d.drained.Done()
		for event := range d.queue {
			d.sink.Emit(context.Background(), event)
		}
	}()

	return d
}

// Emit enqueues an event. With DropIfFull the call never blocks; otherwise
// it waits for buffer space or context cancellation. Events emitted during
// or after Close are discarded.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closing {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake, waits for buffered events to reach the sink, and
// returns. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		d.mu.Lock()
		d.closing = true
		close(d.queue)
		d.mu.Unlock()
		d.drained.Wait()
	})
}

// Dropped reports events discarded because the buffer was full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
