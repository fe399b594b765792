// Package publisher delivers audit events to a sink, either inline or through
// a bounded background queue.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "kycproxy/pkg/domain-errors"
	audit "kycproxy/pkg/platform/audit"
	"kycproxy/pkg/platform/audit/metrics"
)

const sinkWriteTimeout = 10 * time.Second

var errQueueFull = dErrors.New(dErrors.CodeInternal, "audit buffer full")

// Publisher writes to the sink inline unless WithAsyncBuffer is set, in which
// case Emit only enqueues and never waits on the sink.
type Publisher struct {
	sink    audit.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	queue chan audit.Event
	mu    sync.RWMutex
	done  chan struct{}
	shut  bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for a single background writer.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan audit.Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

func NewPublisher(sink audit.Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
		if err := p.write(ctx, ev); err != nil {
			p.logger.Error("audit sink write failed",
				"error", err,
				"event_id", ev.ID,
				"action", string(ev.Action),
			)
		}
		cancel()
	}
}

func (p *Publisher) write(ctx context.Context, ev audit.Event) error {
	start := time.Now()
	err := p.sink.Append(ctx, ev)
	p.metrics.Persisted(time.Since(start), err)
	return err
}

// Emit stamps a missing timestamp and hands the event off. A full queue drops
// the event with a CodeInternal error; emitting after Close does the same.
func (p *Publisher) Emit(ctx context.Context, ev audit.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if p.queue == nil {
		return p.write(ctx, ev)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shut {
		return dErrors.New(dErrors.CodeInternal, "audit publisher closed")
	}
	select {
	case p.queue <- ev:
		p.metrics.Enqueued(len(p.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p.metrics.Dropped()
	p.logger.WarnContext(ctx, "audit event dropped, queue full",
		"action", string(ev.Action),
		"request_id", ev.RequestID,
	)
	return errQueueFull
}

// Close stops intake and blocks until queued events have been written.
func (p *Publisher) Close() {
	if p.queue == nil {
		return
	}
	p.mu.Lock()
	if !p.shut {
		p.shut = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}
