package service

import (
	"context"
	"sync"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
)

// EventSink consumes round events off the dispatcher goroutine.
type EventSink interface {
	Name() string
	Handle(ctx context.Context, evt model.RoundEvent) error
}

// EventDispatcher fans round events out to sinks. Publish never blocks the
// caller, which usually holds the round state lock; when the queue is full
// the event is dropped.
type EventDispatcher struct {
	ch      chan model.RoundEvent
	sinks   []EventSink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewEventDispatcher(buffer int, sinks ...EventSink) *EventDispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &EventDispatcher{
		ch:      make(chan model.RoundEvent, buffer),
		sinks:   sinks,
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *EventDispatcher) Publish(evt model.RoundEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- evt:
	default:
		logger.Warn("event queue full, dropping event", "type", evt.Type, "round_id", evt.Round.RoundID)
	}
}

func (d *EventDispatcher) loop() {
	defer close(d.done)
	for evt := range d.ch {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := sink.Handle(ctx, evt); err != nil {
				logger.Error("event sink failed",
					"sink", sink.Name(),
					"type", evt.Type,
					"round_id", evt.Round.RoundID,
					"error", err,
				)
			}
			cancel()
		}
	}
}

// Close stops accepting events and waits for the queued ones to be handled.
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	<-d.done
}
