package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/stretchr/testify/assert"
)

type collectSink struct {
	mu   sync.Mutex
	seen []model.EventType
	err  error
}

func (c *collectSink) Name() string { return "collect" }

func (c *collectSink) Handle(_ context.Context, evt model.RoundEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, evt.Type)
	return c.err
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	failing := &collectSink{err: errors.New("sink down")}
	ok := &collectSink{}
	d := NewEventDispatcher(8, failing, ok)

	d.Publish(model.RoundEvent{Type: model.EventRoundStarted})
	d.Publish(model.RoundEvent{Type: model.EventSold})
	d.Close()

	want := []model.EventType{model.EventRoundStarted, model.EventSold}
	assert.Equal(t, want, failing.seen)
	assert.Equal(t, want, ok.seen)
}

func TestDispatcherPublishAfterCloseIsDropped(t *testing.T) {
	sink := &collectSink{}
	d := NewEventDispatcher(1, sink)
	d.Close()
	d.Close()
	d.Publish(model.RoundEvent{Type: model.EventExpired})
	assert.Empty(t, sink.seen)
}
