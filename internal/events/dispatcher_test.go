package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventTicketClosed, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.TicketID)
		return errors.New("webhook down")
	})
	d.Subscribe(EventTicketClosed, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, "created")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketClosed, "TK-1", TicketClosedPayload{Rating: 5}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
	assert.Equal(t, []string{"first:TK-1", "second:TK-1"}, seen)
}

func TestNewEventStampsIDAndTime(t *testing.T) {
	e := NewEvent(EventTicketCreated, "TK-2", nil)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, EventTicketCreated, e.Type)
}
