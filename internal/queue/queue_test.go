package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: EventClaimAccepted, Body: []byte(`{"session_id":"sess_1"}`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: EventSessionClosed, Body: []byte(`{"session_id":"sess_1"}`)}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-ch:
			got = append(got, msg.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
	assert.Equal(t, []string{EventClaimAccepted, EventSessionClosed}, got)
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, Message{Type: EventClaimAccepted}))

	// Queue full; a cancelled context unblocks the publisher.
	cancel()
	err := q.Publish(ctx, Message{Type: EventClaimAccepted})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCodecRoundTrip(t *testing.T) {
	msg := Message{Type: EventSessionStarted, Body: []byte(`{"owner_id":"fac|1"}`)}

	decoded := decode(encode(msg))
	assert.Equal(t, msg.Type, decoded.Type)
	assert.Equal(t, string(msg.Body), string(decoded.Body), "bodies may contain the separator")

	// A frame with no separator degrades to an untyped body.
	decoded = decode("orphan")
	assert.Empty(t, decoded.Type)
	assert.Equal(t, "orphan", string(decoded.Body))
}
