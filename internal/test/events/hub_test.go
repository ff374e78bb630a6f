package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banana-studio-backend/internal/events"
)

func startHub(t *testing.T) (*events.Hub, context.CancelFunc) {
	t.Helper()
	hub := events.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, ch chan []byte) events.Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev events.Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return events.Event{}
	}
}

func TestHub_DeliversToTopicSubscribers(t *testing.T) {
	hub, _ := startHub(t)
	user := events.UserTopic(uuid.New())
	other := events.UserTopic(uuid.New())

	mine := make(chan []byte, 4)
	theirs := make(chan []byte, 4)
	require.True(t, hub.Subscribe(mine, user))
	require.True(t, hub.Subscribe(theirs, other))

	require.NoError(t, hub.Publish(user, events.Event{
		Type: events.TypeJobProgress,
		Data: events.JobEvent{JobID: "job-1", Status: "processing", Progress: 45},
	}))

	ev := receive(t, mine)
	assert.Equal(t, events.TypeJobProgress, ev.Type)
	data := ev.Data.(map[string]any)
	assert.Equal(t, "job-1", data["job_id"])
	assert.Equal(t, float64(45), data["progress"])

	assert.Never(t, func() bool { return len(theirs) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub, _ := startHub(t)
	topic := events.UserTopic(uuid.New())

	ch := make(chan []byte, 4)
	require.True(t, hub.Subscribe(ch, topic))
	hub.Unsubscribe(ch, topic)

	require.NoError(t, hub.Publish(topic, events.Event{Type: events.TypeJobCompleted}))
	assert.Never(t, func() bool { return len(ch) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestHub_SlowReaderDoesNotBlock(t *testing.T) {
	hub, _ := startHub(t)
	topic := events.UserTopic(uuid.New())

	slow := make(chan []byte)
	fast := make(chan []byte, 4)
	require.True(t, hub.Subscribe(slow, topic))
	require.True(t, hub.Subscribe(fast, topic))

	require.NoError(t, hub.Publish(topic, events.Event{Type: events.TypeJobFailed}))
	assert.Equal(t, events.TypeJobFailed, receive(t, fast).Type)
}

func TestHub_StoppedHubDropsEvents(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()

	require.Eventually(t, func() bool {
		return hub.Publish("user:x", events.Event{Type: events.TypeJobProgress}) == events.ErrDropped
	}, time.Second, 10*time.Millisecond)
	assert.False(t, hub.Subscribe(make(chan []byte, 1), "user:x"))
}

func TestUserTopic(t *testing.T) {
	id := uuid.MustParse("6f1c9f52-2b7a-4c2e-9a57-0d6c1d7e4b11")
	assert.Equal(t, "user:6f1c9f52-2b7a-4c2e-9a57-0d6c1d7e4b11", events.UserTopic(id))
}
