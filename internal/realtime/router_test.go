package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainEvent pops one queued frame off a client's send buffer.
func drainEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case data := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	default:
		t.Fatal("expected a queued event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("expected no event, got %s", data)
	default:
	}
}

func TestRouterPublishReachesSubscribers(t *testing.T) {
	router := NewRouter()
	topic := Topic{Kind: TopicKindPost, ID: "42"}
	a := NewClient(uuid.New(), nil)
	b := NewClient(uuid.New(), nil)

	router.Join(a, topic)
	router.Join(b, topic)

	delivered := router.Publish(topic, NewEvent(EventTopicEvent, "hello"), nil)

	assert.Equal(t, 2, delivered)
	assert.Equal(t, EventTopicEvent, drainEvent(t, a).Type)
	assert.Equal(t, EventTopicEvent, drainEvent(t, b).Type)
}

func TestRouterPublishSuppressesSender(t *testing.T) {
	router := NewRouter()
	topic := Topic{Kind: TopicKindConversation, ID: "9"}
	sender := NewClient(uuid.New(), nil)
	peer := NewClient(uuid.New(), nil)

	router.Join(sender, topic)
	router.Join(peer, topic)

	delivered := router.Publish(topic, NewEvent(EventTopicEvent, "typing"), sender)

	assert.Equal(t, 1, delivered)
	assertNoEvent(t, sender)
	assert.Equal(t, EventTopicEvent, drainEvent(t, peer).Type)
}

func TestRouterJoinIdempotent(t *testing.T) {
	router := NewRouter()
	topic := Topic{Kind: TopicKindJob, ID: "7"}
	client := NewClient(uuid.New(), nil)

	router.Join(client, topic)
	router.Join(client, topic)

	assert.Equal(t, 1, router.Subscribers(topic))
}

func TestRouterLeaveIdempotent(t *testing.T) {
	router := NewRouter()
	topic := Topic{Kind: TopicKindJob, ID: "7"}
	client := NewClient(uuid.New(), nil)

	router.Leave(client, topic) // never joined
	router.Join(client, topic)
	router.Leave(client, topic)
	router.Leave(client, topic)

	assert.Equal(t, 0, router.Subscribers(topic))
}

func TestRouterLeaveAll(t *testing.T) {
	router := NewRouter()
	client := NewClient(uuid.New(), nil)
	topics := []Topic{
		{Kind: TopicKindPost, ID: "1"},
		{Kind: TopicKindJob, ID: "2"},
		LiveFeedTopic(),
	}
	for _, topic := range topics {
		router.Join(client, topic)
	}

	router.LeaveAll(client)

	for _, topic := range topics {
		assert.Equal(t, 0, router.Subscribers(topic))
		assert.False(t, router.IsJoined(client, topic))
	}
}

func TestRouterPublishDropsWhenBufferFull(t *testing.T) {
	router := NewRouter()
	topic := LiveFeedTopic()
	client := NewClient(uuid.New(), nil)
	router.Join(client, topic)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, client.trySend([]byte("x")))
	}

	delivered := router.Publish(topic, NewEvent(EventTopicEvent, "overflow"), nil)
	assert.Equal(t, 0, delivered, "slow subscriber is skipped, not blocked on")
}

func TestRouterPublishSkipsClosedClient(t *testing.T) {
	router := NewRouter()
	topic := LiveFeedTopic()
	client := NewClient(uuid.New(), nil)
	router.Join(client, topic)
	client.Close()

	delivered := router.Publish(topic, NewEvent(EventTopicEvent, "late"), nil)
	assert.Equal(t, 0, delivered)
}
