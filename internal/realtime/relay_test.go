package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"linkara.id/linkaraconnect/internal/model"
	"linkara.id/linkaraconnect/pkg/apperror"
)

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, userID uuid.UUID, action string) (bool, error) {
	return false, nil
}

func newTestRelay(marker *fakeMarker, limiter RateLimiter) (*Relay, *Registry, *Router) {
	registry := NewRegistry()
	router := NewRouter()
	broadcaster := NewPresenceBroadcaster(registry, router, &fakeEdgeSource{})
	if marker == nil {
		marker = &fakeMarker{}
	}
	return NewRelay(registry, router, broadcaster, marker, limiter), registry, router
}

func clientEvent(t *testing.T, eventType string, payload interface{}) ClientEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return ClientEvent{Type: eventType, Payload: raw}
}

func TestDispatchUnknownEventType(t *testing.T) {
	relay, _, _ := newTestRelay(nil, nil)
	client := NewClient(uuid.New(), nil)

	err := relay.Dispatch(context.Background(), client, ClientEvent{Type: "shrug", Payload: []byte("{}")})

	assert.ErrorIs(t, err, apperror.ErrMalformedEvent)
}

func TestJoinTopicAndLeave(t *testing.T) {
	relay, _, router := newTestRelay(nil, nil)
	client := NewClient(uuid.New(), nil)

	err := relay.Dispatch(context.Background(), client,
		clientEvent(t, EventJoinTopic, topicPayload{Kind: "post", ID: "5"}))
	require.NoError(t, err)
	assert.True(t, router.IsJoined(client, Topic{Kind: TopicKindPost, ID: "5"}))

	err = relay.Dispatch(context.Background(), client,
		clientEvent(t, EventLeaveTopic, topicPayload{Kind: "post", ID: "5"}))
	require.NoError(t, err)
	assert.False(t, router.IsJoined(client, Topic{Kind: TopicKindPost, ID: "5"}))
}

func TestJoinTopicUnknownKind(t *testing.T) {
	relay, _, _ := newTestRelay(nil, nil)
	client := NewClient(uuid.New(), nil)

	err := relay.Dispatch(context.Background(), client,
		clientEvent(t, EventJoinTopic, topicPayload{Kind: "admin_feed", ID: "1"}))

	assert.ErrorIs(t, err, apperror.ErrInvalidTopic)
}

func TestJoinTopicMalformedPayload(t *testing.T) {
	relay, _, _ := newTestRelay(nil, nil)
	client := NewClient(uuid.New(), nil)

	err := relay.Dispatch(context.Background(), client,
		ClientEvent{Type: EventJoinTopic, Payload: []byte(`"not an object"`)})

	assert.ErrorIs(t, err, apperror.ErrMalformedEvent)
}

func TestTypingSuppressesSender(t *testing.T) {
	relay, _, router := newTestRelay(nil, nil)
	topic := Topic{Kind: TopicKindConversation, ID: "3"}
	sender := NewClient(uuid.New(), nil)
	peer := NewClient(uuid.New(), nil)
	router.Join(sender, topic)
	router.Join(peer, topic)

	err := relay.Dispatch(context.Background(), sender,
		clientEvent(t, EventTypingStart, topicPayload{Kind: "conversation", ID: "3"}))
	require.NoError(t, err)

	assertNoEvent(t, sender)
	event := drainEvent(t, peer)
	assert.Equal(t, EventTopicEvent, event.Type)
	payload := event.Payload.(map[string]interface{})
	assert.Equal(t, EventTypingStart, payload["event"])
	assert.Equal(t, sender.UserID.String(), payload["user_id"])
}

func TestStatusUpdateBroadcastsToAudience(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter()
	userA := uuid.New()
	userB := uuid.New()
	edges := &fakeEdgeSource{edges: map[uuid.UUID][]model.Connection{
		userA: {acceptedEdge(userA, userB)},
	}}
	broadcaster := NewPresenceBroadcaster(registry, router, edges)
	relay := NewRelay(registry, router, broadcaster, &fakeMarker{}, nil)

	clientA := NewClient(userA, nil)
	clientB := NewClient(userB, nil)
	registry.Register(userA, clientA)
	registry.Register(userB, clientB)
	router.Join(clientB, UserTopic(userB))

	err := relay.Dispatch(context.Background(), clientA,
		clientEvent(t, EventStatusUpdate, statusPayload{Status: "busy"}))
	require.NoError(t, err)

	assert.Equal(t, StatusBusy, registry.Status(userA).Status)
	event := drainEvent(t, clientB)
	assert.Equal(t, EventPresenceUpdate, event.Type)
}

func TestStatusUpdateRejectsUnknownStatus(t *testing.T) {
	relay, registry, _ := newTestRelay(nil, nil)
	userID := uuid.New()
	client := NewClient(userID, nil)
	registry.Register(userID, client)

	err := relay.Dispatch(context.Background(), client,
		clientEvent(t, EventStatusUpdate, statusPayload{Status: "invisible"}))

	assert.ErrorIs(t, err, apperror.ErrMalformedEvent)
	assert.Equal(t, StatusOnline, registry.Status(userID).Status)
}

func TestStatusUpdateOfflineReservedForDisconnect(t *testing.T) {
	relay, _, _ := newTestRelay(nil, nil)
	client := NewClient(uuid.New(), nil)

	err := relay.Dispatch(context.Background(), client,
		clientEvent(t, EventStatusUpdate, statusPayload{Status: "offline"}))

	assert.ErrorIs(t, err, apperror.ErrMalformedEvent)
}

func TestMarkNotificationRead(t *testing.T) {
	marker := &fakeMarker{}
	relay, _, _ := newTestRelay(marker, nil)
	client := NewClient(uuid.New(), nil)
	notifID := uuid.New()

	err := relay.Dispatch(context.Background(), client,
		clientEvent(t, EventMarkNotificationRead, markReadPayload{ID: notifID}))
	require.NoError(t, err)

	require.Len(t, marker.marked, 1)
	assert.Equal(t, notifID, marker.marked[0])
}

func TestMarkNotificationReadMissingID(t *testing.T) {
	relay, _, _ := newTestRelay(nil, nil)
	client := NewClient(uuid.New(), nil)

	err := relay.Dispatch(context.Background(), client,
		ClientEvent{Type: EventMarkNotificationRead, Payload: []byte(`{}`)})

	assert.ErrorIs(t, err, apperror.ErrMalformedEvent)
}

func TestReactionRepublishedToPostTopic(t *testing.T) {
	relay, _, router := newTestRelay(nil, nil)
	sender := NewClient(uuid.New(), nil)
	watcher := NewClient(uuid.New(), nil)
	topic := Topic{Kind: TopicKindPost, ID: "88"}
	router.Join(sender, topic)
	router.Join(watcher, topic)

	err := relay.Dispatch(context.Background(), sender,
		clientEvent(t, EventPostReaction, reactionPayload{PostID: "88", Reaction: "like"}))
	require.NoError(t, err)

	assertNoEvent(t, sender)
	event := drainEvent(t, watcher)
	payload := event.Payload.(map[string]interface{})
	assert.Equal(t, EventPostReaction, payload["event"])
}

func TestConnectionRequestSignalReachesOnlineRecipient(t *testing.T) {
	relay, registry, router := newTestRelay(nil, nil)
	sender := NewClient(uuid.New(), nil)
	recipientID := uuid.New()
	recipient := NewClient(recipientID, nil)
	registry.Register(recipientID, recipient)
	router.Join(recipient, UserTopic(recipientID))

	err := relay.Dispatch(context.Background(), sender,
		clientEvent(t, EventConnectionRequestSent, signalPayload{RecipientID: recipientID}))
	require.NoError(t, err)

	event := drainEvent(t, recipient)
	payload := event.Payload.(map[string]interface{})
	assert.Equal(t, EventConnectionRequestSent, payload["event"])
}

func TestSignalToOfflineRecipientIsSilentlyDropped(t *testing.T) {
	relay, _, _ := newTestRelay(nil, nil)
	sender := NewClient(uuid.New(), nil)

	err := relay.Dispatch(context.Background(), sender,
		clientEvent(t, EventJobApplicationSent, signalPayload{RecipientID: uuid.New(), JobID: "12"}))

	assert.NoError(t, err, "offline recipient is not an error; the durable record covers it")
}

func TestSignalRateLimited(t *testing.T) {
	relay, registry, router := newTestRelay(nil, denyLimiter{})
	sender := NewClient(uuid.New(), nil)
	recipientID := uuid.New()
	recipient := NewClient(recipientID, nil)
	registry.Register(recipientID, recipient)
	router.Join(recipient, UserTopic(recipientID))

	err := relay.Dispatch(context.Background(), sender,
		clientEvent(t, EventConnectionRequestSent, signalPayload{RecipientID: recipientID}))

	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	assertNoEvent(t, recipient)
}
