package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"linkara.id/linkaraconnect/pkg/apperror"
)

func TestNewTopicRecognizedKinds(t *testing.T) {
	for _, kind := range []string{"post", "job", "conversation"} {
		topic, err := NewTopic(kind, "123")
		require.NoError(t, err)
		assert.Equal(t, kind+":123", topic.String())
	}

	topic, err := NewTopic("live_feed", "")
	require.NoError(t, err)
	assert.Equal(t, "live_feed", topic.String())
}

func TestNewTopicRejectsUnknownKind(t *testing.T) {
	_, err := NewTopic("dashboard", "1")
	assert.ErrorIs(t, err, apperror.ErrInvalidTopic)
}

func TestNewTopicRejectsUserInbox(t *testing.T) {
	// Personal inboxes are joined by identity, never by request.
	_, err := NewTopic("user", uuid.NewString())
	assert.ErrorIs(t, err, apperror.ErrInvalidTopic)
}

func TestNewTopicRequiresEntityID(t *testing.T) {
	_, err := NewTopic("post", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidTopic)
}

func TestUserTopic(t *testing.T) {
	userID := uuid.New()
	topic := UserTopic(userID)
	assert.Equal(t, TopicKindUser, topic.Kind)
	assert.Equal(t, "user:"+userID.String(), topic.String())
}
