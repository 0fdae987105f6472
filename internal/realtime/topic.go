package realtime

import (
	"fmt"

	"github.com/google/uuid"
	"linkara.id/linkaraconnect/pkg/apperror"
)

type TopicKind string

const (
	TopicKindPost         TopicKind = "post"
	TopicKindJob          TopicKind = "job"
	TopicKindConversation TopicKind = "conversation"
	TopicKindUser         TopicKind = "user"
	TopicKindLiveFeed     TopicKind = "live_feed"
)

// Topic is a named scope channels can subscribe to. Entity topics are
// {kind}:{id}; user inboxes are user:{id}; live_feed is a singleton.
type Topic struct {
	Kind TopicKind
	ID   string
}

func (t Topic) String() string {
	if t.Kind == TopicKindLiveFeed {
		return string(TopicKindLiveFeed)
	}
	return fmt.Sprintf("%s:%s", t.Kind, t.ID)
}

// UserTopic is the personal inbox topic for a user. Auto-joined on
// registration, never joinable by client request.
func UserTopic(userID uuid.UUID) Topic {
	return Topic{Kind: TopicKindUser, ID: userID.String()}
}

// LiveFeedTopic is the singleton opt-in feed scope.
func LiveFeedTopic() Topic {
	return Topic{Kind: TopicKindLiveFeed}
}

// NewTopic validates a client-supplied kind/id pair. Only entity kinds
// and live_feed are recognized here; user inboxes cannot be joined on
// request.
func NewTopic(kind, id string) (Topic, error) {
	switch TopicKind(kind) {
	case TopicKindLiveFeed:
		return LiveFeedTopic(), nil
	case TopicKindPost, TopicKindJob, TopicKindConversation:
		if id == "" {
			return Topic{}, fmt.Errorf("%w: %s topic requires an id", apperror.ErrInvalidTopic, kind)
		}
		return Topic{Kind: TopicKind(kind), ID: id}, nil
	default:
		return Topic{}, fmt.Errorf("%w: unrecognized kind %q", apperror.ErrInvalidTopic, kind)
	}
}
