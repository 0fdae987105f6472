package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Router manages topic subscriptions and delivers published events to
// every current subscriber. The only shared mutable state besides the
// registry; all mutation goes through its synchronized methods.
type Router struct {
	mu     sync.RWMutex
	topics map[Topic]map[*Client]struct{}
	// reverse index so a disconnecting channel can leave everything
	// it joined without scanning all topics.
	joined map[*Client]map[Topic]struct{}
}

func NewRouter() *Router {
	return &Router{
		topics: make(map[Topic]map[*Client]struct{}),
		joined: make(map[*Client]map[Topic]struct{}),
	}
}

// Join subscribes the channel to a topic. Idempotent.
func (r *Router) Join(client *Client, topic Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		r.topics[topic] = subs
	}
	subs[client] = struct{}{}

	tset, ok := r.joined[client]
	if !ok {
		tset = make(map[Topic]struct{})
		r.joined[client] = tset
	}
	tset[topic] = struct{}{}
}

// Leave unsubscribes the channel from a topic. Always permitted and
// idempotent.
func (r *Router) Leave(client *Client, topic Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(client, topic)
}

// LeaveAll removes the channel from every topic it joined. Called on
// disconnect before the channel's resources are released.
func (r *Router) LeaveAll(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic := range r.joined[client] {
		r.leaveLocked(client, topic)
	}
	delete(r.joined, client)
}

func (r *Router) leaveLocked(client *Client, topic Topic) {
	if subs, ok := r.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
	if tset, ok := r.joined[client]; ok {
		delete(tset, topic)
	}
}

// Publish delivers the event to every subscriber of the topic, except
// the excluded originating channel when echo suppression applies.
// Delivery is best-effort: a subscriber whose buffer is full is
// skipped and the drop logged, never retried.
func (r *Router) Publish(topic Topic, event Event, exclude *Client) int {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[realtime] failed to marshal %s event for %s: %v", event.Type, topic, err)
		return 0
	}

	r.mu.RLock()
	subs := r.topics[topic]
	targets := make([]*Client, 0, len(subs))
	for client := range subs {
		if client == exclude {
			continue
		}
		targets = append(targets, client)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		if client.trySend(data) {
			delivered++
		} else {
			log.Printf("[realtime] dropped %s event for user %s on %s (buffer full or closed)",
				event.Type, client.UserID, topic)
		}
	}
	return delivered
}

// Subscribers returns the current subscriber count of a topic.
func (r *Router) Subscribers(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// IsJoined reports whether the channel is subscribed to the topic.
func (r *Router) IsJoined(client *Client, topic Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[client][topic]
	return ok
}
