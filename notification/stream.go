package notification

import (
	"context"
	"sync"

	"estateflow/obs"
)

// Stream fan-outs notifications to the live subscribers of each recipient
// (SSE/WebSocket clients). It is a best-effort accelerator: the persisted
// inbox is the source of truth and a reconnecting client must rebuild its
// unread state from the read path, never from this channel.
type Stream struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Notification
	next int
}

// NewStream initialises an empty stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[string]map[int]chan Notification)}
}

// Subscribe registers a live subscriber for one recipient and returns the
// channel that will receive its notifications. The channel is closed when
// the provided context ends.
func (s *Stream) Subscribe(ctx context.Context, recipientID string) <-chan Notification {
	ch := make(chan Notification, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	byRecipient, ok := s.subs[recipientID]
	if !ok {
		byRecipient = make(map[int]chan Notification)
		s.subs[recipientID] = byRecipient
	}
	byRecipient[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs[recipientID], id)
		if len(s.subs[recipientID]) == 0 {
			delete(s.subs, recipientID)
		}
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish pushes the notification to all live subscribers of its recipient.
func (s *Stream) Publish(n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs[n.RecipientID] {
		select {
		case ch <- n:
		default:
			// Drop when the subscriber is slow; the persisted record still
			// reaches it through the read path.
			obs.NotificationsDropped.Inc()
		}
	}
}
