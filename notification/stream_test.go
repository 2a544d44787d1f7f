package notification

import (
	"context"
	"testing"
	"time"
)

func TestStream_PublishReachesOnlyRecipientSubscribers(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agentCh := s.Subscribe(ctx, "agent-1")
	otherCh := s.Subscribe(ctx, "agent-2")

	s.Publish(Notification{ID: "01A", RecipientID: "agent-1", Type: TypeLeadAssigned})

	select {
	case n := <-agentCh:
		if n.ID != "01A" {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("expected delivery to agent-1")
	}

	select {
	case n := <-otherCh:
		t.Fatalf("agent-2 must not receive agent-1 notifications, got %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStream_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Never drained; fills its buffer.
	s.Subscribe(ctx, "agent-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(Notification{ID: "n", RecipientID: "agent-1", Type: TypeLeadAssigned})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestStream_UnsubscribeOnContextCancel(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, "agent-1")
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // closed as expected
			}
		case <-deadline:
			t.Fatal("expected channel to close after context cancel")
		}
	}
}
