package progress

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryBroker_ConnectedThenEvents(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if ev := recv(t, sub); ev.Type != EventConnected || ev.VideoID != "v1" {
		t.Fatalf("first event = %+v", ev)
	}
	_ = b.Publish(ctx, "v2", Event{Type: EventOcrProgress})
	_ = b.Publish(ctx, "v1", Event{Type: EventOcrProgress, Total: 4, Completed: 1, Percent: Percent(1, 4)})
	ev := recv(t, sub)
	if ev.Type != EventOcrProgress || ev.Percent != 25 || ev.VideoID != "v1" || ev.Timestamp.IsZero() {
		t.Errorf("event = %+v", ev)
	}
}

func TestMemoryBroker_UnsubscribeClosesStream(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := b.Subscribe(ctx, "v1")
	recv(t, sub)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				if n := b.Subscribers("v1"); n != 0 {
					t.Errorf("Subscribers=%d after cancel", n)
				}
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after cancel")
		}
	}
}

func TestMemoryBroker_SlowSubscriberDrops(t *testing.T) {
	b := NewMemoryBroker(WithBufferSize(2))
	defer b.Close()
	ctx := context.Background()
	sub, _ := b.Subscribe(ctx, "v1")
	defer sub.Close()

	for i := 0; i < 10; i++ {
		if err := b.Publish(ctx, "v1", Event{Type: EventOcrProgress, Completed: i}); err != nil {
			t.Fatal(err)
		}
	}
	recv(t, sub) // connected
	if ev := recv(t, sub); ev.Completed != 0 {
		t.Errorf("expected first queued event, got %+v", ev)
	}
	select {
	case ev := <-sub.Events():
		t.Errorf("unexpected extra event %+v", ev)
	default:
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		completed, total int
		want             float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.completed, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %v, want %v", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestNewBroker(t *testing.T) {
	b, err := NewBroker(context.Background(), "", "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.(*MemoryBroker); !ok {
		t.Errorf("default backend should be memory, got %T", b)
	}
	if _, err := NewBroker(context.Background(), "kafka", "", 0, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestChannel(t *testing.T) {
	if got := Channel("abc"); got != "kanren:progress:abc" {
		t.Errorf("Channel = %q", got)
	}
}
