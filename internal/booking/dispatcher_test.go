package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"citabot/internal/bus"
	"citabot/internal/domain"
)

// orderGateway records the specialty of every suggest call so tests can
// observe the order in which one user's messages reached the engine.
type orderGateway struct {
	mu      sync.Mutex
	suggest []string
}

func (g *orderGateway) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Slot, error) {
	g.mu.Lock()
	g.suggest = append(g.suggest, req.Specialty)
	g.mu.Unlock()
	time.Sleep(5 * time.Millisecond) // widen the race window
	return []domain.Slot{{Label: "s"}}, nil
}

func (g *orderGateway) Book(ctx context.Context, req domain.BookingRequest) (string, error) {
	return req.Slot.Label, nil
}

func newTestDispatcher(gw domain.SchedulerGateway, concurrency int) (*Dispatcher, *bus.InMemoryBus, *MemoryStore) {
	store := NewMemoryStore()
	eng := NewEngine(EngineConfig{
		Store:   store,
		Gateway: gw,
		Replies: DefaultReplies(),
		Logger:  testLogger(),
	})
	b := bus.New(16, testLogger())
	d := NewDispatcher(DispatcherConfig{
		Engine:      eng,
		Bus:         b,
		Store:       store,
		Logger:      testLogger(),
		Concurrency: concurrency,
	})
	return d, b, store
}

func collectOutbound(b *bus.InMemoryBus) <-chan domain.OutboundMessage {
	out := make(chan domain.OutboundMessage, 64)
	b.OnOutbound("test", func(msg domain.OutboundMessage) {
		out <- msg
	})
	return out
}

func TestDispatcher_RepliesFlowBackToChannel(t *testing.T) {
	d, b, _ := newTestDispatcher(&fakeGateway{}, 2)
	out := collectOutbound(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	b.Publish(domain.InboundMessage{Channel: "test", UserID: "u1", Content: "hola"})

	select {
	case msg := <-out:
		if msg.UserID != "u1" || msg.Channel != "test" {
			t.Errorf("reply routed wrong: %+v", msg)
		}
		if msg.Content == "" {
			t.Error("empty reply content")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply within deadline")
	}
}

func TestDispatcher_EmptyContentIgnored(t *testing.T) {
	d, b, store := newTestDispatcher(&fakeGateway{}, 2)
	out := collectOutbound(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	b.Publish(domain.InboundMessage{Channel: "test", UserID: "u1", Content: ""})

	select {
	case msg := <-out:
		t.Errorf("unexpected reply %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
	if store.Count() != 0 {
		t.Error("empty message must not create a session")
	}
}

func TestDispatcher_SerializesPerUser(t *testing.T) {
	// Two near-simultaneous booking requests from one user: whichever
	// acquires the user lock first moves the session to ASK_SLOT, and
	// the other must then see ASK_SLOT instead of a second IDLE. Exactly
	// one suggest call may happen; two means the steps interleaved.
	gw := &orderGateway{}
	d, b, store := newTestDispatcher(gw, 8)
	out := collectOutbound(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	b.Publish(domain.InboundMessage{Channel: "test", UserID: "u1", Content: "quiero cita dental"})
	b.Publish(domain.InboundMessage{Channel: "test", UserID: "u1", Content: "quiero cita estética"})

	for i := 0; i < 2; i++ {
		select {
		case <-out:
		case <-time.After(2 * time.Second):
			t.Fatalf("reply %d missing", i+1)
		}
	}

	gw.mu.Lock()
	calls := len(gw.suggest)
	gw.mu.Unlock()
	if calls != 1 {
		t.Errorf("suggest calls = %d, want exactly 1", calls)
	}
	if got := store.Get("u1").Step; got != domain.StepAskSlot {
		t.Errorf("final step = %s, want ASK_SLOT", got)
	}
}

func TestDispatcher_DistinctUsersProceedIndependently(t *testing.T) {
	gw := &orderGateway{}
	d, b, store := newTestDispatcher(gw, 8)
	out := collectOutbound(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	users := []string{"u1", "u2", "u3", "u4"}
	for _, u := range users {
		b.Publish(domain.InboundMessage{Channel: "test", UserID: u, Content: "quiero cita dental"})
	}

	for i := 0; i < len(users); i++ {
		select {
		case <-out:
		case <-time.After(2 * time.Second):
			t.Fatalf("reply %d missing", i+1)
		}
	}

	for _, u := range users {
		if got := store.Get(u).Step; got != domain.StepAskSlot {
			t.Errorf("user %s step = %s, want ASK_SLOT", u, got)
		}
	}
}

func TestDispatcher_StopsOnContextCancel(t *testing.T) {
	d, b, _ := newTestDispatcher(&fakeGateway{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
	b.Close()
}

func TestDispatcher_StopsWhenBusCloses(t *testing.T) {
	d, b, _ := newTestDispatcher(&fakeGateway{}, 2)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	b.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on bus close")
	}
}
