package bus

import (
	"context"
	"testing"

	"github.com/dkeye/HangHub/internal/domain"
)

func TestOutboxKeepsNewestPerRoom(t *testing.T) {
	r := &Redis{
		opts:    RedisOptions{Prefix: "hanghub"},
		pending: make(map[string]Message),
		wake:    make(chan struct{}, 1),
	}
	ctx := context.Background()
	a := domain.RoomKey{Repo: "x/y", Issue: 1}
	b := domain.RoomKey{Repo: "x/y", Issue: 2}

	_ = r.Publish(ctx, Message{Kind: KindSync, Origin: "p", Seq: 1, Room: a})
	_ = r.Publish(ctx, Message{Kind: KindSnapshot, Origin: "p", Seq: 2, Room: b})
	_ = r.Publish(ctx, Message{Kind: KindSnapshot, Origin: "p", Seq: 4, Room: a})
	// Late arrival of an older snapshot must not win.
	_ = r.Publish(ctx, Message{Kind: KindSnapshot, Origin: "p", Seq: 3, Room: a})

	ch, msg, ok := r.next()
	if !ok || ch != "hanghub:room:x/y#1" {
		t.Fatalf("first = %q %v", ch, ok)
	}
	if msg.Seq != 4 {
		t.Errorf("Seq = %d, want 4", msg.Seq)
	}
	if msg.Kind != KindSync {
		t.Errorf("Kind = %q, sync request was lost", msg.Kind)
	}

	ch, msg, ok = r.next()
	if !ok || ch != "hanghub:room:x/y#2" || msg.Seq != 2 {
		t.Errorf("second = %q %+v", ch, msg)
	}
	if _, _, ok := r.next(); ok {
		t.Error("outbox should be empty")
	}
}
