package bus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/HangHub/internal/bus"
	"github.com/dkeye/HangHub/internal/domain"
)

type recorder struct {
	ch chan bus.Message
}

func newRecorder() *recorder { return &recorder{ch: make(chan bus.Message, 16)} }

func (r *recorder) HandleMessage(m bus.Message) { r.ch <- m }

func (r *recorder) wait(t *testing.T) bus.Message {
	t.Helper()
	select {
	case m := <-r.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return bus.Message{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case m := <-r.ch:
		t.Fatalf("unexpected message %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

var room = domain.RoomKey{Repo: "x/y", Issue: 5}

func snapshot(origin string, seq uint64, logins ...string) bus.Message {
	msg := bus.Message{Kind: bus.KindSnapshot, Origin: origin, Seq: seq, Room: room}
	for _, l := range logins {
		msg.Members = append(msg.Members, domain.Member{User: domain.User{Login: l, State: domain.StateViewing}})
	}
	return msg
}

func TestLocalDeliversToRoomSubscribers(t *testing.T) {
	ctx := context.Background()
	b := bus.NewLocal()
	r1, r2, other := newRecorder(), newRecorder(), newRecorder()

	if err := b.Subscribe(ctx, room, r1); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	_ = b.Subscribe(ctx, room, r1) // duplicate is ignored
	_ = b.Subscribe(ctx, room, r2)
	_ = b.Subscribe(ctx, domain.RoomKey{Repo: "x/y", Issue: 6}, other)

	if b.Subscribers(room) != 2 {
		t.Fatalf("Subscribers = %d", b.Subscribers(room))
	}
	if err := b.Publish(ctx, snapshot("p1", 1, "alice")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := r1.wait(t); got.Origin != "p1" || len(got.Members) != 1 {
		t.Errorf("r1 got %+v", got)
	}
	r1.none(t)
	r2.wait(t)
	other.none(t)
}

func TestLocalUnsubscribe(t *testing.T) {
	ctx := context.Background()
	b := bus.NewLocal()
	r := newRecorder()
	_ = b.Subscribe(ctx, room, r)
	_ = b.Unsubscribe(ctx, room, r)

	_ = b.Publish(ctx, snapshot("p1", 1, "alice"))
	r.none(t)
	if b.Subscribers(room) != 0 {
		t.Errorf("Subscribers = %d", b.Subscribers(room))
	}
}

func TestLocalClosed(t *testing.T) {
	ctx := context.Background()
	b := bus.NewLocal()
	_ = b.Close()
	if err := b.Publish(ctx, snapshot("p1", 1)); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("Publish after close: %v", err)
	}
	if err := b.Ping(ctx); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("Ping after close: %v", err)
	}
}
