package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type recordingSink struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingSink) Send(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func TestToDeliversToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	n := To(a, b)
	n.Success("u1", "Task created!")
	n.Error("u1", "Failed to delete task")

	for _, s := range []*recordingSink{a, b} {
		if len(s.got) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(s.got))
		}
		if s.got[0].Level != LevelSuccess || s.got[0].Message != "Task created!" || s.got[0].UserID != "u1" {
			t.Fatalf("unexpected first notification %+v", s.got[0])
		}
		if s.got[1].Level != LevelError || s.got[1].At.IsZero() {
			t.Fatalf("unexpected second notification %+v", s.got[1])
		}
	}
}

func TestLogSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := LogSink{Logger: logger}

	sink.Send(Notification{UserID: "u1", Level: LevelSuccess, Message: "Member invited!"})
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.InfoLevel || entry.Message != "Member invited!" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Data["user"] != "u1" {
		t.Fatalf("missing user field: %v", entry.Data)
	}

	sink.Send(Notification{UserID: "u1", Level: LevelError, Message: "Failed to invite member"})
	if entry := hook.LastEntry(); entry.Level != log.WarnLevel {
		t.Fatalf("expected warn level, got %v", entry.Level)
	}
}

func TestHubRoutesByUser(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe("u1")
	ch2, cancel2 := hub.Subscribe("u2")
	defer cancel2()

	hub.Send(Notification{UserID: "u1", Message: "hi"})
	select {
	case n := <-ch1:
		if n.Message != "hi" {
			t.Fatalf("unexpected message %q", n.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification for u1")
	}
	select {
	case n := <-ch2:
		t.Fatalf("u2 received %+v", n)
	default:
	}

	cancel1()
	hub.Send(Notification{UserID: "u1", Message: "gone"})
	select {
	case n := <-ch1:
		t.Fatalf("unsubscribed stream received %+v", n)
	default:
	}
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("u1")
	defer cancel()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Send(Notification{UserID: "u1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a slow subscriber")
	}
}

func TestQueueSinkEnqueuesJSON(t *testing.T) {
	got := make(chan string, 2)
	sink := newQueueSink(func(_ context.Context, content string) error {
		got <- content
		if len(got) == 2 {
			return errors.New("queue unavailable")
		}
		return nil
	}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	sink.Send(Notification{UserID: "u1", Level: LevelSuccess, Message: "Project created!"})
	sink.Send(Notification{UserID: "u1", Level: LevelError, Message: "x"})

	var first Notification
	select {
	case content := <-got:
		if err := sonic.Unmarshal([]byte(content), &first); err != nil {
			t.Fatalf("decode: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing enqueued")
	}
	if first.Message != "Project created!" || first.UserID != "u1" {
		t.Fatalf("unexpected message %+v", first)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit")
	}
}

func TestQueueSinkDropsWhenFull(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	sink := newQueueSink(func(context.Context, string) error { return nil }, 1)
	sink.Send(Notification{UserID: "u1"})
	sink.Send(Notification{UserID: "u1"})
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected a dropped message warning, got %+v", entry)
	}
}
