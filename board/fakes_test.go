package board

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

// fakeFeed queues published events until flush delivers them synchronously.
type fakeFeed struct {
	mu      sync.Mutex
	pending []gateway.ChangeEvent
	subs    []*fakeSub
}

type fakeSub struct {
	feed   *fakeFeed
	table  string
	filter gateway.Query
	h      gateway.Handlers
	closed bool
}

func (s *fakeSub) Unsubscribe() {
	s.feed.mu.Lock()
	s.closed = true
	s.feed.mu.Unlock()
}

func (f *fakeFeed) Publish(_ context.Context, ev gateway.ChangeEvent) error {
	f.mu.Lock()
	f.pending = append(f.pending, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeFeed) Subscribe(_ context.Context, table string, filter gateway.Query, h gateway.Handlers) (gateway.Subscription, error) {
	sub := &fakeSub{feed: f, table: table, filter: filter, h: h}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeFeed) active(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.table == table && !s.closed {
			n++
		}
	}
	return n
}

// flush delivers every queued event to the open subscriptions.
func (f *fakeFeed) flush() {
	f.mu.Lock()
	events := f.pending
	f.pending = nil
	subs := append([]*fakeSub(nil), f.subs...)
	f.mu.Unlock()
	for _, ev := range events {
		f.deliver(subs, ev)
	}
}

// drop discards queued events.
func (f *fakeFeed) drop() {
	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()
}

func (f *fakeFeed) deliver(subs []*fakeSub, ev gateway.ChangeEvent) {
	raw := ev.New
	if ev.Type == gateway.EventDelete {
		raw = ev.Old
	}
	var row map[string]any
	_ = sonic.Unmarshal(raw, &row)
	for _, s := range subs {
		f.mu.Lock()
		closed := s.closed
		f.mu.Unlock()
		if closed || s.table != ev.Table || !s.filter.Match(row) {
			continue
		}
		switch ev.Type {
		case gateway.EventInsert:
			s.h.OnInsert(ev.New)
		case gateway.EventUpdate:
			s.h.OnUpdate(ev.New)
		case gateway.EventDelete:
			s.h.OnDelete(ev.Old)
		}
	}
}

// fakeGateway is a Remote over a memory store with per call failure injection.
type fakeGateway struct {
	*gateway.Remote
	feed  *fakeFeed
	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
	holds map[string]*hold
}

// hold parks the next call of an operation until it is released.
type hold struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeGateway() *fakeGateway {
	feed := &fakeFeed{}
	return &fakeGateway{
		Remote: gateway.NewRemote(gateway.NewMemoryStore(gateway.DefaultTables()), feed, nil),
		feed:   feed,
		fail:   map[string]error{},
		calls:  map[string]int{},
		holds:  map[string]*hold{},
	}
}

func (g *fakeGateway) failOn(op, table string, err error) {
	g.mu.Lock()
	g.fail[op+":"+table] = err
	g.mu.Unlock()
}

func (g *fakeGateway) count(op, table string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op+":"+table]
}

// holdNext makes the next op on table block until the returned hold is
// released.
func (g *fakeGateway) holdNext(op, table string) *hold {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	g.mu.Lock()
	g.holds[op+":"+table] = h
	g.mu.Unlock()
	return h
}

func (g *fakeGateway) record(op, table string) error {
	key := op + ":" + table
	g.mu.Lock()
	g.calls[key]++
	err := g.fail[key]
	h := g.holds[key]
	delete(g.holds, key)
	g.mu.Unlock()
	if h != nil {
		close(h.entered)
		<-h.release
	}
	return err
}

func (g *fakeGateway) Select(ctx context.Context, table string, q gateway.Query) ([]json.RawMessage, error) {
	if err := g.record("select", table); err != nil {
		return nil, err
	}
	return g.Remote.Select(ctx, table, q)
}

func (g *fakeGateway) Insert(ctx context.Context, table string, row map[string]any) (json.RawMessage, error) {
	if err := g.record("insert", table); err != nil {
		return nil, err
	}
	return g.Remote.Insert(ctx, table, row)
}

func (g *fakeGateway) Update(ctx context.Context, table string, q gateway.Query, partial map[string]any) error {
	if err := g.record("update", table); err != nil {
		return err
	}
	return g.Remote.Update(ctx, table, q, partial)
}

func (g *fakeGateway) Delete(ctx context.Context, table string, q gateway.Query) error {
	if err := g.record("delete", table); err != nil {
		return err
	}
	return g.Remote.Delete(ctx, table, q)
}

// seed inserts a row and discards its change event.
func (g *fakeGateway) seed(t *testing.T, table string, row map[string]any) json.RawMessage {
	t.Helper()
	raw, err := g.Remote.Insert(context.Background(), table, row)
	if err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
	g.feed.drop()
	return raw
}

func (g *fakeGateway) rows(t *testing.T, table string, q gateway.Query) []map[string]any {
	t.Helper()
	raws, err := g.Remote.Select(context.Background(), table, q)
	if err != nil {
		t.Fatalf("select %s: %v", table, err)
	}
	out := make([]map[string]any, 0, len(raws))
	for _, raw := range raws {
		var row map[string]any
		if err := sonic.Unmarshal(raw, &row); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, row)
	}
	return out
}

type note struct {
	user  string
	level notify.Level
	msg   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (r *recordingNotifier) Success(userID, msg string) {
	r.mu.Lock()
	r.notes = append(r.notes, note{userID, notify.LevelSuccess, msg})
	r.mu.Unlock()
}

func (r *recordingNotifier) Error(userID, msg string) {
	r.mu.Lock()
	r.notes = append(r.notes, note{userID, notify.LevelError, msg})
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	r.notes = nil
	r.mu.Unlock()
}

// expectOne asserts that exactly one notification was recorded since the last
// reset and returns it.
func (r *recordingNotifier) expectOne(t *testing.T, level notify.Level, msg string) {
	t.Helper()
	notes := r.all()
	if len(notes) != 1 {
		t.Fatalf("expected one notification, got %+v", notes)
	}
	if notes[0].level != level || notes[0].msg != msg {
		t.Fatalf("expected %s %q, got %+v", level, msg, notes[0])
	}
	r.reset()
}

var clock = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

func taskRow(id, projectID string, minutes int, extra map[string]any) map[string]any {
	ts := clock.Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339)
	row := map[string]any{
		"id":         id,
		"title":      "task " + id,
		"project_id": projectID,
		"column_id":  string(domain.ColumnTodo),
		"priority":   string(domain.PriorityMedium),
		"created_at": ts,
		"updated_at": ts,
	}
	for k, v := range extra {
		row[k] = v
	}
	return row
}

func projectRow(id, owner string, minutes int) map[string]any {
	ts := clock.Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339)
	return map[string]any{"id": id, "name": "project " + id, "owner_id": owner, "created_at": ts, "updated_at": ts}
}

func taskIDs(tasks []domain.Task) []string {
	out := []string{}
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
