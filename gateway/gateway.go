// Package gateway is the narrow interface between the board and the remote
// table store: selects, writes and row-change subscriptions.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a write targets no existing row.
	ErrNotFound = errors.New("row not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violation")
)

// Gateway is the remote table store as seen by the state stores.
type Gateway interface {
	Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error)
	Insert(ctx context.Context, table string, row map[string]any) (json.RawMessage, error)
	Update(ctx context.Context, table string, q Query, partial map[string]any) error
	Delete(ctx context.Context, table string, q Query) error
	Subscribe(ctx context.Context, table string, filter Query, h Handlers) (Subscription, error)
}

// Subscription is a live row-change stream. Unsubscribe must not be called
// from inside one of its handlers.
type Subscription interface {
	Unsubscribe()
}

// Handlers receive the rows carried by change events. Nil handlers are skipped.
type Handlers struct {
	OnInsert func(row json.RawMessage)
	OnUpdate func(row json.RawMessage)
	OnDelete func(old json.RawMessage)
}

// EventType names a row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is published on the change feed for every successful write.
type ChangeEvent struct {
	Type  EventType       `json:"type"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
	At    time.Time       `json:"at"`
}

// Cond is a column equality condition.
type Cond struct {
	Column string
	Value  string
}

// Order sorts results by a column.
type Order struct {
	Column string
	Desc   bool
}

// Query selects rows by column equality, an optional membership test on one
// column and an optional order.
type Query struct {
	Eq      []Cond
	InCol   string
	InVals  []string
	OrderBy *Order
}

// Where starts a query with an equality condition.
func Where(column, value string) Query {
	return Query{}.And(column, value)
}

// In starts a query with a membership condition.
func In(column string, values []string) Query {
	return Query{InCol: column, InVals: append([]string(nil), values...)}
}

func (q Query) And(column, value string) Query {
	q.Eq = append(append([]Cond(nil), q.Eq...), Cond{Column: column, Value: value})
	return q
}

func (q Query) Order(column string, desc bool) Query {
	q.OrderBy = &Order{Column: column, Desc: desc}
	return q
}

// Match reports whether a decoded row satisfies every condition.
func (q Query) Match(row map[string]any) bool {
	for _, c := range q.Eq {
		if stringValue(row[c.Column]) != c.Value {
			return false
		}
	}
	if q.InCol != "" {
		v := stringValue(row[q.InCol])
		found := false
		for _, want := range q.InVals {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Lookup returns the value of an equality condition on column.
func (q Query) Lookup(column string) (string, bool) {
	for _, c := range q.Eq {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}

// String is a canonical form of the query, used as a cache key.
func (q Query) String() string {
	parts := make([]string, 0, len(q.Eq)+2)
	for _, c := range q.Eq {
		parts = append(parts, "eq:"+c.Column+"="+c.Value)
	}
	sort.Strings(parts)
	if q.InCol != "" {
		vals := append([]string(nil), q.InVals...)
		sort.Strings(vals)
		parts = append(parts, "in:"+q.InCol+"="+strings.Join(vals, "|"))
	}
	if q.OrderBy != nil {
		dir := "asc"
		if q.OrderBy.Desc {
			dir = "desc"
		}
		parts = append(parts, "order:"+q.OrderBy.Column+"."+dir)
	}
	return strings.Join(parts, ";")
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
