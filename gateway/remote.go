package gateway

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/uramazingdanc/flowboardeai/gateway"

// ChangeFeed publishes and delivers row changes.
type ChangeFeed interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Subscribe(ctx context.Context, table string, filter Query, h Handlers) (Subscription, error)
}

// Remote is the Gateway backed by a row store, a change feed and an optional
// select cache.
type Remote struct {
	rows  RowStore
	feed  ChangeFeed
	cache *Cache
	now   func() time.Time
}

// NewRemote creates a Gateway writing rows to rows and changes to feed. cache
// may be nil.
func NewRemote(rows RowStore, feed ChangeFeed, cache *Cache) *Remote {
	return &Remote{rows: rows, feed: feed, cache: cache, now: time.Now}
}

func startSpan(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.operation", op),
			attribute.String("db.table", table),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (r *Remote) Select(ctx context.Context, table string, q Query) (rows []json.RawMessage, err error) {
	ctx, span := startSpan(ctx, "select", table)
	defer func() {
		span.SetAttributes(attribute.Int("db.rows", len(rows)))
		endSpan(span, err)
	}()
	if cached, ok := r.cache.Load(ctx, table, q); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	rows, err = r.rows.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	r.cache.Store(ctx, table, q, rows)
	return rows, nil
}

func (r *Remote) Insert(ctx context.Context, table string, row map[string]any) (stored json.RawMessage, err error) {
	ctx, span := startSpan(ctx, "insert", table)
	defer func() { endSpan(span, err) }()
	stored, err = r.rows.Insert(ctx, table, prepareInsert(row, r.now()))
	if err != nil {
		return nil, err
	}
	r.cache.Evict(ctx, table)
	r.publish(ctx, ChangeEvent{Type: EventInsert, Table: table, New: stored})
	return stored, nil
}

func (r *Remote) Update(ctx context.Context, table string, q Query, partial map[string]any) (err error) {
	ctx, span := startSpan(ctx, "update", table)
	defer func() { endSpan(span, err) }()
	changes, err := r.rows.Update(ctx, table, q, prepareUpdate(partial, r.now()))
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("db.rows", len(changes)))
	r.cache.Evict(ctx, table)
	for _, c := range changes {
		r.publish(ctx, ChangeEvent{Type: EventUpdate, Table: table, New: c.New, Old: c.Old})
	}
	return nil
}

func (r *Remote) Delete(ctx context.Context, table string, q Query) (err error) {
	ctx, span := startSpan(ctx, "delete", table)
	defer func() { endSpan(span, err) }()
	removed, err := r.rows.Delete(ctx, table, q)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("db.rows", len(removed)))
	r.cache.Evict(ctx, table)
	for _, old := range removed {
		r.publish(ctx, ChangeEvent{Type: EventDelete, Table: table, Old: old})
	}
	return nil
}

func (r *Remote) Subscribe(ctx context.Context, table string, filter Query, h Handlers) (sub Subscription, err error) {
	ctx, span := startSpan(ctx, "subscribe", table)
	defer func() { endSpan(span, err) }()
	return r.feed.Subscribe(ctx, table, filter, h)
}

// publish failures are logged; the write itself already succeeded.
func (r *Remote) publish(ctx context.Context, ev ChangeEvent) {
	ev.At = r.now().UTC()
	if err := r.feed.Publish(ctx, ev); err != nil {
		log.WithError(err).WithFields(log.Fields{"table": ev.Table, "type": ev.Type}).Error("unable to publish change event")
	}
}
