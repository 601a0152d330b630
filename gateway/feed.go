package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Feed carries change events over Redis pub/sub, one channel per table.
type Feed struct {
	rc             *redis.Client
	prefix         string
	reconnectDelay time.Duration
}

// NewFeed creates a change feed publishing on channels named prefix:table,
// with "changes" as the default prefix.
func NewFeed(rc *redis.Client, prefix string) *Feed {
	if prefix == "" {
		prefix = "changes"
	}
	return &Feed{rc: rc, prefix: prefix, reconnectDelay: time.Second}
}

func (f *Feed) channel(table string) string {
	return f.prefix + ":" + table
}

// Publish sends ev to the channel of its table.
func (f *Feed) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rc.Publish(ctx, f.channel(ev.Table), payload).Err()
}

type feedSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *feedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe listens for changes on table and dispatches the ones whose row
// matches filter. The subscription is active when Subscribe returns and lives
// until Unsubscribe, independent of ctx.
func (f *Feed) Subscribe(ctx context.Context, table string, filter Query, h Handlers) (Subscription, error) {
	channel := f.channel(table)
	ps := f.rc.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &feedSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for {
			f.consume(subCtx, ps, filter, h)
			_ = ps.Close()
			if subCtx.Err() != nil {
				return
			}
			log.WithField("channel", channel).Error("change feed closed, reconnecting")
			select {
			case <-subCtx.Done():
				return
			case <-time.After(f.reconnectDelay):
			}
			ps = f.rc.Subscribe(subCtx, channel)
		}
	}()
	return sub, nil
}

func (f *Feed) consume(ctx context.Context, ps *redis.PubSub, filter Query, h Handlers) {
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev ChangeEvent
			if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.WithError(err).WithField("channel", msg.Channel).Error("unable to parse change event")
				continue
			}
			dispatch(ev, filter, h)
		}
	}
}

func dispatch(ev ChangeEvent, filter Query, h Handlers) {
	row := ev.New
	if ev.Type == EventDelete {
		row = ev.Old
	}
	decoded, err := decodeRow(row)
	if err != nil {
		log.WithError(err).WithField("table", ev.Table).Error("unable to decode change row")
		return
	}
	if !filter.Match(decoded) {
		return
	}
	switch ev.Type {
	case EventInsert:
		if h.OnInsert != nil {
			h.OnInsert(ev.New)
		}
	case EventUpdate:
		if h.OnUpdate != nil {
			h.OnUpdate(ev.New)
		}
	case EventDelete:
		if h.OnDelete != nil {
			h.OnDelete(ev.Old)
		}
	default:
		log.WithField("type", ev.Type).Warn("unknown change event type")
	}
}
