package notify

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

// QueueSink forwards notifications to an Azure storage queue for external
// delivery. Send only buffers; Run does the enqueueing.
type QueueSink struct {
	enqueue func(ctx context.Context, content string) error
	pending chan Notification
}

// NewQueueSink creates a QueueSink from the given connection string.
func NewQueueSink(connStr, queue string, buffer int) (*QueueSink, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	qc, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, err
	}
	return newQueueSink(func(ctx context.Context, content string) error {
		_, err := qc.EnqueueMessage(ctx, content, nil)
		return err
	}, buffer), nil
}

func newQueueSink(enqueue func(ctx context.Context, content string) error, buffer int) *QueueSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &QueueSink{enqueue: enqueue, pending: make(chan Notification, buffer)}
}

func (q *QueueSink) Send(n Notification) {
	select {
	case q.pending <- n:
	default:
		log.WithField("user", n.UserID).Warn("notification queue full, dropping message")
	}
}

// Run enqueues buffered notifications until ctx is done.
func (q *QueueSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-q.pending:
			data, err := sonic.Marshal(n)
			if err != nil {
				log.WithError(err).Error("marshal notification")
				continue
			}
			if err := q.enqueue(ctx, string(data)); err != nil {
				log.WithError(err).WithField("user", n.UserID).Error("enqueue notification")
			}
		}
	}
}
