// internal/app/system/mailer/queue.go
package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/waffle/pantry/email"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueConfig sizes the delivery queue.
type QueueConfig struct {
	Workers    int // concurrent senders, default 2
	MaxRetries int // attempts per message, default 3
}

// Queue delivers email on waffle's email.Queue workers. Messages are held in
// memory; sent and permanently failed ones are dropped from the store.
type Queue struct {
	q          *email.Queue
	store      *claimStore
	log        *zap.Logger
	maxRetries int
}

// NewQueue builds a Queue around sender. Call Start before dispatching.
func NewQueue(sender *email.Sender, cfg QueueConfig, logger *zap.Logger) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	store := &claimStore{MemoryQueueStore: email.NewMemoryQueueStore()}
	forget := func(e *email.QueuedEmail) {
		_ = store.Delete(context.Background(), e.ID)
	}
	q := email.NewQueue(email.QueueConfig{
		Sender:  sender,
		Store:   store,
		Logger:  logger,
		Workers: cfg.Workers,
		OnSent:  forget,
		OnFailed: func(e *email.QueuedEmail, err error) {
			logger.Error("email dropped after retries",
				zap.String("id", e.ID),
				zap.Strings("to", e.Message.To),
				zap.String("subject", e.Message.Subject),
				zap.Error(err))
			forget(e)
		},
	})
	return &Queue{q: q, store: store, log: logger, maxRetries: cfg.MaxRetries}
}

// Start launches the delivery workers.
func (q *Queue) Start() { q.q.Start() }

// Dispatch enqueues e. Messages without a recipient are logged and dropped.
func (q *Queue) Dispatch(e Email) {
	if e.To == "" {
		q.log.Warn("email without recipient dropped", zap.String("subject", e.Subject))
		return
	}
	err := q.q.Enqueue(context.Background(), &email.QueuedEmail{
		ID:         uuid.NewString(),
		Message:    e.message(),
		MaxRetries: q.maxRetries,
	})
	if err != nil {
		q.log.Error("failed to queue email", zap.String("to", e.To), zap.Error(err))
	}
}

// Pending reports messages not yet sent or given up on.
func (q *Queue) Pending(ctx context.Context) int64 {
	st, err := q.store.Stats(ctx)
	if err != nil {
		return 0
	}
	return st.Pending + st.Scheduled + st.Sending
}

// Stop waits for queued email to go out, then stops the workers. Whatever is
// still pending when ctx ends is logged and abandoned.
func (q *Queue) Stop(ctx context.Context) error {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for q.Pending(ctx) > 0 {
		select {
		case <-ctx.Done():
			q.log.Warn("email queue not drained", zap.Int64("pending", q.Pending(context.Background())))
			return q.q.Stop(context.Background())
		case <-tick.C:
		}
	}
	return q.q.Stop(ctx)
}

// claimStore makes Dequeue hand each message to exactly one worker; the
// in-memory store leaves it pending until the worker updates it.
type claimStore struct {
	*email.MemoryQueueStore
	mu sync.Mutex
}

func (s *claimStore) Dequeue(ctx context.Context) (*email.QueuedEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.MemoryQueueStore.Dequeue(ctx)
	if err != nil || e == nil {
		return e, err
	}
	e.Status = email.EmailStatusSending
	if err := s.MemoryQueueStore.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
