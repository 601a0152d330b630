package board

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

// Sessions holds one loaded Board per user and closes boards that stay idle
// longer than the idle timeout while nobody watches them.
type Sessions struct {
	gw       gateway.Gateway
	notifier notify.Notifier
	idle     time.Duration
	now      func() time.Time

	mu     sync.Mutex
	boards map[string]*session
}

type session struct {
	board    *Board
	lastUsed time.Time
}

// NewSessions creates a registry whose boards close after idle without use.
func NewSessions(gw gateway.Gateway, n notify.Notifier, idle time.Duration) *Sessions {
	return &Sessions{gw: gw, notifier: n, idle: idle, now: time.Now, boards: make(map[string]*session)}
}

// Get returns the board of userID, creating and loading it on first use. A
// board whose load failed is still returned and loading is retried by the
// next Get; the failure has already been reported to the user.
func (s *Sessions) Get(ctx context.Context, userID string) *Board {
	s.mu.Lock()
	sess, ok := s.boards[userID]
	if !ok {
		sess = &session{board: New(s.gw, s.notifier, userID)}
		s.boards[userID] = sess
	}
	sess.lastUsed = s.now()
	s.mu.Unlock()

	if err := sess.board.ensureLoaded(ctx); err != nil {
		log.WithError(err).WithField("user", userID).Warn("initial board load failed")
	}
	return sess.board
}

// Sweep closes idle boards and returns how many were closed.
func (s *Sessions) Sweep() int {
	if s.idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idle)
	var idle []*Board
	s.mu.Lock()
	for id, sess := range s.boards {
		if sess.lastUsed.Before(cutoff) && sess.board.watchers() == 0 {
			idle = append(idle, sess.board)
			delete(s.boards, id)
		}
	}
	s.mu.Unlock()
	for _, b := range idle {
		b.Close()
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.WithField("closed", n).Debug("closed idle boards")
			}
		}
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boards)
}

// Close closes every board.
func (s *Sessions) Close() {
	s.mu.Lock()
	boards := s.boards
	s.boards = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range boards {
		sess.board.Close()
	}
}
