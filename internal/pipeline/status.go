package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrStatusClosed is returned by StatusBoard.Wait after Close.
var ErrStatusClosed = errors.New("status board closed")

// Status is the progress of one form.
type Status struct {
	FormID  int64 `json:"form_id"`
	Percent int   `json:"percent"`
}

// batch is one set of updates delivered to every waiter blocked on it.
type batch struct {
	ready   chan struct{}
	updates []Status
	waiters int // blocked on ready
	unread  int // woken but not yet read
	closed  bool
}

func newBatch() *batch {
	return &batch{ready: make(chan struct{})}
}

// merge records s, replacing an earlier update for the same form.
func (b *batch) merge(s Status) {
	for i := range b.updates {
		if b.updates[i].FormID == s.FormID {
			b.updates[i].Percent = s.Percent
			return
		}
	}
	b.updates = append(b.updates, s)
}

// StatusBoard broadcasts progress updates to long-polling waiters.
//
// Every waiter blocked when a batch opens receives that same batch, and the
// batch is cleared once the last of them has read it. An opened batch does
// not change: updates published while it is still being read are kept for
// the next batch, which opens as soon as the last reader is done. Updates
// published with nobody waiting are kept for the next waiter.
type StatusBoard struct {
	mu      sync.Mutex
	next    *batch // waiters gather here
	open    *batch // delivered, still being read
	pending batch  // published with nobody waiting
	closed  bool
}

// NewStatusBoard returns an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{next: newBatch()}
}

// Publish records a progress update and wakes the waiters.
func (s *StatusBoard) Publish(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.pending.merge(st)
	if s.open != nil || s.next.waiters == 0 {
		return
	}
	s.openNext()
}

// openNext hands the pending updates to the gathered waiters.
func (s *StatusBoard) openNext() {
	b := s.next
	b.updates = s.pending.updates
	b.unread = b.waiters
	s.pending.updates = nil
	s.open = b
	s.next = newBatch()
	close(b.ready)
}

// Wait blocks until progress changes and returns the updates of the batch.
// Updates published while nobody was waiting are returned at once.
func (s *StatusBoard) Wait(ctx context.Context) ([]Status, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStatusClosed
	}
	if s.open == nil && len(s.pending.updates) > 0 {
		out := s.pending.updates
		s.pending.updates = nil
		s.mu.Unlock()
		return out, nil
	}
	b := s.next
	b.waiters++
	s.mu.Unlock()

	select {
	case <-b.ready:
		return s.read(b)
	case <-ctx.Done():
	}

	s.mu.Lock()
	select {
	case <-b.ready:
		// Opened while we were being cancelled; the batch counts on us.
		s.mu.Unlock()
		return s.read(b)
	default:
	}
	b.waiters--
	s.mu.Unlock()
	return nil, ctx.Err()
}

func (s *StatusBoard) read(b *batch) ([]Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.closed {
		return nil, ErrStatusClosed
	}
	out := make([]Status, len(b.updates))
	copy(out, b.updates)
	b.unread--
	if b.unread == 0 && s.open == b {
		s.open = nil
		if !s.closed && s.next.waiters > 0 && len(s.pending.updates) > 0 {
			s.openNext()
		}
	}
	return out, nil
}

// Close wakes every waiter with ErrStatusClosed. Later publishes are
// ignored.
func (s *StatusBoard) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.next.closed = true
	close(s.next.ready)
}
