package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blocked returns how many callers are waiting for the next batch.
func (s *StatusBoard) blocked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.waiters
}

func waitBlocked(t *testing.T, s *StatusBoard, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.blocked() != n {
		if time.Now().After(deadline) {
			t.Fatalf("waiters: got %d, want %d", s.blocked(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStatusBoard_Broadcast(t *testing.T) {
	s := NewStatusBoard()
	ctx := context.Background()

	const waiters = 3
	results := make([][]Status, waiters)
	var wg sync.WaitGroup
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Wait(ctx)
			if err != nil {
				t.Errorf("Wait: %v", err)
			}
			results[i] = got
		}()
	}
	waitBlocked(t, s, waiters)

	s.Publish(Status{FormID: 1, Percent: 40})
	wg.Wait()

	for i, got := range results {
		if len(got) != 1 || got[0] != (Status{FormID: 1, Percent: 40}) {
			t.Errorf("waiter %d: got %v, want [{1 40}]", i, got)
		}
	}

	// The batch was cleared after everyone read it.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if got, err := s.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait after batch: got %v, %v, want deadline exceeded", got, err)
	}
}

func TestStatusBoard_Pending(t *testing.T) {
	s := NewStatusBoard()
	s.Publish(Status{FormID: 1, Percent: 10})
	s.Publish(Status{FormID: 2, Percent: 50})
	s.Publish(Status{FormID: 1, Percent: 20})

	got, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	want := []Status{{FormID: 1, Percent: 20}, {FormID: 2, Percent: 50}}
	if len(got) != len(want) {
		t.Fatalf("Wait: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStatusBoard_Cancel(t *testing.T) {
	s := NewStatusBoard()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := s.Wait(ctx)
		errc <- err
	}()
	waitBlocked(t, s, 1)
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Wait: got %v, want %v", err, context.Canceled)
	}
	if n := s.blocked(); n != 0 {
		t.Errorf("waiters after cancel: got %d, want 0", n)
	}

	// With nobody left waiting the update is kept for the next caller.
	s.Publish(Status{FormID: 3, Percent: 100})
	got, err := s.Wait(context.Background())
	if err != nil || len(got) != 1 || got[0].FormID != 3 {
		t.Errorf("Wait: got %v, %v, want [{3 100}]", got, err)
	}
}

func TestStatusBoard_Close(t *testing.T) {
	s := NewStatusBoard()

	errc := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := s.Wait(context.Background())
			errc <- err
		}()
	}
	waitBlocked(t, s, 2)
	s.Close()

	for range 2 {
		if err := <-errc; !errors.Is(err, ErrStatusClosed) {
			t.Errorf("Wait: got %v, want %v", err, ErrStatusClosed)
		}
	}
	if _, err := s.Wait(context.Background()); !errors.Is(err, ErrStatusClosed) {
		t.Errorf("Wait after Close: got %v, want %v", err, ErrStatusClosed)
	}
	s.Publish(Status{FormID: 1, Percent: 1})
	s.Close()
}

// gather registers n waiters on the next batch without blocking, so a test
// can read the batch one waiter at a time.
func (s *StatusBoard) gather(n int) *batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.next
	b.waiters += n
	return b
}

func TestStatusBoard_PublishWhileOpen(t *testing.T) {
	s := NewStatusBoard()
	b := s.gather(2)
	s.Publish(Status{FormID: 1, Percent: 50})

	first, err := s.read(b)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	s.Publish(Status{FormID: 1, Percent: 100})
	second, err := s.read(b)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}

	want := Status{FormID: 1, Percent: 50}
	for i, got := range [][]Status{first, second} {
		if len(got) != 1 || got[0] != want {
			t.Errorf("reader %d: got %v, want [%v]", i, got, want)
		}
	}

	// The late update was kept, not folded into the batch already read.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := s.Wait(ctx)
	if err != nil || len(got) != 1 || got[0] != (Status{FormID: 1, Percent: 100}) {
		t.Errorf("Wait: got %v, %v, want [{1 100}]", got, err)
	}
}

func TestStatusBoard_NextOpensAfterLastRead(t *testing.T) {
	s := NewStatusBoard()
	b := s.gather(2)
	s.Publish(Status{FormID: 1, Percent: 50})
	if _, err := s.read(b); err != nil {
		t.Fatalf("first read: %v", err)
	}

	type result struct {
		updates []Status
		err     error
	}
	done := make(chan result, 1)
	go func() {
		got, err := s.Wait(context.Background())
		done <- result{got, err}
	}()
	waitBlocked(t, s, 1)

	s.Publish(Status{FormID: 2, Percent: 30})
	select {
	case r := <-done:
		t.Fatalf("Wait returned while the batch was still being read: %v, %v", r.updates, r.err)
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := s.read(b); err != nil {
		t.Fatalf("second read: %v", err)
	}
	select {
	case r := <-done:
		if r.err != nil || len(r.updates) != 1 || r.updates[0] != (Status{FormID: 2, Percent: 30}) {
			t.Errorf("Wait: got %v, %v, want [{2 30}]", r.updates, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the batch was read")
	}
}
