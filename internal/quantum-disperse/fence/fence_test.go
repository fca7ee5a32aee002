package fence

import (
	"sync"
	"testing"
)

func TestFenceLatestWins(t *testing.T) {
	var f Fence

	a := f.Next()
	b := f.Next()

	if f.Current(a) {
		t.Errorf("token a should be stale after b started")
	}
	if !f.Current(b) {
		t.Errorf("token b should be current")
	}
}

func TestFenceInvalidate(t *testing.T) {
	var f Fence

	a := f.Next()
	f.Invalidate()

	if f.Current(a) {
		t.Errorf("token should be stale after Invalidate")
	}
}

func TestFenceConcurrentNext(t *testing.T) {
	var f Fence
	var wg sync.WaitGroup

	seen := make(chan Token, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- f.Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[Token]struct{}{}
	current := 0
	for tok := range seen {
		unique[tok] = struct{}{}
		if f.Current(tok) {
			current++
		}
	}
	if len(unique) != 100 {
		t.Errorf("unique tokens = %d, want 100", len(unique))
	}
	if current != 1 {
		t.Errorf("current tokens = %d, want 1", current)
	}
}

func TestFencePeek(t *testing.T) {
	var f Fence

	p := f.Peek()
	if !f.Current(p) {
		t.Errorf("peeked token should be current")
	}
	if f.Peek() != p {
		t.Errorf("Peek should not advance the sequence")
	}

	f.Invalidate()
	if f.Current(p) {
		t.Errorf("peeked token should be stale after Invalidate")
	}
}
