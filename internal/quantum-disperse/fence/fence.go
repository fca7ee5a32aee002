// Package fence hands out monotonically increasing request tokens so that a
// late asynchronous result can be recognised and dropped on arrival.
package fence

import "sync/atomic"

type Token uint64

type Fence struct {
	seq atomic.Uint64
}

// Next starts a new request and makes every earlier token stale.
func (f *Fence) Next() Token {
	return Token(f.seq.Add(1))
}

// Invalidate makes every outstanding token stale without starting a request.
func (f *Fence) Invalidate() {
	f.seq.Add(1)
}

// Current reports whether t belongs to the most recently started request.
func (f *Fence) Current(t Token) bool {
	return f.seq.Load() == uint64(t)
}

// Peek returns the current token without starting a request. Work tagged
// with it stays current until the next Next or Invalidate.
func (f *Fence) Peek() Token {
	return Token(f.seq.Load())
}
