package sender

import "context"

// Permit is the exclusivity token guarding one channel.
type Permit interface {
	// Acquire blocks until the permit is held. False means nothing was
	// acquired and Release must not be called.
	Acquire() bool
	Release()
}

// Semaphore is a counting Permit backed by a buffered channel. Waiters are
// served in the order the runtime wakes them; no stricter fairness is given.
type Semaphore struct {
	slots chan struct{}
}

var _ Permit = (*Semaphore)(nil)

func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	s := &Semaphore{slots: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		s.slots <- struct{}{}
	}
	return s
}

func (s *Semaphore) Acquire() bool {
	<-s.slots
	return true
}

// AcquireContext is Acquire with cancellation.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	select {
	case <-s.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Semaphore) TryAcquire() bool {
	select {
	case <-s.slots:
		return true
	default:
		return false
	}
}

// Release returns one slot. Releasing beyond capacity is ignored.
func (s *Semaphore) Release() {
	select {
	case s.slots <- struct{}{}:
	default:
	}
}

// Available reports the free slot count.
func (s *Semaphore) Available() int {
	return len(s.slots)
}

func (s *Semaphore) Capacity() int {
	return cap(s.slots)
}

// ContextPermit binds a Semaphore to ctx so a cancelled caller stops waiting.
type ContextPermit struct {
	Ctx context.Context
	Sem *Semaphore
}

func (p ContextPermit) Acquire() bool {
	return p.Sem.AcquireContext(p.Ctx) == nil
}

func (p ContextPermit) Release() {
	p.Sem.Release()
}
