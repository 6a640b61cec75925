// Package pool leases exclusive devices. The camera is leased from a pool
// of one, so at most one stream is open per process.
package pool

// MaxSize bounds the number of slots a Pool can have.
const MaxSize = 8

// Pool hands out a fixed number of slots.
type Pool struct {
	slots chan struct{}
}

// New returns a Pool with size slots, clamped to [1, MaxSize].
func New(size int) *Pool {
	size = min(max(size, 1), MaxSize)
	return &Pool{slots: make(chan struct{}, size)}
}

// TryAcquire takes a slot only if one is free right now.
func (p *Pool) TryAcquire() bool {
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot. Releasing more than was acquired panics.
func (p *Pool) Release() {
	select {
	case <-p.slots:
	default:
		panic("pool: release without acquire")
	}
}

// InUse returns the number of held slots.
func (p *Pool) InUse() int { return len(p.slots) }

// Size returns the number of slots.
func (p *Pool) Size() int { return cap(p.slots) }
