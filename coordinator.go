package snapmap

import (
	"sync"

	"go.uber.org/atomic"
)

// coordinator is a reader/writer synchronization primitive with inverted
// polarity from the usual convention: the many writers of a Map are its
// "shared" holders, and the (rare) Snapshot reader is its single
// "exclusive" holder. Writers proceed concurrently with one another;
// only a Snapshot ever forces them to wait.
//
// State is packed into a single uint64, following the same bit-packed
// CAS-loop discipline as an ordinary spinlock word:
//
//	bit 0:   exclusiveBit, set while a Snapshot holds the coordinator
//	bit 1:   reserved, always zero
//	bits 2+: the number of writers currently holding shared access
//
// sharedStep is 1<<2 so that incrementing or decrementing the shared
// count can never touch the exclusive bit.
type coordinator struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state atomic.Uint64
}

const (
	exclusiveBit uint64 = 1
	sharedStep   uint64 = 1 << 2
)

func newCoordinator() *coordinator {
	c := &coordinator{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func isExclusive(state uint64) bool {
	return state&exclusiveBit != 0
}

func sharedCount(state uint64) uint64 {
	return state >> 2
}

// checkSane panics if the lock word has entered a state that should be
// unreachable: exclusive held while writers are also registered shared.
func checkSane(state uint64) {
	if isExclusive(state) && sharedCount(state) != 0 {
		panic("snapmap: corrupted coordinator lock word")
	}
}

// sharedGuard represents one writer's hold on the coordinator's shared
// state. It must be released exactly once.
type sharedGuard struct {
	c *coordinator
}

// exclusiveGuard represents the Snapshot's hold on the coordinator.
type exclusiveGuard struct {
	c *coordinator
}

// tryShared attempts to register a new shared holder without blocking.
// It tolerates racing shared acquisitions via a compare-and-swap loop,
// and fails only when the coordinator is currently held exclusively.
func (c *coordinator) tryShared() (*sharedGuard, bool) {
	for {
		state := c.state.Load()
		checkSane(state)
		if isExclusive(state) {
			return nil, false
		}
		newState := state + sharedStep
		if c.state.CompareAndSwap(state, newState) {
			return &sharedGuard{c: c}, true
		}
	}
}

// shared blocks until shared access can be granted. It is starvation
// resilient: it re-attempts tryShared every time the exclusive holder
// releases, rather than waiting on a fixed generation count.
func (c *coordinator) shared() *sharedGuard {
	for {
		if g, ok := c.tryShared(); ok {
			return g
		}
		c.mu.Lock()
		for isExclusive(c.state.Load()) {
			c.cond.Wait()
		}
		c.mu.Unlock()
	}
}

// exclusive blocks until every shared holder has released and no other
// exclusive holder is active, then takes exclusive access.
func (c *coordinator) exclusive() *exclusiveGuard {
	c.mu.Lock()
	for {
		state := c.state.Load()
		checkSane(state)
		if state == 0 {
			if c.state.CompareAndSwap(0, exclusiveBit) {
				break
			}
			continue
		}
		c.cond.Wait()
	}
	c.mu.Unlock()
	return &exclusiveGuard{c: c}
}

// release drops one shared holder. If this was the last shared holder,
// it wakes anyone waiting for exclusive access.
func (g *sharedGuard) release() {
	c := g.c
	for {
		state := c.state.Load()
		newState := state - sharedStep
		if c.state.CompareAndSwap(state, newState) {
			if newState == 0 {
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			}
			return
		}
	}
}

// release clears exclusive access and wakes every waiter, shared and
// exclusive alike.
func (g *exclusiveGuard) release() {
	c := g.c
	c.state.Store(0)
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}
