package stream

import (
	"sync"
	"sync/atomic"
)

// Waiter is one parked blocking read. It may watch several keys and is
// completed at most once: by the first append to any of them, or by its
// owner giving up.
type Waiter struct {
	keys  []string
	fired atomic.Bool
	ch    chan string
}

// C delivers the key whose append completed the waiter.
func (w *Waiter) C() <-chan string {
	return w.ch
}

// complete claims the waiter. Only the first caller gets true.
func (w *Waiter) complete() bool {
	return w.fired.CompareAndSwap(false, true)
}

// WaitManager tracks waiters per key.
type WaitManager struct {
	mu      sync.Mutex
	waiters map[string][]*Waiter
}

// NewWaitManager returns a manager with no waiters.
func NewWaitManager() *WaitManager {
	return &WaitManager{waiters: make(map[string][]*Waiter)}
}

// Register parks a waiter on keys.
func (m *WaitManager) Register(keys ...string) *Waiter {
	w := &Waiter{keys: keys, ch: make(chan string, 1)}
	m.mu.Lock()
	for _, k := range keys {
		m.waiters[k] = append(m.waiters[k], w)
	}
	m.mu.Unlock()
	return w
}

// Notify wakes every waiter parked on key and returns how many it woke.
func (m *WaitManager) Notify(key string) int {
	m.mu.Lock()
	ws := m.waiters[key]
	delete(m.waiters, key)
	m.mu.Unlock()

	woken := 0
	for _, w := range ws {
		if w.complete() {
			w.ch <- key
			woken++
		}
	}
	return woken
}

// Abandon removes w from every key. It reports true when the caller won
// the race against Notify, i.e. no key will ever be delivered on C.
func (m *WaitManager) Abandon(w *Waiter) bool {
	won := w.complete()
	m.remove(w)
	return won
}

func (m *WaitManager) remove(w *Waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range w.keys {
		ws := m.waiters[k]
		for i, x := range ws {
			if x == w {
				ws = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(ws) == 0 {
			delete(m.waiters, k)
		} else {
			m.waiters[k] = ws
		}
	}
}

// Pending returns the number of waiters parked on key.
func (m *WaitManager) Pending(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters[key])
}
