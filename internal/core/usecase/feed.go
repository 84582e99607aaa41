package usecase

import (
	"slices"
	"sync"
)

// feed delivers state snapshots to subscribers in the order they were pushed.
// Callers push while holding their own state lock, then call flush after
// releasing it. Subscribers may call back into the component; a nested flush
// returns at once and the outer loop delivers the queued snapshot.
type feed[T any] struct {
	mu       sync.Mutex
	subs     map[int]func(T)
	nextID   int
	pending  []T
	draining bool
}

func (f *feed[T]) subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]func(T))
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

func (f *feed[T]) push(v T) {
	f.mu.Lock()
	f.pending = append(f.pending, v)
	f.mu.Unlock()
}

func (f *feed[T]) flush() {
	f.mu.Lock()
	if f.draining {
		f.mu.Unlock()
		return
	}
	f.draining = true
	for len(f.pending) > 0 {
		v := f.pending[0]
		f.pending = f.pending[1:]
		ids := make([]int, 0, len(f.subs))
		for id := range f.subs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		fns := make([]func(T), 0, len(ids))
		for _, id := range ids {
			fns = append(fns, f.subs[id])
		}
		f.mu.Unlock()

		for _, fn := range fns {
			fn(v)
		}

		f.mu.Lock()
	}
	f.draining = false
	f.mu.Unlock()
}
