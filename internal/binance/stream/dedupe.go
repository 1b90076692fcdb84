package stream

import (
	"container/list"
	"sync"
)

// recentKeys remembers the last size keys it has seen.
type recentKeys struct {
	mu    sync.Mutex
	size  int
	order *list.List
	index map[string]*list.Element
}

func newRecentKeys(size int) *recentKeys {
	if size < 1 {
		size = 1
	}
	return &recentKeys{size: size, order: list.New(), index: make(map[string]*list.Element, size)}
}

// Seen records key and reports whether it was already present.
func (r *recentKeys) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[key]; ok {
		return true
	}
	r.index[key] = r.order.PushBack(key)
	if r.order.Len() > r.size {
		oldest := r.order.Front()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(string))
	}
	return false
}
