// This file implements FIFO eviction.

package eviction

import "container/list"

type fifo struct {
	// order keeps keys in the order they were inserted.
	// The front of the list is the oldest key.
	order *list.List

	// index maps a tracked key to its list element so Remove is O(1).
	index map[string]*list.Element
}

func newFIFO() *fifo {
	return &fifo{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// OnGet is called when a key is read from the cache. FIFO ignores reads completely.
func (f *fifo) OnGet(string) {}

// OnPut is called when a key is written to the cache.
// If the key is already being tracked: Do nothing. FIFO only cares about the first insertion
// If the key is new: Add it to the back of the list
func (f *fifo) OnPut(k string) {
	if _, ok := f.index[k]; ok {
		return
	}
	f.index[k] = f.order.PushBack(k)
}

// Evict is called when the cache is full and needs space.
// It returns the oldest key and stops tracking it.
func (f *fifo) Evict() (string, bool) {
	front := f.order.Front()
	if front == nil {
		return "", false
	}
	k := f.order.Remove(front).(string)
	delete(f.index, k)
	return k, true
}

// Remove is called when a key is explicitly removed from the cache (not because of eviction).
// A later OnPut for the same key puts it at the back again.
func (f *fifo) Remove(k string) {
	el, ok := f.index[k]
	if !ok {
		return
	}
	f.order.Remove(el)
	delete(f.index, k)
}

func (f *fifo) Reset() {
	f.order.Init()
	f.index = make(map[string]*list.Element)
}

func (f *fifo) Keys() []string {
	keys := make([]string, 0, f.order.Len())
	for el := f.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(string))
	}
	return keys
}

func (f *fifo) Len() int {
	return f.order.Len()
}
