// Package core implements the tools shared by the components of the client:
// the error taxonomy and the observable used to publish view snapshots.
package core

import "sync"

// Observer is the interface to implement to watch events of type E.
type Observer[E any] interface {
	NotifyCallback(event E)
}

// ObserverFunc is an adapter to use a function as an observer.
//
// - implements core.Observer
type ObserverFunc[E any] func(event E)

// NotifyCallback implements core.Observer. It calls the function.
func (fn ObserverFunc[E]) NotifyCallback(event E) {
	fn(event)
}

// Watcher keeps a list of observers and notifies them in the order they
// subscribed.
type Watcher[E any] struct {
	sync.RWMutex

	next      uint64
	order     []uint64
	observers map[uint64]Observer[E]
}

// NewWatcher creates a new empty watcher.
func NewWatcher[E any]() *Watcher[E] {
	return &Watcher[E]{
		observers: make(map[uint64]Observer[E]),
	}
}

// Add adds the observer to the list and returns the function that removes it.
// Removing twice is a no-op.
func (w *Watcher[E]) Add(observer Observer[E]) (remove func()) {
	w.Lock()
	id := w.next
	w.next++
	w.observers[id] = observer
	w.order = append(w.order, id)
	w.Unlock()

	return func() {
		w.Lock()
		defer w.Unlock()

		if _, found := w.observers[id]; !found {
			return
		}

		delete(w.observers, id)

		for i, other := range w.order {
			if other == id {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of observers.
func (w *Watcher[E]) Len() int {
	w.RLock()
	defer w.RUnlock()

	return len(w.observers)
}

// Notify notifies the observers one after the other with the event.
func (w *Watcher[E]) Notify(event E) {
	w.RLock()
	observers := make([]Observer[E], 0, len(w.order))
	for _, id := range w.order {
		observers = append(observers, w.observers[id])
	}
	w.RUnlock()

	for _, obs := range observers {
		obs.NotifyCallback(event)
	}
}
