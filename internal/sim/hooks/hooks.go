// Package hooks provides the named lifecycle hooks a host exposes to policy
// components. Listeners are plain functions; there is no reflection and no
// method rewriting. Hooks are not safe for concurrent use: subscribe during
// setup and fire from the simulation goroutine only.
package hooks

// Hook notifies listeners of an event in subscription order.
type Hook[T any] struct {
	fns []func(T)
}

func (h *Hook[T]) Subscribe(fn func(T)) {
	if fn == nil {
		return
	}
	h.fns = append(h.fns, fn)
}

func (h *Hook[T]) Fire(v T) {
	for _, fn := range h.fns {
		fn(v)
	}
}

func (h *Hook[T]) Len() int { return len(h.fns) }

// Filter lets listeners override a pending value before the host applies it.
// Each listener receives the value returned by the previous one.
type Filter[T, V any] struct {
	fns []func(T, V) V
}

func (f *Filter[T, V]) Subscribe(fn func(T, V) V) {
	if fn == nil {
		return
	}
	f.fns = append(f.fns, fn)
}

func (f *Filter[T, V]) Apply(subject T, pending V) V {
	for _, fn := range f.fns {
		pending = fn(subject, pending)
	}
	return pending
}

func (f *Filter[T, V]) Len() int { return len(f.fns) }
