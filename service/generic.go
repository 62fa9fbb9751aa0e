package service

import (
	"github.com/c360/servicekit/async"
	"github.com/c360/servicekit/event"
)

// RegisterHandler attaches a typed handler for events of type E. The wrapper
// performs the cast so handler bodies work with the concrete event type.
func RegisterHandler[E event.Event](dm *Manager, owner uint64, handler func(E) *async.Task) *Registration {
	return dm.RegisterEventHandler(owner, event.TypeOf[E](), func(ev event.Event) *async.Task {
		e, ok := ev.(E)
		if !ok {
			return nil
		}
		return handler(e)
	})
}

// RegisterFilteredHandler is RegisterHandler restricted to events pushed by
// the given originating service.
func RegisterFilteredHandler[E event.Event](dm *Manager, owner, originFilter uint64, handler func(E) *async.Task) *Registration {
	return dm.RegisterFilteredEventHandler(owner, event.TypeOf[E](), originFilter, func(ev event.Event) *async.Task {
		e, ok := ev.(E)
		if !ok {
			return nil
		}
		return handler(e)
	})
}

// RegisterInterceptor attaches typed pre/post interceptors for events of
// type E.
func RegisterInterceptor[E event.Event](dm *Manager, owner uint64, pre func(E) bool, post func(E, bool)) *Registration {
	return dm.RegisterEventInterceptor(owner, event.TypeOf[E](),
		func(ev event.Event) bool {
			if pre == nil {
				return true
			}
			e, ok := ev.(E)
			if !ok {
				return true
			}
			return pre(e)
		},
		func(ev event.Event, processed bool) {
			if post == nil {
				return
			}
			if e, ok := ev.(E); ok {
				post(e, processed)
			}
		})
}

// RegisterCompletionCallbacks attaches typed completion/error callbacks for
// events of type E pushed by owner.
func RegisterCompletionCallbacks[E event.Event](dm *Manager, owner uint64, onComplete func(E), onError func(E, error)) (*Registration, error) {
	var complete CompletionCallback
	var fail ErrorCallback
	if onComplete != nil {
		complete = func(ev event.Event) {
			if e, ok := ev.(E); ok {
				onComplete(e)
			}
		}
	}
	if onError != nil {
		fail = func(ev event.Event, err error) {
			if e, ok := ev.(E); ok {
				onError(e, err)
			}
		}
	}
	return dm.RegisterEventCompletionCallbacks(owner, event.TypeOf[E](), complete, fail)
}

// RegisterTracker attaches dependency request/undo trackers for interface I.
func RegisterTracker[I any](dm *Manager, owner uint64, onRequest RequestTracker, onUndo UndoTracker) *Registration {
	return dm.RegisterDependencyTracker(owner, InterfaceID[I](), onRequest, onUndo)
}

// StartedServices returns the ACTIVE services exposing interface I, in
// registration order. Must be called on the loop thread.
func StartedServices[I any](dm *Manager) []I {
	ifaceID := InterfaceID[I]()
	var out []I
	for _, id := range dm.order {
		lm := dm.services[id]
		if lm == nil || lm.state != StateActive {
			continue
		}
		adv, ok := lm.exposes(ifaceID)
		if !ok {
			continue
		}
		if v, castOK := adv.cast(lm.instance); castOK {
			out = append(out, v.(I))
		}
	}
	return out
}
