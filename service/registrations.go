package service

import (
	"github.com/c360/servicekit/async"
	"github.com/c360/servicekit/event"
)

// EventHandler is user code attached to an event type. Returning nil means
// the handler completed synchronously; returning a Task lets the handler
// suspend on awaitables and resume inside the loop.
type EventHandler func(event.Event) *async.Task

// PreInterceptor observes an event before dispatch. Returning false prevents
// handler processing for this event.
type PreInterceptor func(event.Event) bool

// PostInterceptor observes an event after dispatch; processed reports
// whether handlers ran.
type PostInterceptor func(event.Event, bool)

// CompletionCallback fires when every handler for an event pushed by the
// registering service has completed, including asynchronous completion.
type CompletionCallback func(event.Event)

// ErrorCallback fires when a handler for an event pushed by the registering
// service faulted.
type ErrorCallback func(event.Event, error)

// RequestTracker observes dependency requests for a tracked interface.
type RequestTracker func(*event.DependencyRequest)

// UndoTracker observes dependency undo requests for a tracked interface.
type UndoTracker func(*event.DependencyUndoRequest)

// Registration is a scoped handle for a handler, interceptor, completion or
// tracker registration. Releasing removes the registration; Release is
// idempotent and must run on the owning manager's thread (services release
// their registrations in Stop).
type Registration struct {
	release  func()
	released bool
}

// Release removes the registration.
func (r *Registration) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	if r.release != nil {
		r.release()
	}
}

type handlerEntry struct {
	owner uint64
	// filter restricts handling to events originating from this service;
	// nil handles all origins.
	filter  *uint64
	handler EventHandler
}

type interceptorEntry struct {
	owner  uint64
	target uint64 // event type, or event.AnyType for all
	seq    uint64 // global registration order across both tables
	pre    PreInterceptor
	post   PostInterceptor
}

type callbackKey struct {
	owner     uint64
	eventType uint64
}

type trackerEntry struct {
	owner     uint64
	onRequest RequestTracker
	onUndo    UndoTracker
}
