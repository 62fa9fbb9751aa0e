package async

// Awaitable is anything a generator body can suspend on: the async reset
// events below, or another generator. Awaitables are thread-confined to the
// owning manager's loop; Set, Reset and waiter registration must all happen
// on that thread (typically via RunFunction events).
type Awaitable interface {
	// TryReady consumes pending readiness without suspending. Auto-reset
	// events consume their set flag here.
	TryReady() bool
	// AddWaiter registers a continuation invoked on the loop thread when
	// the awaited condition is next satisfied.
	AddWaiter(fn func())
}

// AutoResetEvent releases a single waiter per Set and re-arms itself. When
// no waiter is registered, Set leaves the event set so the next await
// consumes it immediately.
type AutoResetEvent struct {
	set     bool
	waiters []func()
}

// NewAutoResetEvent creates an auto-reset event, optionally initially set.
func NewAutoResetEvent(initiallySet bool) *AutoResetEvent {
	return &AutoResetEvent{set: initiallySet}
}

// Set releases the oldest waiter if one is registered, otherwise latches the
// event for the next await.
func (e *AutoResetEvent) Set() {
	if len(e.waiters) > 0 {
		w := e.waiters[0]
		e.waiters = e.waiters[1:]
		w()
		return
	}
	e.set = true
}

// IsSet reports whether the event is latched.
func (e *AutoResetEvent) IsSet() bool { return e.set }

// TryReady implements Awaitable, consuming the latch.
func (e *AutoResetEvent) TryReady() bool {
	if e.set {
		e.set = false
		return true
	}
	return false
}

// AddWaiter implements Awaitable.
func (e *AutoResetEvent) AddWaiter(fn func()) {
	e.waiters = append(e.waiters, fn)
}

// ManualResetEvent releases every waiter on Set and stays set until Reset.
type ManualResetEvent struct {
	set     bool
	waiters []func()
}

// NewManualResetEvent creates a manual-reset event, optionally initially set.
func NewManualResetEvent(initiallySet bool) *ManualResetEvent {
	return &ManualResetEvent{set: initiallySet}
}

// Set latches the event and releases all waiters.
func (e *ManualResetEvent) Set() {
	e.set = true
	waiters := e.waiters
	e.waiters = nil
	for _, w := range waiters {
		w()
	}
}

// Reset unlatches the event. Pending waiters are unaffected.
func (e *ManualResetEvent) Reset() { e.set = false }

// IsSet reports whether the event is latched.
func (e *ManualResetEvent) IsSet() bool { return e.set }

// TryReady implements Awaitable. The latch is not consumed.
func (e *ManualResetEvent) TryReady() bool { return e.set }

// AddWaiter implements Awaitable.
func (e *ManualResetEvent) AddWaiter(fn func()) {
	e.waiters = append(e.waiters, fn)
}
