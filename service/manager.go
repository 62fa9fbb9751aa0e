package service

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/c360/servicekit/async"
	"github.com/c360/servicekit/errors"
	"github.com/c360/servicekit/event"
	"github.com/c360/servicekit/metric"
	"github.com/c360/servicekit/pkg/retry"
	"github.com/c360/servicekit/property"
	"github.com/c360/servicekit/queue"

	"golang.org/x/time/rate"
)

var managerIDCounter atomic.Uint64

// Manager is the per-thread dependency manager: it owns the event queue, the
// service registry, the handler/interceptor/tracker tables, and drives the
// run loop. All registry mutation, handler invocation and state transitions
// happen on the loop thread; the only supported cross-thread operations are
// event pushes and channel broadcasts.
type Manager struct {
	id      uint64
	logger  *slog.Logger
	metrics *metric.MetricsRegistry

	q *queue.PriorityQueue

	// Loop-confined state below. Touched only by the loop thread, or
	// before Start is called.
	services       map[uint64]*lifecycleManager
	order          []uint64
	handlers       map[uint64][]*handlerEntry
	interceptors   map[uint64][]*interceptorEntry
	completions    map[callbackKey]CompletionCallback
	errorCallbacks map[callbackKey]ErrorCallback
	trackers       map[uint64][]*trackerEntry
	generators     map[uint64]*async.Task
	genDispatch    map[uint64]*dispatchState
	regSeq         uint64
	quitting       bool

	// Cross-thread state.
	eventID   atomic.Uint64
	quit      atomic.Bool
	running   atomic.Bool
	// pending counts events queued or mid-dispatch.
	pending   atomic.Int64
	suspended atomic.Int64

	channel *CommunicationChannel

	// startRetry bounds FailedAndRetry requeues per service.
	startRetry retry.Config

	// faultLog bounds how fast uncaught handler faults reach the log.
	faultLog *rate.Limiter
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(dm *Manager) {
		if logger != nil {
			dm.logger = logger
		}
	}
}

// WithMetrics sets the metrics registry the loop reports into.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(dm *Manager) {
		dm.metrics = registry
	}
}

// WithMaxStartAttempts bounds how often a FailedAndRetry start is requeued
// before it is treated as terminal. Zero keeps the default unbounded retry.
func WithMaxStartAttempts(n int) Option {
	return WithStartRetry(retry.Bounded(n))
}

// WithStartRetry bounds start requeues with a retry policy. The loop never
// sleeps between attempts.
func WithStartRetry(cfg retry.Config) Option {
	return func(dm *Manager) {
		dm.startRetry = cfg
	}
}

// NewManager creates a manager. The loop does not run until Start.
func NewManager(opts ...Option) *Manager {
	dm := &Manager{
		id:             managerIDCounter.Add(1),
		q:              queue.NewPriorityQueue(),
		services:       make(map[uint64]*lifecycleManager),
		handlers:       make(map[uint64][]*handlerEntry),
		interceptors:   make(map[uint64][]*interceptorEntry),
		completions:    make(map[callbackKey]CompletionCallback),
		errorCallbacks: make(map[callbackKey]ErrorCallback),
		trackers:       make(map[uint64][]*trackerEntry),
		generators:     make(map[uint64]*async.Task),
		genDispatch:    make(map[uint64]*dispatchState),
		startRetry:     retry.DefaultConfig(),
		faultLog:       rate.NewLimiter(rate.Limit(10), 20),
	}
	dm.logger = slog.Default().With("manager", dm.id)
	for _, opt := range opts {
		opt(dm)
	}
	return dm
}

// ID returns the manager id, unique per process.
func (dm *Manager) ID() uint64 { return dm.id }

// IsRunning reports whether the loop is running.
func (dm *Manager) IsRunning() bool { return dm.running.Load() }

// Channel returns the communication channel this manager is registered
// with, or nil.
func (dm *Manager) Channel() *CommunicationChannel { return dm.channel }

// CreateService constructs a service through its factory, registers it,
// emits one DependencyRequest per declared dependency, and starts the
// service. Providers that are already ACTIVE are injected before Start runs,
// so a consumer created after its providers observes injection first. The
// priority is read from the "Priority" property, defaulting to
// event.DefaultPriority.
//
// CreateService must be called on the loop thread or before Start.
func (dm *Manager) CreateService(factory Factory, props property.Properties, interfaces ...Advertised) (uint64, error) {
	return dm.CreateServicePrioritised(factory, props, props.GetUint(property.KeyPriority, event.DefaultPriority), interfaces...)
}

// CreateServicePrioritised is CreateService with an explicit priority.
func (dm *Manager) CreateServicePrioritised(factory Factory, props property.Properties, priority uint64, interfaces ...Advertised) (uint64, error) {
	reg := NewDependencyRegister()
	instance, err := factory(reg, props, dm)
	if err != nil {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrConstruction, err),
			"Manager", "CreateService", "factory execution")
	}
	if instance == nil {
		return 0, errors.WrapInvalid(errors.ErrConstruction, "Manager", "CreateService", "factory returned nil")
	}

	implName := implementationName(instance)
	lm := newLifecycleManager(instance, reg, props, implName, priority, interfaces)
	dm.services[lm.serviceID] = lm
	dm.order = append(dm.order, lm.serviceID)

	if aware, ok := instance.(ServiceIDAware); ok {
		aware.InjectServiceID(lm.serviceID)
	}

	dm.logger.Debug("added service",
		"service", implName,
		"id", lm.serviceID,
		"interfaces", len(interfaces))

	// Wire already-active providers before any events fire, so a service
	// created after its providers observes injection before Start.
	for _, id := range dm.order {
		other := dm.services[id]
		if other == nil || other == lm {
			continue
		}
		dm.tryInject(lm, other)
	}

	for _, depID := range lm.depOrder {
		r := lm.registry.registrations[depID]
		dm.pushInternal(lm.serviceID, priority, &event.DependencyRequest{
			Interface:  r.iface,
			Required:   r.required,
			Properties: r.props,
		})
	}

	// Start synchronously so a consumer created after its providers
	// observes injection before its own Start callback.
	dm.startService(lm)

	return lm.serviceID, nil
}

// RemoveService pushes a RemoveService event for the target. Dispatch stops
// the service if it is ACTIVE, unregisters it, and notifies trackers with
// one DependencyUndoRequest per declared dependency.
func (dm *Manager) RemoveService(origin, target uint64) uint64 {
	return dm.PushEvent(origin, &event.RemoveService{TargetService: target})
}

// PushEvent pushes an event at the default priority. It is safe from any
// goroutine. After shutdown the push is dropped and the sentinel id 0 is
// returned.
func (dm *Manager) PushEvent(origin uint64, ev event.Event) uint64 {
	return dm.push(origin, event.DefaultPriority, ev, false)
}

// PushPrioritisedEvent pushes an event at the given priority.
func (dm *Manager) PushPrioritisedEvent(origin, priority uint64, ev event.Event) uint64 {
	return dm.push(origin, priority, ev, false)
}

// PushFunction pushes a RunFunction event executing fn on the loop thread.
func (dm *Manager) PushFunction(origin uint64, fn func()) uint64 {
	return dm.PushEvent(origin, &event.RunFunction{Fn: fn})
}

func (dm *Manager) pushInternal(origin, priority uint64, ev event.Event) uint64 {
	return dm.push(origin, priority, ev, true)
}

func (dm *Manager) push(origin, priority uint64, ev event.Event, internal bool) uint64 {
	if !internal && dm.quit.Load() {
		return 0
	}
	id := dm.eventID.Add(1)
	event.Stamp(ev, id, origin, priority)
	dm.pending.Add(1)
	dm.q.Push(priority, ev)
	if dm.metrics != nil {
		dm.metrics.CoreMetrics().RecordEventPushed(event.TypeName(ev))
		dm.metrics.CoreMetrics().SetQueueDepth(float64(dm.q.Len()))
	}
	return id
}

// ScheduleContinuation implements async.Scheduler: it queues a Continuable
// event that resumes the generator at the awaiter's priority.
func (dm *Manager) ScheduleContinuation(generatorID, priority uint64) {
	g := dm.generators[generatorID]
	origin := uint64(0)
	if g != nil {
		origin = g.Owner()
	}
	dm.pushInternal(origin, priority, &event.Continuable{GeneratorID: generatorID})
}

// RegisterEventHandler attaches a handler to an event type. The handler runs
// for every event of that type regardless of origin.
func (dm *Manager) RegisterEventHandler(owner, eventType uint64, handler EventHandler) *Registration {
	return dm.registerHandler(owner, eventType, nil, handler)
}

// RegisterFilteredEventHandler attaches a handler that only runs for events
// originating from the given service.
func (dm *Manager) RegisterFilteredEventHandler(owner, eventType, originFilter uint64, handler EventHandler) *Registration {
	return dm.registerHandler(owner, eventType, &originFilter, handler)
}

func (dm *Manager) registerHandler(owner, eventType uint64, filter *uint64, handler EventHandler) *Registration {
	entry := &handlerEntry{owner: owner, filter: filter, handler: handler}
	dm.handlers[eventType] = append(dm.handlers[eventType], entry)
	return &Registration{release: func() {
		dm.handlers[eventType] = removeEntry(dm.handlers[eventType], entry)
	}}
}

// RegisterEventInterceptor attaches pre/post interceptors to an event type;
// event.AnyType intercepts every event. Interceptors for a specific type and
// for all events fire in one global registration order.
func (dm *Manager) RegisterEventInterceptor(owner, eventType uint64, pre PreInterceptor, post PostInterceptor) *Registration {
	dm.regSeq++
	entry := &interceptorEntry{owner: owner, target: eventType, seq: dm.regSeq, pre: pre, post: post}
	dm.interceptors[eventType] = append(dm.interceptors[eventType], entry)
	return &Registration{release: func() {
		dm.interceptors[eventType] = removeEntry(dm.interceptors[eventType], entry)
	}}
}

// RegisterEventCompletionCallbacks attaches completion and error callbacks
// for events of the given type pushed by owner. Each (owner, type) pair has
// at most one registration.
func (dm *Manager) RegisterEventCompletionCallbacks(owner, eventType uint64, onComplete CompletionCallback, onError ErrorCallback) (*Registration, error) {
	key := callbackKey{owner: owner, eventType: eventType}
	if _, exists := dm.completions[key]; exists {
		return nil, errors.WrapInvalid(errors.ErrDuplicateRegistration,
			"Manager", "RegisterEventCompletionCallbacks", "duplicate completion registration")
	}
	if _, exists := dm.errorCallbacks[key]; exists {
		return nil, errors.WrapInvalid(errors.ErrDuplicateRegistration,
			"Manager", "RegisterEventCompletionCallbacks", "duplicate error registration")
	}
	if onComplete != nil {
		dm.completions[key] = onComplete
	}
	if onError != nil {
		dm.errorCallbacks[key] = onError
	}
	return &Registration{release: func() {
		delete(dm.completions, key)
		delete(dm.errorCallbacks, key)
	}}, nil
}

// RegisterDependencyTracker attaches request/undo trackers for an interface.
// Before returning, the registry is scanned for currently unfulfilled
// dependencies on the interface and one synthetic request per match is
// delivered to onRequest.
func (dm *Manager) RegisterDependencyTracker(owner, interfaceID uint64, onRequest RequestTracker, onUndo UndoTracker) *Registration {
	entry := &trackerEntry{owner: owner, onRequest: onRequest, onUndo: onUndo}

	if onRequest != nil {
		var pending []*event.DependencyRequest
		for _, id := range dm.order {
			lm := dm.services[id]
			if lm == nil {
				continue
			}
			dep, ok := lm.deps[interfaceID]
			if !ok || dep.Satisfied {
				continue
			}
			r := lm.registry.registrations[interfaceID]
			req := &event.DependencyRequest{
				Interface:  r.iface,
				Required:   r.required,
				Properties: r.props,
			}
			event.Stamp(req, 0, lm.serviceID, lm.priority)
			pending = append(pending, req)
		}
		for _, req := range pending {
			onRequest(req)
		}
	}

	dm.trackers[interfaceID] = append(dm.trackers[interfaceID], entry)
	return &Registration{release: func() {
		dm.trackers[interfaceID] = removeEntry(dm.trackers[interfaceID], entry)
	}}
}

// ServiceState returns the lifecycle state of a service. Removed or unknown
// ids report StateUninstalled.
func (dm *Manager) ServiceState(id uint64) State {
	if lm := dm.services[id]; lm != nil {
		return lm.state
	}
	return StateUninstalled
}

// ImplementationName returns the implementation type name of a registered
// service.
func (dm *Manager) ImplementationName(id uint64) (string, bool) {
	if lm := dm.services[id]; lm != nil {
		return lm.implName, true
	}
	return "", false
}

// ServiceProperties returns the properties of a registered service, or nil.
func (dm *Manager) ServiceProperties(id uint64) property.Properties {
	if lm := dm.services[id]; lm != nil {
		return lm.properties
	}
	return nil
}

// ServiceDependencies returns a snapshot of a service's declared
// dependencies.
func (dm *Manager) ServiceDependencies(id uint64) []Dependency {
	if lm := dm.services[id]; lm != nil {
		return lm.dependencies()
	}
	return nil
}

// WaitForEmptyQueue blocks until no events remain queued or in dispatch and
// no suspended generators remain, or until the loop has shut down.
func (dm *Manager) WaitForEmptyQueue() {
	for dm.pending.Load() > 0 || dm.suspended.Load() > 0 {
		if dm.quit.Load() && !dm.running.Load() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Start runs the event loop on the calling goroutine, pinned to its OS
// thread. It returns once a Quit event has drained: the queue is processed
// to completion, every ACTIVE service is stopped in reverse registration
// order, remaining generators are unwound, and all services are
// uninstalled.
func (dm *Manager) Start() error {
	if !dm.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrLoopNotRunning, "Manager", "Start", "loop already running")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	dm.logger.Debug("event loop started")

	for !dm.quitting {
		ev, ok := dm.q.Pop()
		if !ok {
			break
		}
		dm.processEvent(ev)
		dm.pending.Add(-1)
	}

	// Quit observed: drain the queue to completion first.
	dm.drain()

	// Stop every ACTIVE service in reverse registration order and let the
	// stop events complete.
	for i := len(dm.order) - 1; i >= 0; i-- {
		lm := dm.services[dm.order[i]]
		if lm != nil && lm.state == StateActive {
			dm.pushInternal(lm.serviceID, lm.priority, &event.StopService{TargetService: lm.serviceID})
		}
	}
	dm.drain()

	// Unwind generators still suspended on awaits that will never resolve.
	for id, g := range dm.generators {
		g.CancelAtNextSuspension()
		dm.pushInternal(g.Owner(), g.Priority(), &event.Continuable{GeneratorID: id})
	}
	dm.drain()

	// Uninstall everything, delivering undo requests to trackers.
	for i := len(dm.order) - 1; i >= 0; i-- {
		if lm := dm.services[dm.order[i]]; lm != nil && lm.state != StateUninstalled {
			dm.uninstall(lm)
		}
	}
	dm.drain()

	dm.q.Shutdown()
	dm.running.Store(false)
	dm.logger.Debug("event loop stopped")
	return nil
}

func (dm *Manager) drain() {
	for {
		ev, ok := dm.q.TryPop()
		if !ok {
			return
		}
		dm.processEvent(ev)
		dm.pending.Add(-1)
	}
}

// processEvent runs the full dispatch algorithm for one dequeued event:
// pre-interceptors, dispatch, post-interceptors in reverse.
func (dm *Manager) processEvent(ev event.Event) {
	start := time.Now()

	interceptors := dm.interceptorsFor(ev.Type())
	var ran []*interceptorEntry
	allowed := true
	for _, entry := range interceptors {
		ran = append(ran, entry)
		if entry.pre != nil && !entry.pre(ev) {
			allowed = false
		}
	}

	processed := false
	if allowed {
		processed = dm.dispatch(ev)
	}

	for i := len(ran) - 1; i >= 0; i-- {
		if ran[i].post != nil {
			ran[i].post(ev, processed)
		}
	}

	if dm.metrics != nil {
		dm.metrics.CoreMetrics().RecordEventDispatched(event.TypeName(ev), time.Since(start).Seconds())
		dm.metrics.CoreMetrics().SetQueueDepth(float64(dm.q.Len()))
		dm.metrics.CoreMetrics().SetSuspendedGenerators(float64(dm.suspended.Load()))
	}
}

// interceptorsFor snapshots the interceptors for a type and for AnyType,
// merged into global registration order.
func (dm *Manager) interceptorsFor(eventType uint64) []*interceptorEntry {
	specific := dm.interceptors[eventType]
	all := dm.interceptors[event.AnyType]
	if eventType == event.AnyType {
		all = nil
	}
	if len(specific) == 0 && len(all) == 0 {
		return nil
	}
	merged := make([]*interceptorEntry, 0, len(specific)+len(all))
	merged = append(merged, specific...)
	merged = append(merged, all...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].seq < merged[j].seq })
	return merged
}

// dispatch executes a framework event internally or fans a user event out to
// its registered handlers. It reports whether the event was processed.
func (dm *Manager) dispatch(ev event.Event) bool {
	switch e := ev.(type) {
	case *event.StartService:
		dm.handleStartService(e)
	case *event.StopService:
		dm.handleStopService(e)
	case *event.RemoveService:
		dm.handleRemoveService(e)
	case *event.DependencyOnline:
		dm.handleDependencyOnline(e)
	case *event.DependencyOffline:
		dm.handleDependencyOffline(e)
	case *event.DependencyRequest:
		dm.handleDependencyRequest(e)
	case *event.DependencyUndoRequest:
		dm.handleDependencyUndoRequest(e)
	case *event.RunFunction:
		if e.Fn != nil {
			e.Fn()
		}
	case *event.Continuable:
		dm.handleContinuable(e)
	case *event.Quit:
		dm.quitting = true
		dm.quit.Store(true)
	default:
		return dm.handleUserEvent(ev)
	}
	return true
}

type dispatchState struct {
	ev      event.Event
	pending int
	err     error
}

func (dm *Manager) handleUserEvent(ev event.Event) bool {
	entries := dm.handlers[ev.Type()]
	if len(entries) == 0 {
		return false
	}
	snapshot := make([]*handlerEntry, len(entries))
	copy(snapshot, entries)

	ds := &dispatchState{ev: ev}
	ran := false
	for _, entry := range snapshot {
		if entry.filter != nil && *entry.filter != ev.OriginatingService() {
			continue
		}
		ran = true
		g, err := dm.invokeHandler(entry, ev)
		if err != nil {
			ds.err = err
			continue
		}
		if g == nil {
			continue
		}
		g.Bind(dm, entry.owner, ev.Priority())
		dm.driveGenerator(g, ds)
	}
	if ds.pending == 0 {
		dm.finishDispatch(ds)
	}
	return ran
}

func (dm *Manager) invokeHandler(entry *handlerEntry, ev event.Event) (g *async.Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapTransient(
				fmt.Errorf("%w: panic: %v", errors.ErrHandlerFault, r),
				"Manager", "dispatch", "handler invocation")
		}
	}()
	return entry.handler(ev), nil
}

// driveGenerator advances a handler generator until it suspends or finishes.
// Suspended generators are parked in the manager's tables and resumed by
// Continuable events.
func (dm *Manager) driveGenerator(g *async.Task, ds *dispatchState) {
	for {
		switch g.Advance() {
		case async.StatusYielded:
			continue
		case async.StatusSuspended:
			dm.generators[g.ID()] = g
			dm.genDispatch[g.ID()] = ds
			ds.pending++
			dm.suspended.Add(1)
			return
		case async.StatusFinished:
			if err := g.Err(); err != nil {
				ds.err = fmt.Errorf("%w: %w", errors.ErrHandlerFault, err)
			}
			return
		}
	}
}

func (dm *Manager) handleContinuable(e *event.Continuable) {
	g := dm.generators[e.GeneratorID]
	if g == nil {
		return
	}
	delete(dm.generators, e.GeneratorID)
	ds := dm.genDispatch[e.GeneratorID]
	delete(dm.genDispatch, e.GeneratorID)
	dm.suspended.Add(-1)
	if ds != nil {
		ds.pending--
	}

	dm.driveGenerator(g, ds)

	if ds != nil && ds.pending == 0 {
		dm.finishDispatch(ds)
	}
}

// finishDispatch fires the completion or error callback registered by the
// event's originator once all handlers, including suspended ones, are done.
func (dm *Manager) finishDispatch(ds *dispatchState) {
	if ds == nil || ds.ev == nil {
		return
	}
	key := callbackKey{owner: ds.ev.OriginatingService(), eventType: ds.ev.Type()}
	if ds.err != nil {
		if cb, ok := dm.errorCallbacks[key]; ok {
			cb(ds.ev, ds.err)
			return
		}
		if dm.faultLog.Allow() {
			dm.logger.Warn("handler fault without error callback",
				"event", event.TypeName(ds.ev),
				"origin", ds.ev.OriginatingService(),
				"error", ds.err)
		}
		return
	}
	if cb, ok := dm.completions[key]; ok {
		cb(ds.ev)
	}
}

func (dm *Manager) handleStartService(e *event.StartService) {
	lm := dm.services[e.TargetService]
	if lm == nil || lm.state != StateInstalled {
		return
	}
	dm.startService(lm)
}

// startService runs the start machine: STARTING, the user Start callback,
// then INJECTING and, once every required dependency is satisfied, ACTIVE.
func (dm *Manager) startService(lm *lifecycleManager) {
	lm.startAttempts++
	lm.state = StateStarting
	dm.recordState(lm)

	sb := dm.safeStart(lm)
	switch sb {
	case Succeeded:
		lm.state = StateInjecting
		dm.recordState(lm)
		dm.logger.Debug("started service", "service", lm.implName, "id", lm.serviceID)
		dm.maybeActivate(lm)
	case FailedAndRetry:
		lm.state = StateInstalled
		dm.recordState(lm)
		if !dm.startRetry.Exhausted(lm.startAttempts) {
			dm.logger.Debug("service start failed, requeueing",
				"service", lm.implName, "id", lm.serviceID, "attempts", lm.startAttempts)
			dm.pushInternal(lm.serviceID, lm.priority, &event.StartService{TargetService: lm.serviceID})
		} else {
			dm.logger.Warn("service start retries exhausted",
				"service", lm.implName, "id", lm.serviceID, "attempts", lm.startAttempts)
			dm.fireStartError(lm)
		}
	case FailedDoNotRetry:
		lm.state = StateInstalled
		dm.recordState(lm)
		dm.logger.Warn("service start failed permanently",
			"service", lm.implName, "id", lm.serviceID)
		dm.fireStartError(lm)
	}
}

// fireStartError routes a terminal start failure to the error callback the
// service registered for StartService events, if any.
func (dm *Manager) fireStartError(lm *lifecycleManager) {
	ev := &event.StartService{TargetService: lm.serviceID}
	event.Stamp(ev, 0, lm.serviceID, lm.priority)
	dm.fireError(lm.serviceID, ev, errors.ErrStartTerminal)
}

// maybeActivate advances an INJECTING service to ACTIVE once every required
// dependency is satisfied, announcing its interfaces to the registry.
func (dm *Manager) maybeActivate(lm *lifecycleManager) {
	if lm.state != StateInjecting || !lm.allRequiredSatisfied() {
		return
	}
	lm.state = StateActive
	lm.restartOnDependency = false
	dm.recordState(lm)
	dm.pushInternal(lm.serviceID, lm.priority, &event.DependencyOnline{})
}

func (dm *Manager) handleDependencyOnline(e *event.DependencyOnline) {
	provider := dm.services[e.OriginatingService()]
	if provider == nil || provider.state != StateActive {
		return
	}

	snapshot := make([]uint64, len(dm.order))
	copy(snapshot, dm.order)
	for _, id := range snapshot {
		lm := dm.services[id]
		if lm == nil || lm == provider {
			continue
		}
		if !dm.tryInject(lm, provider) {
			continue
		}
		switch lm.state {
		case StateInjecting:
			dm.maybeActivate(lm)
		case StateInstalled:
			if lm.restartOnDependency {
				lm.restartOnDependency = false
				dm.pushInternal(lm.serviceID, lm.priority, &event.StartService{TargetService: lm.serviceID})
			}
		}
	}
}

func (dm *Manager) handleDependencyOffline(e *event.DependencyOffline) {
	provider := dm.services[e.OriginatingService()]
	if provider == nil {
		return
	}
	dm.offlinePass(provider)
}

// tryInject wires every interface of provider that consumer declares and
// does not yet have satisfied. First provider wins: a satisfied dependency
// ignores further providers until the current one goes offline. Both the
// provider-side and consumer-side filters must match.
func (dm *Manager) tryInject(consumer, provider *lifecycleManager) bool {
	if provider.state != StateActive || consumer.state == StateUninstalled {
		return false
	}
	interested := false
	for _, adv := range provider.interfaces {
		dep, ok := consumer.deps[adv.id]
		if !ok || dep.Satisfied {
			continue
		}
		if f := provider.properties.GetFilter(property.KeyFilter); !f.Matches(consumer) {
			continue
		}
		if f := consumer.properties.GetFilter(property.KeyFilter); !f.Matches(provider) {
			continue
		}
		val, castOK := adv.cast(provider.instance)
		if !castOK {
			continue
		}
		consumer.registry.registrations[adv.id].inject(val, provider.info())
		dep.Satisfied = true
		dep.ProviderID = provider.serviceID
		consumer.injectedFrom[provider.serviceID] = append(consumer.injectedFrom[provider.serviceID], adv.id)
		interested = true
		dm.logger.Debug("injected dependency",
			"consumer", consumer.implName, "consumerId", consumer.serviceID,
			"provider", provider.implName, "providerId", provider.serviceID,
			"interface", adv.name)
	}
	return interested
}

// offlinePass uninjects provider from every consumer, attempts to re-wire
// each lost dependency from another ACTIVE provider, and stops ACTIVE
// consumers left with an unsatisfied required dependency.
func (dm *Manager) offlinePass(provider *lifecycleManager) {
	snapshot := make([]uint64, len(dm.order))
	copy(snapshot, dm.order)
	for _, id := range snapshot {
		lm := dm.services[id]
		if lm == nil || lm == provider {
			continue
		}
		ifaces := lm.injectedFrom[provider.serviceID]
		if len(ifaces) == 0 {
			continue
		}
		for _, ifaceID := range ifaces {
			dep := lm.deps[ifaceID]
			adv, ok := provider.exposes(ifaceID)
			if !ok || dep == nil {
				continue
			}
			val, _ := adv.cast(provider.instance)
			lm.registry.registrations[ifaceID].uninject(val, provider.info())
			dep.Satisfied = false
			dep.ProviderID = 0
			dm.logger.Debug("uninjected dependency",
				"consumer", lm.implName, "consumerId", lm.serviceID,
				"provider", provider.implName, "providerId", provider.serviceID,
				"interface", adv.name)
		}
		delete(lm.injectedFrom, provider.serviceID)

		// Another ACTIVE provider may take over now that the slot freed.
		for _, otherID := range snapshot {
			other := dm.services[otherID]
			if other == nil || other == provider || other == lm {
				continue
			}
			dm.tryInject(lm, other)
		}

		if lm.state == StateActive && !lm.allRequiredSatisfied() {
			lm.restartOnDependency = true
			dm.logger.Debug("required dependency lost, stopping service",
				"service", lm.implName, "id", lm.serviceID)
			dm.pushInternal(lm.serviceID, lm.priority, &event.StopService{TargetService: lm.serviceID})
		}
	}
}

func (dm *Manager) handleStopService(e *event.StopService) {
	lm := dm.services[e.TargetService]
	if lm == nil || lm.state != StateActive {
		return
	}
	dm.stopService(lm)
}

// stopService runs the stop sequence: outstanding generators owned by the
// service are cancelled at their next suspension point, the service is
// uninjected from its consumers, then the user Stop callback runs.
func (dm *Manager) stopService(lm *lifecycleManager) {
	lm.state = StateStopping
	dm.recordState(lm)

	dm.cancelGeneratorsOwnedBy(lm.serviceID)
	dm.offlinePass(lm)

	sb := dm.safeStop(lm)
	if sb == Succeeded {
		lm.state = StateInstalled
		dm.recordState(lm)
		dm.logger.Debug("stopped service", "service", lm.implName, "id", lm.serviceID)
	} else {
		lm.state = StateUnknown
		dm.recordState(lm)
		dm.logger.Error("service stop failed", "service", lm.implName, "id", lm.serviceID)
	}
	dm.pushInternal(lm.serviceID, lm.priority, &event.DependencyOffline{})
}

func (dm *Manager) handleRemoveService(e *event.RemoveService) {
	lm := dm.services[e.TargetService]
	if lm == nil {
		return
	}
	if lm.state == StateActive {
		dm.stopService(lm)
	}
	dm.uninstall(lm)
}

// uninstall removes a service from the registry. Its id is never reused.
// Trackers receive one DependencyUndoRequest per declared dependency so
// providers created on demand can be torn down.
func (dm *Manager) uninstall(lm *lifecycleManager) {
	// Injected peer references must not outlive the service: uninject
	// anything still wired before the record goes away.
	for providerID, ifaces := range lm.injectedFrom {
		provider := dm.services[providerID]
		if provider == nil {
			continue
		}
		for _, ifaceID := range ifaces {
			adv, ok := provider.exposes(ifaceID)
			if !ok {
				continue
			}
			val, _ := adv.cast(provider.instance)
			lm.registry.registrations[ifaceID].uninject(val, provider.info())
			if dep := lm.deps[ifaceID]; dep != nil {
				dep.Satisfied = false
				dep.ProviderID = 0
			}
		}
	}
	lm.injectedFrom = make(map[uint64][]uint64)

	for _, depID := range lm.depOrder {
		r := lm.registry.registrations[depID]
		dm.pushInternal(lm.serviceID, lm.priority, &event.DependencyUndoRequest{
			Interface:  r.iface,
			Required:   r.required,
			Properties: r.props,
		})
	}
	lm.state = StateUninstalled
	dm.recordState(lm)
	delete(dm.services, lm.serviceID)
	for i, id := range dm.order {
		if id == lm.serviceID {
			dm.order = append(dm.order[:i], dm.order[i+1:]...)
			break
		}
	}
	dm.logger.Debug("removed service", "service", lm.implName, "id", lm.serviceID)
}

func (dm *Manager) handleDependencyRequest(e *event.DependencyRequest) {
	for _, entry := range dm.trackers[e.Interface] {
		if entry.onRequest != nil {
			entry.onRequest(e)
		}
	}
}

func (dm *Manager) handleDependencyUndoRequest(e *event.DependencyUndoRequest) {
	for _, entry := range dm.trackers[e.Interface] {
		if entry.onUndo != nil {
			entry.onUndo(e)
		}
	}
}

// cancelGeneratorsOwnedBy marks the suspended generators owned by a service
// for unwinding at their next resumption.
func (dm *Manager) cancelGeneratorsOwnedBy(serviceID uint64) {
	for _, g := range dm.generators {
		if g.Owner() == serviceID {
			g.CancelAtNextSuspension()
		}
	}
}

func (dm *Manager) fireError(origin uint64, ev event.Event, err error) {
	key := callbackKey{owner: origin, eventType: ev.Type()}
	if cb, ok := dm.errorCallbacks[key]; ok {
		cb(ev, err)
	}
}

func (dm *Manager) safeStart(lm *lifecycleManager) (sb StartBehaviour) {
	defer func() {
		if r := recover(); r != nil {
			dm.logger.Error("panic in service start",
				"service", lm.implName, "id", lm.serviceID, "panic", r)
			sb = FailedDoNotRetry
		}
	}()
	return lm.instance.Start()
}

func (dm *Manager) safeStop(lm *lifecycleManager) (sb StartBehaviour) {
	defer func() {
		if r := recover(); r != nil {
			dm.logger.Error("panic in service stop",
				"service", lm.implName, "id", lm.serviceID, "panic", r)
			sb = FailedDoNotRetry
		}
	}()
	return lm.instance.Stop()
}

func (dm *Manager) recordState(lm *lifecycleManager) {
	if dm.metrics != nil {
		dm.metrics.CoreMetrics().RecordServiceState(lm.implName, lm.state.String())
	}
}

func implementationName(instance Service) string {
	return fmt.Sprintf("%T", instance)
}

func removeEntry[T comparable](entries []T, target T) []T {
	for i, e := range entries {
		if e == target {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}
