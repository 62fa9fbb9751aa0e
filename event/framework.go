package event

import "github.com/c360/servicekit/property"

// StartService instructs the loop to start the target service. Dropped when
// the target is not in the INSTALLED state.
type StartService struct {
	Base
	TargetService uint64
}

// Type implements Event.
func (*StartService) Type() uint64 { return TypeOf[StartService]() }

// StopService instructs the loop to stop the target service. Dropped when
// the target is not ACTIVE.
type StopService struct {
	Base
	TargetService uint64
}

// Type implements Event.
func (*StopService) Type() uint64 { return TypeOf[StopService]() }

// RemoveService instructs the loop to stop (if needed) and unregister the
// target service. The target's id is never reused afterwards.
type RemoveService struct {
	Base
	TargetService uint64
}

// Type implements Event.
func (*RemoveService) Type() uint64 { return TypeOf[RemoveService]() }

// DependencyRequest announces that the originating service declared a
// dependency on an interface. Trackers for that interface may materialize a
// provider in response.
type DependencyRequest struct {
	Base
	Interface  uint64
	Required   bool
	Properties property.Properties
}

// Type implements Event.
func (*DependencyRequest) Type() uint64 { return TypeOf[DependencyRequest]() }

// DependencyUndoRequest announces that the originating service's declared
// dependency no longer needs fulfilment, typically because the service is
// being removed. Trackers tear down providers they created on demand.
type DependencyUndoRequest struct {
	Base
	Interface  uint64
	Required   bool
	Properties property.Properties
}

// Type implements Event.
func (*DependencyUndoRequest) Type() uint64 { return TypeOf[DependencyUndoRequest]() }

// DependencyOnline announces that the originating service became ACTIVE and
// its exposed interfaces are available for injection.
type DependencyOnline struct {
	Base
}

// Type implements Event.
func (*DependencyOnline) Type() uint64 { return TypeOf[DependencyOnline]() }

// DependencyOffline announces that the originating service left the ACTIVE
// state and its exposed interfaces must be uninjected from consumers.
type DependencyOffline struct {
	Base
}

// Type implements Event.
func (*DependencyOffline) Type() uint64 { return TypeOf[DependencyOffline]() }

// RunFunction carries a closure to execute on the loop thread.
type RunFunction struct {
	Base
	Fn func()
}

// Type implements Event.
func (*RunFunction) Type() uint64 { return TypeOf[RunFunction]() }

// Continuable resumes a suspended generator. The loop schedules one whenever
// an awaited condition is satisfied; dispatching it resumes the generator on
// the loop thread.
type Continuable struct {
	Base
	GeneratorID uint64
}

// Type implements Event.
func (*Continuable) Type() uint64 { return TypeOf[Continuable]() }

// Quit requests an orderly shutdown of the owning manager's loop.
type Quit struct {
	Base
}

// Type implements Event.
func (*Quit) Type() uint64 { return TypeOf[Quit]() }
