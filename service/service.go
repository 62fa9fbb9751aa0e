// Package service implements the dependency manager: the per-thread service
// registry, dependency injection machinery, lifecycle state machine, and the
// prioritized event loop that drives them. Services declare typed interfaces
// and typed dependencies; the manager constructs them, wires satisfied
// dependencies, and mediates all inter-service communication as events.
package service

import (
	"reflect"
	"sync/atomic"

	"github.com/c360/servicekit/event"
	"github.com/c360/servicekit/property"

	"github.com/google/uuid"
)

// StartBehaviour is the three-valued outcome of a service's Start and Stop
// callbacks.
type StartBehaviour int

// Start/stop outcomes.
const (
	// Succeeded means the transition completed.
	Succeeded StartBehaviour = iota
	// FailedAndRetry means the transition failed and may be retried. A
	// failed Start is retried by requeueing its StartService event; a
	// failed Stop is not retried and is handled like FailedDoNotRetry.
	FailedAndRetry
	// FailedDoNotRetry means the transition failed permanently.
	FailedDoNotRetry
)

// String returns a string representation of the behaviour.
func (b StartBehaviour) String() string {
	switch b {
	case Succeeded:
		return "succeeded"
	case FailedAndRetry:
		return "failed-and-retry"
	case FailedDoNotRetry:
		return "failed-do-not-retry"
	default:
		return "unknown"
	}
}

// Service is the lifecycle contract every container-managed instance
// provides. Construction happens through a Factory; dependency injection
// happens through the callbacks registered on the DependencyRegister the
// factory receives.
type Service interface {
	Start() StartBehaviour
	Stop() StartBehaviour
}

// Factory constructs a service instance. The factory declares dependencies
// on the register, keeps the properties it is handed, and may stash the
// manager for pushing events later. Factories must not do I/O; a factory
// error aborts registration and no events fire.
type Factory func(reg *DependencyRegister, props property.Properties, dm *Manager) (Service, error)

// ServiceIDAware is an optional interface: a service implementing it learns
// its own id immediately after registration, before any events fire.
type ServiceIDAware interface {
	InjectServiceID(id uint64)
}

// Info identifies a provider service to inject/uninject callbacks.
type Info struct {
	ServiceID uint64
	GUID      uuid.UUID
	Name      string
}

// serviceIDCounter issues process-wide unique service ids. Zero is the
// "no service" sentinel and is never issued.
var serviceIDCounter atomic.Uint64

func nextServiceID() uint64 { return serviceIDCounter.Add(1) }

// InterfaceID returns the stable 64-bit id of an interface type, derived
// from its fully qualified name.
func InterfaceID[I any]() uint64 {
	return event.TypeID(interfaceName[I]())
}

func interfaceName[I any]() string {
	t := reflect.TypeOf((*I)(nil)).Elem()
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// Advertised binds an exposed interface id to the accessor that extracts the
// interface value from a service instance. Build one per exposed interface
// with Exposes.
type Advertised struct {
	id   uint64
	name string
	cast func(instance any) (any, bool)
}

// ID returns the advertised interface id.
func (a Advertised) ID() uint64 { return a.id }

// Name returns the advertised interface's qualified name.
func (a Advertised) Name() string { return a.name }

// Exposes declares that a service implements interface I. The returned
// Advertised is passed to CreateService; injection uses it to hand consumers
// the interface value rather than the concrete type.
func Exposes[I any]() Advertised {
	return Advertised{
		id:   InterfaceID[I](),
		name: interfaceName[I](),
		cast: func(instance any) (any, bool) {
			v, ok := instance.(I)
			return v, ok
		},
	}
}

// Dependency describes one declared dependency of a service.
type Dependency struct {
	Interface uint64
	Name      string
	Required  bool
	Satisfied bool
	// ProviderID is the service currently satisfying the dependency, or 0.
	ProviderID uint64
}

type dependencyRegistration struct {
	iface    uint64
	name     string
	required bool
	props    property.Properties
	inject   func(instance any, provider Info)
	uninject func(instance any, provider Info)
}

// DependencyRegister collects a service's declared dependencies during
// construction. A service declares each dependency at most once; later
// declarations for the same interface overwrite earlier ones.
type DependencyRegister struct {
	registrations map[uint64]*dependencyRegistration
	order         []uint64
}

// NewDependencyRegister creates an empty register. The manager hands one to
// every factory; tests may build their own.
func NewDependencyRegister() *DependencyRegister {
	return &DependencyRegister{registrations: make(map[uint64]*dependencyRegistration)}
}

// RegisterDependency declares a dependency on interface I with inject and
// uninject callbacks. The callbacks run on the owning manager's thread; the
// injected reference is valid exactly between the two calls and must not be
// retained past uninject.
func RegisterDependency[I any](reg *DependencyRegister, required bool, inject func(I, Info), uninject func(I, Info)) {
	RegisterDependencyWithProperties[I](reg, required, nil, inject, uninject)
}

// RegisterDependencyWithProperties is RegisterDependency with request
// properties threaded to dependency trackers (e.g. a requested log level).
func RegisterDependencyWithProperties[I any](reg *DependencyRegister, required bool, props property.Properties, inject func(I, Info), uninject func(I, Info)) {
	id := InterfaceID[I]()
	if _, exists := reg.registrations[id]; !exists {
		reg.order = append(reg.order, id)
	}
	reg.registrations[id] = &dependencyRegistration{
		iface:    id,
		name:     interfaceName[I](),
		required: required,
		props:    props,
		inject: func(instance any, provider Info) {
			if inject == nil {
				return
			}
			if v, ok := instance.(I); ok {
				inject(v, provider)
			}
		},
		uninject: func(instance any, provider Info) {
			if uninject == nil {
				return
			}
			if v, ok := instance.(I); ok {
				uninject(v, provider)
			}
		},
	}
}

// Declared returns the declared dependencies in declaration order.
func (r *DependencyRegister) Declared() []Dependency {
	out := make([]Dependency, 0, len(r.order))
	for _, id := range r.order {
		reg := r.registrations[id]
		out = append(out, Dependency{
			Interface: reg.iface,
			Name:      reg.name,
			Required:  reg.required,
		})
	}
	return out
}
