package service

import (
	"github.com/c360/servicekit/property"

	"github.com/google/uuid"
)

// State represents the lifecycle state of a registered service.
type State int

// Lifecycle states. Transitions happen only on the owning manager's thread,
// driven by framework events.
const (
	// StateInstalled means the service is registered but not running.
	StateInstalled State = iota
	// StateStarting means the user Start callback is executing.
	StateStarting
	// StateInjecting means Start succeeded and the service waits for its
	// required dependencies to be satisfied.
	StateInjecting
	// StateActive means the service is running with all required
	// dependencies satisfied.
	StateActive
	// StateStopping means the user Stop callback is executing.
	StateStopping
	// StateUnknown means Stop failed; terminal except for teardown.
	StateUnknown
	// StateUninstalled means the service was removed. Its id is never
	// reused.
	StateUninstalled
)

// String returns a string representation of the lifecycle state.
func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateStarting:
		return "starting"
	case StateInjecting:
		return "injecting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateUnknown:
		return "unknown"
	case StateUninstalled:
		return "uninstalled"
	default:
		return "invalid"
	}
}

// lifecycleManager is the per-service runtime record. The manager exclusively
// owns it; the record exclusively owns the service instance. Peer references
// handed out during injection are non-owning and valid only between the
// matching inject/uninject callbacks.
type lifecycleManager struct {
	serviceID  uint64
	guid       uuid.UUID
	implName   string
	priority   uint64
	interfaces []Advertised
	registry   *DependencyRegister
	deps       map[uint64]*Dependency
	depOrder   []uint64
	// injectedFrom maps provider service id to the interface ids wired
	// from that provider.
	injectedFrom map[uint64][]uint64
	instance     Service
	state        State
	properties   property.Properties
	// startAttempts counts Start invocations for the bounded-retry policy.
	startAttempts int
	// restartOnDependency marks a service stopped by dependency loss, to
	// be restarted when a provider returns.
	restartOnDependency bool
}

func newLifecycleManager(instance Service, reg *DependencyRegister, props property.Properties, implName string, priority uint64, interfaces []Advertised) *lifecycleManager {
	lm := &lifecycleManager{
		serviceID:    nextServiceID(),
		guid:         uuid.New(),
		implName:     implName,
		priority:     priority,
		interfaces:   interfaces,
		registry:     reg,
		deps:         make(map[uint64]*Dependency),
		injectedFrom: make(map[uint64][]uint64),
		instance:     instance,
		state:        StateInstalled,
		properties:   props,
	}
	for _, id := range reg.order {
		r := reg.registrations[id]
		lm.deps[id] = &Dependency{
			Interface: r.iface,
			Name:      r.name,
			Required:  r.required,
		}
		lm.depOrder = append(lm.depOrder, id)
	}
	return lm
}

// ServiceID implements property.Subject.
func (lm *lifecycleManager) ServiceID() uint64 { return lm.serviceID }

// Property implements property.Subject.
func (lm *lifecycleManager) Property(key string) (property.Value, bool) {
	v, ok := lm.properties[key]
	return v, ok
}

func (lm *lifecycleManager) info() Info {
	return Info{ServiceID: lm.serviceID, GUID: lm.guid, Name: lm.implName}
}

// exposes reports whether the service advertises the interface.
func (lm *lifecycleManager) exposes(ifaceID uint64) (Advertised, bool) {
	for _, adv := range lm.interfaces {
		if adv.id == ifaceID {
			return adv, true
		}
	}
	return Advertised{}, false
}

// allRequiredSatisfied reports whether every required dependency is wired.
func (lm *lifecycleManager) allRequiredSatisfied() bool {
	for _, dep := range lm.deps {
		if dep.Required && !dep.Satisfied {
			return false
		}
	}
	return true
}

// dependencies returns a snapshot of the declared dependencies in
// declaration order.
func (lm *lifecycleManager) dependencies() []Dependency {
	out := make([]Dependency, 0, len(lm.depOrder))
	for _, id := range lm.depOrder {
		out = append(out, *lm.deps[id])
	}
	return out
}
