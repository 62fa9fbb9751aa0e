package service

import (
	"sync"

	"github.com/c360/servicekit/property"
)

// recorder captures observable callbacks in order, the way the lifecycle
// tests assert ordering guarantees.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

// pingIface is the interface mock providers expose in tests.
type pingIface interface {
	Tag() string
}

// mockService is a configurable service used across the manager tests.
type mockService struct {
	name string
	rec  *recorder
	dm   *Manager
	id   uint64

	startResult StartBehaviour
	stopResult  StartBehaviour
	onStart     func(m *mockService)
	onStop      func(m *mockService)
}

func (m *mockService) InjectServiceID(id uint64) { m.id = id }

func (m *mockService) Tag() string { return m.name }

func (m *mockService) Start() StartBehaviour {
	m.rec.add(m.name + ".start")
	if m.onStart != nil {
		m.onStart(m)
	}
	return m.startResult
}

func (m *mockService) Stop() StartBehaviour {
	m.rec.add(m.name + ".stop")
	if m.onStop != nil {
		m.onStop(m)
	}
	return m.stopResult
}

type mockOption func(*mockService)

func withStartResult(sb StartBehaviour) mockOption {
	return func(m *mockService) { m.startResult = sb }
}

func withStopResult(sb StartBehaviour) mockOption {
	return func(m *mockService) { m.stopResult = sb }
}

func withOnStart(fn func(*mockService)) mockOption {
	return func(m *mockService) { m.onStart = fn }
}

func withOnStop(fn func(*mockService)) mockOption {
	return func(m *mockService) { m.onStop = fn }
}

func mockFactory(name string, rec *recorder, opts ...mockOption) Factory {
	return func(_ *DependencyRegister, _ property.Properties, dm *Manager) (Service, error) {
		m := &mockService{name: name, rec: rec, dm: dm}
		for _, opt := range opts {
			opt(m)
		}
		return m, nil
	}
}

// consumerService declares a dependency on pingIface and records injection.
type consumerService struct {
	mockService
	required bool
	peer     pingIface
}

func consumerFactory(name string, rec *recorder, required bool, opts ...mockOption) Factory {
	return func(reg *DependencyRegister, _ property.Properties, dm *Manager) (Service, error) {
		c := &consumerService{
			mockService: mockService{name: name, rec: rec, dm: dm},
			required:    required,
		}
		for _, opt := range opts {
			opt(&c.mockService)
		}
		RegisterDependency[pingIface](reg, required,
			func(v pingIface, _ Info) {
				rec.add(name + ".inject:" + v.Tag())
				c.peer = v
			},
			func(v pingIface, _ Info) {
				rec.add(name + ".uninject:" + v.Tag())
				c.peer = nil
			})
		return c, nil
	}
}
