package logging

import (
	"log/slog"

	"github.com/c360/servicekit/event"
	"github.com/c360/servicekit/property"
	"github.com/c360/servicekit/service"
)

// Admin is the logger factory service: it tracks dependency requests for the
// Logger interface and materializes one logger service per requester, scoped
// with a filter so the injection machinery wires it only to that requester.
type Admin struct {
	dm      *service.Manager
	base    *slog.Logger
	factory service.Factory

	tracker *service.Registration
	// loggers maps requesting service id to the created logger service id.
	loggers map[uint64]uint64
	ownID   uint64
}

// NewAdminFactory returns the factory for the Admin service. Loggers it
// creates log through base, or slog.Default when nil.
func NewAdminFactory(base *slog.Logger) service.Factory {
	return func(_ *service.DependencyRegister, _ property.Properties, dm *service.Manager) (service.Service, error) {
		return &Admin{
			dm:      dm,
			base:    base,
			factory: NewSlogLoggerFactory(base),
			loggers: make(map[uint64]uint64),
		}, nil
	}
}

// CreateAdmin registers the Admin service on the manager and returns its
// service id.
func CreateAdmin(dm *service.Manager, base *slog.Logger) (uint64, error) {
	return dm.CreateService(NewAdminFactory(base), nil)
}

// InjectServiceID implements service.ServiceIDAware.
func (a *Admin) InjectServiceID(id uint64) { a.ownID = id }

// Start registers the Logger dependency tracker. Existing unfulfilled
// Logger dependencies are replayed to the tracker before Start returns.
func (a *Admin) Start() service.StartBehaviour {
	a.tracker = service.RegisterTracker[Logger](a.dm, a.ownID, a.handleRequest, a.handleUndo)
	return service.Succeeded
}

// Stop releases the tracker. Loggers already created are left registered;
// undo requests that arrive after Stop no longer reach the Admin, so those
// loggers are not removed by it.
func (a *Admin) Stop() service.StartBehaviour {
	a.tracker.Release()
	return service.Succeeded
}

func (a *Admin) handleRequest(req *event.DependencyRequest) {
	requester := req.OriginatingService()
	if _, exists := a.loggers[requester]; exists {
		return
	}

	level := LevelFromProperties(req.Properties, LevelInfo)
	props := property.Properties{
		property.KeyLogLevel:        LevelProperty(level),
		property.KeyTargetServiceID: property.Uint(requester),
		property.KeyFilter:          property.FilterValue(property.ByServiceID(requester)),
	}

	id, err := a.dm.CreateServicePrioritised(a.factory, props, req.Priority(), service.Exposes[Logger]())
	if err != nil {
		slog.Default().Error("logger admin failed to create logger",
			"requester", requester, "error", err)
		return
	}
	a.loggers[requester] = id
}

func (a *Admin) handleUndo(req *event.DependencyUndoRequest) {
	requester := req.OriginatingService()
	id, exists := a.loggers[requester]
	if !exists {
		return
	}
	delete(a.loggers, requester)
	a.dm.RemoveService(a.ownID, id)
}
