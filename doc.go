// Package servicekit is an in-process service container and event loop.
//
// Applications declare components ("services") that expose typed interfaces
// and declare typed dependencies on other interfaces. The container
// constructs them, injects satisfied dependencies, drives their lifecycle,
// and mediates all inter-service communication as prioritized asynchronous
// events.
//
// # Architecture
//
// The runtime is built from a small set of packages:
//
//   - event: the immutable event model and the framework event types
//   - queue: the thread-safe priority queue each loop drains
//   - async: the resumable generator protocol handlers suspend with
//   - property: the dynamically-typed property map and injection filters
//   - service: the dependency manager, lifecycle machine and loop
//   - logging: the logger contract, slog backend and logger tracker
//   - metric: Prometheus metrics for the loop and lifecycle
//   - config: YAML container configuration with schema validation
//
// Each service.Manager is pinned to a single OS thread and runs a
// cooperative loop: drain one event, dispatch, repeat. Handlers must not
// block; they suspend by awaiting inside an async generator and are resumed
// by the loop with continuation events. The only supported cross-thread
// operations are pushing events onto another manager's queue and
// broadcasting through a service.CommunicationChannel.
//
// # A minimal program
//
//	dm := service.NewManager()
//	_, err := dm.CreateService(myFactory, property.Properties{
//		property.KeyPriority: property.Uint(100),
//	}, service.Exposes[MyInterface]())
//	if err != nil {
//		log.Fatal(err)
//	}
//	dm.PushEvent(0, &event.Quit{}) // or let a service push it
//	if err := dm.Start(); err != nil {
//		log.Fatal(err)
//	}
//
// Start returns once a Quit event drains: the queue is processed to
// completion, ACTIVE services stop in reverse registration order, and every
// service is uninstalled.
package servicekit
