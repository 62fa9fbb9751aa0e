package service

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/c360/servicekit/event"
)

// CommunicationChannel federates several managers, each pinned to its own
// thread, into one logical system. It holds non-owning references to the
// registered managers and forwards broadcast events to all peers except the
// sender. Broadcast is fire-and-forget; there is no completion back-channel
// and faults never propagate across peers.
type CommunicationChannel struct {
	mu       sync.RWMutex
	managers map[uint64]*Manager
}

// NewCommunicationChannel creates an empty channel.
func NewCommunicationChannel() *CommunicationChannel {
	return &CommunicationChannel{managers: make(map[uint64]*Manager)}
}

// Register adds a manager to the peer table. Idempotent per manager id.
// Register before starting the manager's loop.
func (c *CommunicationChannel) Register(dm *Manager) {
	if dm == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.managers[dm.id]; exists {
		return
	}
	c.managers[dm.id] = dm
	dm.channel = c
}

// Unregister removes a manager. Broadcasts already in flight may still
// deliver to it.
func (c *CommunicationChannel) Unregister(dm *Manager) {
	if dm == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.managers[dm.id]; !exists {
		return
	}
	delete(c.managers, dm.id)
	dm.channel = nil
}

// Managers returns the number of registered peers.
func (c *CommunicationChannel) Managers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.managers)
}

// Broadcast enqueues a fresh event from newEvent on every peer except the
// sender, preserving the origin id. It returns the number of peers pushed
// to. Peers that already shut down drop the push.
func (c *CommunicationChannel) Broadcast(sender *Manager, origin uint64, newEvent func() event.Event) int {
	c.mu.RLock()
	peers := peersExcept(c.managers, sender)
	c.mu.RUnlock()

	for _, peer := range peers {
		peer.PushEvent(origin, newEvent())
	}
	return len(peers)
}

// BroadcastQuit broadcasts a Quit event, the paradigmatic broadcast.
func (c *CommunicationChannel) BroadcastQuit(sender *Manager, origin uint64) int {
	return c.Broadcast(sender, origin, func() event.Event { return &event.Quit{} })
}

func peersExcept(managers map[uint64]*Manager, sender *Manager) []*Manager {
	peers := make([]*Manager, 0, len(managers))
	for _, m := range managers {
		if sender != nil && m.id == sender.id {
			continue
		}
		peers = append(peers, m)
	}
	return peers
}

// RunAll starts every manager's loop on its own goroutine and blocks until
// all of them return. Each loop pins itself to an OS thread.
func RunAll(managers ...*Manager) error {
	var g errgroup.Group
	for _, dm := range managers {
		g.Go(dm.Start)
	}
	return g.Wait()
}
