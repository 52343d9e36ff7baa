package chathub

import (
	"context"
	"log"
	"sync"
)

// ManagerService keeps track of every live connection so they can be
// counted and shut down together.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]map[Client]struct{} // user id -> connections

	RegisterCh   chan Client
	UnregisterCh chan Client

	done chan struct{}
}

// NewManagerService creates an idle hub. Call Run to start it.
func NewManagerService() *ManagerService {
	return &ManagerService{
		clients:      make(map[string]map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		done:         make(chan struct{}),
	}
}

// Run is the hub loop. When ctx ends every registered client is closed.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case client := <-m.RegisterCh:
			m.add(client)
		case client := <-m.UnregisterCh:
			m.remove(client)
		case <-ctx.Done():
			m.closeAll()
			return
		}
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} { return m.done }

// Register hands client to the hub. Returns false if the hub is no longer running.
func (m *ManagerService) Register(client Client) bool {
	select {
	case m.RegisterCh <- client:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes client from the hub. A stopped hub ignores the call.
func (m *ManagerService) Unregister(client Client) {
	select {
	case m.UnregisterCh <- client:
	case <-m.done:
	}
}

// ClientCount returns the number of live connections of userID.
func (m *ManagerService) ClientCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

// Total returns the number of live connections.
func (m *ManagerService) Total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, conns := range m.clients {
		n += len(conns)
	}
	return n
}

func (m *ManagerService) add(client Client) {
	m.mu.Lock()
	conns, ok := m.clients[client.GetUserID()]
	if !ok {
		conns = make(map[Client]struct{})
		m.clients[client.GetUserID()] = conns
	}
	conns[client] = struct{}{}
	m.mu.Unlock()
	log.Printf("INFO: Client %s connected (room %q)", client.GetUserID(), client.GetRoomID())
}

func (m *ManagerService) remove(client Client) {
	m.mu.Lock()
	conns, ok := m.clients[client.GetUserID()]
	if !ok {
		m.mu.Unlock()
		return
	}
	if _, ok := conns[client]; !ok {
		m.mu.Unlock()
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(m.clients, client.GetUserID())
	}
	m.mu.Unlock()

	client.Close()
	log.Printf("INFO: Client %s disconnected", client.GetUserID())
}

func (m *ManagerService) closeAll() {
	m.mu.Lock()
	all := m.clients
	m.clients = make(map[string]map[Client]struct{})
	m.mu.Unlock()

	n := 0
	for _, conns := range all {
		for client := range conns {
			client.Close()
			n++
		}
	}
	log.Printf("INFO: Hub stopped, closed %d connections", n)
}
