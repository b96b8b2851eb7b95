package relay

import "sync"

// ConnectionRegistry tracks which live connections exist for which task in
// this process. It is constructed once per process and injected into the
// relay; it never participates in delivery, which always flows through the
// bus subscription held by the connection's own handler.
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{}
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]map[string]struct{})}
}

func (r *ConnectionRegistry) Add(taskID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[taskID] == nil {
		r.conns[taskID] = make(map[string]struct{})
	}
	r.conns[taskID][connID] = struct{}{}
}

func (r *ConnectionRegistry) Remove(taskID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns[taskID], connID)
	if len(r.conns[taskID]) == 0 {
		delete(r.conns, taskID)
	}
}

// Connections returns the connection ids currently bound to a task.
func (r *ConnectionRegistry) Connections(taskID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.conns[taskID]))
	for id := range r.conns[taskID] {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the total number of live connections across all tasks.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
