package realtime

// Registry maps user ids to their live connections. It is owned by the Hub
// goroutine and is not safe for concurrent use.
type Registry struct {
	users map[string]map[string]*Client
	conns map[string]*Client
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]map[string]*Client),
		conns: make(map[string]*Client),
	}
}

// Register adds c under its user. Registering the same connection again is a
// no-op. It reports whether c is the user's first live connection.
func (r *Registry) Register(c *Client) (first bool) {
	if _, ok := r.conns[c.id]; ok {
		return false
	}

	set, ok := r.users[c.identity.ID]
	if !ok {
		set = make(map[string]*Client)
		r.users[c.identity.ID] = set
	}
	set[c.id] = c
	r.conns[c.id] = c

	return !ok
}

// Unregister removes c. Removing an unknown connection, or a stale Client
// whose id has been taken over, is a no-op. removed reports whether c was
// registered; last reports whether it was the user's final connection.
func (r *Registry) Unregister(c *Client) (removed, last bool) {
	if current, ok := r.conns[c.id]; !ok || current != c {
		return false, false
	}
	delete(r.conns, c.id)

	set := r.users[c.identity.ID]
	delete(set, c.id)
	if len(set) == 0 {
		delete(r.users, c.identity.ID)
		return true, true
	}
	return true, false
}

// Get returns the connection with id.
func (r *Registry) Get(id string) (*Client, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Connections returns the live connections of userID.
func (r *Registry) Connections(userID string) []*Client {
	set := r.users[userID]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// All returns every live connection.
func (r *Registry) All() []*Client {
	out := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	return len(r.users[userID]) > 0
}

// ConnectionCount returns the number of live connections of userID.
func (r *Registry) ConnectionCount(userID string) int {
	return len(r.users[userID])
}

// Len returns the number of live connections.
func (r *Registry) Len() int { return len(r.conns) }

// UserCount returns the number of users with at least one connection.
func (r *Registry) UserCount() int { return len(r.users) }
