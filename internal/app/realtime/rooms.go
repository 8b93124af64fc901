package realtime

// Rooms groups connections by room name. A room exists while it has members;
// the last Leave removes it. Each Client also records its own memberships so
// they can be cleared when the connection closes. Owned by the Hub goroutine.
type Rooms struct {
	members map[string]map[string]*Client
}

// NewRooms returns an empty Rooms.
func NewRooms() *Rooms {
	return &Rooms{members: make(map[string]map[string]*Client)}
}

// Join adds c to room and reports whether it was not already a member.
func (r *Rooms) Join(room string, c *Client) bool {
	set, ok := r.members[room]
	if !ok {
		set = make(map[string]*Client)
		r.members[room] = set
	}
	if _, ok := set[c.id]; ok {
		return false
	}
	set[c.id] = c
	c.rooms[room] = struct{}{}
	return true
}

// Leave removes c from room and reports whether it was a member.
func (r *Rooms) Leave(room string, c *Client) bool {
	set, ok := r.members[room]
	if !ok {
		return false
	}
	if _, ok := set[c.id]; !ok {
		return false
	}
	delete(set, c.id)
	delete(c.rooms, room)
	if len(set) == 0 {
		delete(r.members, room)
	}
	return true
}

// LeaveAll removes c from every room it joined.
func (r *Rooms) LeaveAll(c *Client) {
	for room := range c.rooms {
		r.Leave(room, c)
	}
}

// isMember reports whether c is in room.
func (r *Rooms) isMember(room string, c *Client) bool {
	_, ok := r.members[room][c.id]
	return ok
}

// Members returns the connections in room.
func (r *Rooms) Members(room string) []*Client {
	set := r.members[room]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Len returns the number of non-empty rooms.
func (r *Rooms) Len() int { return len(r.members) }
