package realtime

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"mentormatch/internal/app/user"
)

func bareClient(connID, userID string) *Client {
	return &Client{
		id:       connID,
		identity: user.Identity{ID: userID},
		send:     make(chan []byte, sendQueueSize),
		rooms:    make(map[string]struct{}),
	}
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := bareClient("c1", "u1")

	if first := r.Register(c); !first {
		t.Fatal("first Register() should report the user's first connection")
	}
	if first := r.Register(c); first {
		t.Fatal("repeated Register() must not report a new user")
	}

	if r.Len() != 1 || r.UserCount() != 1 || r.ConnectionCount("u1") != 1 {
		t.Fatalf("registry after double register: conns=%d users=%d", r.Len(), r.UserCount())
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	a := bareClient("a", "u1")
	b := bareClient("b", "u1")
	r.Register(a)
	r.Register(b)

	if removed, last := r.Unregister(a); !removed || last {
		t.Fatalf("Unregister(a) = (%v, %v), want (true, false)", removed, last)
	}
	if !r.IsOnline("u1") {
		t.Fatal("u1 should stay online with one connection left")
	}
	if removed, last := r.Unregister(a); removed || last {
		t.Fatal("unregistering a missing connection must be a no-op")
	}
	if removed, last := r.Unregister(b); !removed || !last {
		t.Fatalf("Unregister(b) = (%v, %v), want (true, true)", removed, last)
	}
	if r.IsOnline("u1") || r.UserCount() != 0 {
		t.Fatal("user entry should be removed with its last connection")
	}
}

func TestRegistryIgnoresStaleClient(t *testing.T) {
	r := NewRegistry()
	current := bareClient("c1", "u1")
	stale := bareClient("c1", "u1")
	r.Register(current)

	if removed, _ := r.Unregister(stale); removed {
		t.Fatal("a different Client with the same id must not remove the live one")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

// Online iff the connection set is non-empty, and exactly one last-connection
// signal per 1→0 transition, over random register/unregister sequences.
func TestPresenceDerivationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3"}

	for run := 0; run < 50; run++ {
		r := NewRegistry()
		p := NewPresenceTracker()
		now := time.Unix(0, 0)

		clients := map[string]*Client{}
		for _, u := range users {
			for i := 0; i < 3; i++ {
				id := fmt.Sprintf("%s-%d", u, i)
				clients[id] = bareClient(id, u)
			}
		}
		ids := make([]string, 0, len(clients))
		for id := range clients {
			ids = append(ids, id)
		}

		live := map[string]map[string]bool{}
		offlineSignals := map[string]int{}
		transitions := map[string]int{}

		for step := 0; step < 200; step++ {
			c := clients[ids[rng.Intn(len(ids))]]
			u := c.identity.ID

			if rng.Intn(2) == 0 {
				if r.Register(c) {
					p.Online(c.identity, now)
				}
				if live[u] == nil {
					live[u] = map[string]bool{}
				}
				live[u][c.id] = true
				continue
			}

			before := len(live[u])
			removed, last := r.Unregister(c)
			if removed {
				delete(live[u], c.id)
			}
			if before == 1 && len(live[u]) == 0 {
				transitions[u]++
			}
			if last {
				offlineSignals[u]++
				p.Offline(u, now)
			}

			for _, uu := range users {
				_, online := p.get(uu)
				if online != (len(live[uu]) > 0) || r.IsOnline(uu) != online {
					t.Fatalf("run %d step %d: %s online=%v live=%d", run, step, uu, online, len(live[uu]))
				}
			}
		}

		for _, u := range users {
			if offlineSignals[u] != transitions[u] {
				t.Fatalf("run %d: %s got %d offline signals for %d transitions", run, u, offlineSignals[u], transitions[u])
			}
		}
	}
}

func TestRoomsMembership(t *testing.T) {
	rooms := NewRooms()
	a := bareClient("a", "u1")
	b := bareClient("b", "u2")

	if !rooms.Join("session:42", a) || rooms.Join("session:42", a) {
		t.Fatal("Join() should add once")
	}
	rooms.Join("session:42", b)
	rooms.Join("session:7", a)

	if rooms.Len() != 2 || len(rooms.Members("session:42")) != 2 {
		t.Fatalf("rooms=%d members=%d", rooms.Len(), len(rooms.Members("session:42")))
	}

	rooms.LeaveAll(a)
	if rooms.isMember("session:42", a) || len(a.rooms) != 0 {
		t.Fatal("LeaveAll() should clear every membership")
	}
	if rooms.Len() != 1 {
		t.Fatalf("empty session:7 room should be removed, rooms=%d", rooms.Len())
	}
	if rooms.Leave("session:7", a) {
		t.Fatal("leaving a removed room must report false")
	}
}

func TestActivityLogEvictsOldest(t *testing.T) {
	log := NewActivityLog(3)
	for i := 0; i < 5; i++ {
		log.Append(SessionActivity{SessionID: "42", Activity: Activity{Type: ActivityNote, Content: fmt.Sprint(i)}})
	}
	log.Append(SessionActivity{SessionID: "7", Activity: Activity{Type: ActivityCode}})

	got := log.History("42")
	if len(got) != 3 || got[0].Activity.Content != "2" || got[2].Activity.Content != "4" {
		t.Fatalf("History(42) = %+v", got)
	}

	got[0].Activity.Content = "mutated"
	if log.History("42")[0].Activity.Content != "2" {
		t.Fatal("History() must return a copy")
	}
	if log.Sessions() != 2 || len(log.History("missing")) != 0 {
		t.Fatal("unexpected session bookkeeping")
	}
}
