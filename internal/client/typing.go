package client

import (
	"sort"
	"sync"
	"time"

	"mentormatch/internal/app/realtime"
)

// DefaultTypingTimeout is how long an indicator lives without renewal.
const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	userID  string
	target  string
	context realtime.TypingContext
}

type typingEntry struct {
	indicator realtime.TypingIndicator
	timer     *time.Timer
	seq       uint64
}

// TypingTracker keeps the live typing indicators. Each (user, target,
// context) key has one timer that is replaced on renewal and removes the key
// when it fires.
type TypingTracker struct {
	timeout  time.Duration
	onChange func([]realtime.TypingIndicator)

	mu      sync.Mutex
	seq     uint64
	entries map[typingKey]*typingEntry
}

// NewTypingTracker returns a tracker calling onChange with the remaining
// indicators whenever one expires. onChange may be nil.
func NewTypingTracker(timeout time.Duration, onChange func([]realtime.TypingIndicator)) *TypingTracker {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingTracker{
		timeout:  timeout,
		onChange: onChange,
		entries:  make(map[typingKey]*typingEntry),
	}
}

func keyOf(ind realtime.TypingIndicator) typingKey {
	target := ind.TargetID
	if ind.SessionID != "" {
		target = ind.SessionID.Room()
	}
	return typingKey{userID: ind.UserID, target: target, context: ind.Context}
}

// Apply records, renews or clears an indicator. It reports whether the set
// of keys changed, along with the indicators after the change; the caller
// publishes it. Only expiry goes through onChange.
func (t *TypingTracker) Apply(ind realtime.TypingIndicator) (active []realtime.TypingIndicator, changed bool) {
	key := keyOf(ind)

	t.mu.Lock()
	defer t.mu.Unlock()

	old, existed := t.entries[key]
	if existed {
		old.timer.Stop()
		delete(t.entries, key)
	}

	if !ind.IsTyping {
		if !existed {
			return nil, false
		}
		return t.snapshotLocked(), true
	}

	t.seq++
	seq := t.seq
	entry := &typingEntry{indicator: ind, seq: seq}
	entry.timer = time.AfterFunc(t.timeout, func() { t.expire(key, seq) })
	t.entries[key] = entry
	return t.snapshotLocked(), !existed
}

// expire removes key unless it was renewed after the timer was armed.
func (t *TypingTracker) expire(key typingKey, seq uint64) {
	t.mu.Lock()
	entry, ok := t.entries[key]
	if !ok || entry.seq != seq {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snapshot)
}

// Active returns the live indicators ordered by user, target and context.
func (t *TypingTracker) Active() []realtime.TypingIndicator {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Stop cancels every timer and forgets all indicators without notifying.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, key)
	}
}

func (t *TypingTracker) snapshotLocked() []realtime.TypingIndicator {
	keys := make([]typingKey, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.userID != b.userID {
			return a.userID < b.userID
		}
		if a.target != b.target {
			return a.target < b.target
		}
		return a.context < b.context
	})

	out := make([]realtime.TypingIndicator, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.entries[k].indicator)
	}
	return out
}

func (t *TypingTracker) notify(snapshot []realtime.TypingIndicator) {
	if t.onChange != nil {
		t.onChange(snapshot)
	}
}
