package sink

import (
	"sort"
	"sync"
	"time"
)

// Update is the latest value seen for a key.
type Update struct {
	Key   string    `json:"key"`
	Value string    `json:"value"`
	Time  time.Time `json:"time"`
}

// Table keeps the most recent value of every key, the way a display shows
// it: a later field with the same key overwrites the earlier one.
// Subscribers get every update as it happens.
type Table struct {
	mu     sync.RWMutex
	values map[string]Update
	subs   map[chan Update]struct{}
	now    func() time.Time
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		values: make(map[string]Update),
		subs:   make(map[chan Update]struct{}),
		now:    time.Now,
	}
}

func (t *Table) OnField(key, value string) {
	u := Update{Key: key, Value: value, Time: t.now()}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[key] = u
	for ch := range t.subs {
		// a subscriber that is not keeping up misses updates; it can
		// resync from Snapshot
		select {
		case ch <- u:
		default:
		}
	}
}

// Get returns the latest value for key.
func (t *Table) Get(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.values[key]
	return u.Value, ok
}

// Snapshot returns the latest update of every key, sorted by key.
func (t *Table) Snapshot() []Update {
	t.mu.RLock()
	out := make([]Update, 0, len(t.values))
	for _, u := range t.values {
		out = append(out, u)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Subscribe returns a channel receiving every subsequent update and a
// function that cancels the subscription and closes the channel.
func (t *Table) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, buffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}
