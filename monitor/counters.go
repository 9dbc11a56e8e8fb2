package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a named, increment-only value.
type Counter struct {
	name        string
	description string
	value       atomic.Int64
}

func (c *Counter) Name() string        { return c.name }
func (c *Counter) Description() string { return c.description }
func (c *Counter) Value() int64        { return c.value.Load() }

// Inc adds amount to the counter. Negative amounts are ignored.
func (c *Counter) Inc(amount int64) {
	if amount <= 0 {
		return
	}
	c.value.Add(amount)
}

// CounterValue is a point-in-time copy of a counter.
type CounterValue struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Value       int64  `json:"value"`
}

// Counters is a process-wide registry. It is created once at start-up and
// never reset.
type Counters struct {
	mu     sync.RWMutex
	byName map[string]*Counter
}

func NewCounters() *Counters {
	return &Counters{byName: make(map[string]*Counter)}
}

// Default is the registry shared by the API process and the jobs.
var Default = NewCounters()

// Register declares a counter. Registering an existing name only fills in a
// missing description.
func (r *Counters) Register(name, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byName[name]; ok {
		if c.description == "" {
			c.description = description
		}
		return
	}
	r.byName[name] = &Counter{name: name, description: description}
}

func (r *Counters) get(name string) *Counter {
	r.mu.RLock()
	c, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byName[name]; ok {
		return c
	}
	c = &Counter{name: name}
	r.byName[name] = c
	return c
}

// Increment implements services.CounterSink. Unknown names are registered on
// first use.
func (r *Counters) Increment(name string, amount int64) {
	r.get(name).Inc(amount)
}

// Value returns the current value of name, or zero when it was never used.
func (r *Counters) Value(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byName[name]; ok {
		return c.Value()
	}
	return 0
}

// Snapshot returns every counter sorted by name.
func (r *Counters) Snapshot() []CounterValue {
	r.mu.RLock()
	out := make([]CounterValue, 0, len(r.byName))
	for _, c := range r.byName {
		out = append(out, CounterValue{Name: c.name, Description: c.description, Value: c.Value()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
