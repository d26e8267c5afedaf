package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a finished or failed operation stays queryable.
const DefaultTTL = 10 * time.Minute

// Registry maps job ids to trackers and remembers the most recently started
// job, which is what pollers get when they do not name one.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*Tracker
	latest string
	ttl    time.Duration
	now    func() time.Time
}

// NewRegistry returns an empty registry. A ttl <= 0 selects DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		jobs: make(map[string]*Tracker),
		ttl:  ttl,
		now:  time.Now,
	}
}

// NewJobID returns a fresh opaque job id.
func NewJobID() string {
	return uuid.NewString()
}

// Start resets (or creates) the tracker for id, makes it the latest job and
// returns it with the id actually used. An empty id, or one whose job is
// still running, gets a generated id so two operations never share a
// tracker. Expired jobs are swept here.
func (r *Registry) Start(id string) (string, *Tracker) {
	r.mu.Lock()
	t, ok := r.jobs[id]
	if id == "" || (ok && t.running()) {
		id, ok = NewJobID(), false
	}
	if !ok {
		t = NewTracker()
		t.now = r.now
		r.jobs[id] = t
	}
	t.Reset(id)
	r.latest = id
	r.sweepLocked()
	r.mu.Unlock()
	return id, t
}

// Get returns the tracker for id.
func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.jobs[id]
	return t, ok
}

// Latest returns the snapshot of the most recently started job, or Idle.
func (r *Registry) Latest() State {
	r.mu.Lock()
	t := r.jobs[r.latest]
	r.mu.Unlock()
	if t == nil {
		return Idle()
	}
	return t.Snapshot()
}

// Len reports how many jobs are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// sweepLocked drops jobs that ended more than ttl ago. The latest job is kept
// so the legacy poll without a job id keeps answering.
func (r *Registry) sweepLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, t := range r.jobs {
		if id == r.latest {
			continue
		}
		if t.endedBefore(cutoff) {
			delete(r.jobs, id)
		}
	}
}
