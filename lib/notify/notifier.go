package notify

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dObj/lib/db"
)

// SourceFunc captures the current rows of a collection.
// It is called from the coordinator worker and must not touch session state.
// attached is false once the collection is gone for good.
type SourceFunc func() (states []db.RowState, attached bool)

// Callback receives the changes of a collection since its last delivery
type Callback func(changes ChangeSet)

// notifierKey identifies a notifier. Collections of the same storage structure
// use variant 0, results derived from it use a unique variant each.
type notifierKey struct {
	identity db.Identity
	variant  uint64
	session  string
}

// notifierSeq orders notifiers by creation for deterministic delivery
var notifierSeq atomic.Uint64

type callback struct {
	fn          Callback
	delivered   []db.RowState
	initialized bool
	finished    bool
}

// Notifier is the shared change detection object of one collection.
// All callbacks registered for the collection in one session share a notifier.
type Notifier struct {
	coord  *Coordinator
	key    notifierKey
	seq    uint64
	source SourceFunc

	mu        sync.Mutex
	latest    []db.RowState
	attached  bool
	ready     bool // latest holds a snapshot
	stopped   bool // source reported detachment, no more runs
	callbacks map[uint64]*callback
	nextID    uint64
}

func newNotifier(c *Coordinator, key notifierKey, source SourceFunc) *Notifier {
	return &Notifier{
		coord:     c,
		key:       key,
		seq:       notifierSeq.Add(1),
		source:    source,
		callbacks: make(map[uint64]*callback),
	}
}

// run captures a new snapshot. Called by the worker only.
func (n *Notifier) run() bool {
	n.mu.Lock()
	stopped := n.stopped
	n.mu.Unlock()
	if stopped {
		return false
	}

	states, attached := n.source()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.latest = states
	n.attached = attached
	n.ready = true
	if !attached {
		n.latest = nil
		n.stopped = true
	}
	return true
}

type delivery struct {
	fn      Callback
	changes ChangeSet
}

// deliver invokes every callback whose delivered state differs from the latest snapshot.
// The first delivery of each callback is an empty change set.
func (n *Notifier) deliver() int {
	n.mu.Lock()
	if !n.ready {
		n.mu.Unlock()
		return 0
	}

	ids := make([]uint64, 0, len(n.callbacks))
	for id := range n.callbacks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []delivery
	for _, id := range ids {
		cb := n.callbacks[id]
		switch {
		case cb.finished:
		case !cb.initialized:
			cb.initialized = true
			cb.delivered = n.latest
			cb.finished = !n.attached
			out = append(out, delivery{fn: cb.fn})
		case !n.attached:
			deleted := make([]int, len(cb.delivered))
			for i := range deleted {
				deleted[i] = i
			}
			cb.delivered = nil
			cb.finished = true
			out = append(out, delivery{fn: cb.fn, changes: ChangeSet{Deletions: deleted}})
		default:
			changes := computeChangeSet(cb.delivered, n.latest)
			cb.delivered = n.latest
			if !changes.Empty() {
				out = append(out, delivery{fn: cb.fn, changes: changes})
			}
		}
	}
	n.mu.Unlock()

	for _, d := range out {
		d.fn(d.changes)
	}
	return len(out)
}

// AddCallback registers a callback and returns the token keeping it alive
func (n *Notifier) AddCallback(fn Callback) *Token {
	var (
		target   *Notifier
		id       uint64
		register bool
	)
	n.coord.notifiers.Compute(n.key, func(old *Notifier, loaded bool) (*Notifier, bool) {
		target = n
		if loaded {
			// share the interned notifier
			target = old
		} else {
			register = true
		}

		target.mu.Lock()
		target.nextID++
		id = target.nextID
		target.callbacks[id] = &callback{fn: fn}
		target.mu.Unlock()
		return target, false
	})

	if register {
		// n was dropped after its last callback was removed
		if err := n.coord.RegisterNotifier(n); err != nil {
			Logger.Warningf("could not schedule notifier %s: %v", n.key.identity, err)
		}
	}
	return &Token{notifier: target, id: id}
}

// removeCallback removes a callback, the notifier is dropped with its last callback
func (n *Notifier) removeCallback(id uint64) {
	n.coord.notifiers.Compute(n.key, func(old *Notifier, loaded bool) (*Notifier, bool) {
		n.mu.Lock()
		delete(n.callbacks, id)
		empty := len(n.callbacks) == 0
		n.mu.Unlock()

		if !loaded || old != n {
			return old, !loaded
		}
		if empty {
			Logger.Debugf("dropped notifier %s for session %s", n.key.identity, n.key.session)
		}
		return old, empty
	})
}

// Callbacks returns the number of registered callbacks
func (n *Notifier) Callbacks() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.callbacks)
}

// --------------------------------------------------------------------------
// Token
// --------------------------------------------------------------------------

// Token keeps a callback registered. Unregister removes the callback,
// the zero value and repeated calls are no-ops.
type Token struct {
	notifier *Notifier
	id       uint64
	once     sync.Once
}

// Unregister removes the callback of this token
func (t *Token) Unregister() {
	if t == nil || t.notifier == nil {
		return
	}
	t.once.Do(func() {
		t.notifier.removeCallback(t.id)
	})
}

// Notifier returns the notifier the callback is registered with
func (t *Token) Notifier() *Notifier {
	return t.notifier
}
