package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("notify")

var ErrClosed = errors.New("coordinator is closed")

var (
	notifierRuns           = metrics.GetOrCreateCounter("dobj_notifier_runs_total")
	notificationsDelivered = metrics.GetOrCreateCounter("dobj_notifications_delivered_total")
	commitsTotal           = metrics.GetOrCreateCounter("dobj_commits_total")
)

// coordinators holds the process wide coordinator of every group, keyed by group key
var coordinators = xsync.NewMapOf[uint64, *Coordinator]()

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

type eventKind uint8

const (
	eventCommit   eventKind = iota // a write transaction was committed
	eventRegister                  // a new notifier needs its first snapshot
	eventSync                      // barrier, closes done once every earlier event was processed
)

type event struct {
	kind     eventKind
	version  uint64
	notifier *Notifier
	done     chan struct{}
}

// --------------------------------------------------------------------------
// Coordinator
// --------------------------------------------------------------------------

// Coordinator owns the change computation of one group.
//
// Sessions report committed write transactions with Commit. A single worker goroutine
// then runs every registered notifier, which captures the current row states of its
// collection. Delivery of the resulting change sets happens on the goroutine of the
// owning session when it calls Deliver (through session.Refresh).
//
// The coordinator also serializes write transactions of all sessions of the group
// with LockWrite / UnlockWrite.
//
// Thread-safety: all methods are safe for concurrent use.
type Coordinator struct {
	group   db.Group
	writeMu sync.Mutex
	writer  atomic.Int64 // goroutine holding writeMu, 0 if none

	events    *eventQueue[event]
	notifiers *xsync.MapOf[notifierKey, *Notifier]
	version   atomic.Uint64 // last committed version seen by the worker
	closed    atomic.Bool
	done      chan struct{}

	registry gometrics.Registry
	runTimer gometrics.Timer
}

// For returns the coordinator of the group, creating it on first use
func For(group db.Group) *Coordinator {
	c, loaded := coordinators.LoadOrCompute(group.Key(), func() *Coordinator {
		return newCoordinator(group)
	})
	if !loaded {
		Logger.Debugf("created coordinator for group %d", group.Key())
	}
	return c
}

func newCoordinator(group db.Group) *Coordinator {
	registry := gometrics.NewRegistry()
	c := &Coordinator{
		group:     group,
		events:    newEventQueue[event](),
		notifiers: xsync.NewMapOf[notifierKey, *Notifier](),
		done:      make(chan struct{}),
		registry:  registry,
		runTimer:  gometrics.GetOrRegisterTimer("notifier.run", registry),
	}
	c.version.Store(group.Version())
	go c.run()
	return c
}

// run is the worker loop, it exits when the event queue is closed and drained
func (c *Coordinator) run() {
	defer close(c.done)

	for ev := range c.events.recv() {
		switch ev.kind {
		case eventCommit:
			c.version.Store(ev.version)
			c.notifiers.Range(func(_ notifierKey, n *Notifier) bool {
				c.runNotifier(n)
				return true
			})
		case eventRegister:
			c.runNotifier(ev.notifier)
		case eventSync:
			close(ev.done)
		}
	}
}

func (c *Coordinator) runNotifier(n *Notifier) {
	start := time.Now()
	if n.run() {
		c.runTimer.UpdateSince(start)
		notifierRuns.Inc()
	}
}

// Group returns the group the coordinator belongs to
func (c *Coordinator) Group() db.Group {
	return c.group
}

// Version returns the last committed version processed by the worker
func (c *Coordinator) Version() uint64 {
	return c.version.Load()
}

// LockWrite blocks until no other session holds the write lock of the group
func (c *Coordinator) LockWrite() {
	c.writeMu.Lock()
	c.writer.Store(util.GoroutineID())
}

// UnlockWrite releases the write lock of the group
func (c *Coordinator) UnlockWrite() {
	c.writer.Store(0)
	c.writeMu.Unlock()
}

// HoldsWrite reports whether the calling goroutine holds the write lock.
// LockWrite is not reentrant, calling it then would block forever.
func (c *Coordinator) HoldsWrite() bool {
	return c.writer.Load() == util.GoroutineID()
}

// Commit hands a committed data version to the worker, which reruns every notifier
func (c *Coordinator) Commit(version uint64) error {
	if !c.events.push(&event{kind: eventCommit, version: version}) {
		return ErrClosed
	}
	commitsTotal.Inc()
	return nil
}

// RegisterNotifier schedules the first run of a notifier
func (c *Coordinator) RegisterNotifier(n *Notifier) error {
	if !c.events.push(&event{kind: eventRegister, notifier: n}) {
		return ErrClosed
	}
	return nil
}

// Sync blocks until the worker processed every event pushed before the call
func (c *Coordinator) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !c.events.push(&event{kind: eventSync, done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifierFor returns the notifier of a collection for the given session.
// Notifiers are interned: every call with the same identity, variant and session
// returns the same notifier as long as it has callbacks. The source is only used
// when a new notifier is created.
func (c *Coordinator) NotifierFor(id db.Identity, variant uint64, session string, source SourceFunc) *Notifier {
	key := notifierKey{identity: id, variant: variant, session: session}
	n, loaded := c.notifiers.LoadOrCompute(key, func() *Notifier {
		return newNotifier(c, key, source)
	})
	if !loaded {
		Logger.Debugf("registered notifier %s (variant %d) for session %s", id, variant, session)
		if err := c.RegisterNotifier(n); err != nil {
			Logger.Warningf("could not schedule notifier %s: %v", id, err)
		}
	}
	return n
}

// Deliver invokes the callbacks of every notifier of the session with pending changes.
// Callbacks run on the calling goroutine. Returns the number of invoked callbacks.
func (c *Coordinator) Deliver(session string) int {
	var pending []*Notifier
	c.notifiers.Range(func(key notifierKey, n *Notifier) bool {
		if key.session == session {
			pending = append(pending, n)
		}
		return true
	})
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })

	delivered := 0
	for _, n := range pending {
		delivered += n.deliver()
	}
	if delivered > 0 {
		notificationsDelivered.Add(delivered)
	}
	return delivered
}

// DropSession removes every notifier of the session
func (c *Coordinator) DropSession(session string) {
	c.notifiers.Range(func(key notifierKey, _ *Notifier) bool {
		if key.session == session {
			c.notifiers.Delete(key)
		}
		return true
	})
}

// Close stops the worker after the pending events were processed and
// removes the coordinator from the process wide registry
func (c *Coordinator) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.events.close()
	<-c.done

	coordinators.Compute(c.group.Key(), func(old *Coordinator, loaded bool) (*Coordinator, bool) {
		return old, !loaded || old == c
	})
	c.runTimer.Stop()
	Logger.Debugf("closed coordinator for group %d", c.group.Key())
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats describes the state of a coordinator
type Stats struct {
	Notifiers     int
	PendingEvents int
	Runs          int64
	MeanRun       time.Duration
	P99Run        time.Duration
	MaxRun        time.Duration
}

// Stats returns the current notifier count and run time statistics
func (c *Coordinator) Stats() Stats {
	snapshot := c.runTimer.Snapshot()
	return Stats{
		Notifiers:     c.notifiers.Size(),
		PendingEvents: c.events.len(),
		Runs:          snapshot.Count(),
		MeanRun:       time.Duration(snapshot.Mean()),
		P99Run:        time.Duration(snapshot.Percentile(0.99)),
		MaxRun:        time.Duration(snapshot.Max()),
	}
}
