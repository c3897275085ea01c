package taskman

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Clock supplies timestamps for start times, durations and history entries.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// WorkFunc is a unit of background work. It runs on its own goroutine; the
// manager never interrupts it and only observes its return.
type WorkFunc func() (any, error)

// historyCap bounds the per-type completion history.
const historyCap = 3

type pendingTask struct {
	typ    TaskType
	name   string
	fn     WorkFunc
	handle *Handle
}

type runningTask struct {
	id        int64
	typ       TaskType
	name      string
	startedAt time.Time
	handle    *Handle
}

// Completion records one finished task in a type's bounded history.
type Completion struct {
	Name        string
	Duration    time.Duration
	CompletedAt time.Time
}

// Manager gates concurrent execution of heterogeneous background work by
// priority, per-type concurrency limits and cross-type exclusivity groups.
// Every state transition (enqueue, admit, complete, cancel) runs as one
// non-preemptible step under mu; only the work functions themselves run
// concurrently. Construct one Manager at process start and inject it — there
// is no package-level instance.
type Manager struct {
	clock Clock

	mu      sync.Mutex
	nextID  int64
	running map[int64]*runningTask
	queues  map[TaskType][]*pendingTask
	history map[TaskType][]Completion
}

func New() *Manager {
	return &Manager{
		clock:   systemClock{},
		running: make(map[int64]*runningTask),
		queues:  make(map[TaskType][]*pendingTask),
		history: make(map[TaskType][]Completion),
	}
}

// Submit appends fn to typ's wait-queue and triggers an admission pass. The
// task starts whenever the admission rules allow; the returned Handle is the
// only way to observe its completion.
func (m *Manager) Submit(typ TaskType, name string, fn WorkFunc) *Handle {
	return m.submit(typ, name, fn, false)
}

// SubmitImmediate is Submit with an admission check first: if the rules
// permit typ right now, the task is registered as running and started before
// the call returns, skipping the queue. If the check fails the task is queued
// like any other submission.
func (m *Manager) SubmitImmediate(typ TaskType, name string, fn WorkFunc) *Handle {
	return m.submit(typ, name, fn, true)
}

func (m *Manager) submit(typ TaskType, name string, fn WorkFunc, immediate bool) *Handle {
	h := newHandle()
	if !typ.valid() {
		log.Printf("TaskManager: rejecting %q: unknown task type %d", name, int(typ))
		h.settle(nil, fmt.Errorf("unknown task type %d", int(typ)))
		return h
	}

	pt := &pendingTask{typ: typ, name: name, fn: fn, handle: h}

	m.mu.Lock()
	defer m.mu.Unlock()

	if immediate && m.admissibleLocked(typ) {
		m.startLocked(pt)
		return h
	}

	m.queues[typ] = append(m.queues[typ], pt)
	m.admitLocked()
	return h
}

// CancelPending rejects every queued (not yet started) task of typ with
// ErrCanceled and returns how many were discarded. Running tasks of typ are
// not touched; queues of other types are not touched.
func (m *Manager) CancelPending(typ TaskType) int {
	if !typ.valid() {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[typ]
	delete(m.queues, typ)
	for _, pt := range q {
		log.Printf("TaskManager: canceled pending task %q [%s]", pt.name, typ)
		pt.handle.settle(nil, ErrCanceled)
	}

	active := 0
	for _, rt := range m.running {
		if rt.typ == typ {
			active++
		}
	}
	if active > 0 {
		log.Printf("TaskManager: %d running %s task(s) are not cancelable", active, typ)
	}
	return len(q)
}

// admissibleLocked reports whether a task of typ may start right now:
// typ's running count is below its limit, and no running task of a different
// type shares one of typ's exclusivity groups.
func (m *Manager) admissibleLocked(typ TaskType) bool {
	n := 0
	for _, rt := range m.running {
		if rt.typ == typ {
			n++
		} else if sharesGroup(typ, rt.typ) {
			return false
		}
	}
	return n < typeConfigs[typ].limit
}

// admitLocked runs the admission sweep to fixpoint: walk all types in
// ascending priority order, admit at most one queued task per type per sweep,
// and restart the sweep whenever anything was admitted. The one-per-type
// granularity keeps a busy type from draining its whole queue ahead of other
// types freed in the same pass.
func (m *Manager) admitLocked() {
	for {
		admitted := false
		for _, typ := range typesByPriority {
			q := m.queues[typ]
			if len(q) == 0 || !m.admissibleLocked(typ) {
				continue
			}
			m.queues[typ] = q[1:]
			m.startLocked(q[0])
			admitted = true
		}
		if !admitted {
			return
		}
	}
}

func (m *Manager) startLocked(pt *pendingTask) {
	m.nextID++
	rt := &runningTask{
		id:        m.nextID,
		typ:       pt.typ,
		name:      pt.name,
		startedAt: m.clock.Now(),
		handle:    pt.handle,
	}
	m.running[rt.id] = rt
	log.Printf("TaskManager: task #%d started: %s [%s]", rt.id, rt.name, rt.typ)
	go m.run(rt, pt.fn)
}

func (m *Manager) run(rt *runningTask, fn WorkFunc) {
	result, err := runWork(fn)
	m.finish(rt, result, err)
}

// runWork converts a panicking work function into an ordinary task error so
// the running slot is always released.
func runWork(fn WorkFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn()
}

func (m *Manager) finish(rt *runningTask, result any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.running, rt.id)
	m.recordLocked(rt)
	if err != nil {
		log.Printf("TaskManager: task #%d failed: %s [%s]: %v", rt.id, rt.name, rt.typ, err)
	} else {
		log.Printf("TaskManager: task #%d finished: %s [%s]", rt.id, rt.name, rt.typ)
	}
	rt.handle.settle(result, err)
	m.admitLocked()
}

// recordLocked appends a completion to the type's bounded history. A fault
// here (a broken injected clock, most likely) must not hold back the slot
// release, the handle settlement, or the admission pass that follows.
func (m *Manager) recordLocked(rt *runningTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("TaskManager: history update for %q failed: %v", rt.name, r)
		}
	}()

	now := m.clock.Now()
	hist := append([]Completion{{
		Name:        rt.name,
		Duration:    now.Sub(rt.startedAt),
		CompletedAt: now,
	}}, m.history[rt.typ]...)
	if len(hist) > historyCap {
		hist = hist[:historyCap]
	}
	m.history[rt.typ] = hist
}
