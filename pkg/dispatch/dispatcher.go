package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrQueueFull = errors.New("task queue full")

// Priority of a task. Higher value wins at every task switch.
type Priority uint8

const (
	// PriorityInterrupt is the tier for raw interrupt acknowledgement work.
	PriorityInterrupt Priority = 1
	// PriorityApplication is the tier for application level radio event handling.
	PriorityApplication Priority = 2
)

// DefaultCapacity is the number of outstanding spawns per task.
const DefaultCapacity = 4

type job struct {
	seq uint64
	run func()
}

type taskQueue struct {
	name     string
	prio     Priority
	capacity int
	jobs     []job
}

// Dispatcher runs spawned tasks one at a time, always picking the highest priority pending task.
// Tasks of equal priority run in spawn order. A running task is never interrupted, priority only
// matters at task switch boundaries.
type Dispatcher struct {
	mu     sync.Mutex // guards queues and seq
	muRun  sync.Mutex // one task at a time
	queues []*taskQueue
	seq    uint64
	wake   chan struct{}
}

func New() *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
	}
}

// Task is a registered unit of work taking a payload of type P.
type Task[P any] struct {
	d  *Dispatcher
	q  *taskQueue
	fn func(P)
}

// Register adds a task with its own bounded queue. capacity <= 0 means DefaultCapacity.
func Register[P any](d *Dispatcher, name string, prio Priority, capacity int, fn func(P)) *Task[P] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &taskQueue{name: name, prio: prio, capacity: capacity}
	d.mu.Lock()
	d.queues = append(d.queues, q)
	d.mu.Unlock()
	return &Task[P]{d: d, q: q, fn: fn}
}

func (obj *Task[P]) Name() string {
	return obj.q.name
}

// Spawn enqueues one run of the task. It never blocks and is safe from interrupt context.
func (obj *Task[P]) Spawn(payload P) error {
	d := obj.d
	d.mu.Lock()
	if len(obj.q.jobs) >= obj.q.capacity {
		d.mu.Unlock()
		return fmt.Errorf("failed to spawn %s, %d runs outstanding: %w", obj.q.name, obj.q.capacity, ErrQueueFull)
	}
	d.seq++
	obj.q.jobs = append(obj.q.jobs, job{seq: d.seq, run: func() { obj.fn(payload) }})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// MustSpawn is Spawn for interrupt handlers: queue overflow is fatal, work is never dropped.
func (obj *Task[P]) MustSpawn(payload P) {
	if err := obj.Spawn(payload); err != nil {
		panic(err)
	}
}

// Pending returns the number of queued runs of this task.
func (obj *Task[P]) Pending() int {
	obj.d.mu.Lock()
	defer obj.d.mu.Unlock()
	return len(obj.q.jobs)
}

func (obj *Dispatcher) next() (job, bool) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	var best *taskQueue
	for _, q := range obj.queues {
		if len(q.jobs) == 0 {
			continue
		}
		if best == nil || q.prio > best.prio || (q.prio == best.prio && q.jobs[0].seq < best.jobs[0].seq) {
			best = q
		}
	}
	if best == nil {
		return job{}, false
	}
	j := best.jobs[0]
	best.jobs = best.jobs[1:]
	return j, true
}

// Step runs the highest priority pending task to completion. It reports false when nothing was pending.
func (obj *Dispatcher) Step() bool {
	obj.muRun.Lock()
	defer obj.muRun.Unlock()
	j, ok := obj.next()
	if !ok {
		return false
	}
	j.run()
	return true
}

// Drain runs tasks until no task is pending and returns how many ran.
func (obj *Dispatcher) Drain() int {
	n := 0
	for obj.Step() {
		n++
	}
	return n
}

// Run dispatches tasks as they are spawned until the context is cancelled.
func (obj *Dispatcher) Run(ctx context.Context) error {
	for {
		obj.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-obj.wake:
		}
	}
}
