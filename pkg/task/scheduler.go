// Package task implements the game-task scheduler of §4.6: timers in
// deciseconds (tenths of a second), one-shot or repeating, with
// monotonic id allocation backed by a LIFO free-list exactly as
// original_source/src/task.c's new_task_id/retire_task_id do it.
//
// Grounded on original_source/src/task.c (the id-stack shortcut and
// the intrusive task list) and, for the due-time ordering, the
// teacher's event-loop idiom adapted to Go's container/heap rather
// than libuv timer handles — there is no event loop library in any
// example repo's dependency set, so this is the one concern SPEC_FULL
// deliberately leaves on the standard library (see DESIGN.md).
package task

import (
	"container/heap"
	"errors"
	"sort"
)

// ErrNoSuchTask is returned by Kill for an id that does not name a
// live task.
var ErrNoSuchTask = errors.New("task: no such task")

// Task is one scheduled invocation of a named code item (§4.6). Decis
// is the task's repeat interval in deciseconds; zero means one-shot.
type Task struct {
	ID       int64
	ItemName string
	Decis    int64

	due   int64 // absolute fire time, in deciseconds since scheduler epoch
	index int   // heap index, maintained by container/heap
}

// idAllocator reproduces new_task_id/retire_task_id's exact behavior:
// ids are handed out monotonically, and retiring the most recently
// allocated id is a cheap decrement rather than a push onto the
// free-list.
type idAllocator struct {
	next  int64
	stack []int64
}

func (a *idAllocator) alloc() int64 {
	if len(a.stack) == 0 {
		id := a.next
		a.next++
		return id
	}
	top := len(a.stack) - 1
	id := a.stack[top]
	a.stack = a.stack[:top]
	return id
}

func (a *idAllocator) retire(id int64) {
	if id == a.next-1 {
		a.next--
		return
	}
	a.stack = append(a.stack, id)
}

// taskHeap is a min-heap by due time, ties broken by id (registration
// order), per §5: "Timer callbacks fire in due-time order; ties broken
// by registration order."
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].ID < h[j].ID
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *taskHeap) Push(x interface{}) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler holds every live task, ordered by due time. It has no
// notion of wall-clock time itself — the caller (the event loop) ticks
// it forward with Advance.
type Scheduler struct {
	clock int64 // deciseconds elapsed since the scheduler started
	ids   idAllocator
	heap  taskHeap
	byID  map[int64]*Task
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{byID: make(map[int64]*Task)}
}

// Now reports the scheduler's current deciseconds clock.
func (s *Scheduler) Now() int64 { return s.clock }

// NewGameTask schedules itemName to fire first after startDecis
// deciseconds, then every repeatDecis thereafter (0 means one-shot),
// per task.newgametask (§4.4).
func (s *Scheduler) NewGameTask(itemName string, startDecis, repeatDecis int64) *Task {
	t := &Task{
		ID:       s.ids.alloc(),
		ItemName: itemName,
		Decis:    repeatDecis,
		due:      s.clock + startDecis,
	}
	s.byID[t.ID] = t
	heap.Push(&s.heap, t)
	return t
}

// Kill cancels a task by id. The observed semantics match
// task.killtask: the C reference pushes VALUE_FALSE for an unknown id
// rather than erroring, so the caller translates ErrNoSuchTask into
// that boolean rather than propagating it as a runtime fault.
func (s *Scheduler) Kill(id int64) error {
	t, ok := s.byID[id]
	if !ok {
		return ErrNoSuchTask
	}
	delete(s.byID, id)
	if t.index >= 0 {
		heap.Remove(&s.heap, t.index)
	}
	s.ids.retire(id)
	return nil
}

// Advance moves the scheduler's clock forward by deltaDecis
// deciseconds and returns every task that became due, in fire order.
// A repeating task is immediately rescheduled for its next interval
// before being returned, matching libuv's repeating-timer semantics (a
// repeat of 0 after firing once is retired, i.e. one-shot).
func (s *Scheduler) Advance(deltaDecis int64) []*Task {
	s.clock += deltaDecis
	var fired []*Task
	for s.heap.Len() > 0 && s.heap[0].due <= s.clock {
		t := heap.Pop(&s.heap).(*Task)
		fired = append(fired, t)
		if t.Decis > 0 {
			t.due = s.clock + t.Decis
			heap.Push(&s.heap, t)
		} else {
			delete(s.byID, t.ID)
			s.ids.retire(t.ID)
		}
	}
	return fired
}

// Len reports the number of live (pending) tasks.
func (s *Scheduler) Len() int { return s.heap.Len() }

// Snapshot returns a point-in-time copy of every live task, ordered by
// due time (ties by id), for the admin introspection endpoint (internal/adminapi).
// It never exposes the live *Task pointers, so a snapshot consumer
// can't race the scheduler's own heap mutations.
func (s *Scheduler) Snapshot() []Task {
	out := make([]Task, 0, len(s.heap))
	for _, t := range s.heap {
		out = append(out, Task{ID: t.ID, ItemName: t.ItemName, Decis: t.Decis, due: t.due})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].due != out[j].due {
			return out[i].due < out[j].due
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DueIn reports how many deciseconds remain before t is next due,
// relative to the scheduler's current clock.
func (s *Scheduler) DueIn(t Task) int64 { return t.due - s.clock }
