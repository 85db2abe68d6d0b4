// Package sched runs classification tasks on a bounded worker pool fed by
// a single priority queue. High beats Normal beats Low, FIFO within a
// priority band. The queue has a hard capacity; submission beyond it fails
// fast rather than blocking, so backpressure is always explicit.
package sched

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/monitoring"
	"github.com/haven-media/sentinel/internal/signal"
)

var (
	// ErrQueueFull rejects a submission when the queue is at capacity.
	ErrQueueFull = errors.New("sched: task queue full")
	// ErrCanceled resolves the future of a task canceled before claim.
	ErrCanceled = errors.New("sched: task canceled")
	// ErrClosed rejects submissions after shutdown.
	ErrClosed = errors.New("sched: pool closed")
)

// Priority orders tasks in the queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	}
	return "unknown"
}

// Task is one unit of classification work: score one category against one
// input. Fan-out over all categories happens at submission, producing one
// task per category.
type Task struct {
	ID         string
	Category   category.Category
	Input      *signal.MultiModalInput
	Priority   Priority
	EnqueuedAt time.Time
}

// Handler performs the actual classification for one task.
type Handler func(cat category.Category, in *signal.MultiModalInput) signal.Detection

// Future resolves to the task's detection once a worker completes it.
type Future struct {
	taskID string
	ch     chan outcome
}

type outcome struct {
	det signal.Detection
	err error
}

// TaskID identifies the pending task, usable with Cancel.
func (f *Future) TaskID() string { return f.taskID }

// Wait blocks until the task resolves or the context ends.
func (f *Future) Wait(ctx context.Context) (signal.Detection, error) {
	select {
	case out := <-f.ch:
		return out.det, out.err
	case <-ctx.Done():
		return signal.Detection{}, ctx.Err()
	}
}

type queued struct {
	task     Task
	fut      *Future
	seq      uint64
	canceled bool
	index    int
}

// taskHeap orders by priority desc, then submission sequence asc.
type taskHeap []*queued

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	q := x.(*queued)
	q.index = len(*h)
	*h = append(*h, q)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	q := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return q
}

// WorkerStatus is the lifecycle state of one executor. A worker enters
// Error when its task panics and leaves it on the next claim.
type WorkerStatus int

const (
	WorkerIdle WorkerStatus = iota
	WorkerBusy
	WorkerError
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerBusy:
		return "busy"
	case WorkerError:
		return "error"
	}
	return "unknown"
}

// WorkerInfo is a snapshot of one worker's state and cumulative counts.
type WorkerInfo struct {
	ID        int               `json:"id"`
	Status    WorkerStatus      `json:"status"`
	Current   string            `json:"current_task,omitempty"`
	Completed int64             `json:"completed"`
	Category  category.Category `json:"category,omitempty"`
}

// Stats is the pool's operational snapshot. Latency percentiles come from
// a trailing window of completed-task durations; Speedup estimates serial
// time divided by wall time.
type Stats struct {
	Submitted  int64         `json:"submitted"`
	Completed  int64         `json:"completed"`
	Rejected   int64         `json:"rejected"`
	Canceled   int64         `json:"canceled"`
	QueueDepth int           `json:"queue_depth"`
	P50        time.Duration `json:"p50"`
	P95        time.Duration `json:"p95"`
	P99        time.Duration `json:"p99"`
	Speedup    float64       `json:"speedup"`
	Workers    []WorkerInfo  `json:"workers"`
}

const latencyWindow = 1024

// Pool is the bounded scheduler. Construct with NewPool, stop with Close.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	heap    taskHeap
	pending map[string]*queued
	closed  bool

	handler  Handler
	capacity int
	seq      uint64

	submitted, completed, rejected, canceled int64
	busyTotal                                time.Duration
	started                                  time.Time
	latencies                                []float64
	workers                                  []WorkerInfo

	wg sync.WaitGroup
}

// NewPool starts min(GOMAXPROCS, configured cap) workers draining the
// queue with the given handler.
func NewPool(cfg *config.TuningConfig, handler Handler) *Pool {
	if cfg == nil {
		cfg = &config.TuningConfig{}
	}
	n := runtime.GOMAXPROCS(0)
	if limit := cfg.GetWorkerCap(); n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	p := &Pool{
		pending:   make(map[string]*queued),
		handler:   handler,
		capacity:  cfg.GetQueueCapacity(),
		started:   time.Now(),
		latencies: make([]float64, 0, latencyWindow),
		workers:   make([]WorkerInfo, n),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.workers[i] = WorkerInfo{ID: i, Status: WorkerIdle}
		p.wg.Add(1)
		go p.run(i)
	}
	monitoring.Diagf("sched: pool started with %d workers, queue capacity %d", n, p.capacity)
	return p
}

// Submit enqueues one task and returns its future. Fails fast with
// ErrQueueFull when the queue is at capacity. A zero task ID is assigned.
func (p *Pool) Submit(t Task) (*Future, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitLocked(t)
}

func (p *Pool) submitLocked(t Task) (*Future, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if len(p.heap) >= p.capacity {
		p.rejected++
		return nil, ErrQueueFull
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	fut := &Future{taskID: t.ID, ch: make(chan outcome, 1)}
	q := &queued{task: t, fut: fut, seq: p.seq}
	p.seq++
	heap.Push(&p.heap, q)
	p.pending[t.ID] = q
	p.submitted++
	p.cond.Signal()
	return fut, nil
}

// SubmitAll fans one input out to every registered category, one task per
// category, all-or-nothing: if the queue cannot hold the full fan-out the
// whole submission is rejected.
func (p *Pool) SubmitAll(in *signal.MultiModalInput, prio Priority) ([]*Future, error) {
	return p.SubmitCategories(in, prio, category.All())
}

// SubmitCategories fans one input out to the given categories,
// all-or-nothing like SubmitAll.
func (p *Pool) SubmitCategories(in *signal.MultiModalInput, prio Priority, cats []category.Category) ([]*Future, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if len(p.heap)+len(cats) > p.capacity {
		p.rejected++
		return nil, ErrQueueFull
	}
	futures := make([]*Future, 0, len(cats))
	now := time.Now()
	for _, c := range cats {
		fut, err := p.submitLocked(Task{Category: c, Input: in, Priority: prio, EnqueuedAt: now})
		if err != nil {
			return nil, err
		}
		futures = append(futures, fut)
	}
	return futures, nil
}

// Cancel drops a still-pending task by ID. Tasks already claimed by a
// worker run to completion. Returns whether the task was canceled.
func (p *Pool) Cancel(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.pending[id]
	if !ok || q.canceled {
		return false
	}
	q.canceled = true
	delete(p.pending, id)
	heap.Remove(&p.heap, q.index)
	p.canceled++
	q.fut.ch <- outcome{err: ErrCanceled}
	return true
}

// Close stops the workers after draining: pending tasks resolve with
// ErrCanceled, claimed tasks run to completion.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.heap {
		delete(p.pending, q.task.ID)
		q.canceled = true
		p.canceled++
		q.fut.ch <- outcome{err: ErrCanceled}
	}
	p.heap = p.heap[:0]
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.heap) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed && len(p.heap) == 0 {
			p.mu.Unlock()
			return
		}
		q := heap.Pop(&p.heap).(*queued)
		delete(p.pending, q.task.ID)
		p.workers[id].Status = WorkerBusy
		p.workers[id].Current = q.task.ID
		p.workers[id].Category = q.task.Category
		p.mu.Unlock()

		start := time.Now()
		det, err := p.invoke(q.task)
		elapsed := time.Since(start)
		q.fut.ch <- outcome{det: det, err: err}

		p.mu.Lock()
		p.workers[id].Status = WorkerIdle
		if err != nil {
			p.workers[id].Status = WorkerError
		}
		p.workers[id].Current = ""
		p.workers[id].Completed++
		p.completed++
		p.busyTotal += elapsed
		if len(p.latencies) == latencyWindow {
			copy(p.latencies, p.latencies[1:])
			p.latencies = p.latencies[:latencyWindow-1]
		}
		p.latencies = append(p.latencies, float64(elapsed))
		p.mu.Unlock()
	}
}

// invoke runs the handler, converting a panic into a task error so one
// poisoned input cannot take a worker down.
func (p *Pool) invoke(t Task) (det signal.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Opsf("sched: task %s (%s) panicked: %v", t.ID, t.Category, r)
			err = fmt.Errorf("sched: task %s (%s) panicked: %v", t.ID, t.Category, r)
		}
	}()
	return p.handler(t.Category, t.Input), nil
}

// Stats snapshots the pool. Percentiles use gonum's empirical quantile
// over the trailing latency window.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		Submitted:  p.submitted,
		Completed:  p.completed,
		Rejected:   p.rejected,
		Canceled:   p.canceled,
		QueueDepth: len(p.heap),
		Workers:    append([]WorkerInfo(nil), p.workers...),
	}
	if len(p.latencies) > 0 {
		sorted := append([]float64(nil), p.latencies...)
		sort.Float64s(sorted)
		s.P50 = time.Duration(stat.Quantile(0.50, stat.Empirical, sorted, nil))
		s.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
		s.P99 = time.Duration(stat.Quantile(0.99, stat.Empirical, sorted, nil))
	}
	if wall := time.Since(p.started); wall > 0 {
		s.Speedup = float64(p.busyTotal) / float64(wall)
	}
	return s
}
