// Package inference implements the Inference Dispatcher (§4.E): a
// fixed-size worker pool draining an unbounded FIFO task queue, one
// generation context per worker, never shared across goroutines.
package inference

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"jotagateway/internal/sanitize"
	"jotagateway/pkg/types"
)

// defaultWorkers matches §6's documented GATEWAY_WORKERS default.
const defaultWorkers = 4

// SessionRunner is the subset of the Session Registry the dispatcher needs:
// resolve a session id to something it can call Generate on.
type SessionRunner interface {
	Generate(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(piece string) bool) (types.Metrics, error)
}

// sessionLookup resolves a session id to a runnable session, or nil if the
// session no longer exists (closed out from under a queued task).
type sessionLookup func(sessionID string) SessionRunner

// Task describes one generation request: the dispatcher does not know or
// care about the wire protocol, only the session id, the prompt, and two
// callbacks for streaming tokens back and reporting completion.
type Task struct {
	SessionID string
	ClientID  string
	Prompt    string
	Params    types.RuntimeParams
	// Ctx bounds the generation call; defaults to context.Background if nil.
	Ctx context.Context

	// OnToken is called once per sanitized UTF-8 piece, on the worker
	// goroutine. Returning false aborts generation early.
	OnToken func(piece string) bool

	// OnComplete is called exactly once per task, after the generation
	// attempt finishes (successfully, with an error, or because the
	// session vanished). Called on the worker goroutine.
	OnComplete func(outcome types.GenerationOutcome)
}

// Dispatcher is a fixed-size worker pool over a mutex+condvar-guarded
// unbounded FIFO queue. A buffered channel was deliberately not used: that
// would force a choice between blocking Enqueue or silently capping queue
// depth, and Enqueue must stay O(1) and non-blocking regardless of depth.
type Dispatcher struct {
	lookup sessionLookup

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	shutdown bool

	wg sync.WaitGroup

	activeMu sync.Mutex
	active   int
	last     types.Metrics

	totalTokens atomic.Int64
}

// New starts workers goroutines (defaultWorkers if workers <= 0) pulling
// from a shared queue. lookup resolves a task's session id at pop time, not
// at enqueue time, so a session closed while queued is simply dropped.
func New(workers int, lookup sessionLookup) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	d := &Dispatcher{lookup: lookup}
	d.cond = sync.NewCond(&d.mu)

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue appends task to the tail of the queue and wakes one worker. O(1),
// never blocks regardless of how deep the queue already is.
func (d *Dispatcher) Enqueue(task Task) {
	d.mu.Lock()
	d.queue = append(d.queue, task)
	d.mu.Unlock()
	d.cond.Signal()

	tasksEnqueuedTotal.WithLabelValues(task.ClientID).Inc()
	queueDepthGauge.Set(float64(d.queueLen()))
}

func (d *Dispatcher) queueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// worker pulls tasks off the queue until Shutdown is called. On shutdown it
// finishes only the task already in flight; pending queued tasks are
// dropped, not drained, matching §4.E. Exactly one model context is in use
// by this goroutine at a time, matching §4.E's one-context-per-worker
// discipline.
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.shutdown {
			d.cond.Wait()
		}
		if d.shutdown {
			d.mu.Unlock()
			return
		}
		task := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		queueDepthGauge.Set(float64(d.queueLen()))
		d.run(task)
	}
}

func (d *Dispatcher) run(task Task) {
	sess := d.lookup(task.SessionID)
	if sess == nil {
		log.Warn().Str("component", "inference").Str("session_id", task.SessionID).Msg("task dropped: session no longer exists")
		if task.OnComplete != nil {
			task.OnComplete(types.GenerationOutcome{SessionID: task.SessionID, Err: errSessionVanished})
		}
		tasksCompletedTotal.WithLabelValues("dropped").Inc()
		return
	}

	d.incActive()
	defer d.decActive()

	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	metrics, err := sess.Generate(ctx, task.Prompt, task.Params, func(piece string) bool {
		clean := sanitize.UTF8(piece)
		if clean == "" {
			return true
		}
		if task.OnToken == nil {
			return true
		}
		return task.OnToken(clean)
	})
	generationDurationSeconds.Observe(time.Since(start).Seconds())

	d.setLastMetrics(metrics)
	d.totalTokens.Add(int64(metrics.TokensGenerated))
	tokensGeneratedTotal.WithLabelValues(task.ClientID).Add(float64(metrics.TokensGenerated))

	outcome := types.GenerationOutcome{SessionID: task.SessionID, Metrics: metrics, Err: err}
	if err != nil {
		tasksCompletedTotal.WithLabelValues("error").Inc()
	} else {
		tasksCompletedTotal.WithLabelValues("ok").Inc()
	}
	if task.OnComplete != nil {
		task.OnComplete(outcome)
	}
}

func (d *Dispatcher) incActive() {
	d.activeMu.Lock()
	d.active++
	d.activeMu.Unlock()
}

func (d *Dispatcher) decActive() {
	d.activeMu.Lock()
	d.active--
	d.activeMu.Unlock()
}

// ActiveCount returns the number of tasks currently being generated.
func (d *Dispatcher) ActiveCount() int {
	d.activeMu.Lock()
	defer d.activeMu.Unlock()
	return d.active
}

func (d *Dispatcher) setLastMetrics(m types.Metrics) {
	d.activeMu.Lock()
	d.last = m
	d.activeMu.Unlock()
}

// LastMetrics returns the most recently completed task's metrics.
func (d *Dispatcher) LastMetrics() types.Metrics {
	d.activeMu.Lock()
	defer d.activeMu.Unlock()
	return d.last
}

// TotalTokensGenerated returns the running count of tokens emitted across
// every completed task since the dispatcher started.
func (d *Dispatcher) TotalTokensGenerated() int64 {
	return d.totalTokens.Load()
}

// Shutdown wakes every worker so it exits after its current task completes;
// any tasks still queued are dropped. Idempotent: calling it twice is safe.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return
	}
	d.shutdown = true
	d.mu.Unlock()
	d.cond.Broadcast()
	d.wg.Wait()
}
