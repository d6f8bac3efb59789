// Package typist provides the core typing engine: a queue of text jobs
// executed one at a time against an injection backend.
package typist

import (
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"ghostkeys/internal/config"
	"ghostkeys/internal/injector"
)

// Engine states reported via Status and the state callback.
const (
	StateIdle    = "idle"
	StateWaiting = "waiting"
	StateTyping  = "typing"
)

// queueSize bounds how many jobs can wait behind the one being typed.
const queueSize = 64

// Request describes a typing submission. Delay and Interval override the
// configured defaults when non-nil; nil means "use the config value", which
// is distinct from an explicit zero.
type Request struct {
	Text     string
	Source   string
	Delay    *time.Duration
	Interval *time.Duration
}

// Job is a queued or running typing operation.
type Job struct {
	ID       int64
	Text     string
	Source   string
	Delay    time.Duration
	Interval time.Duration

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	mu    sync.Mutex
	err   error
	typed int
	total int
}

// Cancel requests that this job stop. Safe to call at any time, from any
// goroutine, and more than once.
func (j *Job) Cancel() {
	j.cancelOnce.Do(func() { close(j.cancel) })
}

// Done is closed when the job has finished, failed, or been canceled.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the job's outcome. Only meaningful after Done is closed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Progress returns how many units the job has injected out of its total.
func (j *Job) Progress() (typed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.typed, j.total
}

func (j *Job) canceled() bool {
	select {
	case <-j.cancel:
		return true
	default:
		return false
	}
}

// Status is a snapshot of the engine for the API and UI.
type Status struct {
	// State is "idle", "waiting" (start delay running) or "typing"
	State string `json:"state"`

	// Queued is the number of jobs waiting behind the current one
	Queued int `json:"queued"`

	// JobID identifies the job currently waiting or typing, 0 when idle
	JobID int64 `json:"job_id,omitempty"`

	// Typed and Total report progress through the current job in units
	// (one per character, one per key tap)
	Typed int `json:"typed"`
	Total int `json:"total"`
}

// Engine coordinates typing jobs. Jobs run strictly one at a time in
// submission order; a fresh backend is acquired per job and released when
// the job ends, so a wedged backend never outlives its job.
type Engine struct {
	mu        sync.Mutex
	configMgr *config.Manager
	queue     chan *Job
	pending   map[int64]*Job
	current   *Job
	state     string
	nextID    int64
	closed    bool

	// newBackend is swapped out by tests
	newBackend func(backend string) (injector.Injector, error)

	// Callbacks for UI notifications
	onState    func(state string)
	onProgress func(job *Job, typed, total int)
	onJobDone  func(job *Job, err error)

	wg sync.WaitGroup
}

// New creates a typing engine and starts its worker.
func New(configMgr *config.Manager) *Engine {
	return NewWithBackendFactory(configMgr, injector.New)
}

// NewWithBackendFactory creates an engine that acquires injection backends
// through f instead of the default factory. Tests use this to keep jobs away
// from the real input system.
func NewWithBackendFactory(configMgr *config.Manager, f func(backend string) (injector.Injector, error)) *Engine {
	e := &Engine{
		configMgr:  configMgr,
		queue:      make(chan *Job, queueSize),
		pending:    make(map[int64]*Job),
		state:      StateIdle,
		newBackend: f,
	}
	e.wg.Add(1)
	go e.worker()
	return e
}

// SetOnState sets the callback for engine state changes
func (e *Engine) SetOnState(callback func(state string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onState = callback
}

// SetOnProgress sets the callback for typing progress updates
func (e *Engine) SetOnProgress(callback func(job *Job, typed, total int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProgress = callback
}

// SetOnJobDone sets the callback fired when a job finishes or fails
func (e *Engine) SetOnJobDone(callback func(job *Job, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onJobDone = callback
}

// Submit queues text for typing. An empty text completes immediately without
// touching any backend: there is nothing to type, so nothing is acquired.
func (e *Engine) Submit(req Request) (*Job, error) {
	cfg := e.configMgr.Get()

	delay := cfg.StartDelay()
	if req.Delay != nil {
		delay = *req.Delay
	}
	interval := cfg.CharInterval()
	if req.Interval != nil {
		interval = *req.Interval
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.nextID++
	job := &Job{
		ID:       e.nextID,
		Text:     req.Text,
		Source:   req.Source,
		Delay:    delay,
		Interval: interval,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	if req.Text == "" {
		e.mu.Unlock()
		close(job.done)
		log.Printf("Typist: Job %d from %s has no text, nothing to do", job.ID, job.Source)
		return job, nil
	}

	select {
	case e.queue <- job:
		e.pending[job.ID] = job
	default:
		e.mu.Unlock()
		return nil, ErrQueueFull
	}
	e.mu.Unlock()

	log.Printf("Typist: Queued job %d from %s (%d chars, delay %v, interval %v)",
		job.ID, job.Source, utf8.RuneCountInString(job.Text), delay, interval)
	return job, nil
}

// Cancel stops the job with the given ID, whether queued or running.
// It reports whether such a job was found.
func (e *Engine) Cancel(id int64) bool {
	e.mu.Lock()
	job, ok := e.pending[id]
	if !ok && e.current != nil && e.current.ID == id {
		job, ok = e.current, true
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	log.Printf("Typist: Canceling job %d", id)
	job.Cancel()
	return true
}

// CancelAll stops the running job and every queued one. It returns the
// number of jobs canceled.
func (e *Engine) CancelAll() int {
	e.mu.Lock()
	jobs := make([]*Job, 0, len(e.pending)+1)
	if e.current != nil {
		jobs = append(jobs, e.current)
	}
	for _, job := range e.pending {
		jobs = append(jobs, job)
	}
	e.mu.Unlock()

	for _, job := range jobs {
		job.Cancel()
	}
	if len(jobs) > 0 {
		log.Printf("Typist: Canceled %d job(s)", len(jobs))
	}
	return len(jobs)
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		State:  e.state,
		Queued: len(e.queue),
	}
	if e.current != nil {
		st.JobID = e.current.ID
		st.Typed, st.Total = e.current.Progress()
	}
	return st
}

// Close stops the engine. Queued jobs are canceled; the call returns once
// the worker has drained.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.CancelAll()
	e.wg.Wait()
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for job := range e.queue {
		e.runJob(job)

		e.mu.Lock()
		idle := len(e.queue) == 0
		e.mu.Unlock()
		if idle {
			e.setState(StateIdle)
		}
	}
	e.setState(StateIdle)
}

func (e *Engine) runJob(job *Job) {
	e.mu.Lock()
	delete(e.pending, job.ID)
	e.current = job
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
	}()

	if job.canceled() {
		e.finish(job, ErrCanceled)
		return
	}

	if job.Delay > 0 {
		e.setState(StateWaiting)
		timer := time.NewTimer(job.Delay)
		select {
		case <-timer.C:
		case <-job.cancel:
			timer.Stop()
			e.finish(job, ErrCanceled)
			return
		}
	}

	backend := e.configMgr.Get().Typing.Backend
	inj, err := e.newBackend(backend)
	if err != nil {
		log.Printf("Typist: Job %d could not acquire backend %q: %v", job.ID, backend, err)
		e.finish(job, fmt.Errorf("acquire %q backend: %w", backend, err))
		return
	}
	defer func() {
		if cerr := inj.Close(); cerr != nil {
			log.Printf("Typist: Job %d backend release: %v", job.ID, cerr)
		}
	}()

	e.setState(StateTyping)
	log.Printf("Typist: Job %d typing via %s backend", job.ID, inj.Name())

	segs := segments(job.Text)
	total := countUnits(segs)
	job.mu.Lock()
	job.total = total
	job.mu.Unlock()

	typed := 0
	for _, seg := range segs {
		if job.canceled() {
			e.finish(job, ErrCanceled)
			return
		}

		if seg.key != "" {
			if err := inj.TapKey(seg.key); err != nil {
				e.finish(job, fmt.Errorf("tap %s: %w", seg.key, err))
				return
			}
			typed++
			e.advance(job, typed, total)
			if err := e.pace(job); err != nil {
				e.finish(job, err)
				return
			}
			continue
		}

		if job.Interval <= 0 {
			// Inject the whole run at once at backend-native speed
			if err := inj.TypeText(seg.text); err != nil {
				e.finish(job, fmt.Errorf("inject text: %w", err))
				return
			}
			typed += utf8.RuneCountInString(seg.text)
			e.advance(job, typed, total)
			continue
		}

		// Paced mode: one character at a time with a sleep between
		for _, r := range seg.text {
			if job.canceled() {
				e.finish(job, ErrCanceled)
				return
			}
			if err := inj.TypeText(string(r)); err != nil {
				e.finish(job, fmt.Errorf("inject text: %w", err))
				return
			}
			typed++
			e.advance(job, typed, total)
			if err := e.pace(job); err != nil {
				e.finish(job, err)
				return
			}
		}
	}

	e.finish(job, nil)
}

// pace sleeps for the job's interval, leaving early on cancel.
func (e *Engine) pace(job *Job) error {
	if job.Interval <= 0 {
		return nil
	}
	timer := time.NewTimer(job.Interval)
	select {
	case <-timer.C:
		return nil
	case <-job.cancel:
		timer.Stop()
		return ErrCanceled
	}
}

func (e *Engine) advance(job *Job, typed, total int) {
	job.mu.Lock()
	job.typed = typed
	job.mu.Unlock()

	e.mu.Lock()
	cb := e.onProgress
	e.mu.Unlock()
	if cb != nil {
		cb(job, typed, total)
	}
}

func (e *Engine) finish(job *Job, err error) {
	job.mu.Lock()
	job.err = err
	job.mu.Unlock()
	close(job.done)

	if err != nil {
		log.Printf("Typist: Job %d ended: %v", job.ID, err)
	} else {
		log.Printf("Typist: Job %d finished", job.ID)
	}

	e.mu.Lock()
	cb := e.onJobDone
	e.mu.Unlock()
	if cb != nil {
		cb(job, err)
	}
}

func (e *Engine) setState(state string) {
	e.mu.Lock()
	if e.state == state {
		e.mu.Unlock()
		return
	}
	e.state = state
	cb := e.onState
	e.mu.Unlock()

	if cb != nil {
		cb(state)
	}
}
