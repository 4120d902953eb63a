package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cart-meal-planner/internal/regen"
	"cart-meal-planner/internal/schedule"
)

// JobStatus is a snapshot of a background regeneration.
type JobStatus struct {
	Key        string            `json:"key"`
	Running    bool              `json:"running"`
	Cancelled  bool              `json:"cancelled"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Version    int64             `json:"version"`
	Replaced   []schedule.SlotID `json:"replaced,omitempty"`
	Emptied    []schedule.SlotID `json:"emptied,omitempty"`
	Problems   []string          `json:"problems,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type job struct {
	key       string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu         sync.Mutex
	finishedAt time.Time
	version    int64
	report     *regen.Report
	err        error
}

func (j *job) finish(version int64, report *regen.Report, err error) {
	j.mu.Lock()
	j.finishedAt = time.Now()
	j.version = version
	j.report = report
	j.err = err
	j.mu.Unlock()
	close(j.done)
}

func (j *job) status() JobStatus {
	st := JobStatus{Key: j.key, StartedAt: j.startedAt}
	select {
	case <-j.done:
	default:
		st.Running = true
		return st
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	finished := j.finishedAt
	st.FinishedAt = &finished
	st.Version = j.version
	st.Cancelled = errors.Is(j.err, context.Canceled)
	if j.err != nil && !st.Cancelled {
		st.Error = j.err.Error()
	}
	if j.report != nil {
		st.Replaced = j.report.Replaced
		st.Emptied = j.report.Emptied
		st.Problems = j.report.Messages()
	}
	return st
}

// jobRegistry keeps the latest regeneration per plan key.
type jobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*job)}
}

func (r *jobRegistry) start(key string, cancel context.CancelFunc) (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[key]; ok && j.status().Running {
		return nil, fmt.Errorf("%w for %s", ErrRegenerationRunning, key)
	}
	j := &job{key: key, startedAt: time.Now(), cancel: cancel, done: make(chan struct{})}
	r.jobs[key] = j
	return j, nil
}

func (r *jobRegistry) get(key string) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	return j, ok
}

func (r *jobRegistry) isRunning(key string) bool {
	j, ok := r.get(key)
	return ok && j.status().Running
}

func (r *jobRegistry) running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.status().Running {
			n++
		}
	}
	return n
}

// StartRegeneration checks the caller's version, then regenerates unlocked
// slots on a background goroutine that holds the plan's write lock until it
// finishes or is cancelled. Every replaced slot is committed as it lands.
func (s *Service) StartRegeneration(ctx context.Context, ref PlanRef, opts WriteOptions) (View, error) {
	key := ref.Key()
	release, err := s.acquire(ctx, key)
	if err != nil {
		return View{}, err
	}

	current, err := s.load(ctx, key)
	if err != nil {
		release()
		return View{}, err
	}
	if err := checkVersion(current, opts); err != nil {
		release()
		return View{}, err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j, err := s.jobs.start(key, cancel)
	if err != nil {
		cancel()
		release()
		return View{}, err
	}

	go func() {
		defer release()
		defer cancel()
		final, report, err := s.regenerate(jobCtx, current, opts.source())
		j.finish(final.Version, report, err)
	}()
	return viewOf(current), nil
}

// CancelRegeneration stops a running background regeneration. Slots already
// replaced keep their new contents.
func (s *Service) CancelRegeneration(ref PlanRef) error {
	j, ok := s.jobs.get(ref.Key())
	if !ok || !j.status().Running {
		return ErrNoRegeneration
	}
	j.cancel()
	return nil
}

// RegenerationStatus reports the latest background regeneration of a plan.
func (s *Service) RegenerationStatus(ref PlanRef) (JobStatus, error) {
	j, ok := s.jobs.get(ref.Key())
	if !ok {
		return JobStatus{}, ErrNoRegeneration
	}
	return j.status(), nil
}

// WaitRegeneration blocks until the plan's background regeneration ends.
func (s *Service) WaitRegeneration(ctx context.Context, ref PlanRef) (JobStatus, error) {
	j, ok := s.jobs.get(ref.Key())
	if !ok {
		return JobStatus{}, ErrNoRegeneration
	}
	select {
	case <-j.done:
		return j.status(), nil
	case <-ctx.Done():
		return JobStatus{}, ctx.Err()
	}
}
