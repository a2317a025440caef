package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerState is the lifecycle position of one worker within a run.
type WorkerState string

const (
	WorkerStarting WorkerState = "starting"
	WorkerRunning  WorkerState = "running"
	WorkerExited   WorkerState = "exited"
	WorkerFailed   WorkerState = "failed"
)

const (
	roleSource = "source"
	roleSound  = "sound"
)

// WorkerStatus is a snapshot of one worker.
type WorkerStatus struct {
	State WorkerState `json:"state"`
	Error string      `json:"error,omitempty"`
}

// RunStatus is a snapshot of one pipeline run.
type RunStatus struct {
	ID        string       `json:"id"`
	Port      string       `json:"port"`
	StartedAt time.Time    `json:"started_at"`
	Records   uint64       `json:"records"`
	Source    WorkerStatus `json:"source"`
	Sound     WorkerStatus `json:"sound"`
	Done      bool         `json:"done"`
}

// Run is one Start-to-Stop lifecycle of the two workers. It doubles as the
// join handle returned by Coordinator.Start.
type Run struct {
	ID        string
	Port      string
	StartedAt time.Time

	// stop is the polled shutdown signal for the line source.
	stop atomic.Bool

	records atomic.Uint64

	mu     sync.Mutex
	source WorkerStatus
	sound  WorkerStatus

	wg         sync.WaitGroup
	sourceDone chan struct{}
	done       chan struct{}
}

func newRun(port string) *Run {
	return &Run{
		ID:         uuid.NewString(),
		Port:       port,
		StartedAt:  time.Now(),
		source:     WorkerStatus{State: WorkerStarting},
		sound:      WorkerStatus{State: WorkerStarting},
		sourceDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Done is closed once both workers have returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until both workers have returned or ctx ends.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopping reports whether the shutdown signal has been raised.
func (r *Run) Stopping() bool {
	return r.stop.Load()
}

func (r *Run) signalStop() {
	r.stop.Store(true)
}

func (r *Run) setState(role string, state WorkerState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := WorkerStatus{State: state}
	if err != nil {
		ws.Error = err.Error()
	}
	if role == roleSource {
		r.source = ws
	} else {
		r.sound = ws
	}
}

// Status returns a snapshot of the run.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := RunStatus{
		ID:        r.ID,
		Port:      r.Port,
		StartedAt: r.StartedAt,
		Records:   r.records.Load(),
		Source:    r.source,
		Sound:     r.sound,
	}
	select {
	case <-r.done:
		st.Done = true
	default:
	}
	return st
}
