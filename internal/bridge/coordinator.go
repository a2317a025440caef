package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
)

// ErrNoPort is returned by Start when no serial port name was given.
var ErrNoPort = errors.New("bridge: no serial port given")

// State is the coordinator's externally visible lifecycle position.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Status is the health snapshot returned by Coordinator.Status.
type Status struct {
	State   State      `json:"state"`
	Scaling string     `json:"scaling"`
	Run     *RunStatus `json:"run,omitempty"`
}

// Options wires a Coordinator to its collaborators.
type Options struct {
	OpenSerial    SerialOpener
	Outputs       OutputLister
	Events        EventSink
	Policy        Policy
	QueueCapacity int
	Metrics       *Metrics
	Logger        *slog.Logger
}

// Coordinator arbitrates start and stop requests and holds the two
// cross-worker signals: the current run's stop flag, polled by the line
// source, and the handoff queue's producer handle, whose closure ends the
// sound worker.
type Coordinator struct {
	opts Options
	log  *slog.Logger

	mu    sync.Mutex
	run   *Run
	queue *handoff // present iff a run is active
}

// NewCoordinator returns an idle Coordinator.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	return &Coordinator{opts: opts, log: opts.Logger}
}

// Start launches a new pipeline run on port and returns without waiting for
// the workers. A run that is still active is told to stop first and its
// queue is closed; the new run's line source waits for the old one to
// release the port before opening it.
func (c *Coordinator) Start(port string) (*Run, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		return nil, ErrNoPort
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.run
	if c.queue != nil {
		c.log.Warn("bridge: start while running, replacing previous run", "previous", prev.ID)
		prev.signalStop()
		c.queue.Close()
	}

	run := newRun(port)
	q := newHandoff(c.opts.QueueCapacity)
	c.run, c.queue = run, q
	c.opts.Metrics.runStarted()
	c.log.Info("bridge: starting", "run", run.ID, "device", port, "scaling", c.opts.Policy.String())

	sound := &soundWorker{
		outputs: c.opts.Outputs,
		policy:  c.opts.Policy,
		log:     c.log.With("run", run.ID),
		metrics: c.opts.Metrics,
		ready:   func() { run.setState(roleSound, WorkerRunning, nil) },
	}
	source := &lineSource{
		port:    port,
		open:    c.opts.OpenSerial,
		events:  c.opts.Events,
		log:     c.log.With("run", run.ID),
		metrics: c.opts.Metrics,
		ready:   func() { run.setState(roleSource, WorkerRunning, nil) },
	}

	run.wg.Add(2)
	go c.supervise(run, roleSound, nil, func() error { return sound.run(q) })
	go c.supervise(run, roleSource, run.sourceDone, func() error {
		if prev != nil {
			<-prev.sourceDone
		}
		return source.run(run, q)
	})
	go func() {
		run.wg.Wait()
		close(run.done)
		c.log.Info("bridge: run finished", "run", run.ID)
	}()

	return run, nil
}

// supervise runs one worker to completion, turning a panic into a failed
// worker state. Workers release the handoff queue in their own defers, so a
// panicking sound worker still detaches and frees the line source.
func (c *Coordinator) supervise(run *Run, role string, exited chan struct{}, work func() error) {
	defer run.wg.Done()
	if exited != nil {
		defer close(exited)
	}
	c.opts.Metrics.workerUp(role)
	defer c.opts.Metrics.workerDown(role)

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				c.log.Error("bridge: worker panicked", "run", run.ID, "role", role, "panic", p, "stack", string(debug.Stack()))
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return work()
	}()

	if err != nil {
		c.log.Error("bridge: worker stopped", "run", run.ID, "role", role, "err", err)
		run.setState(role, WorkerFailed, err)
		return
	}
	c.log.Info("bridge: worker exited", "run", run.ID, "role", role)
	run.setState(role, WorkerExited, nil)
}

// Stop raises the current run's stop flag and drops the producer handle. It
// does not wait for the workers; use StopAndWait or Run.Wait for that.
func (c *Coordinator) Stop() {
	c.stop()
}

func (c *Coordinator) stop() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil {
		c.run.signalStop()
	}
	if c.queue == nil {
		return nil
	}
	q := c.queue
	c.queue = nil
	q.Close()
	c.log.Info("bridge: stop requested, midi queue closed", "run", c.run.ID)
	return c.run
}

// StopAndWait stops the current run and waits for both of its workers to
// return.
func (c *Coordinator) StopAndWait(ctx context.Context) error {
	run := c.stop()
	if run == nil {
		c.mu.Lock()
		run = c.run
		c.mu.Unlock()
	}
	if run == nil {
		return nil
	}
	return run.Wait(ctx)
}

// Current returns the most recent run, or nil if Start was never called.
func (c *Coordinator) Current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

// Status reports whether a run is active and how its workers are doing.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	run, active := c.run, c.queue != nil
	c.mu.Unlock()

	st := Status{State: StateIdle, Scaling: c.opts.Policy.String()}
	if run == nil {
		return st
	}
	rs := run.Status()
	st.Run = &rs
	switch {
	case active:
		st.State = StateRunning
	case !rs.Done:
		st.State = StateStopping
	}
	return st
}
