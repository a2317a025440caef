package bridge

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOutput records every MIDI message sent to it.
type fakeOutput struct {
	name    string
	openErr error
	sendErr error

	mu     sync.Mutex
	sent   [][]byte
	opened bool
	closed bool
}

func (o *fakeOutput) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return o.openErr
	}
	o.opened = true
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, append([]byte(nil), data...))
	return o.sendErr
}

func (o *fakeOutput) String() string { return o.name }

func (o *fakeOutput) messages() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.sent...)
}

func (o *fakeOutput) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func listOf(outs ...Output) OutputLister {
	return func() ([]Output, error) { return outs, nil }
}

// fakeSerial feeds queued chunks to the line reader and reports an empty
// read (the go.bug.st/serial timeout convention) when nothing is queued.
type fakeSerial struct {
	chunks chan string
	closed atomic.Bool
	reads  atomic.Int64
}

func newFakeSerial() *fakeSerial {
	return &fakeSerial{chunks: make(chan string, 64)}
}

func (p *fakeSerial) Read(b []byte) (int, error) {
	p.reads.Add(1)
	if p.closed.Load() {
		return 0, errors.New("port closed")
	}
	select {
	case s := <-p.chunks:
		return copy(b, s), nil
	case <-time.After(2 * time.Millisecond):
		return 0, nil
	}
}

func (p *fakeSerial) Close() error {
	p.closed.Store(true)
	return nil
}

func openerFor(p *fakeSerial) SerialOpener {
	return func(string) (io.ReadCloser, error) {
		p.closed.Store(false)
		return p, nil
	}
}

// fakeSink collects published records.
type fakeSink struct {
	mu     sync.Mutex
	events [][]string
	err    error
}

func (s *fakeSink) Publish(values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, values)
	return nil
}

func (s *fakeSink) published() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.events...)
}
