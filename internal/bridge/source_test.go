package bridge

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLineSource(port *fakeSerial, sink EventSink) *lineSource {
	return &lineSource{
		port:   "/dev/ttyTEST",
		open:   openerFor(port),
		events: sink,
		log:    discardLogger(),
	}
}

func runSource(s *lineSource, r *Run, q *handoff) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- s.run(r, q) }()
	return errc
}

func TestLineSourcePublishesAndForwards(t *testing.T) {
	port := newFakeSerial()
	sink := &fakeSink{}
	run := newRun("/dev/ttyTEST")
	q := newHandoff(8)
	errc := runSource(newLineSource(port, sink), run, q)

	port.chunks <- "500\t250\r\n"
	port.chunks <- "\n"
	port.chunks <- "1\t2\n"

	assert.Equal(t, Record{"500", "250"}, <-q.Receive())
	assert.Equal(t, Record{"1", "2"}, <-q.Receive())

	run.signalStop()
	require.NoError(t, waitErr(t, errc))

	assert.Equal(t, [][]string{{"500", "250"}, {"1", "2"}}, sink.published())
	assert.Equal(t, uint64(2), run.Status().Records)
	assert.True(t, port.closed.Load())
}

func TestLineSourceStopFlagPolledBetweenReads(t *testing.T) {
	port := newFakeSerial()
	sink := &fakeSink{}
	run := newRun("/dev/ttyTEST")
	errc := runSource(newLineSource(port, sink), run, newHandoff(1))

	require.Eventually(t, func() bool { return port.reads.Load() > 2 }, time.Second, time.Millisecond)
	run.signalStop()
	require.NoError(t, waitErr(t, errc))

	port.chunks <- "9\t9\n"
	assert.Empty(t, sink.published())
}

func TestLineSourceOpenFailure(t *testing.T) {
	s := &lineSource{
		port:   "/dev/missing",
		open:   func(string) (io.ReadCloser, error) { return nil, errors.New("no such file") },
		events: &fakeSink{},
		log:    discardLogger(),
	}
	err := waitErr(t, runSource(s, newRun("/dev/missing"), newHandoff(1)))
	assert.ErrorContains(t, err, "no such file")
}

func TestLineSourcePublishFailureIsFatal(t *testing.T) {
	port := newFakeSerial()
	sink := &fakeSink{err: errors.New("stream closed")}
	q := newHandoff(1)
	errc := runSource(newLineSource(port, sink), newRun("/dev/ttyTEST"), q)

	port.chunks <- "1\t2\n"
	err := waitErr(t, errc)
	assert.ErrorContains(t, err, "publish event")
	assert.Equal(t, 0, q.Len(), "record must not reach the sound worker")
}

func TestLineSourceExitsWhenReceiverGone(t *testing.T) {
	port := newFakeSerial()
	q := newHandoff(1)
	q.Detach()
	errc := runSource(newLineSource(port, &fakeSink{}), newRun("/dev/ttyTEST"), q)

	port.chunks <- "1\t2\n"
	assert.ErrorIs(t, waitErr(t, errc), ErrReceiverGone)
}

func TestLineSourceReadError(t *testing.T) {
	port := newFakeSerial()
	errc := runSource(newLineSource(port, &fakeSink{}), newRun("/dev/ttyTEST"), newHandoff(1))

	require.Eventually(t, func() bool { return port.reads.Load() > 0 }, time.Second, time.Millisecond)
	port.closed.Store(true)
	assert.ErrorContains(t, waitErr(t, errc), "port closed")
}

func TestLineSourceSkipsOpenWhenAlreadyStopped(t *testing.T) {
	opened := false
	s := &lineSource{
		port: "/dev/ttyTEST",
		open: func(string) (io.ReadCloser, error) {
			opened = true
			return newFakeSerial(), nil
		},
		events: &fakeSink{},
		log:    discardLogger(),
	}
	run := newRun("/dev/ttyTEST")
	run.signalStop()
	require.NoError(t, waitErr(t, runSource(s, run, newHandoff(1))))
	assert.False(t, opened)
}
