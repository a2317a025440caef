package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// SerialOpener opens the named serial device. The returned reader must
// honour a bounded per-read timeout, reporting expiry as (0, nil) or as an
// error whose Timeout method returns true.
type SerialOpener func(name string) (io.ReadCloser, error)

// EventSink receives every parsed record for the user-facing event stream.
// A Publish error means the stream is broken and stops the line source.
type EventSink interface {
	Publish(values []string) error
}

type lineSource struct {
	port    string
	open    SerialOpener
	events  EventSink
	log     *slog.Logger
	metrics *Metrics

	// ready is called once the port is open.
	ready func()
}

// run owns the serial connection until the run's stop flag is raised, the
// port fails, or either sink goes away. The returned error is nil only for a
// requested stop.
func (s *lineSource) run(r *Run, q *handoff) error {
	if r.Stopping() {
		return nil
	}
	port, err := s.open(s.port)
	if err != nil {
		return fmt.Errorf("serial: open %q: %w", s.port, err)
	}
	defer func() {
		if err := port.Close(); err != nil {
			s.log.Warn("serial: close failed", "device", s.port, "err", err)
		}
	}()
	s.log.Info("serial: port opened", "device", s.port)
	if s.ready != nil {
		s.ready()
	}

	lines := newLineReader(port)
	for {
		if r.Stopping() {
			s.log.Info("serial: stop requested, exiting", "device", s.port)
			return nil
		}

		line, err := lines.ReadLine()
		switch {
		case errors.Is(err, errReadTimeout):
			continue
		case errors.Is(err, errLineTooLong):
			s.log.Warn("serial: discarding oversized line", "device", s.port, "limit", MaxLineLength)
			continue
		case err != nil:
			if r.Stopping() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("serial: %q closed by device", s.port)
			}
			return fmt.Errorf("serial: read %q: %w", s.port, err)
		}

		rec, ok := ParseLine(line)
		if !ok {
			continue
		}
		r.records.Add(1)
		s.metrics.recordRead()
		s.log.Debug("serial: record", "values", []string(rec))

		if err := s.events.Publish(rec); err != nil {
			return fmt.Errorf("serial: publish event: %w", err)
		}
		s.metrics.eventPublished()

		if err := q.Send(rec); err != nil {
			if errors.Is(err, ErrHandoffClosed) && r.Stopping() {
				return nil
			}
			return fmt.Errorf("serial: forward to midi worker: %w", err)
		}
		s.metrics.recordForwarded()
	}
}
