package bridge

import (
	"errors"
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
)

// ErrNoDestinations is the sound worker's startup failure when no MIDI
// output exists.
var ErrNoDestinations = errors.New("midi: no output ports found")

// Output is a MIDI destination. drivers.Out from gomidi satisfies it.
type Output interface {
	Open() error
	Close() error
	Send(data []byte) error
	String() string
}

// OutputLister enumerates the currently available MIDI destinations.
type OutputLister func() ([]Output, error)

type soundWorker struct {
	outputs OutputLister
	policy  Policy
	log     *slog.Logger
	metrics *Metrics

	// ready is called once the output is open.
	ready func()
}

// run owns one MIDI output until q is closed. Startup failures are returned
// immediately; per-message send failures are logged and skipped.
func (w *soundWorker) run(q *handoff) error {
	defer q.Detach()

	outs, err := w.outputs()
	if err != nil {
		return fmt.Errorf("midi: list outputs: %w", err)
	}
	if len(outs) == 0 {
		return ErrNoDestinations
	}
	out := outs[0]
	if err := out.Open(); err != nil {
		return fmt.Errorf("midi: open %q: %w", out.String(), err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			w.log.Warn("midi: close failed", "device", out.String(), "err", err)
		}
	}()
	w.log.Info("midi: output connected", "device", out.String(), "scaling", w.policy.String())
	if w.ready != nil {
		w.ready()
	}

	for rec := range q.Receive() {
		var values [len(Voices)]ControlValue
		for i, v := range Voices {
			values[i] = w.policy.Value(rec, v.Field)
		}
		w.log.Debug("midi: translated", "raw", []string(rec), "values", values)
		for i, v := range Voices {
			w.send(out, "activate", v, values[i])
		}
	}

	for _, v := range Voices {
		w.send(out, "deactivate", v, 0)
	}
	w.log.Info("midi: queue closed, shutting down", "device", out.String())
	return nil
}

func (w *soundWorker) send(out Output, kind string, v Voice, value ControlValue) {
	msg := midi.NoteOn(v.Channel, v.Key, uint8(value))
	err := out.Send(msg)
	w.metrics.soundMessage(kind, err)
	if err != nil {
		w.log.Error("midi: send failed", "kind", kind, "note", v.String(), "value", value, "err", err)
	}
}
