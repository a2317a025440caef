package midiout

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/serial-midi-bridge/internal/bridge"
)

// Driver enumerates MIDI output ports through rtmidi. One Driver lives for
// the whole process; each pipeline run opens its own port from it.
type Driver struct {
	mu       sync.Mutex
	drv      *rtmididrv.Driver
	excluded []string
	log      *slog.Logger
}

// New initialises the rtmidi driver. Outputs whose name contains any of the
// excluded patterns (case-insensitive) are never offered. Call Close when
// done.
func New(excluded []string, log *slog.Logger) (*Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &Driver{drv: drv, excluded: excluded, log: log}, nil
}

// Close shuts down the rtmidi driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.drv.Close(); err != nil {
		d.log.Warn("midi: driver close failed", "err", err)
	}
}

// Outputs lists the usable output ports in driver order.
func (d *Driver) Outputs() ([]bridge.Output, error) {
	d.mu.Lock()
	outs, err := d.drv.Outs()
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	return filter(outs, d.excluded, d.log), nil
}

func filter(outs []drivers.Out, excluded []string, log *slog.Logger) []bridge.Output {
	var usable []bridge.Output
	var names []string
	for _, out := range outs {
		name := out.String()
		if matchesAny(name, excluded) {
			log.Debug("midi: output excluded", "device", name)
			continue
		}
		usable = append(usable, out)
		names = append(names, name)
	}
	log.Debug("midi: outputs found", "count", len(usable), "devices", strings.Join(names, ", "))
	return usable
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if pat != "" && containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
