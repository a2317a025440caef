// Package serialport opens the sensor's serial device and enumerates the
// ports a user can pick from.
package serialport

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// BaudRate is fixed; the sensor firmware only speaks 9600 8N1.
	BaudRate = 9600

	// ReadTimeout bounds each read so the line source can poll its stop
	// flag.
	ReadTimeout = 100 * time.Millisecond
)

// Mode is the fixed port configuration.
var Mode = &serial.Mode{
	BaudRate: BaudRate,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// Open opens the named serial device at the fixed mode with a bounded read
// timeout. An expired timeout surfaces as a (0, nil) read.
func Open(name string) (io.ReadCloser, error) {
	p, err := serial.Open(name, Mode)
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", name, BaudRate, err)
	}
	if err := p.SetReadTimeout(ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return p, nil
}

// USBInfo describes a port whose device identified itself over USB.
type USBInfo struct {
	VendorID     uint16 `json:"vid"`
	ProductID    uint16 `json:"pid"`
	Product      string `json:"product,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// PortInfo is one entry of the port list. USB is nil for devices that are
// not USB attached.
type PortInfo struct {
	Name string   `json:"port_name"`
	USB  *USBInfo `json:"port_type"`
}

// List returns the currently attached ports in enumeration order. An
// enumeration failure is logged and yields an empty list.
func List(log *slog.Logger) []PortInfo {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Error("serial: failed to enumerate ports", "err", err)
		return []PortInfo{}
	}
	return fromDetails(details)
}

func fromDetails(details []*enumerator.PortDetails) []PortInfo {
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		info := PortInfo{Name: d.Name}
		if d.IsUSB {
			info.USB = &USBInfo{
				VendorID:     parseHexID(d.VID),
				ProductID:    parseHexID(d.PID),
				Product:      d.Product,
				SerialNumber: d.SerialNumber,
			}
		}
		ports = append(ports, info)
	}
	return ports
}

// parseHexID parses the hex VID/PID strings the enumerator reports ("2341").
func parseHexID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
