package analog

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// DefaultBaudRate is the USB CDC baud rate of the bridge firmware.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds a single command/reply exchange.
	DefaultTimeout = 500 * time.Millisecond
)

var errReplyTimeout = errors.New("timed out waiting for reply")

// Reply is one line sent back by the bridge firmware.
// Format: tag,value where tag is T, H, P, L or E.
type Reply struct {
	Tag     byte
	Value   uint16
	Message string // Only set for E replies
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial talks to the bridge firmware over a serial port. Every operation is a
// synchronous command/reply exchange.
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	conn      serial.Port
	mu        sync.Mutex
	connected bool
	led       bool

	pending []byte
	chunk   [64]byte
}

// New creates a new Serial bridge with the specified port, baud rate and reply timeout.
func New(port string, baudRate int, timeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		timeout:  timeout,
	}
}

// listPorts enumerates the serial ports. Replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// Ports returns a list of available serial ports. USB ports are described by
// their product name, or by VID:PID when the product is unknown.
func Ports() ([]Port, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, p := range ports {
		desc := p.Name
		switch {
		case p.IsUSB && p.Product != "":
			desc = p.Product
		case p.IsUSB:
			desc = fmt.Sprintf("USB %s:%s", p.VID, p.PID)
		}
		result = append(result, Port{
			Name:        p.Name,
			Description: desc,
		})
	}

	return result, nil
}

// Connect opens the serial port.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	if err := port.SetReadTimeout(d.timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", d.port, err)
	}

	d.attach(port)
	return nil
}

// attach takes ownership of an open port.
func (d *Serial) attach(port serial.Port) {
	d.conn = port
	d.connected = true
	d.pending = d.pending[:0]
}

// Close closes the serial port.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false
	return nil
}

// IsConnected returns whether the bridge is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Read returns one raw sample of the given channel.
func (d *Serial) Read(ch Channel) (uint16, error) {
	var cmd string
	switch ch {
	case Temperature:
		cmd = "T"
	case Humidity:
		cmd = "H"
	default:
		return 0, fmt.Errorf("unknown channel %d", ch)
	}

	reply, err := d.exchange(cmd)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s channel: %w", ch, err)
	}
	return reply.Value, nil
}

// SetPower switches the temperature sensor power rail.
func (d *Serial) SetPower(on bool) error {
	reply, err := d.exchange(onOff("P", on))
	if err != nil {
		return fmt.Errorf("failed to switch sensor power: %w", err)
	}
	if (reply.Value == 1) != on {
		return fmt.Errorf("sensor power reported %d", reply.Value)
	}
	return nil
}

// Set switches the status LED.
func (d *Serial) Set(on bool) error {
	if _, err := d.exchange(onOff("L", on)); err != nil {
		return fmt.Errorf("failed to switch LED: %w", err)
	}
	d.mu.Lock()
	d.led = on
	d.mu.Unlock()
	return nil
}

// Toggle inverts the status LED.
func (d *Serial) Toggle() error {
	d.mu.Lock()
	on := !d.led
	d.mu.Unlock()
	return d.Set(on)
}

func onOff(cmd string, on bool) string {
	if on {
		return cmd + "1"
	}
	return cmd + "0"
}

// exchange sends one command and waits for the reply carrying the same tag.
// Stale or unparsable lines are skipped until the timeout elapses.
func (d *Serial) exchange(cmd string) (Reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return Reply{}, ErrNotConnected
	}

	d.pending = d.pending[:0]
	if err := d.conn.ResetInputBuffer(); err != nil {
		log.Printf("Failed to reset serial input buffer: %v", err)
	}

	if _, err := d.conn.Write([]byte(cmd + "\n")); err != nil {
		return Reply{}, fmt.Errorf("failed to send command %q: %w", cmd, err)
	}

	deadline := time.Now().Add(d.timeout)
	for {
		line, err := d.readLine(deadline)
		if err != nil {
			return Reply{}, err
		}
		if line == "" {
			continue
		}

		reply, err := parseLine(line)
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", line, err)
			continue
		}

		if reply.Tag == 'E' {
			return Reply{}, fmt.Errorf("bridge rejected %q: %s", cmd, reply.Message)
		}
		if reply.Tag != cmd[0] {
			continue
		}
		return reply, nil
	}
}

// readLine returns the next newline-terminated line. The port read timeout
// keeps each Read bounded, so the deadline is checked between reads.
func (d *Serial) readLine(deadline time.Time) (string, error) {
	for {
		if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
			line := strings.TrimSpace(string(d.pending[:i]))
			d.pending = append(d.pending[:0], d.pending[i+1:]...)
			return line, nil
		}

		if !time.Now().Before(deadline) {
			return "", errReplyTimeout
		}

		n, err := d.conn.Read(d.chunk[:])
		if err != nil {
			return "", fmt.Errorf("failed to read from serial port: %w", err)
		}
		d.pending = append(d.pending, d.chunk[:n]...)
	}
}

// parseLine parses a reply line from the bridge.
// Format: tag,value
// Example: T,40213
func parseLine(line string) (Reply, error) {
	tag, value, ok := strings.Cut(line, ",")
	if !ok {
		return Reply{}, fmt.Errorf("invalid line format: expected tag,value")
	}
	if len(tag) != 1 {
		return Reply{}, fmt.Errorf("invalid tag %q", tag)
	}

	switch tag[0] {
	case 'E':
		return Reply{Tag: 'E', Message: value}, nil
	case 'T', 'H':
		v, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return Reply{}, fmt.Errorf("invalid sample: %w", err)
		}
		return Reply{Tag: tag[0], Value: uint16(v)}, nil
	case 'P', 'L':
		if value != "0" && value != "1" {
			return Reply{}, fmt.Errorf("invalid state %q", value)
		}
		return Reply{Tag: tag[0], Value: uint16(value[0] - '0')}, nil
	default:
		return Reply{}, fmt.Errorf("unknown tag %q", tag)
	}
}
