package analog

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Reply
		wantErr bool
	}{
		{
			name: "temperature sample",
			line: "T,40213",
			want: Reply{Tag: 'T', Value: 40213},
		},
		{
			name: "humidity sample max",
			line: "H,65535",
			want: Reply{Tag: 'H', Value: 65535},
		},
		{
			name: "power on",
			line: "P,1",
			want: Reply{Tag: 'P', Value: 1},
		},
		{
			name: "led off",
			line: "L,0",
			want: Reply{Tag: 'L', Value: 0},
		},
		{
			name: "error reply",
			line: "E,bad command",
			want: Reply{Tag: 'E', Message: "bad command"},
		},
		{
			name:    "invalid - missing separator",
			line:    "T40213",
			wantErr: true,
		},
		{
			name:    "invalid - long tag",
			line:    "TH,1",
			wantErr: true,
		},
		{
			name:    "invalid - unknown tag",
			line:    "X,1",
			wantErr: true,
		},
		{
			name:    "invalid - sample out of range",
			line:    "T,70000",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric sample",
			line:    "H,abc",
			wantErr: true,
		},
		{
			name:    "invalid - power state",
			line:    "P,2",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakePort answers each command written to it with a scripted reply.
type fakePort struct {
	serial.Port

	mu      sync.Mutex
	replies map[string]string
	written []string
	out     bytes.Buffer
	closed  bool
}

func newFakePort(replies map[string]string) *fakePort {
	return &fakePort{replies: replies}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmd := strings.TrimSpace(string(b))
	p.written = append(p.written, cmd)
	if reply, ok := p.replies[cmd]; ok {
		p.out.WriteString(reply)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.out.Len() == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	defer p.mu.Unlock()
	return p.out.Read(b)
}

func (p *fakePort) ResetInputBuffer() error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func TestSerial_Exchange(t *testing.T) {
	port := newFakePort(map[string]string{
		"T":  "T,12000\r\n",
		"H":  "L,1\nH,42500\n", // stale line first
		"P1": "P,1\n",
		"P0": "P,0\n",
		"L1": "L,1\n",
		"L0": "L,0\n",
	})

	dev := New("fake", 0, 50*time.Millisecond)
	dev.attach(port)
	assert.True(t, dev.IsConnected())

	require.NoError(t, dev.SetPower(true))
	v, err := dev.Read(Temperature)
	require.NoError(t, err)
	assert.Equal(t, uint16(12000), v)
	require.NoError(t, dev.SetPower(false))

	v, err = dev.Read(Humidity)
	require.NoError(t, err)
	assert.Equal(t, uint16(42500), v)

	require.NoError(t, dev.Toggle())
	require.NoError(t, dev.Toggle())

	assert.Equal(t, []string{"P1", "T", "P0", "H", "L1", "L0"}, port.commands())

	require.NoError(t, dev.Close())
	assert.True(t, port.closed)
	assert.False(t, dev.IsConnected())
}

func TestSerial_ErrorReply(t *testing.T) {
	port := newFakePort(map[string]string{
		"T": "E,adc busy\n",
	})

	dev := New("fake", 0, 50*time.Millisecond)
	dev.attach(port)

	_, err := dev.Read(Temperature)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adc busy")
}

func TestSerial_Timeout(t *testing.T) {
	dev := New("fake", 0, 20*time.Millisecond)
	dev.attach(newFakePort(nil))

	start := time.Now()
	_, err := dev.Read(Humidity)
	assert.ErrorIs(t, err, errReplyTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSerial_NotConnected(t *testing.T) {
	dev := New("fake", 0, 0)

	_, err := dev.Read(Temperature)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, dev.SetPower(true), ErrNotConnected)
	assert.NoError(t, dev.Close())
}

func TestSerial_PowerMismatch(t *testing.T) {
	dev := New("fake", 0, 50*time.Millisecond)
	dev.attach(newFakePort(map[string]string{"P1": "P,0\n"}))

	assert.Error(t, dev.SetPower(true))
}

func TestPorts(t *testing.T) {
	tests := []struct {
		name    string
		details []*enumerator.PortDetails
		err     error
		want    []Port
		wantErr bool
	}{
		{
			name: "none",
			want: []Port{},
		},
		{
			name: "usb and native",
			details: []*enumerator.PortDetails{
				{Name: "/dev/ttyACM0", IsUSB: true, VID: "2E8A", PID: "000A", Product: "Pico"},
				{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "7523"},
				{Name: "/dev/ttyS0"},
			},
			want: []Port{
				{Name: "/dev/ttyACM0", Description: "Pico"},
				{Name: "/dev/ttyUSB0", Description: "USB 1A86:7523"},
				{Name: "/dev/ttyS0", Description: "/dev/ttyS0"},
			},
		},
		{
			name:    "enumeration fails",
			err:     errors.New("permission denied"),
			wantErr: true,
		},
	}

	orig := listPorts
	defer func() { listPorts = orig }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listPorts = func() ([]*enumerator.PortDetails, error) {
				return tt.details, tt.err
			}

			got, err := Ports()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
