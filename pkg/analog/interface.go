package analog

import "errors"

// ErrNotConnected is returned by operations on a closed bridge.
var ErrNotConnected = errors.New("not connected")

// Channel selects one analog input of the bridge.
type Channel int

const (
	Temperature Channel = iota
	Humidity
)

func (c Channel) String() string {
	switch c {
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	default:
		return "unknown"
	}
}

// Source provides raw 16-bit analog samples and the temperature sensor power rail.
type Source interface {
	Connect() error
	Close() error
	Read(ch Channel) (uint16, error)
	SetPower(on bool) error
	IsConnected() bool
}

// Indicator is a status LED.
type Indicator interface {
	Set(on bool) error
	Toggle() error
}

// Ensure Serial implements Source and Indicator.
var (
	_ Source    = (*Serial)(nil)
	_ Indicator = (*Serial)(nil)
)

// Ensure Mock implements Source and Indicator.
var (
	_ Source    = (*Mock)(nil)
	_ Indicator = (*Mock)(nil)
)
