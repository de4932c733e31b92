package analog

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/envmon/pkg/config"
)

// Mock simulates the ADC bridge for testing and development.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	connected bool
	startTime time.Time

	power       bool
	powerCycles int // Number of off->on transitions
	led         bool
	ledToggles  int

	queued map[Channel][]uint16
	errs   map[Channel]error
	reads  map[Channel]int
}

// NewMock creates a new mocked bridge instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	return &Mock{
		cfg:    cfg,
		queued: make(map[Channel][]uint16),
		errs:   make(map[Channel]error),
		reads:  make(map[Channel]int),
	}
}

// Connect simulates connecting to the bridge.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()
	return nil
}

// Close stops the mocked bridge.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.power = false
	return nil
}

// IsConnected returns whether the bridge is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Queue schedules raw values to be returned by the next reads of ch,
// before falling back to the simulation.
func (m *Mock) Queue(ch Channel, values ...uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[ch] = append(m.queued[ch], values...)
}

// SetError makes every read of ch fail with err. A nil err clears it.
func (m *Mock) SetError(ch Channel, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, ch)
		return
	}
	m.errs[ch] = err
}

// Read returns a queued value if present, otherwise a simulated one.
func (m *Mock) Read(ch Channel) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrNotConnected
	}
	if err, ok := m.errs[ch]; ok {
		return 0, err
	}

	m.reads[ch]++

	if q := m.queued[ch]; len(q) > 0 {
		m.queued[ch] = q[1:]
		return q[0], nil
	}

	return m.simulate(ch), nil
}

// Reads returns how many successful reads were made on ch.
func (m *Mock) Reads(ch Channel) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[ch]
}

// SetPower sets the simulated sensor rail.
func (m *Mock) SetPower(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if on && !m.power {
		m.powerCycles++
	}
	m.power = on
	return nil
}

// Powered reports the simulated sensor rail state.
func (m *Mock) Powered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power
}

// PowerCycles returns how many times the sensor rail was switched on.
func (m *Mock) PowerCycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.powerCycles
}

// Set sets the simulated LED.
func (m *Mock) Set(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.led = on
	return nil
}

// Toggle inverts the simulated LED.
func (m *Mock) Toggle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.led = !m.led
	m.ledToggles++
	return nil
}

// LED returns the simulated LED state and the number of toggles.
func (m *Mock) LED() (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.led, m.ledToggles
}

// simulate generates a raw value: a slow sinusoidal drift around the configured
// center plus fast deterministic noise. Must be called with mu held.
func (m *Mock) simulate(ch Channel) uint16 {
	elapsed := time.Since(m.startTime)

	center := m.cfg.TemperatureRaw
	phase := 0.0
	if ch == Humidity {
		center = m.cfg.HumidityRaw
		phase = math.Pi / 2
	}

	drift := 0.0
	if m.cfg.Period > 0 {
		drift = math.Sin(2*math.Pi*elapsed.Seconds()/m.cfg.Period.Seconds()+phase) * m.cfg.Swing
	}

	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseLevel * 0.5

	v := center + drift + noise
	if v < 0 {
		v = 0
	} else if v > math.MaxUint16 {
		v = math.MaxUint16
	}
	return uint16(v)
}
