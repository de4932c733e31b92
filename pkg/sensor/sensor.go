// Package sensor turns raw analog samples into validated temperature and
// soil humidity readings.
package sensor

import (
	"fmt"
	"log"
	"time"

	"github.com/itohio/envmon/pkg/analog"
	"github.com/itohio/envmon/pkg/config"
)

// Status tells whether a Reading was measured or substituted.
type Status int

const (
	StatusOK         Status = iota
	StatusOutOfRange        // Measured value rejected, fallback returned
	StatusReadError         // Source failed, fallback returned
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusReadError:
		return "read_error"
	default:
		return "unknown"
	}
}

// Reading is a converted sensor value.
type Reading struct {
	Value  float64
	Status Status
}

// Fallback reports whether Value is a substitute rather than a measurement.
func (r Reading) Fallback() bool {
	return r.Status != StatusOK
}

// Reader reads both sensors from an analog source. It never returns an
// error: failures are absorbed into fallback readings. Not safe for
// concurrent use.
type Reader struct {
	src  analog.Source
	temp config.TemperatureConfig
	hum  config.HumidityConfig

	sleep func(time.Duration)

	lastTemp    float64
	hasLastTemp bool
	lastHum     float64
	hasLastHum  bool
}

// New creates a Reader for the given source and calibration.
func New(src analog.Source, cfg config.SensorConfig) *Reader {
	return &Reader{
		src:   src,
		temp:  cfg.Temperature,
		hum:   cfg.Humidity,
		sleep: time.Sleep,
	}
}

// ReadTemperature powers the sensor, lets it settle, averages the samples and
// converts them to °C. Readings outside [Min, Max] are replaced by the last
// valid reading, or Default when there is none.
func (r *Reader) ReadTemperature() Reading {
	avg, err := r.poweredAverage()
	if err != nil {
		log.Printf("Failed to read temperature: %v", err)
		return r.temperatureFallback(StatusReadError)
	}

	voltage := ADCToVoltage(avg, r.temp.FullScale, r.temp.VRef)
	celsius := Round1(TemperatureFromVoltage(voltage, r.temp))

	if celsius < r.temp.Min || celsius > r.temp.Max {
		log.Printf("Temperature %.1f°C outside [%g, %g], using fallback", celsius, r.temp.Min, r.temp.Max)
		return r.temperatureFallback(StatusOutOfRange)
	}

	r.lastTemp = celsius
	r.hasLastTemp = true
	return Reading{Value: celsius, Status: StatusOK}
}

// ReadHumidity averages the samples and maps them to a 0..100% scale.
func (r *Reader) ReadHumidity() Reading {
	avg, err := r.average(analog.Humidity, r.hum.Samples, r.hum.SampleInterval)
	if err != nil {
		log.Printf("Failed to read humidity: %v", err)
		if r.hasLastHum {
			return Reading{Value: r.lastHum, Status: StatusReadError}
		}
		return Reading{Value: r.hum.Default, Status: StatusReadError}
	}

	pct := Round1(HumidityFromADC(avg, r.hum))
	r.lastHum = pct
	r.hasLastHum = true
	return Reading{Value: pct, Status: StatusOK}
}

func (r *Reader) temperatureFallback(status Status) Reading {
	if r.hasLastTemp {
		return Reading{Value: r.lastTemp, Status: status}
	}
	return Reading{Value: r.temp.Default, Status: status}
}

// poweredAverage energizes the temperature sensor only for the duration of
// the burst. The rail is switched off even when a read fails.
func (r *Reader) poweredAverage() (float64, error) {
	if err := r.src.SetPower(true); err != nil {
		r.powerOff()
		return 0, fmt.Errorf("failed to power sensor: %w", err)
	}
	r.sleep(r.temp.Settle)

	avg, err := r.average(analog.Temperature, r.temp.Samples, r.temp.SampleInterval)
	r.powerOff()
	return avg, err
}

func (r *Reader) powerOff() {
	if err := r.src.SetPower(false); err != nil {
		log.Printf("Failed to switch off sensor power: %v", err)
	}
}

// average takes n samples of ch, waiting interval after each one.
func (r *Reader) average(ch analog.Channel, n int, interval time.Duration) (float64, error) {
	if n <= 0 {
		n = 1
	}

	var sum uint64
	for i := 0; i < n; i++ {
		v, err := r.src.Read(ch)
		if err != nil {
			return 0, err
		}
		sum += uint64(v)
		r.sleep(interval)
	}

	return float64(sum) / float64(n), nil
}
