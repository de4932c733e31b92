package sensor

import (
	"math"

	"github.com/itohio/envmon/pkg/config"
)

// ADCToVoltage converts a raw ADC value to voltage.
func ADCToVoltage(raw, fullScale, vref float64) float64 {
	return (raw / fullScale) * vref
}

// TemperatureFromVoltage applies the linear sensor transform and the calibration factor.
//
//	inverted: (100 - V*100 + offset) * factor
//	standard: (V*100 + offset) * factor
func TemperatureFromVoltage(voltage float64, cfg config.TemperatureConfig) float64 {
	var celsius float64
	if cfg.InvertCorrection {
		celsius = 100 - voltage*100 + cfg.Offset
	} else {
		celsius = voltage*100 + cfg.Offset
	}
	return celsius * cfg.Factor
}

// HumidityFromADC maps an averaged raw value to 0..100%, the dry reference
// mapping to 0% and the wet reference to 100%.
func HumidityFromADC(raw float64, cfg config.HumidityConfig) float64 {
	lo, hi := math.Min(cfg.Wet, cfg.Dry), math.Max(cfg.Wet, cfg.Dry)
	raw = clamp(raw, lo, hi)

	pct := (cfg.Dry - raw) * 100 / (cfg.Dry - cfg.Wet)
	return clamp(pct, 0, 100)
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
