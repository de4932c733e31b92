package web

import (
	"encoding/json"
	"fmt"

	"github.com/itohio/envmon/pkg/history"
)

// errorPayload replaces the data body when the history cannot be encoded.
var errorPayload = []byte(`{"error":"Error de datos"}`)

// Payload is the JSON body of the data endpoint.
type Payload struct {
	Temperature  float64   `json:"temperatura_actual"`
	Humidity     float64   `json:"humedad_actual"`
	Temperatures []float64 `json:"temperaturas"`
	Humidities   []float64 `json:"humedades"`
	Timestamps   []string  `json:"timestamps"`
}

// NewPayload builds the payload of a history snapshot. The current values are
// those of the newest sample, or 0 when there is none.
func NewPayload(samples []history.Sample) Payload {
	p := Payload{
		Temperatures: make([]float64, 0, len(samples)),
		Humidities:   make([]float64, 0, len(samples)),
		Timestamps:   make([]string, 0, len(samples)),
	}

	for _, s := range samples {
		p.Temperatures = append(p.Temperatures, s.Temperature)
		p.Humidities = append(p.Humidities, s.Humidity)
		p.Timestamps = append(p.Timestamps, s.Clock())
	}

	if n := len(samples); n > 0 {
		p.Temperature = samples[n-1].Temperature
		p.Humidity = samples[n-1].Humidity
	}

	return p
}

// Encode serializes a snapshot. It fails closed: on error the returned body
// is the error payload and the error is reported for logging only.
func Encode(samples []history.Sample) ([]byte, error) {
	data, err := json.Marshal(NewPayload(samples))
	if err != nil {
		return errorPayload, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}
