// Package uplink forwards samples to an MQTT broker.
package uplink

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/history"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Publisher receives every new sample.
type Publisher interface {
	Publish(s history.Sample) error
	Close()
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*MQTT)(nil)
)

// Nop discards samples. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(history.Sample) error { return nil }
func (Nop) Close()                       {}

// Message is the JSON payload of a published sample.
type Message struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// MQTT publishes samples to a broker topic.
type MQTT struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// New returns Nop when cfg has no broker, otherwise a connected MQTT publisher.
func New(cfg config.UplinkConfig) (Publisher, error) {
	if cfg.Broker == "" {
		return Nop{}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second)

	p := newMQTT(mqtt.NewClient(opts), cfg)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newMQTT(client mqtt.Client, cfg config.UplinkConfig) *MQTT {
	return &MQTT{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: cfg.PublishTimeout,
	}
}

// connect starts the client. With connect retry enabled paho keeps trying in
// the background, so a broker that is down at startup is not fatal.
func (p *MQTT) connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		log.Printf("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Publish sends one sample. It waits at most the publish timeout so the
// sampling loop is never held up by the broker.
func (p *MQTT) Publish(s history.Sample) error {
	payload, err := json.Marshal(Message{
		Timestamp:   s.Timestamp,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return ErrTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish sample: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTT) Close() {
	p.client.Disconnect(250)
}
