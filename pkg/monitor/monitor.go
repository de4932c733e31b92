// Package monitor runs the sampling and serving loop. Sampling and request
// handling share one goroutine, so the history needs no lock and every
// response sees a consistent snapshot.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"runtime"
	"time"

	"github.com/itohio/envmon/pkg/analog"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/history"
	"github.com/itohio/envmon/pkg/metrics"
	"github.com/itohio/envmon/pkg/sensor"
	"github.com/itohio/envmon/pkg/uplink"
	"github.com/itohio/envmon/pkg/web"
)

// Sampler reads both sensors.
type Sampler interface {
	ReadTemperature() sensor.Reading
	ReadHumidity() sensor.Reading
}

// Server is the responder driven by the loop.
type Server interface {
	Listen(ip net.IP) error
	Accept() (net.Conn, error)
	Handle(conn net.Conn)
	Close() error
}

// Joiner brings the network up and returns the address to bind.
type Joiner interface {
	Join(ctx context.Context) (net.IP, error)
}

var (
	_ Sampler = (*sensor.Reader)(nil)
	_ Server  = (*web.Server)(nil)
)

// Monitor owns the history and schedules sampling between requests.
type Monitor struct {
	sampler Sampler
	history *history.History
	led     analog.Indicator
	uplink  uplink.Publisher
	metrics *metrics.Metrics

	interval     time.Duration
	joinRetry    time.Duration
	restartDelay time.Duration

	now     func() time.Time
	reclaim func()

	last    time.Time
	sampled bool
}

// New creates a monitor. led and up may be nil.
func New(cfg *config.Config, sampler Sampler, h *history.History, led analog.Indicator, up uplink.Publisher, m *metrics.Metrics) *Monitor {
	if up == nil {
		up = uplink.Nop{}
	}
	return &Monitor{
		sampler:      sampler,
		history:      h,
		led:          led,
		uplink:       up,
		metrics:      m,
		interval:     cfg.Sampling.Interval,
		joinRetry:    cfg.Network.JoinRetry,
		restartDelay: cfg.Network.RestartDelay,
		now:          time.Now,
		reclaim:      runtime.GC,
	}
}

// MaybeSample takes a sample if none was taken yet or the sampling interval
// has elapsed since the last one. It reports whether it sampled.
func (m *Monitor) MaybeSample(now time.Time) bool {
	if m.sampled && now.Sub(m.last) < m.interval {
		return false
	}
	m.Sample(now)
	return true
}

// Sample reads both sensors and appends the result to the history.
func (m *Monitor) Sample(now time.Time) history.Sample {
	temp := m.sampler.ReadTemperature()
	hum := m.sampler.ReadHumidity()

	if temp.Fallback() {
		m.metrics.ObserveFallback("temperature", temp.Status.String())
	}
	if hum.Fallback() {
		m.metrics.ObserveFallback("humidity", hum.Status.String())
	}

	s := history.Sample{
		Timestamp:   now,
		Temperature: temp.Value,
		Humidity:    hum.Value,
	}
	m.history.Append(s)
	m.last = now
	m.sampled = true

	log.Printf("Sample %s: %.1f°C %.1f%%", s.Clock(), s.Temperature, s.Humidity)

	if m.led != nil {
		if err := m.led.Toggle(); err != nil {
			log.Printf("Failed to toggle LED: %v", err)
		}
	}
	m.metrics.ObserveSample(s.Temperature, s.Humidity, m.history.Len())

	if err := m.uplink.Publish(s); err != nil {
		log.Printf("Failed to publish sample: %v", err)
	}

	m.reclaim()
	return s
}

// Run binds srv to ip and alternates sampling with serving until ctx is done
// or the server fails. The listener is always closed on return.
func (m *Monitor) Run(ctx context.Context, srv Server, ip net.IP) error {
	if err := srv.Listen(ip); err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("Failed to close listener: %v", err)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.MaybeSample(m.now())

		conn, err := srv.Accept()
		if errors.Is(err, web.ErrNoConnection) {
			continue
		}
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		srv.Handle(conn)
	}
}

// Supervise keeps the monitor running: it joins the network, retrying after
// the join retry delay, then runs the loop and restarts it after the restart
// delay whenever it fails. It returns only when ctx is done.
func (m *Monitor) Supervise(ctx context.Context, joiner Joiner, srv Server) error {
	for {
		ip, err := joiner.Join(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Failed to join network: %v, retrying in %s", err, m.joinRetry)
			if !sleep(ctx, m.joinRetry) {
				return ctx.Err()
			}
			continue
		}

		err = m.Run(ctx, srv, ip)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("Monitor stopped: %v, restarting in %s", err, m.restartDelay)
		if !sleep(ctx, m.restartDelay) {
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
