// Package link waits for the network interface to come up and returns the
// address the responder binds to.
package link

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/itohio/envmon/pkg/analog"
	"github.com/itohio/envmon/pkg/config"
)

// ErrNoAddress is returned when no usable address appeared before the timeout.
var ErrNoAddress = errors.New("no usable address")

// pollInterval is the wait between address checks while joining.
const pollInterval = time.Second

// Host joins using the host's network stack: it polls the configured
// interface until it has an IPv4 address.
type Host struct {
	cfg config.NetworkConfig
	led analog.Indicator

	// addrs lists the candidate addresses. Replaced in tests.
	addrs func(iface string) ([]net.Addr, error)
	poll  time.Duration
}

// New creates a Host joiner. led may be nil.
func New(cfg config.NetworkConfig, led analog.Indicator) *Host {
	return &Host{
		cfg:   cfg,
		led:   led,
		addrs: interfaceAddrs,
		poll:  pollInterval,
	}
}

// Join returns the bind address. A configured fixed address is returned
// immediately; otherwise the interface is polled for up to JoinTimeout,
// blinking the LED while waiting.
func (h *Host) Join(ctx context.Context) (net.IP, error) {
	if h.cfg.Address != "" {
		ip := net.ParseIP(h.cfg.Address)
		if ip == nil {
			return nil, fmt.Errorf("invalid address %q", h.cfg.Address)
		}
		h.setLED(true)
		return ip, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.JoinTimeout)
	defer cancel()

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	for {
		addrs, err := h.addrs(h.cfg.Interface)
		if err != nil {
			log.Printf("Failed to list addresses of %q: %v", h.cfg.Interface, err)
		} else if ip := pickAddress(addrs); ip != nil {
			log.Printf("Network joined, address %s", ip)
			h.setLED(true)
			return ip, nil
		}

		h.toggleLED()

		select {
		case <-ctx.Done():
			h.setLED(false)
			if iface := h.cfg.Interface; iface != "" {
				return nil, fmt.Errorf("interface %s: %w", iface, ErrNoAddress)
			}
			return nil, ErrNoAddress
		case <-ticker.C:
		}
	}
}

func (h *Host) setLED(on bool) {
	if h.led == nil {
		return
	}
	if err := h.led.Set(on); err != nil {
		log.Printf("Failed to set LED: %v", err)
	}
}

func (h *Host) toggleLED() {
	if h.led == nil {
		return
	}
	if err := h.led.Toggle(); err != nil {
		log.Printf("Failed to toggle LED: %v", err)
	}
}

// interfaceAddrs returns the addresses of iface, or of all interfaces that
// are up when iface is empty.
func interfaceAddrs(iface string) ([]net.Addr, error) {
	if iface != "" {
		ifi, err := net.InterfaceByName(iface)
		if err != nil {
			return nil, err
		}
		if ifi.Flags&net.FlagUp == 0 {
			return nil, nil
		}
		return ifi.Addrs()
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var addrs []net.Addr
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		a, err := ifi.Addrs()
		if err != nil {
			continue
		}
		addrs = append(addrs, a...)
	}
	return addrs, nil
}

// pickAddress returns the first global or private IPv4 address.
func pickAddress(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}

		ip4 := ip.To4()
		if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() || ip4.IsUnspecified() {
			continue
		}
		return ip4
	}
	return nil
}
