package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/envmon/pkg/analog"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/history"
	"github.com/itohio/envmon/pkg/link"
	"github.com/itohio/envmon/pkg/metrics"
	"github.com/itohio/envmon/pkg/monitor"
	"github.com/itohio/envmon/pkg/sensor"
	"github.com/itohio/envmon/pkg/uplink"
	"github.com/itohio/envmon/pkg/web"
)

// device is an analog source that also drives the status LED.
type device interface {
	analog.Source
	analog.Indicator
}

// Constructors of the hardware facing parts. Replaced in tests.
var (
	newDevice = func(cfg *config.Config, mock bool) device {
		if mock {
			log.Println("Using simulated sensors")
			return analog.NewMock(&cfg.Mock)
		}
		return analog.New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.Timeout)
	}
	newUplink = uplink.New
)

type options struct {
	config string
	mock   bool
	list   bool
	port   string
	listen int
	env    string
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "config.yaml", "Configuration file path")
	flag.BoolVar(&opts.mock, "mock", false, "Use simulated sensors instead of the serial ADC bridge")
	flag.BoolVar(&opts.list, "list", false, "List available serial ports and exit")
	flag.StringVar(&opts.port, "p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
	flag.IntVar(&opts.listen, "port", 0, "HTTP listen port override")
	flag.StringVar(&opts.env, "env", ".env", "Dotenv file with ENVMON_* overrides")
	flag.Parse()

	if opts.list {
		if err := listPorts(os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func listPorts(w io.Writer) error {
	ports, err := analog.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
	}
	return nil
}

// run returns instead of exiting so deferred cleanup always happens.
func run(opts options) error {
	if err := config.LoadEnv(opts.env); err != nil {
		return err
	}

	cfg, err := config.Load(opts.config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}

	// Command line wins over file and environment
	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}
	if opts.listen > 0 {
		cfg.Server.Port = opts.listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dev := newDevice(cfg, opts.mock)
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("failed to connect to ADC bridge: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Printf("Failed to close ADC bridge: %v", err)
		}
	}()

	pub, err := newUplink(cfg.Uplink)
	if err != nil {
		return fmt.Errorf("failed to create uplink: %w", err)
	}
	defer pub.Close()

	var accessLog io.Writer
	if cfg.Server.AccessLog {
		accessLog = os.Stdout
	}

	hist := history.New()
	m := metrics.New()

	srv := web.NewServer(cfg.Server, web.NewRouter(hist, m, accessLog))
	srv.OnWriteError = m.ObserveWriteError

	mon := monitor.New(cfg, sensor.New(dev, cfg.Sensor), hist, dev, pub, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Sampling every %s, serving on port %d", cfg.Sampling.Interval, cfg.Server.Port)
	err = mon.Supervise(ctx, link.New(cfg.Network, dev), srv)
	log.Println("Shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("monitor stopped: %w", err)
	}
	return nil
}
