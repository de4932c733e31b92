package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvSerialPort = "ENVMON_SERIAL_PORT"
	EnvListenPort = "ENVMON_LISTEN_PORT"
	EnvInterface  = "ENVMON_INTERFACE"
	EnvAddress    = "ENVMON_ADDRESS"
	EnvMQTTBroker = "ENVMON_MQTT_BROKER"
	EnvMQTTTopic  = "ENVMON_MQTT_TOPIC"
)

// LoadEnv loads dotenv files into the process environment. Missing files are
// not an error; variables already set in the environment win.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Println("No .env file found, relying on system environment variables")
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides configuration fields from ENVMON_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvSerialPort); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv(EnvListenPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvListenPort, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvInterface); v != "" {
		c.Network.Interface = v
	}
	if v := os.Getenv(EnvAddress); v != "" {
		c.Network.Address = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		c.Uplink.Broker = v
	}
	if v := os.Getenv(EnvMQTTTopic); v != "" {
		c.Uplink.Topic = v
	}
	return nil
}
