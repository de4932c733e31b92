//go:build tinygo

package main

import "machine"

const (
	// Sensor pins
	PIN_TEMPERATURE = machine.ADC0 // GP26, LM35-style analog output
	PIN_HUMIDITY    = machine.ADC1 // GP27, capacitive soil probe
	PIN_POWER       = machine.GP15 // Temperature sensor supply rail

	// Status LED
	PIN_LED = machine.LED

	// Serial configuration
	// Replies are at most "E,unknown command\n" (18 bytes) and the host waits
	// for each one, so any standard rate is enough.
	UART_BAUD_RATE = 115200

	// Longest accepted command ("P1", "L0", ...). Longer lines are rejected.
	MAX_COMMAND = 8
)
