//go:build tinygo

//go:generate tinygo flash -target=pico

package main

import (
	"machine"
	"strconv"
	"time"
)

var (
	adcTemperature machine.ADC
	adcHumidity    machine.ADC
	serial         = machine.Serial

	powered bool
	ledOn   bool

	// Serial buffer for reading lines
	serialBuffer [MAX_COMMAND]byte
	serialPos    int
	overflow     bool
)

func main() {
	PIN_POWER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_POWER.Low()
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_LED.Low()

	machine.InitADC()
	adcTemperature = machine.ADC{Pin: PIN_TEMPERATURE}
	adcHumidity = machine.ADC{Pin: PIN_HUMIDITY}
	adcTemperature.Configure(machine.ADCConfig{})
	adcHumidity.Configure(machine.ADCConfig{})

	serial.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()
		time.Sleep(time.Millisecond)
	}
}

func processSerial() {
	for serial.Buffered() > 0 {
		data, err := serial.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if overflow {
				reply("E", "command too long")
			} else if serialPos > 0 {
				execute(string(serialBuffer[:serialPos]))
			}
			serialPos = 0
			overflow = false
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			overflow = true
		}
	}
}

func execute(cmd string) {
	switch cmd {
	case "T":
		// ADC.Get scales every resolution to the full 16-bit range
		reply("T", strconv.Itoa(int(adcTemperature.Get())))
	case "H":
		reply("H", strconv.Itoa(int(adcHumidity.Get())))
	case "P1", "P0":
		powered = cmd[1] == '1'
		PIN_POWER.Set(powered)
		reply("P", bit(powered))
	case "L1", "L0":
		ledOn = cmd[1] == '1'
		PIN_LED.Set(ledOn)
		reply("L", bit(ledOn))
	default:
		reply("E", "unknown command")
	}
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func reply(tag, value string) {
	serial.Write([]byte(tag + "," + value + "\n"))
}
