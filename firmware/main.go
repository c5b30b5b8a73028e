//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adcDetector    machine.ADC
	adcTemperature machine.ADC
	uart           = machine.UART0

	ledPins = [4]machine.Pin{PIN_LED_RED, PIN_LED_GREEN, PIN_LED_BLUE, PIN_LED_UV}
)

func main() {
	// LEDs start off
	for _, pin := range ledPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}

	PIN_DETECTOR_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_TEMPERATURE_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	adcDetector = machine.ADC{Pin: PIN_DETECTOR_ADC}
	adcTemperature = machine.ADC{Pin: PIN_TEMPERATURE_ADC}

	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	adcDetector.Configure(adcConfig)
	adcTemperature.Configure(adcConfig)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()
		time.Sleep(100 * time.Microsecond)
	}
}

// processSerial executes every pending command byte. Bytes outside '0'..'9'
// (line endings, noise) are ignored.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}
		if data < '0' || data > '9' {
			continue
		}
		execute(data - '0')
	}
}

func execute(cmd byte) {
	switch {
	case cmd < 8:
		// Even commands switch an LED on, odd ones off: 0/1 red, 2/3 green,
		// 4/5 blue, 6/7 UV.
		pin := ledPins[cmd/2]
		if cmd%2 == 0 {
			pin.High()
		} else {
			pin.Low()
		}
	case cmd == 8:
		printFixed(readIntensityCenti(), 2)
	case cmd == 9:
		printFixed(readTemperatureDeci(), 1)
	}
}

// readIntensityCenti averages NUM_SAMPLES detector reads and returns the
// 12-bit mean scaled by 100.
func readIntensityCenti() int32 {
	var sum uint32
	for range NUM_SAMPLES {
		sum += uint32(adcDetector.Get() >> (16 - ADC_RESOLUTION))
		time.Sleep(SAMPLE_INTERVAL_US * time.Microsecond)
	}
	return int32(sum * 100 / NUM_SAMPLES)
}

// readTemperatureDeci returns the TMP36 temperature in tenths of a degree.
func readTemperatureDeci() int32 {
	raw := int32(adcTemperature.Get() >> (16 - ADC_RESOLUTION))
	mv10 := raw * ADC_REFERENCE_MV * 10 / ((1 << ADC_RESOLUTION) - 1)
	return (mv10 - TMP36_OFFSET_MV*10) / TMP36_MV_PER_DEGC
}

// printFixed writes v/10^decimals with exactly decimals fraction digits,
// followed by CRLF.
func printFixed(v int32, decimals int) {
	scale := int32(1)
	for range decimals {
		scale *= 10
	}
	if v < 0 {
		print("-")
		v = -v
	}
	print(v / scale)
	print(".")
	frac := v % scale
	for s := scale / 10; s > 1 && frac < s; s /= 10 {
		print("0")
	}
	print(frac)
	print("\r\n")
}
