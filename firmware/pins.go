//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	NUM_SAMPLES        = 16 // ADC reads averaged into one intensity response
	SAMPLE_INTERVAL_US = 50 // Delay between averaged ADC reads

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// TMP36: 500 mV at 0 °C, 10 mV per °C
	TMP36_OFFSET_MV   = 500
	TMP36_MV_PER_DEGC = 10

	// LED pins
	PIN_LED_RED   = machine.D2
	PIN_LED_GREEN = machine.D3
	PIN_LED_BLUE  = machine.D4
	PIN_LED_UV    = machine.D5

	// ADC pins
	PIN_DETECTOR_ADC    = machine.A1 // Photodiode transimpedance output
	PIN_TEMPERATURE_ADC = machine.A2 // TMP36 next to the cuvette

	// Serial configuration
	// Host writes single command bytes and reads one short line per query;
	// 9600 baud matches the host default.
	UART_BAUD_RATE = 9600
)
