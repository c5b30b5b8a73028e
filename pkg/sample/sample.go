package sample

import "math"

// Row is one line of an experiment's result table.
type Row struct {
	Intensity   float64 // I, averaged detector reading
	Baseline    float64 // I0, mean reading before irradiation
	Elapsed     float64 // t, seconds since monitoring started
	Temperature string  // T, raw response captured once at baseline
	Absorbance  float64 // A = ln(I0/I)
}

// NewRow builds a row and computes its absorbance.
func NewRow(intensity, baseline, elapsed float64, temperature string) Row {
	return Row{
		Intensity:   intensity,
		Baseline:    baseline,
		Elapsed:     elapsed,
		Temperature: temperature,
		Absorbance:  Absorbance(baseline, intensity),
	}
}

// Absorbance returns ln(i0/i). Non-positive inputs give the IEEE results of
// the division and logarithm (±Inf or NaN); the rig protocol does not
// guarantee positive readings.
func Absorbance(i0, i float64) float64 {
	return math.Log(i0 / i)
}

// Mean returns the arithmetic mean of values, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
