package meter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itohio/photorig/pkg/clock"
	"github.com/itohio/photorig/pkg/config"
	"github.com/itohio/photorig/pkg/sample"
)

// State is a phase of the measurement sequence.
type State int

const (
	Idle State = iota
	BaselineCapture
	Irradiation
	Monitoring
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case BaselineCapture:
		return "baseline"
	case Irradiation:
		return "irradiation"
	case Monitoring:
		return "monitoring"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Rig is the subset of the device driver the engine needs.
type Rig interface {
	GreenOn() error
	GreenOff() error
	UvOn() error
	UvOff() error
	ReadIntensity() (float64, error)
	ReadTemperature() (string, error)
	ResetOutput() error
}

// Engine runs the baseline → irradiation → monitoring sequence against a rig.
// An Engine is used by one goroutine at a time and may run repeatedly.
type Engine struct {
	rig      Rig
	settings config.ExperimentConfig
	clk      clock.Clock
	log      logrus.FieldLogger

	state State

	onState []func(State)
	onRow   []func(sample.Row)
}

// New creates an engine. A nil clk uses the system clock and a nil log
// discards output.
func New(rig Rig, settings config.ExperimentConfig, clk clock.Clock, log logrus.FieldLogger) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Engine{
		rig:      rig,
		settings: settings,
		clk:      clk,
		log:      log,
		state:    Idle,
	}
}

// Settings returns the experiment parameters the engine was built with.
func (e *Engine) Settings() config.ExperimentConfig {
	return e.settings
}

// State returns the current phase.
func (e *Engine) State() State {
	return e.state
}

// OnState registers a callback invoked on every phase change.
func (e *Engine) OnState(cb func(State)) {
	e.onState = append(e.onState, cb)
}

// OnRow registers a callback invoked for every appended row, including the
// seed row at t=0.
func (e *Engine) OnRow(cb func(sample.Row)) {
	e.onRow = append(e.onRow, cb)
}

// Run executes one full measurement and returns the rows in chronological
// order. Any device error aborts the run; nothing is retried. When ctx is
// cancelled the UV and detector LEDs are switched off before returning.
func (e *Engine) Run(ctx context.Context) ([]sample.Row, error) {
	rows, err := e.run(ctx)
	if err != nil && ctx.Err() != nil {
		e.lightsOff()
	}
	return rows, err
}

func (e *Engine) run(ctx context.Context) ([]sample.Row, error) {
	e.setState(Idle)

	i0, temperature, err := e.Baseline(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.Irradiate(ctx); err != nil {
		return nil, err
	}

	rows, err := e.Monitor(ctx, i0, temperature)
	if err != nil {
		return nil, err
	}

	if err := e.rig.GreenOff(); err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	e.setState(Done)

	return rows, nil
}

// Baseline captures I0 from NumBaseline back-to-back reads and takes the
// run's single temperature reading.
func (e *Engine) Baseline(ctx context.Context) (float64, string, error) {
	e.setState(BaselineCapture)

	for _, step := range []func() error{e.rig.GreenOff, e.rig.UvOff, e.rig.GreenOn} {
		if err := step(); err != nil {
			return 0, "", fmt.Errorf("baseline: %w", err)
		}
	}
	if err := e.sleep(ctx, e.settings.StabilizationTime); err != nil {
		return 0, "", fmt.Errorf("baseline: %w", err)
	}

	reads := make([]float64, 0, e.settings.NumBaseline)
	for i := 0; i < e.settings.NumBaseline; i++ {
		v, err := e.rig.ReadIntensity()
		if err != nil {
			return 0, "", fmt.Errorf("baseline: %w", err)
		}
		reads = append(reads, v)
	}
	i0 := sample.Mean(reads)

	temperature, err := e.rig.ReadTemperature()
	if err != nil {
		return 0, "", fmt.Errorf("baseline: %w", err)
	}

	e.log.WithFields(logrus.Fields{"I0": i0, "T": temperature}).Info("Baseline captured")
	return i0, temperature, nil
}

// Irradiate switches the detector off and exposes the sample to UV for
// IrradiationTime.
func (e *Engine) Irradiate(ctx context.Context) error {
	e.setState(Irradiation)

	if err := e.rig.GreenOff(); err != nil {
		return fmt.Errorf("irradiation: %w", err)
	}
	if err := e.sleep(ctx, e.settings.StabilizationTime); err != nil {
		return fmt.Errorf("irradiation: %w", err)
	}
	if err := e.rig.UvOn(); err != nil {
		return fmt.Errorf("irradiation: %w", err)
	}
	if err := e.sleep(ctx, e.settings.IrradiationTime); err != nil {
		return fmt.Errorf("irradiation: %w", err)
	}
	if err := e.rig.UvOff(); err != nil {
		return fmt.Errorf("irradiation: %w", err)
	}
	if err := e.sleep(ctx, e.settings.StabilizationTime); err != nil {
		return fmt.Errorf("irradiation: %w", err)
	}
	return nil
}

// Monitor seeds row 0 at t=0 and then appends averaged rows until
// MeasurementDuration has elapsed. The sampling cadence is whatever the
// averaging and the device's response time allow.
func (e *Engine) Monitor(ctx context.Context, i0 float64, temperature string) ([]sample.Row, error) {
	e.setState(Monitoring)

	if err := e.rig.GreenOn(); err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}
	if err := e.sleep(ctx, e.settings.StabilizationTime); err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}

	intensity, err := e.AverageIntensity(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}
	if err := e.sleep(ctx, e.settings.StabilizationTime); err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}

	start := e.clk.Now()
	rows := []sample.Row{sample.NewRow(intensity, i0, 0, temperature)}
	e.emitRow(rows[0])

	if err := e.rig.ResetOutput(); err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}

	for e.clk.Now().Sub(start) < e.settings.MeasurementDuration {
		intensity, err := e.AverageIntensity(ctx)
		if err != nil {
			return nil, fmt.Errorf("monitoring: %w", err)
		}
		elapsed := e.clk.Now().Sub(start).Seconds()
		row := sample.NewRow(intensity, i0, elapsed, temperature)
		rows = append(rows, row)
		e.emitRow(row)
	}

	return rows, nil
}

// AverageIntensity takes NumMeasurements reads, pausing MeasurementInterval
// after each, and returns their mean.
func (e *Engine) AverageIntensity(ctx context.Context) (float64, error) {
	reads := make([]float64, 0, e.settings.NumMeasurements)
	for i := 0; i < e.settings.NumMeasurements; i++ {
		v, err := e.rig.ReadIntensity()
		if err != nil {
			return 0, err
		}
		reads = append(reads, v)
		if err := e.sleep(ctx, e.settings.MeasurementInterval); err != nil {
			return 0, err
		}
	}
	return sample.Mean(reads), nil
}

// lightsOff is best effort: a failing write is logged and the other LED is
// still attempted.
func (e *Engine) lightsOff() {
	for _, step := range []func() error{e.rig.UvOff, e.rig.GreenOff} {
		if err := step(); err != nil {
			e.log.WithError(err).Warn("Failed to switch LED off after cancellation")
		}
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	return e.clk.Sleep(ctx, d)
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.log.WithField("state", s).Debug("Measurement state changed")
	e.state = s
	for _, cb := range e.onState {
		cb(s)
	}
}

func (e *Engine) emitRow(r sample.Row) {
	e.log.WithFields(logrus.Fields{
		"t": r.Elapsed,
		"I": r.Intensity,
		"A": r.Absorbance,
	}).Debug("Row appended")
	for _, cb := range e.onRow {
		cb(r)
	}
}
