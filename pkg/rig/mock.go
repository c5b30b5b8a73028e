package rig

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/photorig/pkg/clock"
	"github.com/itohio/photorig/pkg/config"
)

// Ensure Mock implements Transport.
var _ Transport = (*Mock)(nil)

// Mock simulates the rig firmware and a photochromic sample behind it.
// UV exposure drives the sample's absorbance towards MaxAbsorbance; with UV
// off it relaxes back to zero. Intensity reads report Intensity*exp(-A)
// while the green LED is on.
type Mock struct {
	cfg config.MockConfig
	clk clock.Clock

	mu      sync.Mutex
	closed  bool
	pending []string
	written []byte
	resets  int
	reads   int

	leds       [4]bool // red, green, blue, uv
	absorbance float64
	updated    time.Time
}

const (
	ledRed = iota
	ledGreen
	ledBlue
	ledUV
)

// NewMock creates a simulated rig. A nil cfg selects the defaults; a nil clk
// uses the system clock.
func NewMock(cfg *config.MockConfig, clk clock.Clock) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Mock{
		cfg:     *cfg,
		clk:     clk,
		updated: clk.Now(),
	}
}

// Write interprets every byte as a command.
func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, fmt.Errorf("%w: mock rig is closed", ErrTransport)
	}

	for _, b := range p {
		m.written = append(m.written, b)
		cmd, err := ParseCommand(b)
		if err != nil {
			// Firmware ignores unknown bytes.
			continue
		}
		m.apply(cmd)
	}
	return len(p), nil
}

// ReadLine returns the oldest pending response.
func (m *Mock) ReadLine() (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: mock rig is closed", ErrTransport)
	}
	if len(m.pending) == 0 {
		m.mu.Unlock()
		// A real port would block forever here.
		return "", fmt.Errorf("%w: no response pending", ErrTransport)
	}
	line := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	if m.cfg.ResponseLatency > 0 {
		if err := m.clk.Sleep(context.Background(), m.cfg.ResponseLatency); err != nil {
			return "", fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
	return line, nil
}

func (m *Mock) ResetOutputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%w: mock rig is closed", ErrTransport)
	}
	m.resets++
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (m *Mock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Written returns a copy of every byte written so far.
func (m *Mock) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.written))
	copy(out, m.written)
	return out
}

// Resets returns how many times the output buffer was reset.
func (m *Mock) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Absorbance returns the simulated sample absorbance at the current time.
func (m *Mock) Absorbance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.absorbance
}

// apply executes cmd. Caller holds m.mu.
func (m *Mock) apply(cmd Command) {
	m.advance()

	switch cmd {
	case RedOn, RedOff:
		m.leds[ledRed] = cmd == RedOn
	case GreenOn, GreenOff:
		m.leds[ledGreen] = cmd == GreenOn
	case BlueOn, BlueOff:
		m.leds[ledBlue] = cmd == BlueOn
	case UvOn, UvOff:
		m.leds[ledUV] = cmd == UvOn
	case ReadIntensity:
		m.pending = append(m.pending, fmt.Sprintf("%.2f\r\n", m.intensity()))
	case ReadTemperature:
		m.pending = append(m.pending, fmt.Sprintf("%.2f\r\n", m.cfg.Temperature))
	}
}

// advance integrates the sample state up to now. Caller holds m.mu.
func (m *Mock) advance() {
	now := m.clk.Now()
	dt := now.Sub(m.updated)
	m.updated = now
	if dt <= 0 {
		return
	}

	if m.leds[ledUV] {
		tau := m.cfg.SwitchingTime.Seconds()
		if tau <= 0 {
			m.absorbance = m.cfg.MaxAbsorbance
			return
		}
		k := math.Exp(-dt.Seconds() / tau)
		m.absorbance = m.cfg.MaxAbsorbance - (m.cfg.MaxAbsorbance-m.absorbance)*k
		return
	}

	tau := m.cfg.RelaxationTime.Seconds()
	if tau <= 0 {
		m.absorbance = 0
		return
	}
	m.absorbance *= math.Exp(-dt.Seconds() / tau)
}

// intensity computes the detector reading. Caller holds m.mu.
func (m *Mock) intensity() float64 {
	m.reads++
	if !m.leds[ledGreen] {
		return m.cfg.DarkIntensity
	}
	v := m.cfg.Intensity * math.Exp(-m.absorbance)
	// Deterministic ripple so averaging has something to do.
	ripple := (math.Sin(float64(m.reads)*0.7) + math.Cos(float64(m.reads)*1.3)) * 0.5
	return v * (1 + ripple*m.cfg.NoiseLevel)
}
