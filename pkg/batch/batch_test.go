package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/photorig/pkg/clock"
	"github.com/itohio/photorig/pkg/config"
	"github.com/itohio/photorig/pkg/rig"
	"github.com/itohio/photorig/pkg/sample"
	"github.com/itohio/photorig/pkg/sheet"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Serial.UseMock = true
	cfg.Batch.Runs = 3
	cfg.Batch.OutputDir = filepath.Join(t.TempDir(), "data")
	cfg.Experiment.MeasurementDuration = 5 * time.Second
	return cfg
}

func newFakeClock() *clock.Fake {
	return clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// failingTransport wraps the simulated rig and breaks after a number of reads.
type failingTransport struct {
	*rig.Mock
	readsLeft int
}

func (f *failingTransport) ReadLine() (string, error) {
	if f.readsLeft <= 0 {
		return "", errors.New("device unplugged")
	}
	f.readsLeft--
	return f.Mock.ReadLine()
}

func TestController_Path(t *testing.T) {
	cfg := config.Default()
	c := New(cfg, nil, nil, nil)
	assert.Equal(t, filepath.Join("data", "experiment7.xlsx"), c.Path(7))
}

func TestController_Run(t *testing.T) {
	cfg := testConfig(t)
	clk := newFakeClock()

	var dev *rig.Mock
	opens := 0
	open := func() (rig.Transport, error) {
		opens++
		dev = rig.NewMock(&cfg.Mock, clk)
		return dev, nil
	}

	c := New(cfg, open, clk, nil)
	results, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, opens)
	assert.True(t, dev.IsClosed())
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, filepath.Join(cfg.Batch.OutputDir, fmt.Sprintf("experiment%d.xlsx", i)), res.Path)

		rows, err := sheet.Read(res.Path)
		require.NoError(t, err)
		assert.Equal(t, res.Rows, len(rows))
		assert.Greater(t, len(rows), 1)
		assert.Equal(t, 0.0, rows[0].Elapsed)
	}
}

func TestController_Run_DirectoryExists(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batch.Runs = 1
	cfg.Experiment.MeasurementDuration = 0
	require.NoError(t, os.MkdirAll(cfg.Batch.OutputDir, 0755))

	clk := newFakeClock()
	c := New(cfg, DefaultOpener(cfg, clk), clk, nil)
	results, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Rows)
}

func TestController_Run_FailureKeepsEarlierFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Experiment.MeasurementDuration = 0
	clk := newFakeClock()

	// One run with zero monitoring time reads NumBaseline+1 lines for baseline
	// and temperature, then NumMeasurements for the seed row.
	perRun := cfg.Experiment.NumBaseline + 1 + cfg.Experiment.NumMeasurements
	ft := &failingTransport{Mock: rig.NewMock(&cfg.Mock, clk), readsLeft: perRun + 3}

	c := New(cfg, func() (rig.Transport, error) { return ft, nil }, clk, nil)
	results, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 1")
	assert.Contains(t, err.Error(), "device unplugged")

	require.Len(t, results, 1)
	assert.FileExists(t, c.Path(0))
	assert.NoFileExists(t, c.Path(1))
	assert.True(t, ft.IsClosed())
}

func TestController_Run_ParseErrorStopsBatch(t *testing.T) {
	cfg := testConfig(t)
	clk := newFakeClock()
	tr := &garbageTransport{Mock: rig.NewMock(&cfg.Mock, clk)}

	c := New(cfg, func() (rig.Transport, error) { return tr, nil }, clk, nil)
	results, err := c.Run(context.Background())
	assert.ErrorIs(t, err, rig.ErrParse)
	assert.Empty(t, results)
	assert.True(t, tr.IsClosed())
}

type garbageTransport struct {
	*rig.Mock
}

func (g *garbageTransport) ReadLine() (string, error) {
	if _, err := g.Mock.ReadLine(); err != nil {
		return "", err
	}
	return "ovf\r\n", nil
}

func TestController_Run_WriteFailureClosesTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Experiment.MeasurementDuration = 0
	clk := newFakeClock()
	dev := rig.NewMock(&cfg.Mock, clk)

	c := New(cfg, func() (rig.Transport, error) { return dev, nil }, clk, nil)
	c.write = func(string, []sample.Row) error {
		return sheet.ErrFilesystem
	}

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, sheet.ErrFilesystem)
	assert.True(t, dev.IsClosed())
}

func TestController_Run_OpenFailure(t *testing.T) {
	cfg := testConfig(t)
	c := New(cfg, func() (rig.Transport, error) { return nil, rig.ErrTransport }, newFakeClock(), nil)

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, rig.ErrTransport)
	assert.DirExists(t, cfg.Batch.OutputDir)
}

func TestController_Run_OutputDirUncreatable(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Batch.OutputDir = filepath.Join(blocker, "data")

	opened := false
	c := New(cfg, func() (rig.Transport, error) { opened = true; return nil, nil }, newFakeClock(), nil)

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, sheet.ErrFilesystem)
	assert.False(t, opened)
}

func TestController_Run_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	clk := newFakeClock()
	dev := rig.NewMock(&cfg.Mock, clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(cfg, func() (rig.Transport, error) { return dev, nil }, clk, nil)
	_, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, dev.IsClosed())

	written := dev.Written()
	require.GreaterOrEqual(t, len(written), 2)
	assert.Equal(t, []byte{rig.UvOff.Byte(), rig.GreenOff.Byte()}, written[len(written)-2:])
}

func TestDefaultOpener_Serial(t *testing.T) {
	cfg := config.Default()
	cfg.Serial.Port = "/dev/photorig-does-not-exist"

	_, err := DefaultOpener(cfg, nil)()
	assert.ErrorIs(t, err, rig.ErrTransport)
}
