package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/itohio/photorig/pkg/clock"
	"github.com/itohio/photorig/pkg/config"
	"github.com/itohio/photorig/pkg/meter"
	"github.com/itohio/photorig/pkg/rig"
	"github.com/itohio/photorig/pkg/sample"
	"github.com/itohio/photorig/pkg/sheet"
)

// previewPoints is how many rows of each run are echoed to the log.
const previewPoints = 5

// Opener acquires the transport for a batch.
type Opener func() (rig.Transport, error)

// Writer persists one run's rows.
type Writer func(path string, rows []sample.Row) error

// Result describes one completed run.
type Result struct {
	Index int
	Path  string
	Rows  int
}

// Controller runs a fixed number of identical experiments over one
// transport connection, writing one result file per run.
type Controller struct {
	batch    config.BatchConfig
	settings config.ExperimentConfig
	open     Opener
	write    Writer
	clk      clock.Clock
	log      logrus.FieldLogger
}

// New creates a controller for cfg. A nil clk uses the system clock, a nil
// log discards output.
func New(cfg *config.Config, open Opener, clk clock.Clock, log logrus.FieldLogger) *Controller {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Controller{
		batch:    cfg.Batch,
		settings: cfg.Experiment,
		open:     open,
		write:    sheet.Write,
		clk:      clk,
		log:      log,
	}
}

// DefaultOpener opens the serial port named in cfg, or a simulated rig when
// cfg.Serial.UseMock is set.
func DefaultOpener(cfg *config.Config, clk clock.Clock) Opener {
	return func() (rig.Transport, error) {
		if cfg.Serial.UseMock {
			mockCfg := cfg.Mock
			return rig.NewMock(&mockCfg, clk), nil
		}
		return rig.Open(cfg.Serial.Port, cfg.Serial.BaudRate)
	}
}

// Path returns the output file of run i.
func (c *Controller) Path(i int) string {
	return filepath.Join(c.batch.OutputDir, fmt.Sprintf(c.batch.FilePattern, i))
}

// EnsureDir creates the output directory if it does not exist yet.
func (c *Controller) EnsureDir() error {
	if err := os.MkdirAll(c.batch.OutputDir, 0755); err != nil {
		return fmt.Errorf("%w: create output directory: %w", sheet.ErrFilesystem, err)
	}
	return nil
}

// Run executes all runs in order. The first failure stops the batch; files
// written by earlier runs are kept. The transport is closed on every path.
func (c *Controller) Run(ctx context.Context) (results []Result, err error) {
	if err := c.EnsureDir(); err != nil {
		return nil, err
	}

	t, err := c.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			c.log.WithError(cerr).Warn("Failed to close transport")
			err = errors.Join(err, cerr)
		}
	}()

	driver := rig.NewDriver(t)

	for i := 0; i < c.batch.Runs; i++ {
		res, err := c.runOne(ctx, driver, i)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i, err)
		}
		results = append(results, res)
	}

	return results, nil
}

func (c *Controller) runOne(ctx context.Context, driver *rig.Driver, i int) (Result, error) {
	log := c.log.WithField("run", i)
	log.Info("Starting experiment")

	engine := meter.New(driver, c.settings, c.clk, log)
	rows, err := engine.Run(ctx)
	if err != nil {
		return Result{}, err
	}

	path := c.Path(i)
	if err := c.write(path, rows); err != nil {
		return Result{}, err
	}

	for _, r := range sample.Downsample(nil, rows, previewPoints) {
		log.WithFields(logrus.Fields{"t": r.Elapsed, "A": r.Absorbance}).Debug("Absorbance")
	}
	log.WithFields(logrus.Fields{"path": path, "rows": len(rows)}).Info("Experiment saved")

	return Result{Index: i, Path: path, Rows: len(rows)}, nil
}
