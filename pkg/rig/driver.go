package rig

import (
	"fmt"
	"strconv"
	"strings"
)

// Driver exposes the rig's named operations on top of a Transport.
// It is not safe for concurrent use; one caller owns it for a run.
type Driver struct {
	t Transport
}

// NewDriver wraps t.
func NewDriver(t Transport) *Driver {
	return &Driver{t: t}
}

// Send writes the single wire byte for cmd. No acknowledgement is read.
func (d *Driver) Send(cmd Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("invalid command %s", cmd)
	}
	if _, err := d.t.Write([]byte{cmd.Byte()}); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	return nil
}

func (d *Driver) RedOn() error    { return d.Send(RedOn) }
func (d *Driver) RedOff() error   { return d.Send(RedOff) }
func (d *Driver) GreenOn() error  { return d.Send(GreenOn) }
func (d *Driver) GreenOff() error { return d.Send(GreenOff) }
func (d *Driver) BlueOn() error   { return d.Send(BlueOn) }
func (d *Driver) BlueOff() error  { return d.Send(BlueOff) }
func (d *Driver) UvOn() error     { return d.Send(UvOn) }
func (d *Driver) UvOff() error    { return d.Send(UvOff) }

// ReadIntensity requests one detector reading and parses it.
func (d *Driver) ReadIntensity() (float64, error) {
	if err := d.Send(ReadIntensity); err != nil {
		return 0, err
	}
	line, err := d.t.ReadLine()
	if err != nil {
		return 0, fmt.Errorf("read intensity: %w", err)
	}
	return parseIntensity(line)
}

// ReadTemperature clears pending output, requests the temperature and
// returns the response line as sent. The only change made to it is removing
// the trailing CR/LF; the payload is not parsed or trimmed otherwise.
func (d *Driver) ReadTemperature() (string, error) {
	if err := d.t.ResetOutputBuffer(); err != nil {
		return "", fmt.Errorf("read temperature: %w", err)
	}
	if err := d.Send(ReadTemperature); err != nil {
		return "", err
	}
	line, err := d.t.ReadLine()
	if err != nil {
		return "", fmt.Errorf("read temperature: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ResetOutput discards bytes queued for transmission.
func (d *Driver) ResetOutput() error {
	return d.t.ResetOutputBuffer()
}

// parseIntensity parses a response line into a float.
// Accepted framings: "12.34\r\n" as sent by the firmware, and the
// bytes-literal form "b'12.34\r\n'" with escaped terminators.
func parseIntensity(line string) (float64, error) {
	payload := deframe(line)
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: intensity %q is not numeric", ErrParse, line)
	}
	return v, nil
}

func deframe(line string) string {
	s := strings.TrimSpace(line)
	if strings.HasPrefix(s, "b'") && strings.HasSuffix(s, "'") && len(s) >= 3 {
		s = s[2 : len(s)-1]
		for {
			trimmed := strings.TrimSuffix(strings.TrimSuffix(s, `\n`), `\r`)
			if trimmed == s {
				break
			}
			s = trimmed
		}
	}
	return strings.TrimSpace(s)
}
