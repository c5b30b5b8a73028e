package rig

import (
	"bufio"
	"errors"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the rate the rig firmware configures its UART with.
	DefaultBaudRate = 9600
)

var (
	// ErrTransport marks failures of the serial link itself.
	ErrTransport = errors.New("transport error")
	// ErrParse marks responses whose payload could not be interpreted.
	ErrParse = errors.New("parse error")
)

// Transport is a byte-oriented duplex link to the rig.
type Transport interface {
	Write(p []byte) (int, error)
	// ReadLine blocks until a full newline-terminated line arrives and
	// returns it including the terminator.
	ReadLine() (string, error)
	// ResetOutputBuffer discards bytes queued for transmission but not yet sent.
	ResetOutputBuffer() error
	Close() error
}

// Ensure Serial implements Transport.
var _ Transport = (*Serial)(nil)

// Serial is a Transport over an OS serial port.
type Serial struct {
	port     string
	baudRate int

	mu     sync.Mutex
	conn   serial.Port
	reader *bufio.Reader
}

// Open opens the named serial port. A zero baudRate selects DefaultBaudRate.
func Open(port string, baudRate int) (*Serial, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	conn, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open serial port %s: %w", ErrTransport, port, err)
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		conn:     conn,
		reader:   bufio.NewReader(conn),
	}, nil
}

// Port returns the port name the transport was opened on.
func (s *Serial) Port() string {
	return s.port
}

func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, fmt.Errorf("%w: port %s is closed", ErrTransport, s.port)
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: write to %s: %w", ErrTransport, s.port, err)
	}
	return n, nil
}

func (s *Serial) ReadLine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return "", fmt.Errorf("%w: port %s is closed", ErrTransport, s.port)
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: read from %s: %w", ErrTransport, s.port, err)
	}
	return line, nil
}

func (s *Serial) ResetOutputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("%w: port %s is closed", ErrTransport, s.port)
	}
	if err := s.conn.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("%w: reset output buffer of %s: %w", ErrTransport, s.port, err)
	}
	return nil
}

// Close closes the port. Closing twice is a no-op.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrTransport, s.port, err)
	}
	return nil
}
