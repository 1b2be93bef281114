// Package serial provides the real transport for the usbio driver, on top of
// a serial port handle.
package serial

import (
	"bufio"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

const defaultBaud = 9600
const defaultReadTimeout = time.Second

type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// Port is an open serial connection to the IO module. A read timeout
// surfaces as io.EOF (or io.ErrUnexpectedEOF mid-read) from the underlying
// handle and is passed through unchanged.
type Port struct {
	cfg    Config
	handle *serial.Port
	reader *bufio.Reader
}

func Open(cfg Config) (*Port, error) {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	handle, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial device %s", cfg.Device)
	}

	return &Port{
		cfg:    cfg,
		handle: handle,
		reader: bufio.NewReader(handle),
	}, nil
}

func (p *Port) Write(b []byte) error {
	n, err := p.handle.Write(b)
	if err != nil {
		return err
	}
	if n < len(b) {
		return errors.Errorf("short write to %s: %d of %d bytes", p.cfg.Device, n, len(b))
	}
	return nil
}

func (p *Port) ReadExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := io.ReadFull(p.reader, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *Port) ReadLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return line, nil
}

func (p *Port) Close() error {
	return p.handle.Close()
}

func (p *Port) String() string {
	return "usbio24 @ " + p.cfg.Device
}
