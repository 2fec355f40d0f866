// Package protocol implements the frame link spoken between the host and the
// e-paper firmware over a single serial byte stream.
//
// Wire format (host -> device):
//
//	"PULSE"                 enter pulsing mode
//	[LEN:4]                 frame header, uint32 big-endian, first byte != 'P'
//	[PAYLOAD:LEN]           packed 1 bpp bitmap, row-major, MSB-first
//
// Responses (device -> host) are ASCII lines: OK, READY, ERR_LEN,
// ERR_TIMEOUT, DONE.
package protocol

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tuffrabit/tinygo-epd-link/pkg/epd"
)

const (
	// CommandToken switches the device into pulsing mode.
	CommandToken = "PULSE"

	// HeaderSize is the length of the frame header.
	HeaderSize = 4

	// Capacity is the largest accepted payload: one full panel at 1 bpp.
	Capacity = epd.FrameBytes

	DefaultPulseInterval  = 50 * time.Millisecond
	DefaultHeaderTimeout  = 500 * time.Millisecond
	DefaultPayloadTimeout = 2000 * time.Millisecond
)

var (
	ErrLength     = errors.New("frame length out of range")
	ErrBufferFull = errors.New("frame buffer full")
	ErrNoFrame    = errors.New("no frame in progress")
	ErrTimeout    = errors.New("input timed out")
)

// Channel is the byte stream to the host.
type Channel interface {
	// Available returns the number of bytes that can be read without blocking.
	Available() int
	// Peek returns the next byte without consuming it.
	Peek() (byte, bool)
	// ReadByte consumes one byte.
	ReadByte() (byte, error)
	// Write sends response text.
	Write(p []byte) (int, error)
}

// Monitor observes protocol traffic. All methods are called from Step.
type Monitor interface {
	CommandReceived(token string)
	HeaderReceived(raw [HeaderSize]byte, length uint32)
	StatusSent(s Status)
}

// Config tunes the state machine.
type Config struct {
	PulseInterval  time.Duration
	HeaderTimeout  time.Duration
	PayloadTimeout time.Duration

	Logger  *slog.Logger
	Monitor Monitor
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		PulseInterval:  DefaultPulseInterval,
		HeaderTimeout:  DefaultHeaderTimeout,
		PayloadTimeout: DefaultPayloadTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.PulseInterval <= 0 {
		c.PulseInterval = DefaultPulseInterval
	}
	if c.HeaderTimeout <= 0 {
		c.HeaderTimeout = DefaultHeaderTimeout
	}
	if c.PayloadTimeout <= 0 {
		c.PayloadTimeout = DefaultPayloadTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}
