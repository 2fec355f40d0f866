// Package serial adapts the board's USB CDC serial port into the byte
// channel consumed by the protocol state machine.
package serial

import (
	"errors"
)

var ErrEmpty = errors.New("serial: no data buffered")

// Serialer is the subset of machine.Serialer the channel needs.
type Serialer interface {
	Buffered() int
	ReadByte() (byte, error)
	Write(data []byte) (n int, err error)
}

// Port is a non-blocking byte channel with one byte of lookahead.
type Port struct {
	serial  Serialer
	head    byte
	hasHead bool
}

func NewPort(serial Serialer) *Port {
	return &Port{
		serial: serial,
	}
}

// Available returns how many bytes can be read without blocking, including
// a peeked byte.
func (p *Port) Available() int {
	n := p.serial.Buffered()
	if p.hasHead {
		n++
	}
	return n
}

// Peek returns the next byte without consuming it.
func (p *Port) Peek() (byte, bool) {
	if p.hasHead {
		return p.head, true
	}
	if p.serial.Buffered() == 0 {
		return 0, false
	}

	b, err := p.serial.ReadByte()
	if err != nil {
		return 0, false
	}
	p.head = b
	p.hasHead = true
	return b, true
}

// ReadByte consumes the next byte.
func (p *Port) ReadByte() (byte, error) {
	if p.hasHead {
		p.hasHead = false
		return p.head, nil
	}
	if p.serial.Buffered() == 0 {
		return 0, ErrEmpty
	}
	return p.serial.ReadByte()
}

func (p *Port) Write(out []byte) (int, error) {
	return p.serial.Write(out)
}
