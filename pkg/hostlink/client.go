// Package hostlink is the host side of the frame link: it drives the
// firmware's handshake over a serial port and packs images into frames.
package hostlink

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuffrabit/tinygo-epd-link/pkg/protocol"
)

var (
	ErrLength        = errors.New("frame length out of range")
	ErrRejected      = errors.New("device rejected frame length")
	ErrDeviceTimeout = errors.New("device timed out waiting for payload")
	ErrNoResponse    = errors.New("no response from device")
)

// Options tunes the client's waits and payload pacing.
type Options struct {
	AckTimeout   time.Duration // wait for OK after PULSE
	FrameTimeout time.Duration // wait for READY and DONE
	ChunkSize    int
	ChunkDelay   time.Duration
}

func DefaultOptions() Options {
	return Options{
		AckTimeout:   5 * time.Second,
		FrameTimeout: 20 * time.Second,
		ChunkSize:    256,
		ChunkDelay:   2 * time.Millisecond,
	}
}

// Client speaks the frame protocol over rw. A read returning (0, nil) is
// treated as "nothing yet", which is how serial ports with a read timeout
// behave.
type Client struct {
	rw   io.ReadWriter
	log  zerolog.Logger
	opts Options

	rx []byte // bytes read past the last complete line
}

func NewClient(rw io.ReadWriter, log zerolog.Logger, opts Options) *Client {
	d := DefaultOptions()
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = d.AckTimeout
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = d.FrameTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = d.ChunkSize
	}
	if opts.ChunkDelay < 0 {
		opts.ChunkDelay = 0
	}
	return &Client{rw: rw, log: log, opts: opts}
}

// Pulse puts the device into pulse mode.
func (c *Client) Pulse(ctx context.Context) error {
	if _, err := c.rw.Write([]byte(protocol.CommandToken)); err != nil {
		return fmt.Errorf("write pulse command: %w", err)
	}
	c.log.Debug().Msg("sent PULSE")
	return c.waitFor(ctx, protocol.StatusOK, c.opts.AckTimeout)
}

// SendFrame transfers payload as one frame and waits for the device to
// finish rendering it.
func (c *Client) SendFrame(ctx context.Context, payload []byte) error {
	if len(payload) == 0 || len(payload) > protocol.Capacity {
		return fmt.Errorf("%w: %d bytes", ErrLength, len(payload))
	}

	var header [protocol.HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := c.rw.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	c.log.Debug().Int("length", len(payload)).Msg("sent header")

	if err := c.waitFor(ctx, protocol.StatusReady, c.opts.FrameTimeout); err != nil {
		return err
	}

	for off := 0; off < len(payload); off += c.opts.ChunkSize {
		end := min(off+c.opts.ChunkSize, len(payload))
		if _, err := c.rw.Write(payload[off:end]); err != nil {
			return fmt.Errorf("write payload at %d: %w", off, err)
		}
		if err := c.pause(ctx); err != nil {
			return err
		}
	}
	c.log.Debug().Int("bytes", len(payload)).Msg("sent payload")

	return c.waitFor(ctx, protocol.StatusDone, c.opts.FrameTimeout)
}

func (c *Client) pause(ctx context.Context) error {
	if c.opts.ChunkDelay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.opts.ChunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// waitFor reads status lines until want arrives. Error statuses end the wait
// early; anything else is logged and skipped.
func (c *Client) waitFor(ctx context.Context, want protocol.Status, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		line, err := c.readLine(ctx, deadline)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", want, err)
		}

		s, ok := protocol.ParseStatus(line)
		switch {
		case ok && s == want:
			c.log.Debug().Str("status", s.String()).Msg("device acknowledged")
			return nil
		case ok && s == protocol.StatusErrLen:
			return ErrRejected
		case ok && s == protocol.StatusErrTimeout:
			return ErrDeviceTimeout
		default:
			c.log.Debug().Str("line", line).Str("want", want.String()).Msg("skipping device line")
		}
	}
}

func (c *Client) readLine(ctx context.Context, deadline time.Time) (string, error) {
	var buf [64]byte
	for {
		if i := bytes.IndexByte(c.rx, '\n'); i >= 0 {
			line := string(bytes.TrimSpace(c.rx[:i]))
			c.rx = c.rx[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrNoResponse
		}

		n, err := c.rw.Read(buf[:])
		c.rx = append(c.rx, buf[:n]...)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}
}
