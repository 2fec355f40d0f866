// Package config defines the firmware settings record.
// The record is fixed-size for zero-allocation binary serialization.
package config

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tuffrabit/tinygo-epd-link/pkg/protocol"
)

// CurrentVersion is the settings format version.
// When firmware boots and finds a different version in flash, settings are wiped.
const CurrentVersion uint16 = 1

// SettingsSize is the encoded size of Settings.
const SettingsSize = 16

// Settings flags
const (
	FlagBanner       uint32 = 1 << 0 // draw the banner at boot
	FlagDebugDisplay uint32 = 1 << 1 // mirror traffic on the debug OLED
	FlagVerbose      uint32 = 1 << 2 // debug level logging
)

// Settings tunes the firmware.
// Total size: 16 bytes
// Layout:
//
//	[0-1]:   Version (uint16)
//	[2-5]:   Flags (uint32)
//	[6-7]:   PulseIntervalMs (uint16)
//	[8-9]:   HeaderTimeoutMs (uint16)
//	[10-11]: PayloadTimeoutMs (uint16)
//	[12]:    Rotation (uint8)
//	[13]:    Reserved (uint8)
//	[14-15]: Reserved for future use
type Settings struct {
	Version          uint16
	Flags            uint32
	PulseIntervalMs  uint16
	HeaderTimeoutMs  uint16
	PayloadTimeoutMs uint16
	Rotation         uint8 // quarter turns clockwise, 0 or 2
	Reserved1        uint8
	Reserved2        uint16
}

var (
	ErrInvalidSize     = errors.New("invalid settings size")
	ErrInvalidSettings = errors.New("invalid settings value")
)

// Default returns the stock settings.
func Default() Settings {
	return Settings{
		Version:          CurrentVersion,
		Flags:            FlagBanner,
		PulseIntervalMs:  uint16(protocol.DefaultPulseInterval / time.Millisecond),
		HeaderTimeoutMs:  uint16(protocol.DefaultHeaderTimeout / time.Millisecond),
		PayloadTimeoutMs: uint16(protocol.DefaultPayloadTimeout / time.Millisecond),
		Rotation:         2,
	}
}

// Has reports whether flag is set.
func (s *Settings) Has(flag uint32) bool {
	return s.Flags&flag != 0
}

// Validate rejects values the firmware cannot run with.
func (s *Settings) Validate() error {
	if s.PulseIntervalMs == 0 || s.HeaderTimeoutMs == 0 || s.PayloadTimeoutMs == 0 {
		return ErrInvalidSettings
	}
	// Frames are native portrait bitmaps; only half turns keep that shape.
	if s.Rotation != 0 && s.Rotation != 2 {
		return ErrInvalidSettings
	}
	return nil
}

// ProtocolConfig converts the timings for the state machine.
func (s *Settings) ProtocolConfig(logger *slog.Logger, mon protocol.Monitor) protocol.Config {
	return protocol.Config{
		PulseInterval:  time.Duration(s.PulseIntervalMs) * time.Millisecond,
		HeaderTimeout:  time.Duration(s.HeaderTimeoutMs) * time.Millisecond,
		PayloadTimeout: time.Duration(s.PayloadTimeoutMs) * time.Millisecond,
		Logger:         logger,
		Monitor:        mon,
	}
}

// LogLevel returns the level selected by FlagVerbose.
func (s *Settings) LogLevel() slog.Level {
	if s.Has(FlagVerbose) {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Settings) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SettingsSize)
	binary.LittleEndian.PutUint16(buf[0:], s.Version)
	binary.LittleEndian.PutUint32(buf[2:], s.Flags)
	binary.LittleEndian.PutUint16(buf[6:], s.PulseIntervalMs)
	binary.LittleEndian.PutUint16(buf[8:], s.HeaderTimeoutMs)
	binary.LittleEndian.PutUint16(buf[10:], s.PayloadTimeoutMs)
	buf[12] = s.Rotation
	buf[13] = s.Reserved1
	binary.LittleEndian.PutUint16(buf[14:], s.Reserved2)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Settings) UnmarshalBinary(data []byte) error {
	if len(data) < SettingsSize {
		return ErrInvalidSize
	}

	s.Version = binary.LittleEndian.Uint16(data[0:])
	s.Flags = binary.LittleEndian.Uint32(data[2:])
	s.PulseIntervalMs = binary.LittleEndian.Uint16(data[6:])
	s.HeaderTimeoutMs = binary.LittleEndian.Uint16(data[8:])
	s.PayloadTimeoutMs = binary.LittleEndian.Uint16(data[10:])
	s.Rotation = data[12]
	s.Reserved1 = data[13]
	s.Reserved2 = binary.LittleEndian.Uint16(data[14:])
	return nil
}

// WriteTo writes the encoded settings to w.
func (s *Settings) WriteTo(w io.Writer) (int64, error) {
	buf, err := s.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom reads encoded settings from r.
func (s *Settings) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, SettingsSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), err
	}
	return int64(n), s.UnmarshalBinary(buf)
}
