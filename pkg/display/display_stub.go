//go:build !tinygo || nodebug

// Package display provides a no-op stub when built with the nodebug tag or
// for the host. This excludes the SSD1306 driver and display code.
package display

import "log/slog"

// Manager is a no-op stub.
type Manager struct{}

// NewManager returns nil; callers treat a nil manager as "no debug display".
func NewManager(log *slog.Logger) *Manager {
	return nil
}

func (m *Manager) ShowIncoming(bytesStr, parsedStr string) {}

func (m *Manager) ShowOutgoing(bytesStr, parsedStr string) {}

func (m *Manager) ShowError(msg string) {}
