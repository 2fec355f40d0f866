package display

import "github.com/tuffrabit/tinygo-epd-link/pkg/protocol"

// screen is the part of Manager the monitor draws on.
type screen interface {
	ShowIncoming(bytesStr, parsedStr string)
	ShowOutgoing(bytesStr, parsedStr string)
	ShowError(msg string)
}

// Monitor mirrors protocol traffic onto the debug display. Error statuses
// take over the outgoing rows until the next status.
type Monitor struct {
	out screen
	fmt *FrameFormatter
}

var _ protocol.Monitor = (*Monitor)(nil)

// NewMonitor returns a monitor drawing on mgr. A nil mgr gives a monitor
// that drops everything.
func NewMonitor(mgr *Manager) *Monitor {
	m := &Monitor{fmt: NewFrameFormatter()}
	if mgr != nil {
		m.out = mgr
	}
	return m
}

func (m *Monitor) CommandReceived(token string) {
	if m.out == nil {
		return
	}
	m.out.ShowIncoming(m.fmt.FormatCommand(token))
}

func (m *Monitor) HeaderReceived(raw [protocol.HeaderSize]byte, length uint32) {
	if m.out == nil {
		return
	}
	m.out.ShowIncoming(m.fmt.FormatHeader(raw, length))
}

func (m *Monitor) StatusSent(s protocol.Status) {
	if m.out == nil {
		return
	}
	switch s {
	case protocol.StatusErrLen:
		m.out.ShowError(m.fmt.FormatError(protocol.ErrLength))
	case protocol.StatusErrTimeout:
		m.out.ShowError(m.fmt.FormatError(protocol.ErrTimeout))
	default:
		m.out.ShowOutgoing(m.fmt.FormatStatus(s))
	}
}
