package protocol

import (
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/tuffrabit/tinygo-epd-link/pkg/clock"
	"github.com/tuffrabit/tinygo-epd-link/pkg/epd"
)

// State is the connection state.
type State uint8

const (
	StateIdle State = iota
	StatePulsing
	StateReceivingFrame
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulsing:
		return "pulsing"
	case StateReceivingFrame:
		return "receiving"
	default:
		return "unknown"
	}
}

// Machine is the reception state machine. It is driven by calling Step at a
// bounded interval and is the only mutator of its state, so it needs no
// locking.
type Machine struct {
	ch      Channel
	surface epd.Surface
	clock   clock.Clock
	cfg     Config
	log     *slog.Logger

	state  State
	buf    FrameBuffer
	toggle bool

	lastActivity time.Time // last payload byte consumed
	lastPulse    time.Time

	// Unresolved input waiting for more bytes.
	pendingCount int
	pendingSince time.Time
}

// NewMachine creates a machine in the Idle state.
func NewMachine(ch Channel, surface epd.Surface, clk clock.Clock, cfg Config) *Machine {
	cfg.applyDefaults()
	return &Machine{
		ch:      ch,
		surface: surface,
		clock:   clk,
		cfg:     cfg,
		log:     cfg.Logger,
		state:   StateIdle,
	}
}

func (m *Machine) State() State   { return m.state }
func (m *Machine) Toggle() bool   { return m.toggle }
func (m *Machine) Expected() int  { return m.buf.Expected() }
func (m *Machine) Received() int  { return m.buf.Received() }
func (m *Machine) Config() Config { return m.cfg }

// Step inspects available input, advances the state and performs at most one
// rendering cycle. It never waits for input.
func (m *Machine) Step() State {
	now := m.clock.Now()

	switch m.state {
	case StateIdle:
		m.stepIdle(now)
	case StatePulsing:
		m.stepPulsing(now)
	case StateReceivingFrame:
		m.stepReceiving(now)
	}

	return m.state
}

func (m *Machine) stepIdle(now time.Time) {
	n := m.ch.Available()
	if n == 0 {
		m.pendingCount = 0
		return
	}

	first, _ := m.ch.Peek()
	if first == CommandToken[0] {
		if n >= len(CommandToken) {
			m.readCommand()
			return
		}
	} else if n >= HeaderSize {
		m.readHeader(now)
		return
	}

	m.watchPending(n, now)
}

func (m *Machine) stepPulsing(now time.Time) {
	if n := m.ch.Available(); n > 0 {
		first, _ := m.ch.Peek()
		switch {
		case first != CommandToken[0] && n >= HeaderSize:
			// Host started a frame; abandon the pulse loop.
			m.readHeader(now)
			return
		case first == CommandToken[0] && n >= len(CommandToken):
			m.readCommand()
			return
		default:
			m.watchPending(n, now)
			if m.state != StatePulsing {
				return
			}
		}
	} else {
		m.pendingCount = 0
	}

	if !m.lastPulse.IsZero() && now.Sub(m.lastPulse) < m.cfg.PulseInterval {
		return
	}

	m.pulse()
	m.lastPulse = now
}

func (m *Machine) stepReceiving(now time.Time) {
	consumed := 0
	for m.buf.Remaining() > 0 && m.ch.Available() > 0 {
		b, err := m.ch.ReadByte()
		if err != nil {
			break
		}
		if err := m.buf.Append(b); err != nil {
			break
		}
		consumed++
	}
	if consumed > 0 {
		m.lastActivity = now
	}

	if m.buf.Complete() {
		if err := m.renderFrame(); err != nil {
			m.log.Error("frame render failed", "bytes", m.buf.Expected(), "err", err)
		} else {
			m.log.Info("frame rendered", "bytes", m.buf.Expected())
		}
		m.emit(StatusDone)
		m.buf.Reset()
		m.setState(StateIdle)
		return
	}

	if now.Sub(m.lastActivity) > m.cfg.PayloadTimeout {
		m.log.Warn("payload timeout",
			"received", m.buf.Received(),
			"expected", m.buf.Expected())
		m.emit(StatusErrTimeout)
		m.discard()
		m.buf.Reset()
		m.setState(StateIdle)
	}
}

// readCommand consumes a command-sized chunk starting with the token's first
// byte. Anything but the exact token is dropped.
func (m *Machine) readCommand() {
	m.pendingCount = 0

	var b [len(CommandToken)]byte
	for i := range b {
		c, err := m.ch.ReadByte()
		if err != nil {
			return
		}
		b[i] = c
	}

	if string(b[:]) != CommandToken {
		m.log.Warn("dropped unknown command", "bytes", b[:])
		return
	}

	if m.cfg.Monitor != nil {
		m.cfg.Monitor.CommandReceived(CommandToken)
	}
	m.emit(StatusOK)
	if m.state != StatePulsing {
		m.lastPulse = time.Time{}
		m.setState(StatePulsing)
	}
}

// readHeader consumes a 4-byte length header and either starts a frame or
// rejects it and resynchronizes.
func (m *Machine) readHeader(now time.Time) {
	m.pendingCount = 0

	var raw [HeaderSize]byte
	for i := range raw {
		c, err := m.ch.ReadByte()
		if err != nil {
			return
		}
		raw[i] = c
	}
	length := binary.BigEndian.Uint32(raw[:])

	if m.cfg.Monitor != nil {
		m.cfg.Monitor.HeaderReceived(raw, length)
	}

	if err := m.buf.Begin(length); err != nil {
		m.log.Warn("rejected frame header", "length", length, "capacity", Capacity)
		m.emit(StatusErrLen)
		m.discard()
		m.buf.Reset()
		m.setState(StateIdle)
		return
	}

	m.log.Debug("frame header accepted", "length", length)
	m.emit(StatusReady)
	m.lastActivity = now
	m.setState(StateReceivingFrame)
}

// watchPending discards input that cannot be interpreted yet and has not
// grown within the header timeout.
func (m *Machine) watchPending(n int, now time.Time) {
	if n != m.pendingCount {
		m.pendingCount = n
		m.pendingSince = now
		return
	}
	if now.Sub(m.pendingSince) <= m.cfg.HeaderTimeout {
		return
	}

	m.log.Warn("header timeout", "pending", n)
	m.emit(StatusErrTimeout)
	m.discard()
	m.pendingCount = 0
	m.setState(StateIdle)
}

// discard drops the bytes buffered right now. Bytes arriving meanwhile are
// left for the next step.
func (m *Machine) discard() {
	n := m.ch.Available()
	for i := 0; i < n; i++ {
		if _, err := m.ch.ReadByte(); err != nil {
			break
		}
	}
	if n > 0 {
		m.log.Debug("discarded input", "bytes", n)
	}
}

func (m *Machine) pulse() {
	c := epd.White
	if m.toggle {
		c = epd.Black
	}

	w, h := m.surface.Size()
	m.surface.SetWindow(0, 0, w, h)
	m.surface.BeginFrame()
	for {
		m.surface.Fill(c)
		if !m.surface.MoreToRender() {
			break
		}
	}
	if err := m.surface.Err(); err != nil {
		m.log.Error("pulse refresh failed", "err", err)
	}
	m.surface.PowerOff()

	m.toggle = !m.toggle
}

// renderFrame blits the buffer at the native geometry whatever the surface
// rotation, so the host always packs 240-pixel rows.
func (m *Machine) renderFrame() error {
	data := m.buf.Bytes()
	if data == nil {
		return ErrNoFrame
	}

	m.surface.SetFullWindow()
	m.surface.BeginFrame()
	for {
		m.surface.Fill(epd.White)
		m.surface.DrawInvertedBitmap(0, 0, data, epd.NativeWidth, epd.NativeHeight, epd.Black)
		if !m.surface.MoreToRender() {
			break
		}
	}
	err := m.surface.Err()
	m.surface.PowerOff()
	return err
}

func (m *Machine) emit(s Status) {
	if _, err := m.ch.Write([]byte(s.Line())); err != nil {
		m.log.Error("status write failed", "status", s.String(), "err", err)
	}
	if m.cfg.Monitor != nil {
		m.cfg.Monitor.StatusSent(s)
	}
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	m.log.Debug("state change", "from", m.state.String(), "to", s.String())
	m.state = s
}
