package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuffrabit/tinygo-epd-link/pkg/clock"
	"github.com/tuffrabit/tinygo-epd-link/pkg/epd"
	"github.com/tuffrabit/tinygo-epd-link/pkg/epd/epdtest"
)

type fakeChannel struct {
	in  []byte
	out bytes.Buffer
}

func (f *fakeChannel) Available() int { return len(f.in) }

func (f *fakeChannel) Peek() (byte, bool) {
	if len(f.in) == 0 {
		return 0, false
	}
	return f.in[0], true
}

func (f *fakeChannel) ReadByte() (byte, error) {
	if len(f.in) == 0 {
		return 0, io.EOF
	}
	b := f.in[0]
	f.in = f.in[1:]
	return b, nil
}

func (f *fakeChannel) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

func (f *fakeChannel) feed(b ...byte) {
	f.in = append(f.in, b...)
}

// lines returns and clears the status lines written so far.
func (f *fakeChannel) lines() []string {
	s := f.out.String()
	f.out.Reset()
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

type fakeMonitor struct {
	commands []string
	headers  []uint32
	statuses []Status
}

func (f *fakeMonitor) CommandReceived(token string) { f.commands = append(f.commands, token) }
func (f *fakeMonitor) HeaderReceived(raw [HeaderSize]byte, length uint32) {
	f.headers = append(f.headers, length)
}
func (f *fakeMonitor) StatusSent(s Status) { f.statuses = append(f.statuses, s) }

type harness struct {
	ch  *fakeChannel
	rec *epdtest.Recorder
	clk *clock.Manual
	m   *Machine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ch:  &fakeChannel{},
		rec: epdtest.New(),
		clk: clock.NewManual(time.Unix(0, 0)),
	}
	h.m = NewMachine(h.ch, h.rec, h.clk, DefaultConfig())
	return h
}

func header(n uint32) []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

func TestFrameAccepted(t *testing.T) {
	for _, n := range []int{1, 30, 10080, Capacity} {
		h := newHarness(t)
		data := payload(n)

		h.ch.feed(header(uint32(n))...)
		require.Equal(t, StateReceivingFrame, h.m.Step(), "length %d", n)
		require.Equal(t, []string{"READY"}, h.ch.lines())
		require.Equal(t, n, h.m.Expected())
		require.Equal(t, 0, h.m.Received())

		h.ch.feed(data...)
		require.Equal(t, StateIdle, h.m.Step(), "length %d", n)
		require.Equal(t, []string{"DONE"}, h.ch.lines())

		require.Len(t, h.rec.Blits, 1)
		blit := h.rec.Blits[0]
		require.Equal(t, data, blit.Data)
		require.Equal(t, epd.Black, blit.FG)
		require.Equal(t, int16(epd.NativeWidth), blit.W)
		require.Equal(t, int16(epd.NativeHeight), blit.H)
		require.Equal(t, []string{"fullwindow", "begin", "fill", "blit", "page", "poweroff"}, h.rec.Ops)
		require.Equal(t, []epd.Color{epd.White}, h.rec.Fills)

		require.Equal(t, 0, h.m.Expected())
		require.Equal(t, 0, h.m.Received())
	}
}

func TestZeroFilledFullFrame(t *testing.T) {
	h := newHarness(t)

	h.ch.feed(0x00, 0x00, 0x27, 0x60)
	h.ch.feed(make([]byte, 10080)...)

	h.m.Step()
	require.Equal(t, StateReceivingFrame, h.m.State())
	require.Equal(t, 10080, h.m.Expected())

	h.m.Step()
	require.Equal(t, StateIdle, h.m.State())
	require.Equal(t, []string{"READY", "DONE"}, h.ch.lines())
	require.Len(t, h.rec.Blits, 1)
	require.Equal(t, make([]byte, 10080), h.rec.Blits[0].Data)
}

func TestFrameArrivingInPieces(t *testing.T) {
	h := newHarness(t)
	data := payload(500)

	h.ch.feed(header(500)...)
	h.m.Step()
	for off := 0; off < len(data); off += 64 {
		end := off + 64
		if end > len(data) {
			end = len(data)
		}
		require.Equal(t, StateReceivingFrame, h.m.State())
		require.Empty(t, h.rec.Blits, "partial frame must not be rendered")
		h.ch.feed(data[off:end]...)
		h.clk.Advance(100 * time.Millisecond)
		h.m.Step()
	}

	require.Equal(t, StateIdle, h.m.State())
	require.Equal(t, []string{"READY", "DONE"}, h.ch.lines())
	require.Equal(t, data, h.rec.Blits[0].Data)
}

func TestLengthRejected(t *testing.T) {
	for _, n := range []uint32{0, Capacity + 1, 0x00FFFFFF, 0xFFFFFFFF} {
		h := newHarness(t)

		h.ch.feed(header(n)...)
		h.ch.feed(0x01, 0x02, 0x03)

		require.Equal(t, StateIdle, h.m.Step(), "length %d", n)
		require.Equal(t, []string{"ERR_LEN"}, h.ch.lines(), "length %d", n)
		require.Equal(t, 0, h.ch.Available(), "buffered input should be discarded")
		require.Equal(t, 0, h.m.Expected())
		require.Equal(t, 0, h.m.Received())
		require.Empty(t, h.rec.Ops)
	}
}

func TestPayloadTimeout(t *testing.T) {
	h := newHarness(t)

	h.ch.feed(header(100)...)
	h.m.Step()
	h.ch.feed(payload(40)...)
	h.m.Step()
	require.Equal(t, 40, h.m.Received())

	h.clk.Advance(DefaultPayloadTimeout)
	require.Equal(t, StateReceivingFrame, h.m.Step())

	h.clk.Advance(time.Millisecond)
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, []string{"READY", "ERR_TIMEOUT"}, h.ch.lines())
	require.Equal(t, 0, h.m.Expected())
	require.Equal(t, 0, h.m.Received())
	require.Empty(t, h.rec.Blits)
}

func TestPayloadTimeoutWithNoBytes(t *testing.T) {
	h := newHarness(t)

	h.ch.feed(header(8)...)
	h.m.Step()
	h.clk.Advance(DefaultPayloadTimeout + time.Millisecond)
	h.m.Step()

	require.Equal(t, StateIdle, h.m.State())
	require.Equal(t, []string{"READY", "ERR_TIMEOUT"}, h.ch.lines())
}

func TestActivityExtendsPayloadTimeout(t *testing.T) {
	h := newHarness(t)

	h.ch.feed(header(10)...)
	h.m.Step()
	for i := 0; i < 9; i++ {
		h.clk.Advance(1500 * time.Millisecond)
		h.ch.feed(byte(i))
		require.Equal(t, StateReceivingFrame, h.m.Step())
	}
	h.clk.Advance(1500 * time.Millisecond)
	h.ch.feed(9)
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, []string{"READY", "DONE"}, h.ch.lines())
}

func TestPulseCommand(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte(CommandToken)...)
	require.Equal(t, StatePulsing, h.m.Step())
	require.Equal(t, []string{"OK"}, h.ch.lines())
	require.Empty(t, h.rec.Fills)

	h.m.Step()
	require.Equal(t, []epd.Color{epd.White}, h.rec.Fills)
	require.True(t, h.m.Toggle())

	// Paced: no new cycle until the interval elapses.
	h.clk.Advance(10 * time.Millisecond)
	h.m.Step()
	require.Len(t, h.rec.Fills, 1)

	for i := 0; i < 4; i++ {
		h.clk.Advance(DefaultPulseInterval)
		h.m.Step()
	}
	require.Equal(t, []epd.Color{epd.White, epd.Black, epd.White, epd.Black, epd.White}, h.rec.Fills)
	require.Equal(t, len(h.rec.Fills), h.rec.PowerOffs)

	for _, w := range h.rec.Windows {
		require.False(t, w.Full)
		require.Equal(t, epdtest.Window{W: epd.NativeWidth, H: epd.NativeHeight}, w)
	}
}

func TestHeaderInterruptsPulsing(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte(CommandToken)...)
	h.m.Step()
	h.m.Step()
	h.clk.Advance(DefaultPulseInterval)
	h.m.Step()
	fills := len(h.rec.Fills)
	h.ch.lines()

	h.clk.Advance(DefaultPulseInterval)
	h.ch.feed(header(16)...)
	require.Equal(t, StateReceivingFrame, h.m.Step())
	require.Len(t, h.rec.Fills, fills, "no pulse cycle once a header is seen")
	require.Equal(t, []string{"READY"}, h.ch.lines())

	h.ch.feed(payload(16)...)
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, []string{"DONE"}, h.ch.lines())
	require.Equal(t, payload(16), h.rec.Blits[0].Data)
}

func TestBadHeaderWhilePulsing(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte(CommandToken)...)
	h.m.Step()
	h.m.Step()
	h.ch.lines()

	h.ch.feed(header(0)...)
	h.ch.feed(0xAA, 0xBB)
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, []string{"ERR_LEN"}, h.ch.lines())
	require.Equal(t, 0, h.ch.Available())
}

func TestPartialHeaderKeepsPulsing(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte(CommandToken)...)
	h.m.Step()
	h.ch.feed(0x00, 0x00)
	h.m.Step()
	require.Equal(t, StatePulsing, h.m.State())
	require.Len(t, h.rec.Fills, 1)

	h.clk.Advance(DefaultPulseInterval)
	h.ch.feed(0x00, 0x08)
	require.Equal(t, StateReceivingFrame, h.m.Step())
	require.Equal(t, 8, h.m.Expected())
}

func TestCommandCheckedBeforeHeader(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte(CommandToken)...)
	h.ch.feed(header(4)...)

	require.Equal(t, StatePulsing, h.m.Step())
	require.Equal(t, HeaderSize, h.ch.Available())
	require.Equal(t, StateReceivingFrame, h.m.Step())
	require.Equal(t, []string{"OK", "READY"}, h.ch.lines())
}

func TestLeadingPNeverReadAsLength(t *testing.T) {
	h := newHarness(t)

	h.ch.feed('P', 'U', 'L', 'S')
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, 4, h.ch.Available())
	require.Nil(t, h.ch.lines())

	h.ch.feed('E')
	require.Equal(t, StatePulsing, h.m.Step())
	require.Equal(t, []string{"OK"}, h.ch.lines())
}

func TestUnknownCommandDropped(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte("PAUSE")...)
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, 0, h.ch.Available())
	require.Nil(t, h.ch.lines())
}

func TestPulseWhilePulsing(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte(CommandToken)...)
	h.m.Step()
	h.m.Step()
	h.ch.feed([]byte(CommandToken)...)
	require.Equal(t, StatePulsing, h.m.Step())
	require.Equal(t, []string{"OK", "OK"}, h.ch.lines())
}

func TestHeaderAssemblyTimeout(t *testing.T) {
	h := newHarness(t)

	h.ch.feed(0x00, 0x00)
	h.m.Step()
	h.clk.Advance(DefaultHeaderTimeout)
	h.m.Step()
	require.Nil(t, h.ch.lines())
	require.Equal(t, 2, h.ch.Available())

	h.clk.Advance(time.Millisecond)
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, []string{"ERR_TIMEOUT"}, h.ch.lines())
	require.Equal(t, 0, h.ch.Available())

	h.ch.feed(header(2)...)
	h.ch.feed(0x01, 0x02)
	h.m.Step()
	h.m.Step()
	require.Equal(t, []string{"READY", "DONE"}, h.ch.lines())
}

func TestHeaderCompletedBeforeTimeout(t *testing.T) {
	h := newHarness(t)

	h.ch.feed(0x00, 0x00)
	h.m.Step()
	h.clk.Advance(400 * time.Millisecond)
	h.ch.feed(0x01)
	h.m.Step()
	h.clk.Advance(400 * time.Millisecond)
	h.ch.feed(0x00)
	require.Equal(t, StateReceivingFrame, h.m.Step())
	require.Equal(t, 256, h.m.Expected())
}

func TestHeaderTimeoutWhilePulsingReturnsIdle(t *testing.T) {
	h := newHarness(t)

	h.ch.feed([]byte(CommandToken)...)
	h.m.Step()
	h.ch.feed(0x00)
	h.m.Step()
	h.clk.Advance(DefaultHeaderTimeout + time.Millisecond)
	require.Equal(t, StateIdle, h.m.Step())
	require.Equal(t, []string{"OK", "ERR_TIMEOUT"}, h.ch.lines())
}

func TestRepeatedFramesIdentical(t *testing.T) {
	h := newHarness(t)
	data := payload(2000)

	for i := 0; i < 2; i++ {
		h.ch.feed(header(2000)...)
		h.m.Step()
		h.ch.feed(data...)
		h.m.Step()
	}

	require.Equal(t, []string{"READY", "DONE", "READY", "DONE"}, h.ch.lines())
	require.Len(t, h.rec.Blits, 2)
	require.Equal(t, h.rec.Blits[0], h.rec.Blits[1])
}

func TestBackToBackFramesInOneBurst(t *testing.T) {
	h := newHarness(t)

	h.ch.feed(header(3)...)
	h.ch.feed(1, 2, 3)
	h.ch.feed(header(2)...)
	h.ch.feed(4, 5)

	for i := 0; i < 4; i++ {
		h.m.Step()
	}

	require.Equal(t, []string{"READY", "DONE", "READY", "DONE"}, h.ch.lines())
	require.Equal(t, []byte{1, 2, 3}, h.rec.Blits[0].Data)
	require.Equal(t, []byte{4, 5}, h.rec.Blits[1].Data)
}

func TestMonitorNotified(t *testing.T) {
	ch := &fakeChannel{}
	mon := &fakeMonitor{}
	cfg := DefaultConfig()
	cfg.Monitor = mon
	m := NewMachine(ch, epdtest.New(), clock.NewManual(time.Unix(0, 0)), cfg)

	ch.feed([]byte(CommandToken)...)
	m.Step()
	ch.feed(header(Capacity + 1)...)
	m.Step()

	require.Equal(t, []string{CommandToken}, mon.commands)
	require.Equal(t, []uint32{Capacity + 1}, mon.headers)
	require.Equal(t, []Status{StatusOK, StatusErrLen}, mon.statuses)
}

func TestConfigDefaultsApplied(t *testing.T) {
	m := NewMachine(&fakeChannel{}, epdtest.New(), clock.System{}, Config{})

	cfg := m.Config()
	require.Equal(t, DefaultPulseInterval, cfg.PulseInterval)
	require.Equal(t, DefaultHeaderTimeout, cfg.HeaderTimeout)
	require.Equal(t, DefaultPayloadTimeout, cfg.PayloadTimeout)
	require.NotNil(t, cfg.Logger)
}

func TestFrameBlitsNativeGeometryOnRotatedSurface(t *testing.T) {
	ch := &fakeChannel{}
	rec := epdtest.NewSized(epd.NativeHeight, epd.NativeWidth) // quarter-turned panel
	m := NewMachine(ch, rec, clock.NewManual(time.Unix(0, 0)), DefaultConfig())

	// Ink only native pixel (0,1): first bit of the second 30-byte row.
	data := bytes.Repeat([]byte{0xFF}, Capacity)
	data[epd.NativeWidth/8] = 0x7F

	ch.feed(header(Capacity)...)
	m.Step()
	ch.feed(data...)
	require.Equal(t, StateIdle, m.Step())
	require.Equal(t, []string{"READY", "DONE"}, ch.lines())

	require.Len(t, rec.Blits, 1)
	require.Equal(t, int16(epd.NativeWidth), rec.Blits[0].W)
	require.Equal(t, int16(epd.NativeHeight), rec.Blits[0].H)
	require.True(t, rec.Inked(0, 1))
	require.False(t, rec.Inked(epd.NativeWidth, 0))
	require.Equal(t, 1, rec.InkCount())
}

func TestRefreshFailureIsLoggedAndFrameCompletes(t *testing.T) {
	var logs bytes.Buffer
	ch := &fakeChannel{}
	rec := epdtest.New()
	rec.FailRefresh = errors.New("wrong rectangle")
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	m := NewMachine(ch, rec, clock.NewManual(time.Unix(0, 0)), cfg)

	ch.feed(header(30)...)
	ch.feed(payload(30)...)
	m.Step()
	require.Equal(t, StateIdle, m.Step())

	require.Equal(t, []string{"READY", "DONE"}, ch.lines())
	require.Equal(t, 1, rec.PowerOffs)
	require.Contains(t, logs.String(), "frame render failed")
	require.Contains(t, logs.String(), "wrong rectangle")
	require.NotContains(t, logs.String(), "frame rendered")
	require.NoError(t, rec.Err(), "error is consumed by the machine")
}

func TestPulseRefreshFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	ch := &fakeChannel{}
	rec := epdtest.New()
	rec.FailRefresh = errors.New("busy stuck")
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	m := NewMachine(ch, rec, clock.NewManual(time.Unix(0, 0)), cfg)

	ch.feed([]byte(CommandToken)...)
	m.Step()
	require.Equal(t, StatePulsing, m.Step())

	require.Contains(t, logs.String(), "pulse refresh failed")
	require.True(t, m.Toggle(), "pulse still counts")
}
