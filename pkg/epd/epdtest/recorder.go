// Package epdtest provides an in-memory epd.Surface for tests.
package epdtest

import (
	"image/color"

	"github.com/tuffrabit/tinygo-epd-link/pkg/epd"
)

// Window is a selected refresh window.
type Window struct {
	X, Y, W, H int16
	Full       bool
}

// Blit is one recorded DrawInvertedBitmap call.
type Blit struct {
	X, Y, W, H int16
	FG         epd.Color
	Data       []byte
}

// Recorder records every call made on it and keeps a pixel plane so drawn
// output can be inspected. It also satisfies drivers.Displayer.
type Recorder struct {
	Width, Height int16

	Windows   []Window
	Frames    int
	Pages     int
	Fills     []epd.Color
	Blits     []Blit
	PowerOffs int
	Displays  int

	// Ops is the call sequence, one short name per call.
	Ops []string

	// FailRefresh, when set, is reported by Err after every page push.
	FailRefresh error

	window Window
	ink    []bool
	err    error
}

// New returns a recorder with the native panel geometry.
func New() *Recorder {
	return NewSized(epd.NativeWidth, epd.NativeHeight)
}

// NewSized returns a recorder of the given size.
func NewSized(w, h int16) *Recorder {
	r := &Recorder{
		Width:  w,
		Height: h,
		ink:    make([]bool, int(w)*int(h)),
	}
	r.window = Window{W: w, H: h, Full: true}
	return r
}

func (r *Recorder) Size() (int16, int16) {
	return r.Width, r.Height
}

func (r *Recorder) SetWindow(x, y, w, h int16) {
	r.window = Window{X: x, Y: y, W: w, H: h}
	r.Windows = append(r.Windows, r.window)
	r.Ops = append(r.Ops, "window")
}

func (r *Recorder) SetFullWindow() {
	r.window = Window{W: r.Width, H: r.Height, Full: true}
	r.Windows = append(r.Windows, r.window)
	r.Ops = append(r.Ops, "fullwindow")
}

func (r *Recorder) BeginFrame() {
	r.Frames++
	r.Ops = append(r.Ops, "begin")
}

func (r *Recorder) MoreToRender() bool {
	r.Pages++
	r.Ops = append(r.Ops, "page")
	r.err = r.FailRefresh
	return false
}

func (r *Recorder) Err() error {
	err := r.err
	r.err = nil
	return err
}

func (r *Recorder) Fill(c epd.Color) {
	r.Fills = append(r.Fills, c)
	r.Ops = append(r.Ops, "fill")
	w := r.window
	for y := w.Y; y < w.Y+w.H; y++ {
		for x := w.X; x < w.X+w.W; x++ {
			r.set(x, y, c == epd.Black)
		}
	}
}

func (r *Recorder) DrawInvertedBitmap(x, y int16, bitmap []byte, w, h int16, fg epd.Color) {
	data := make([]byte, len(bitmap))
	copy(data, bitmap)
	r.Blits = append(r.Blits, Blit{X: x, Y: y, W: w, H: h, FG: fg, Data: data})
	r.Ops = append(r.Ops, "blit")

	stride := epd.Stride(w)
	rows := epd.BitmapRows(bitmap, w, h)
	for j := int16(0); j < rows; j++ {
		row := bitmap[int(j)*stride : int(j+1)*stride]
		for i := int16(0); i < w; i++ {
			if epd.BitClear(row, int(i)) {
				r.set(x+i, y+j, fg == epd.Black)
			}
		}
	}
}

func (r *Recorder) PowerOff() {
	r.PowerOffs++
	r.Ops = append(r.Ops, "poweroff")
}

// SetPixel implements drivers.Displayer.
func (r *Recorder) SetPixel(x, y int16, c color.RGBA) {
	r.set(x, y, epd.ColorOf(c) == epd.Black)
}

// Display implements drivers.Displayer.
func (r *Recorder) Display() error {
	r.Displays++
	r.Ops = append(r.Ops, "display")
	return nil
}

// Inked reports whether the pixel at x, y is black.
func (r *Recorder) Inked(x, y int16) bool {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return false
	}
	return r.ink[int(y)*int(r.Width)+int(x)]
}

// InkCount returns the number of black pixels.
func (r *Recorder) InkCount() int {
	n := 0
	for _, b := range r.ink {
		if b {
			n++
		}
	}
	return n
}

// Reset forgets every recorded call but keeps the pixel plane.
func (r *Recorder) Reset() {
	r.Windows = nil
	r.Frames = 0
	r.Pages = 0
	r.Fills = nil
	r.Blits = nil
	r.PowerOffs = 0
	r.Displays = 0
	r.Ops = nil
}

func (r *Recorder) set(x, y int16, black bool) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return
	}
	r.ink[int(y)*int(r.Width)+int(x)] = black
}
