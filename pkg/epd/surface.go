// Package epd describes the e-paper rendering sink driven by the protocol
// state machine and provides the panel implementation used on hardware.
//
// Rendering follows a paged cycle:
//
//	s.SetFullWindow()
//	s.BeginFrame()
//	for {
//		s.Fill(epd.White)
//		s.DrawInvertedBitmap(0, 0, buf, w, h, epd.Black)
//		if !s.MoreToRender() {
//			break
//		}
//	}
//	s.PowerOff()
package epd

import "image/color"

// Native panel geometry (GDEY037T03, portrait).
const (
	NativeWidth  = 240
	NativeHeight = 416

	// FrameBytes is the size of one full-panel 1 bpp bitmap.
	FrameBytes = NativeWidth * NativeHeight / 8
)

// Color is a monochrome ink colour.
type Color uint8

const (
	White Color = iota
	Black
)

// Driver-level colours. The controller treats any non-zero channel as ink.
var (
	paperRGBA = color.RGBA{0, 0, 0, 255}
	inkRGBA   = color.RGBA{1, 1, 1, 255}
)

// RGBA returns the driver colour for c.
func (c Color) RGBA() color.RGBA {
	if c == Black {
		return inkRGBA
	}
	return paperRGBA
}

// ColorOf maps a driver colour back to a monochrome colour.
func ColorOf(c color.RGBA) Color {
	if c.R != 0 || c.G != 0 || c.B != 0 {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Surface is a paged monochrome rendering target.
type Surface interface {
	// SetWindow selects a partial refresh window.
	SetWindow(x, y, w, h int16)
	// SetFullWindow selects the whole panel for a full refresh.
	SetFullWindow()
	// BeginFrame starts a paged rendering cycle in the selected window.
	BeginFrame()
	// MoreToRender pushes the current page to the panel and reports whether
	// another page must be drawn.
	MoreToRender() bool
	// Fill paints the selected window with c.
	Fill(c Color)
	// DrawInvertedBitmap draws a packed MSB-first 1 bpp bitmap. Clear bits are
	// painted with fg, set bits leave the background untouched. Only the rows
	// fully covered by bitmap are drawn.
	DrawInvertedBitmap(x, y int16, bitmap []byte, w, h int16, fg Color)
	// Err returns the error from the last page push, if any, and clears it.
	Err() error
	// PowerOff cuts panel power; the image is retained.
	PowerOff()
	// Size returns the drawable width and height.
	Size() (w, h int16)
}

// Stride returns the number of bytes in one packed row of width w.
func Stride(w int16) int {
	return (int(w) + 7) / 8
}

// BitmapRows returns how many whole rows of width w the bitmap covers,
// capped at h.
func BitmapRows(bitmap []byte, w, h int16) int16 {
	stride := Stride(w)
	if stride == 0 {
		return 0
	}
	rows := len(bitmap) / stride
	if rows > int(h) {
		rows = int(h)
	}
	return int16(rows)
}

// BitClear reports whether the pixel at column col of row is a clear bit.
func BitClear(row []byte, col int) bool {
	return row[col/8]&(0x80>>uint(col%8)) == 0
}
