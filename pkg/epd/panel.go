//go:build tinygo

package epd

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/uc8151"
)

// PanelConfig wires the panel to the board.
type PanelConfig struct {
	Bus      drivers.SPI
	CS       machine.Pin
	DC       machine.Pin
	Reset    machine.Pin
	Busy     machine.Pin
	Rotation uint8 // quarter turns clockwise, 0 or 2
}

// Panel drives the 240x416 GDEY037T03 through the uc8151 driver. The whole
// frame lives in driver RAM, so every rendering cycle is a single page.
//
// The driver's init programs the PSR resolution bits for 128x296 glass;
// NewPanel follows it with a TRES command, which the controller gives
// priority over PSR, so the full native geometry is scanned.
//
// Windows clip drawing only. Every page push is a full refresh: the driver's
// DisplayRect assumes the 128x296 RAM layout and swaps axes on this panel.
type Panel struct {
	dev  uc8151.Device
	x, y int16
	w, h int16
	err  error
}

// NewPanel configures the controller and returns a ready panel.
func NewPanel(cfg PanelConfig) *Panel {
	dev := uc8151.New(cfg.Bus, cfg.CS, cfg.DC, cfg.Reset, cfg.Busy)
	dev.Configure(uc8151.Config{
		Width:    NativeWidth,
		Height:   NativeHeight,
		Rotation: drivers.Rotation(cfg.Rotation % 4),
		Blocking: true,
	})

	p := &Panel{dev: dev}
	p.setResolution()
	p.SetFullWindow()
	return p
}

// setResolution sends TRES: HRES (multiple of 8), then VRES high and low.
func (p *Panel) setResolution() {
	p.dev.SendCommand(uc8151.TRES)
	p.dev.SendData(uint8(NativeWidth), uint8(NativeHeight>>8), uint8(NativeHeight&0xFF))
}

// Displayer exposes the panel as a generic drivers.Displayer.
func (p *Panel) Displayer() drivers.Displayer {
	return &p.dev
}

func (p *Panel) Size() (int16, int16) {
	return p.dev.Size()
}

func (p *Panel) SetWindow(x, y, w, h int16) {
	p.x, p.y, p.w, p.h = x, y, w, h
}

func (p *Panel) SetFullWindow() {
	p.x, p.y = 0, 0
	p.w, p.h = p.dev.Size()
}

func (p *Panel) BeginFrame() {
	p.err = nil
}

func (p *Panel) MoreToRender() bool {
	if err := p.dev.Display(); err != nil {
		p.err = err
	}
	return false
}

func (p *Panel) Err() error {
	err := p.err
	p.err = nil
	return err
}

func (p *Panel) Fill(c Color) {
	p.fillRect(p.x, p.y, p.w, p.h, c.RGBA())
}

func (p *Panel) DrawInvertedBitmap(x, y int16, bitmap []byte, w, h int16, fg Color) {
	ink := fg.RGBA()
	stride := Stride(w)
	rows := BitmapRows(bitmap, w, h)
	for j := int16(0); j < rows; j++ {
		row := bitmap[int(j)*stride : int(j+1)*stride]
		for i := int16(0); i < w; i++ {
			if BitClear(row, int(i)) {
				p.dev.SetPixel(x+i, y+j, ink)
			}
		}
	}
}

func (p *Panel) PowerOff() {
	p.dev.PowerOff()
}

func (p *Panel) fillRect(x, y, w, h int16, c color.RGBA) {
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			p.dev.SetPixel(i, j, c)
		}
	}
}
