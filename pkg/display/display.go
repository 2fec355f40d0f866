//go:build tinygo && !nodebug

// Package display provides SSD1306 OLED debug output. It shows serial traffic
// with incoming commands and headers on the yellow rows (0-1) and outgoing
// status lines on the blue rows (2-3).
//
// To build without display support (saves RAM and flash), use:
//
//	tinygo build -tags=nodebug -target=pico -o firmware.uf2 .
package display

import (
	"image/color"
	"log/slog"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	// I2C configuration
	i2cAddress = 0x3C
	sclPin     = machine.GPIO5
	sdaPin     = machine.GPIO4

	// Display dimensions
	screenWidth  = 128
	screenHeight = 64
	charHeight   = 8
	rows         = screenHeight / charHeight // 8 rows

	// Row assignments
	rowInBytes   = 0 // Yellow - incoming raw bytes
	rowInParsed  = 1 // Yellow - incoming parsed
	rowOutBytes  = 2 // Blue - outgoing raw bytes
	rowOutParsed = 3 // Blue - outgoing parsed
)

var (
	black = color.RGBA{0, 0, 0, 0}
	white = color.RGBA{255, 255, 255, 255}
)

// Manager handles the SSD1306 display for debug output.
type Manager struct {
	device *ssd1306.Device
	i2c    *machine.I2C
}

// NewManager creates and initializes the display manager.
// Returns nil if display initialization fails (non-fatal for debug).
func NewManager(log *slog.Logger) *Manager {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400000,
		SCL:       sclPin,
		SDA:       sdaPin,
	}); err != nil {
		log.Warn("debug display unavailable", "err", err)
		return nil
	}

	// Bus stabilization
	time.Sleep(10 * time.Millisecond)

	dev := ssd1306.NewI2C(i2c)
	dev.Configure(ssd1306.Config{
		Address: i2cAddress,
		Width:   screenWidth,
		Height:  screenHeight,
	})
	dev.ClearDisplay()

	mgr := &Manager{
		device: dev,
		i2c:    i2c,
	}

	mgr.drawString(rowInBytes, "EPD link debug")
	mgr.drawString(rowInParsed, "Waiting...")
	mgr.refresh()

	return mgr
}

// ShowIncoming displays incoming traffic on the yellow rows.
func (m *Manager) ShowIncoming(bytesStr, parsedStr string) {
	m.clearRow(rowInBytes)
	m.clearRow(rowInParsed)
	m.drawString(rowInBytes, truncate(bytesStr, maxCols))
	m.drawString(rowInParsed, truncate(" "+parsedStr, maxCols))
	m.refresh()
}

// ShowOutgoing displays an outgoing status on the blue rows.
func (m *Manager) ShowOutgoing(bytesStr, parsedStr string) {
	m.clearRow(rowOutBytes)
	m.clearRow(rowOutParsed)
	m.drawString(rowOutBytes, truncate(bytesStr, maxCols))
	m.drawString(rowOutParsed, truncate(" "+parsedStr, maxCols))
	m.refresh()
}

// ShowError displays an error message.
func (m *Manager) ShowError(msg string) {
	m.clearRow(rowOutBytes)
	m.clearRow(rowOutParsed)
	m.drawString(rowOutBytes, "ERR:")
	m.drawString(rowOutParsed, truncate(msg, maxCols))
	m.refresh()
}

func (m *Manager) clearRow(row int) {
	if row < 0 || row >= rows {
		return
	}
	yStart := int16(row * charHeight)
	for y := yStart; y < yStart+charHeight; y++ {
		for x := int16(0); x < screenWidth; x++ {
			m.device.SetPixel(x, y, black)
		}
	}
}

// drawString writes s with its baseline on the last pixel line of row.
func (m *Manager) drawString(row int, s string) {
	if row < 0 || row >= rows {
		return
	}
	y := int16(row*charHeight + charHeight - 1)
	tinyfont.WriteLine(m.device, &proggy.TinySZ8pt7b, 0, y, s, white)
}

func (m *Manager) refresh() {
	m.device.Display()
}
