package epd

import (
	"strings"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
)

// DefaultBanner is shown at boot when no banner is stored.
const DefaultBanner = "EPD LINK\nREADY"

const bannerMargin = 8

// DrawBanner clears d to paper and writes text one line per row, then
// refreshes the display.
func DrawBanner(d drivers.Displayer, text string) error {
	w, h := d.Size()
	paper := White.RGBA()
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			d.SetPixel(x, y, paper)
		}
	}

	font := &freemono.Bold18pt7b
	advance := int16(font.GetYAdvance())
	y := advance
	for _, line := range strings.Split(text, "\n") {
		if y > h {
			break
		}
		tinyfont.WriteLine(d, font, bannerMargin, y, line, Black.RGBA())
		y += advance
	}

	return d.Display()
}
