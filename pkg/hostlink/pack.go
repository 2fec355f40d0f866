package hostlink

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Pack scales img to fit w x h on a white page and packs it into MSB-first
// rows of (w+7)/8 bytes. A black pixel is a 0 bit, which the firmware's
// inverted blit inks; invert produces a negative.
func Pack(img image.Image, w, h int, invert bool) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", w, h)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}

	page := imaging.New(w, h, color.White)
	page = imaging.OverlayCenter(page, imaging.Fit(img, w, h, imaging.Lanczos), 1.0)
	gray := imaging.Grayscale(page)

	stride := (w + 7) / 8
	out := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		row := out[y*stride : (y+1)*stride]
		for i := range row {
			row[i] = 0xFF
		}
		for x := 0; x < w; x++ {
			black := gray.NRGBAAt(x, y).R < 128
			if black != invert {
				row[x/8] &^= 0x80 >> (x % 8)
			}
		}
	}
	return out, nil
}

// Rotate turns img clockwise by a multiple of 90 degrees.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, fmt.Errorf("rotation must be a multiple of 90, got %d", degrees)
	}
}
