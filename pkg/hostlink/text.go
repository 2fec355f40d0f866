package hostlink

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Text page layout, in pixels and points.
const (
	textMargin    = 15
	textLineGap   = 8
	maxTextSize   = 30
	minTextSize   = 6
	minHyphenPart = 3
)

var ErrTextTooLong = errors.New("text does not fit the page")

var monoFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gomono.TTF)
})

type textLayout struct {
	size  int
	lines []string
	capH  int // height of a capital, used as the line's visual height
	lineH int
	face  font.Face
}

// RenderText lays text out in a monospace face on a white w x h page. It
// uses the largest size from 30 pt down whose wrapped lines fit, hyphenates
// words longer than a line and centres the block vertically.
func RenderText(text string, w, h int) (*image.Gray, error) {
	lay, err := layoutText(text, w, h)
	if err != nil {
		return nil, err
	}
	defer lay.face.Close()

	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := font.Drawer{Dst: img, Src: image.Black, Face: lay.face}
	top := (h-len(lay.lines)*lay.lineH)/2 - 5
	for i, line := range lay.lines {
		d.Dot = fixed.P(textMargin, top+i*lay.lineH+lay.capH)
		d.DrawString(line)
	}
	return img, nil
}

func layoutText(text string, w, h int) (textLayout, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return textLayout{}, errors.New("empty text")
	}
	if w <= 2*textMargin || h <= 0 {
		return textLayout{}, fmt.Errorf("invalid page size %dx%d", w, h)
	}

	f, err := monoFont()
	if err != nil {
		return textLayout{}, fmt.Errorf("parse font: %w", err)
	}

	usable := w - 2*textMargin
	for size := maxTextSize; size >= minTextSize; size-- {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return textLayout{}, fmt.Errorf("font face %dpt: %w", size, err)
		}

		bounds, advance := font.BoundString(face, "A")
		capH := (bounds.Max.Y - bounds.Min.Y).Ceil()
		lineH := capH + textLineGap
		maxChars := usable / advance.Ceil()
		if maxChars < 2 {
			face.Close()
			continue
		}

		lines := wrapText(words, maxChars)
		if len(lines) <= h/lineH {
			return textLayout{
				size:  size,
				lines: lines,
				capH:  capH,
				lineH: lineH,
				face:  face,
			}, nil
		}
		face.Close()
	}
	return textLayout{}, ErrTextTooLong
}

// wrapText fills lines of at most maxChars runes greedily. A word that does
// not fit an empty line is hyphenated, or hard cut when no break point
// leaves minHyphenPart runes on both sides.
func wrapText(words []string, maxChars int) []string {
	queue := append([]string(nil), words...)

	var lines []string
	line := ""
	for i := 0; i < len(queue); {
		word := queue[i]
		n := runeLen(word)

		if line == "" {
			if n <= maxChars {
				line = word
				i++
				continue
			}
			head, tail := splitWord(word, maxChars)
			lines = append(lines, head)
			queue[i] = tail
			continue
		}

		if runeLen(line)+1+n <= maxChars {
			line += " " + word
			i++
		} else {
			lines = append(lines, line)
			line = ""
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// splitWord breaks word so that the head plus its hyphen fits maxChars.
func splitWord(word string, maxChars int) (head, tail string) {
	r := []rune(word)
	limit := maxChars - 1

	best := -1
	for _, p := range hyphenPoints(r) {
		if p >= minHyphenPart && len(r)-p >= minHyphenPart && p <= limit {
			best = p
		}
	}
	if best < 0 {
		best = limit
	}
	return string(r[:best]) + "-", string(r[best:])
}

// hyphenPoints returns syllable boundaries found by the vowel-consonant
// rules V-CV and VC-CV, in increasing order.
func hyphenPoints(r []rune) []int {
	var points []int
	for p := 1; p+1 < len(r); p++ {
		if !unicode.IsLetter(r[p-1]) || !unicode.IsLetter(r[p]) || !unicode.IsLetter(r[p+1]) {
			continue
		}
		prev, cur, next := isVowel(r[p-1]), isVowel(r[p]), isVowel(r[p+1])
		switch {
		case prev && !cur && next:
			points = append(points, p)
		case p >= 2 && !prev && !cur && next && isVowel(r[p-2]):
			points = append(points, p)
		}
	}
	return points
}

func isVowel(c rune) bool {
	return strings.ContainsRune("aeiouyäöüAEIOUYÄÖÜ", c)
}

func runeLen(s string) int {
	return len([]rune(s))
}
