package hostlink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuffrabit/tinygo-epd-link/pkg/epd"
)

func TestWrapTextGreedy(t *testing.T) {
	lines := wrapText(strings.Fields("the quick brown fox jumps"), 10)
	require.Equal(t, []string{"the quick", "brown fox", "jumps"}, lines)
}

func TestWrapTextHyphenatesLongWord(t *testing.T) {
	lines := wrapText([]string{"extraordinary"}, 8)
	require.Equal(t, []string{"extraor-", "dinary"}, lines)
	for _, l := range lines {
		require.LessOrEqual(t, runeLen(l), 8)
	}
}

func TestWrapTextHardCutWithoutBreakPoint(t *testing.T) {
	lines := wrapText([]string{"zzzzzzzzzzzz"}, 6)
	require.Equal(t, []string{"zzzzz-", "zzzzz-", "zz"}, lines)
}

func TestWrapTextLongWordAfterShortOne(t *testing.T) {
	lines := wrapText([]string{"an", "extraordinary", "day"}, 8)
	require.Equal(t, []string{"an", "extraor-", "dinary", "day"}, lines)
}

func TestSplitWordKeepsMinimumParts(t *testing.T) {
	// "bananas" has breaks after "ba" and "bana"; only the second leaves
	// three runes on each side.
	head, tail := splitWord("bananas", 6)
	require.Equal(t, "bana-", head)
	require.Equal(t, "nas", tail)
}

func TestLayoutShortTextUsesLargestSize(t *testing.T) {
	lay, err := layoutText("Hello", epd.NativeWidth, epd.NativeHeight)
	require.NoError(t, err)
	defer lay.face.Close()

	require.Equal(t, maxTextSize, lay.size)
	require.Equal(t, []string{"Hello"}, lay.lines)
}

func TestLayoutLongTextShrinks(t *testing.T) {
	text := strings.Repeat("word ", 120)

	lay, err := layoutText(text, epd.NativeWidth, epd.NativeHeight)
	require.NoError(t, err)
	defer lay.face.Close()

	require.Less(t, lay.size, maxTextSize)
	require.GreaterOrEqual(t, lay.size, minTextSize)
	require.LessOrEqual(t, len(lay.lines)*lay.lineH, epd.NativeHeight)
}

func TestLayoutRejects(t *testing.T) {
	_, err := layoutText("   ", epd.NativeWidth, epd.NativeHeight)
	require.Error(t, err)

	_, err = layoutText(strings.Repeat("lorem ", 10000), epd.NativeWidth, epd.NativeHeight)
	require.ErrorIs(t, err, ErrTextTooLong)
}

func TestRenderTextCentred(t *testing.T) {
	img, err := RenderText("Hello", epd.NativeWidth, epd.NativeHeight)
	require.NoError(t, err)
	require.Equal(t, epd.NativeWidth, img.Bounds().Dx())
	require.Equal(t, epd.NativeHeight, img.Bounds().Dy())

	minY, maxY, inked := epd.NativeHeight, -1, 0
	for y := 0; y < epd.NativeHeight; y++ {
		for x := 0; x < epd.NativeWidth; x++ {
			if img.GrayAt(x, y).Y < 128 {
				inked++
				minY = min(minY, y)
				maxY = max(maxY, y)
				require.GreaterOrEqual(t, x, textMargin-3, "ink inside the left margin")
			}
		}
	}
	require.NotZero(t, inked)
	require.Greater(t, minY, epd.NativeHeight/4)
	require.Less(t, maxY, epd.NativeHeight*3/4)
}

func TestRenderTextPacksToFrame(t *testing.T) {
	img, err := RenderText("Lies, language models and e-paper", epd.NativeWidth, epd.NativeHeight)
	require.NoError(t, err)

	frame, err := Pack(img, epd.NativeWidth, epd.NativeHeight, false)
	require.NoError(t, err)
	require.Len(t, frame, epd.FrameBytes)

	black := 0
	for _, b := range frame {
		if b != 0xFF {
			black++
		}
	}
	require.NotZero(t, black)
}
