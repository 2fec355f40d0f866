package display

import (
	"fmt"
	"strings"

	"github.com/tuffrabit/tinygo-epd-link/pkg/protocol"
)

// maxCols is the usable width of one debug row in characters.
const maxCols = 15

// FrameFormatter formats protocol traffic for the 16-character debug rows.
type FrameFormatter struct{}

// NewFrameFormatter creates a new frame formatter.
func NewFrameFormatter() *FrameFormatter {
	return &FrameFormatter{}
}

// FormatCommand formats an accepted text command.
func (f *FrameFormatter) FormatCommand(token string) (bytesStr, parsedStr string) {
	return "I:" + hexBytes([]byte(token), 5), "CMD " + token
}

// FormatHeader formats a decoded length header.
func (f *FrameFormatter) FormatHeader(raw [protocol.HeaderSize]byte, length uint32) (bytesStr, parsedStr string) {
	bytesStr = "I:" + hexBytes(raw[:], protocol.HeaderSize)
	if length == 0 || length > protocol.Capacity {
		return bytesStr, fmt.Sprintf("LEN %d BAD", length)
	}
	return bytesStr, fmt.Sprintf("LEN %d", length)
}

// FormatStatus formats an outgoing status line.
func (f *FrameFormatter) FormatStatus(s protocol.Status) (bytesStr, parsedStr string) {
	line := strings.TrimSuffix(s.Line(), "\n")
	return "O:" + hexBytes([]byte(line), 4), f.getStatusName(s)
}

// FormatError formats an error for display.
func (f *FrameFormatter) FormatError(err error) string {
	return truncate(err.Error(), 12)
}

// getStatusName returns a short name for a status.
func (f *FrameFormatter) getStatusName(s protocol.Status) string {
	switch s {
	case protocol.StatusOK:
		return "OK"
	case protocol.StatusReady:
		return "Ready"
	case protocol.StatusErrLen:
		return "ErrLen"
	case protocol.StatusErrTimeout:
		return "ErrTmo"
	case protocol.StatusDone:
		return "Done"
	default:
		return fmt.Sprintf("Sts%02X", uint8(s))
	}
}

// hexBytes renders up to max bytes as hex, marking truncation with "..".
func hexBytes(b []byte, max int) string {
	var sb strings.Builder
	for i := 0; i < len(b) && i < max; i++ {
		sb.WriteString(fmt.Sprintf("%02X", b[i]))
	}
	if len(b) > max {
		sb.WriteString("..")
	}
	return sb.String()
}

// truncate limits a string to maxLen characters, adding ".." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 2 {
		return s[:maxLen]
	}
	return s[:maxLen-2] + ".."
}
