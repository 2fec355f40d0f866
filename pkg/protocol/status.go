package protocol

// Status is a response line written back to the host.
type Status uint8

const (
	StatusOK Status = iota
	StatusReady
	StatusErrLen
	StatusErrTimeout
	StatusDone
)

var statusLines = [...]string{
	StatusOK:         "OK\n",
	StatusReady:      "READY\n",
	StatusErrLen:     "ERR_LEN\n",
	StatusErrTimeout: "ERR_TIMEOUT\n",
	StatusDone:       "DONE\n",
}

// Line returns the newline-terminated wire text.
func (s Status) Line() string {
	if int(s) >= len(statusLines) {
		return ""
	}
	return statusLines[s]
}

func (s Status) String() string {
	l := s.Line()
	if l == "" {
		return "UNKNOWN"
	}
	return l[:len(l)-1]
}

// ParseStatus maps a received line (without the newline) back to a Status.
func ParseStatus(line string) (Status, bool) {
	for i, l := range statusLines {
		if l[:len(l)-1] == line {
			return Status(i), true
		}
	}
	return 0, false
}
