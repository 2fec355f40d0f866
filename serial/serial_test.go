package serial

import (
	"bytes"
	"testing"
)

type fakeSerial struct {
	in  []byte
	out bytes.Buffer
}

func (f *fakeSerial) Buffered() int { return len(f.in) }

func (f *fakeSerial) ReadByte() (byte, error) {
	if len(f.in) == 0 {
		return 0, ErrEmpty
	}
	b := f.in[0]
	f.in = f.in[1:]
	return b, nil
}

func (f *fakeSerial) Write(data []byte) (int, error) {
	return f.out.Write(data)
}

func TestPeekDoesNotConsume(t *testing.T) {
	src := &fakeSerial{in: []byte{'P', 'U'}}
	port := NewPort(src)

	b, ok := port.Peek()
	if !ok || b != 'P' {
		t.Fatalf("Expected peek 'P', got %q (ok=%v)", b, ok)
	}
	if port.Available() != 2 {
		t.Errorf("Expected 2 available after peek, got %d", port.Available())
	}

	// Peeking twice returns the same byte.
	b, _ = port.Peek()
	if b != 'P' {
		t.Errorf("Second peek: expected 'P', got %q", b)
	}

	first, err := port.ReadByte()
	if err != nil || first != 'P' {
		t.Fatalf("ReadByte: expected 'P', got %q (%v)", first, err)
	}
	second, err := port.ReadByte()
	if err != nil || second != 'U' {
		t.Fatalf("ReadByte: expected 'U', got %q (%v)", second, err)
	}
	if port.Available() != 0 {
		t.Errorf("Expected 0 available, got %d", port.Available())
	}
}

func TestEmptyPort(t *testing.T) {
	port := NewPort(&fakeSerial{})

	if _, ok := port.Peek(); ok {
		t.Error("Peek on empty port should fail")
	}
	if _, err := port.ReadByte(); err != ErrEmpty {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
}

func TestWritePassesThrough(t *testing.T) {
	src := &fakeSerial{}
	port := NewPort(src)

	if _, err := port.Write([]byte("READY\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if src.out.String() != "READY\n" {
		t.Errorf("Expected READY line, got %q", src.out.String())
	}
}
