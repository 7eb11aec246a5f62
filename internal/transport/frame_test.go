package transport

import (
	"bytes"
	"testing"
)

func TestWriteFrame_ReadFrame_Roundtrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello relay mesh")

	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestWriteFrame_RejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, maxFrameSize+1)
	if err := writeFrame(&buf, oversized); err == nil {
		t.Error("expected an error for an oversized frame")
	}
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := readFrame(&buf); err == nil {
		t.Error("expected an error for a declared length above max")
	}
}
