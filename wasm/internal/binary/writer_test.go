package binary

import (
	"bytes"
	"testing"
)

func TestWriterBasic(t *testing.T) {
	w := NewWriter()
	w.Byte(0x01)
	w.WriteBytes([]byte{0x02, 0x03})

	if w.Len() != 3 {
		t.Errorf("Len() = %d, want 3", w.Len())
	}
	if !bytes.Equal(w.Bytes(), []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Bytes() = % x", w.Bytes())
	}
}

func TestWriterWriteU32(t *testing.T) {
	tests := []struct {
		expected []byte
		value    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0x80, 0x80, 0x04}, 65536},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteU32(tt.value)
		if !bytes.Equal(w.Bytes(), tt.expected) {
			t.Errorf("WriteU32(%d) = % x, want % x", tt.value, w.Bytes(), tt.expected)
		}
	}
}

func TestWriterWriteU64(t *testing.T) {
	tests := []struct {
		expected []byte
		value    uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x10}, 1 << 32},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x40}, 1 << 48},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteU64(tt.value)
		if !bytes.Equal(w.Bytes(), tt.expected) {
			t.Errorf("WriteU64(%d) = % x, want % x", tt.value, w.Bytes(), tt.expected)
		}
	}
}

func TestWriterWriteName(t *testing.T) {
	w := NewWriter()
	w.WriteName("memory")
	want := []byte{0x06, 'm', 'e', 'm', 'o', 'r', 'y'}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteName = % x, want % x", w.Bytes(), want)
	}
}

func TestWriterWriteU32LE(t *testing.T) {
	w := NewWriter()
	w.WriteU32LE(0x6D736100)
	if !bytes.Equal(w.Bytes(), []byte{0x00, 0x61, 0x73, 0x6D}) {
		t.Errorf("WriteU32LE = % x", w.Bytes())
	}
}
