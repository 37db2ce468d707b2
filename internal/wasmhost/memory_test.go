package wasmhost

import "testing"

func TestReadWriteBytesRoundTrip(t *testing.T) {
	mem := NewMemory(make([]byte, 64))

	n, err := mem.WriteBytes(10, 5, []byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}

	got, err := mem.ReadBytes(10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestWriteBytesTruncatesToMaxLen(t *testing.T) {
	mem := NewMemory(make([]byte, 64))

	n, err := mem.WriteBytes(0, 3, []byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if n != 3 {
		t.Errorf("expected write to be truncated to 3 bytes, got %d", n)
	}

	got, _ := mem.ReadBytes(0, 3)
	if string(got) != "hel" {
		t.Errorf("expected %q, got %q", "hel", got)
	}
}

func TestReadBytesOutOfRange(t *testing.T) {
	mem := NewMemory(make([]byte, 16))
	if _, err := mem.ReadBytes(10, 100); err == nil {
		t.Errorf("expected out-of-range read to fail")
	}
}

func TestI32RoundTrip(t *testing.T) {
	mem := NewMemory(make([]byte, 16))

	if err := mem.WriteI32(4, -12345); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	v, err := mem.ReadI32(4)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v != -12345 {
		t.Errorf("expected -12345, got %d", v)
	}
}
