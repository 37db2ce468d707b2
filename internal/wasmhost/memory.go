// Package wasmhost implements the guest-facing ABI described in spec §4:
// a little-endian memory view into the guest's linear memory, a 32-bit
// Result<Size, Errno> codec, and the five sf_host_unstable exports
// (message_exchange, message_exchange_retrieve, stream_read,
// stream_write, stream_close).
package wasmhost

import (
	"encoding/binary"
	"fmt"
)

// Memory is a short-lived view into a guest instance's linear memory. It
// must never be retained across a guest export call: any such call may
// grow linear memory and invalidate the backing slice (spec §4.2,
// invariant 4 in spec §3). Re-derive a fresh Memory on every host-export
// entry.
type Memory struct {
	data []byte
}

// NewMemory wraps the raw byte slice backing a guest instance's current
// linear memory.
func NewMemory(data []byte) Memory {
	return Memory{data: data}
}

// ReadBytes copies exactly len bytes out of the guest memory at ptr.
func (m Memory) ReadBytes(ptr, size uint32) ([]byte, error) {
	end := uint64(ptr) + uint64(size)
	if end > uint64(len(m.data)) {
		return nil, fmt.Errorf("wasmhost: read out of range: ptr=%d size=%d memory=%d", ptr, size, len(m.data))
	}
	buf := make([]byte, size)
	copy(buf, m.data[ptr:end])
	return buf, nil
}

// WriteBytes writes min(maxLen, len(src)) bytes of src to ptr and returns
// the number of bytes written.
func (m Memory) WriteBytes(ptr, maxLen uint32, src []byte) (uint32, error) {
	n := uint32(len(src))
	if n > maxLen {
		n = maxLen
	}
	end := uint64(ptr) + uint64(n)
	if end > uint64(len(m.data)) {
		return 0, fmt.Errorf("wasmhost: write out of range: ptr=%d len=%d memory=%d", ptr, n, len(m.data))
	}
	copy(m.data[ptr:end], src[:n])
	return n, nil
}

// ReadI32 reads a little-endian signed 32-bit integer at ptr.
func (m Memory) ReadI32(ptr uint32) (int32, error) {
	buf, err := m.ReadBytes(ptr, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}

// WriteI32 writes v as a little-endian signed 32-bit integer at ptr.
func (m Memory) WriteI32(ptr uint32, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := m.WriteBytes(ptr, 4, buf[:])
	return err
}
