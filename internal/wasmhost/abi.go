package wasmhost

// AbiResult is the 32-bit word every sf_host_unstable export returns: the
// low 31 bits carry a Size payload, the top bit is the Ok/Err
// discriminant (spec §4.3).
type AbiResult uint32

const signBit = uint32(1) << 31

// Ok encodes a successful result carrying the given size.
func Ok(size uint32) AbiResult {
	return AbiResult(size &^ signBit)
}

// Err encodes a failed result carrying the given WASI errno.
func Err(errno Errno) AbiResult {
	return AbiResult((uint32(errno) &^ signBit) | signBit)
}

// IsErr reports whether the result's discriminant bit is set.
func (r AbiResult) IsErr() bool {
	return uint32(r)&signBit != 0
}

// Payload returns the low 31 bits: the size on Ok, the errno on Err.
func (r AbiResult) Payload() uint32 {
	return uint32(r) &^ signBit
}

// Errno is the WASI preview-1 errno subset this ABI uses (spec §6).
type Errno uint32

const (
	ErrnoSuccess  Errno = 0
	ErrnoBadf     Errno = 8
	ErrnoInval    Errno = 28
	ErrnoNoent    Errno = 44
	ErrnoOverflow Errno = 61
	ErrnoRange    Errno = 68
)
