package wasmhost

import "github.com/superfaceai/one-sdk-go/internal/handlemap"

// Callbacks is implemented by the runtime core (internal/runtime.App) and
// driven by the sf_host_unstable export functions below. It is the seam
// between the wasm-engine-agnostic ABI logic in this package and the
// stateful perform-state/stream/HTTP-request bookkeeping that lives in
// the runtime core.
type Callbacks interface {
	// HandleMessage decodes, dispatches and re-encodes one
	// message-exchange message (spec §4.5). Both message and the
	// returned reply are UTF-8 JSON.
	HandleMessage(message []byte) []byte

	// StreamRead reads up to count bytes from the stream named by
	// handle.
	StreamRead(handle uint32, count uint32) ([]byte, Errno)

	// StreamWrite writes data to the stream named by handle and returns
	// the number of bytes accepted.
	StreamWrite(handle uint32, data []byte) (uint32, Errno)

	// StreamClose closes and releases the stream named by handle.
	StreamClose(handle uint32) Errno
}

// MessageStore is the out-of-band holding area for message_exchange
// replies too large for the guest-provided buffer (spec §3, "Message
// store entry").
type MessageStore = handlemap.HandleMap[[]byte]

// NewMessageStore returns an empty MessageStore.
func NewMessageStore() *MessageStore {
	return handlemap.New[[]byte]()
}

// MessageExchange implements the sf_host_unstable export of the same
// name (spec §4.4). It always returns Ok(len(reply)); a non-nil error
// indicates the guest passed a pointer/length pair outside of linear
// memory, which the caller should treat as fatal (the guest violated the
// calling convention, not a recoverable ABI error).
func MessageExchange(
	mem Memory,
	store *MessageStore,
	cb Callbacks,
	msgPtr, msgLen, outPtr, outLen, retHandlePtr uint32,
) (AbiResult, error) {
	message, err := mem.ReadBytes(msgPtr, msgLen)
	if err != nil {
		return 0, err
	}

	reply := cb.HandleMessage(message)

	var handle uint32
	if uint32(len(reply)) > outLen {
		handle = store.Insert(reply)
	} else if _, err := mem.WriteBytes(outPtr, outLen, reply); err != nil {
		return 0, err
	}

	if err := mem.WriteI32(retHandlePtr, int32(handle)); err != nil {
		return 0, err
	}

	return Ok(uint32(len(reply))), nil
}

// MessageExchangeRetrieve implements the sf_host_unstable export of the
// same name (spec §4.4). The stored reply is consumed (removed from
// store) even when the buffer turns out to be too small, per spec §9's
// canonical "consume + RANGE" decision.
func MessageExchangeRetrieve(mem Memory, store *MessageStore, handle, outPtr, outLen uint32) (AbiResult, error) {
	reply, ok := store.Remove(handle)
	if !ok {
		return Err(ErrnoBadf), nil
	}

	if uint32(len(reply)) > outLen {
		return Err(ErrnoRange), nil
	}

	n, err := mem.WriteBytes(outPtr, outLen, reply)
	if err != nil {
		return 0, err
	}
	return Ok(n), nil
}

// StreamRead implements the sf_host_unstable export of the same name.
func StreamRead(mem Memory, cb Callbacks, handle, outPtr, outLen uint32) (AbiResult, error) {
	data, errno := cb.StreamRead(handle, outLen)
	if errno != ErrnoSuccess {
		return Err(errno), nil
	}

	n, err := mem.WriteBytes(outPtr, outLen, data)
	if err != nil {
		return 0, err
	}
	return Ok(n), nil
}

// StreamWrite implements the sf_host_unstable export of the same name.
func StreamWrite(mem Memory, cb Callbacks, handle, inPtr, inLen uint32) (AbiResult, error) {
	data, err := mem.ReadBytes(inPtr, inLen)
	if err != nil {
		return 0, err
	}

	n, errno := cb.StreamWrite(handle, data)
	if errno != ErrnoSuccess {
		return Err(errno), nil
	}
	return Ok(n), nil
}

// StreamClose implements the sf_host_unstable export of the same name.
func StreamClose(cb Callbacks, handle uint32) AbiResult {
	if errno := cb.StreamClose(handle); errno != ErrnoSuccess {
		return Err(errno)
	}
	return Ok(0)
}
