package runtime

import (
	"context"
	"encoding/json"

	"github.com/superfaceai/one-sdk-go/internal/platform"
	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

// HandleMessage implements wasmhost.Callbacks. It decodes one
// message-exchange message, dispatches it by kind, and re-encodes the
// reply, mirroring WasiApp.handle_message's kind switch in app.py.
func (a *App) HandleMessage(message []byte) []byte {
	if a.state == nil {
		return encodeReply(errMessage(errUnexpectedPerformState.Error()))
	}

	var msg inMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return encodeReply(errMessage(err.Error()))
	}

	if msg.Kind == "perform-input" {
		return a.handlePerformInput()
	}

	var reply outMessage
	switch msg.Kind {
	case "perform-output-result":
		a.state.result = msg.Result
		reply = ok()
	case "perform-output-error":
		a.state.perform = &PerformError{Result: msg.Error}
		reply = ok()
	case "perform-output-exception":
		a.state.exception = exceptionToError(msg.Exception)
		reply = ok()
	case "file-open":
		reply = a.handleFileOpen(msg)
	case "http-call":
		reply = a.handleHTTPCall(msg)
	case "http-call-head":
		reply = a.handleHTTPCallHead(msg)
	default:
		reply = errMessage("Unknown message " + msg.Kind)
	}

	return encodeReply(reply)
}

func encodeReply(m outMessage) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		return []byte(`{"kind":"err","error":"failed to encode reply"}`)
	}
	return b
}

func exceptionToError(exc *exceptionPayload) error {
	if exc == nil {
		return &UnexpectedError{Name: "UnexpectedError", Message: "missing exception payload"}
	}
	if exc.ErrorCode == "InputValidationError" {
		return &ValidationError{Message: exc.Message}
	}
	return &UnexpectedError{Name: exc.ErrorCode, Message: exc.Message}
}

func (a *App) handlePerformInput() []byte {
	parameters := a.state.parameters
	if parameters == nil {
		parameters = map[string]string{}
	}
	security := a.state.security
	if len(security) == 0 {
		security = json.RawMessage("{}")
	}

	b, err := json.Marshal(performInputReply{
		Kind:          "ok",
		ProfileURL:    a.state.profileURL,
		ProviderURL:   a.state.providerURL,
		MapURL:        a.state.mapURL,
		Usecase:       a.state.usecase,
		MapInput:      a.state.input,
		MapParameters: parameters,
		MapSecurity:   security,
	})
	if err != nil {
		return []byte(`{"kind":"err","error":"failed to encode reply"}`)
	}
	return b
}

func (a *App) handleFileOpen(msg inMessage) outMessage {
	handle, errno := a.filesystem.Open(msg.Path, platform.OpenOptions{
		CreateNew: msg.CreateNew,
		Create:    msg.Create,
		Truncate:  msg.Truncate,
		Append:    msg.Append,
		Write:     msg.Write,
		Read:      msg.Read,
	})
	if errno != wasmhost.ErrnoSuccess {
		return outMessage{Kind: "err", Errno: uint32(errno)}
	}

	streamHandle := a.streams.Insert(fileStream{fs: a.filesystem, handle: handle})
	return outMessage{Kind: "ok", Stream: streamHandle}
}

func (a *App) handleHTTPCall(msg inMessage) outMessage {
	deferred := a.network.Fetch(context.Background(), msg.Method, msg.URL, toHeader(msg.Headers), msg.Body)
	handle := a.requests.Insert(deferred)
	return outMessage{Kind: "ok", RequestHandle: handle}
}

func (a *App) handleHTTPCallHead(msg inMessage) outMessage {
	deferred, ok := a.requests.Remove(msg.Handle)
	if !ok {
		return outMessage{Kind: "err", ErrorCode: platform.NetworkErrorGeneric, Message: "Invalid http call handle"}
	}

	resp, err := deferred.Resolve()
	if err != nil {
		if netErr, isNet := err.(*platform.NetworkError); isNet {
			return outMessage{Kind: "err", ErrorCode: netErr.Code, Message: netErr.Message}
		}
		return outMessage{Kind: "err", ErrorCode: platform.NetworkErrorGeneric, Message: err.Error()}
	}

	bodyHandle := a.streams.Insert(httpBodyStream{body: resp.Body})
	return outMessage{
		Kind:        "ok",
		Status:      resp.Status,
		RespHeaders: resp.Headers,
		BodyStream:  bodyHandle,
	}
}

func toHeader(h map[string][]string) map[string][]string {
	if h == nil {
		return map[string][]string{}
	}
	return h
}

// StreamRead implements wasmhost.Callbacks.
func (a *App) StreamRead(handle uint32, count uint32) ([]byte, wasmhost.Errno) {
	s, ok := a.streams.Get(handle)
	if !ok {
		return nil, wasmhost.ErrnoBadf
	}
	return s.Read(int(count))
}

// StreamWrite implements wasmhost.Callbacks.
func (a *App) StreamWrite(handle uint32, data []byte) (uint32, wasmhost.Errno) {
	s, ok := a.streams.Get(handle)
	if !ok {
		return 0, wasmhost.ErrnoBadf
	}
	n, errno := s.Write(data)
	return uint32(n), errno
}

// StreamClose implements wasmhost.Callbacks.
func (a *App) StreamClose(handle uint32) wasmhost.Errno {
	s, ok := a.streams.Remove(handle)
	if !ok {
		return wasmhost.ErrnoBadf
	}
	return s.Close()
}
