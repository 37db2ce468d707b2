package runtime

import "encoding/json"

// byteArray marshals like the wasm core's own wire format: a JSON array
// of byte values rather than base64, matching original_source's
// `bytes(message["body"])` over a decoded JSON list.
type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *byteArray) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// inMessage covers every field any message kind might carry. Decoding
// unused fields into zero values is harmless; the dispatcher only reads
// the fields relevant to Kind.
type inMessage struct {
	Kind string `json:"kind"`

	// perform-output-result / perform-output-error
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`

	// perform-output-exception
	Exception *exceptionPayload `json:"exception,omitempty"`

	// file-open
	Path      string `json:"path,omitempty"`
	CreateNew bool   `json:"create_new,omitempty"`
	Create    bool   `json:"create,omitempty"`
	Truncate  bool   `json:"truncate,omitempty"`
	Append    bool   `json:"append,omitempty"`
	Write     bool   `json:"write,omitempty"`
	Read      bool   `json:"read,omitempty"`

	// http-call
	URL     string              `json:"url,omitempty"`
	Method  string              `json:"method,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    byteArray           `json:"body,omitempty"`

	// http-call-head
	Handle uint32 `json:"handle,omitempty"`
}

type exceptionPayload struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// outMessage is the envelope every dispatcher reply other than
// perform-input is encoded through (perform-input has its own
// performInputReply, since its fields must never be omitted). Kind-
// specific fields here are omitted when zero so the guest never sees
// spurious keys for a kind it didn't ask for.
type outMessage struct {
	Kind string `json:"kind"`

	// file-open reply
	Stream uint32 `json:"stream,omitempty"`

	// http-call reply
	RequestHandle uint32 `json:"handle,omitempty"`

	// http-call-head reply
	Status      int                 `json:"status,omitempty"`
	RespHeaders map[string][]string `json:"headers,omitempty"`
	BodyStream  uint32              `json:"body_stream,omitempty"`

	// err replies
	Errno     uint32 `json:"errno,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorText string `json:"error,omitempty"`
}

func ok() outMessage { return outMessage{Kind: "ok"} }

func errMessage(errorText string) outMessage {
	return outMessage{Kind: "err", ErrorText: errorText}
}

// performInputReply is the perform-input message's reply shape.
// map_input/map_parameters/map_security are always present (never
// omitted) per the guest core's wire contract, which always reads them
// as dict keys rather than treating a missing key as "empty";
// parameters/security default to {} the same way original_source's
// WasiApp.handle_message always returns dict values for these, never
// omitting the key even when the caller passed none.
type performInputReply struct {
	Kind          string            `json:"kind"`
	ProfileURL    string            `json:"profile_url"`
	ProviderURL   string            `json:"provider_url"`
	MapURL        string            `json:"map_url"`
	Usecase       string            `json:"usecase"`
	MapInput      json.RawMessage   `json:"map_input"`
	MapParameters map[string]string `json:"map_parameters"`
	MapSecurity   json.RawMessage   `json:"map_security"`
}
