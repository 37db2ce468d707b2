package runtime

import "encoding/json"

// PerformError wraps a modelled failure the guest reported via
// perform-output-error (spec's perform-output-error message kind). The
// wrapped value is whatever JSON the guest's map emitted for its error
// result, left undecoded since callers interpret it per use case.
type PerformError struct {
	Result json.RawMessage
}

func (e *PerformError) Error() string { return "PerformError: " + string(e.Result) }

// ValidationError signals the guest rejected perform input against its
// own schema (perform-output-exception with error_code
// "InputValidationError").
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "ValidationError: " + e.Message }

// UnexpectedError covers everything else: an unrecognized exception
// error_code from the guest, or a host-side failure executing
// WebAssembly (Name == "WebAssemblyRuntimeError").
type UnexpectedError struct {
	Name    string
	Message string
	cause   error
}

func (e *UnexpectedError) Error() string { return e.Name + ": " + e.Message }
func (e *UnexpectedError) Unwrap() error { return e.cause }

// UninitializedError is raised by Perform when called before Init.
type UninitializedError struct{}

func (e *UninitializedError) Error() string { return "Uninitialized: runtime isn't initialized." }
