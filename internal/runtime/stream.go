package runtime

import (
	"io"

	"github.com/superfaceai/one-sdk-go/internal/platform"
	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

// stream is the capability set the host exposes through a single
// handle, whether it is backed by a file or an HTTP response body
// (spec's "Stream duck-typing" redesign flag: one interface, not a
// union of file/http types).
type stream interface {
	Read(count int) ([]byte, wasmhost.Errno)
	Write(data []byte) (int, wasmhost.Errno)
	Close() wasmhost.Errno
}

// fileStream adapts a platform.Filesystem handle to the stream
// interface, the way app.py's file-open handler wraps
// PythonFilesystem's bound methods in an anonymous SimpleNamespace.
type fileStream struct {
	fs     platform.Filesystem
	handle uint32
}

func (s fileStream) Read(count int) ([]byte, wasmhost.Errno) { return s.fs.Read(s.handle, count) }
func (s fileStream) Write(data []byte) (int, wasmhost.Errno) { return s.fs.Write(s.handle, data) }
func (s fileStream) Close() wasmhost.Errno                   { return s.fs.Close(s.handle) }

// httpBodyStream adapts an HTTP response body to the stream interface.
type httpBodyStream struct {
	body io.ReadCloser
}

func (s httpBodyStream) Read(count int) ([]byte, wasmhost.Errno) {
	buf := make([]byte, count)
	n, err := s.body.Read(buf)
	if err != nil && err != io.EOF && n == 0 {
		return nil, wasmhost.ErrnoInval
	}
	return buf[:n], wasmhost.ErrnoSuccess
}

func (s httpBodyStream) Write([]byte) (int, wasmhost.Errno) {
	return 0, wasmhost.ErrnoInval
}

func (s httpBodyStream) Close() wasmhost.Errno {
	if err := s.body.Close(); err != nil {
		return wasmhost.ErrnoInval
	}
	return wasmhost.ErrnoSuccess
}
