package platform

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/superfaceai/one-sdk-go/internal/handlemap"
	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

// OpenOptions mirrors the guest's file-open message fields one to one.
// Among Truncate, Append, Write and Read the first one set wins; the
// guest is expected to set exactly one, but the host never rejects a
// message for setting more than one.
type OpenOptions struct {
	CreateNew bool
	Create    bool
	Truncate  bool
	Append    bool
	Write     bool
	Read      bool
}

// flags translates OpenOptions into os.OpenFile flags. Files are always
// opened in binary mode, there being no Go equivalent of a text mode to
// opt out of.
func (o OpenOptions) flags() int {
	var flags int
	switch {
	case o.CreateNew:
		flags |= os.O_CREATE | os.O_EXCL
	case o.Create:
		flags |= os.O_CREATE
	}

	switch {
	case o.Truncate:
		flags |= os.O_WRONLY | os.O_TRUNC
	case o.Append:
		flags |= os.O_WRONLY | os.O_APPEND
	case o.Write:
		flags |= os.O_RDWR
	case o.Read:
		flags |= os.O_RDONLY
	default:
		flags |= os.O_RDONLY
	}

	return flags
}

// Filesystem is the injected file I/O capability (grounded on
// PythonFilesystem in platform.py). Handles are host-local and distinct
// from the guest's message-store handles.
type Filesystem interface {
	Open(path string, opts OpenOptions) (uint32, wasmhost.Errno)
	Read(handle uint32, count int) ([]byte, wasmhost.Errno)
	Write(handle uint32, data []byte) (int, wasmhost.Errno)
	Close(handle uint32) wasmhost.Errno
}

// OSFilesystem is the default Filesystem, backed by the host OS.
type OSFilesystem struct {
	files  *handlemap.HandleMap[*os.File]
	logger *zap.Logger
}

// NewOSFilesystem constructs an OSFilesystem. logger receives a
// diagnostic line for every file-open failure, since the errno alone
// discards the underlying *os.PathError; pass nil to disable it.
func NewOSFilesystem(logger *zap.Logger) *OSFilesystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSFilesystem{files: handlemap.New[*os.File](), logger: logger}
}

func (fsys *OSFilesystem) Open(path string, opts OpenOptions) (uint32, wasmhost.Errno) {
	file, err := os.OpenFile(path, opts.flags(), 0o644)
	if err != nil {
		fsys.logger.Warn("file open failed", zap.String("path", path), zap.Error(err))
		return 0, errnoFromPathError(err)
	}
	return fsys.files.Insert(file), wasmhost.ErrnoSuccess
}

func (fsys *OSFilesystem) Read(handle uint32, count int) ([]byte, wasmhost.Errno) {
	file, ok := fsys.files.Get(handle)
	if !ok {
		return nil, wasmhost.ErrnoBadf
	}

	buf := make([]byte, count)
	n, err := file.Read(buf)
	switch {
	case errors.Is(err, io.EOF):
		return buf[:n], wasmhost.ErrnoSuccess
	case errors.Is(err, fs.ErrClosed):
		return nil, wasmhost.ErrnoBadf
	case err != nil:
		return nil, wasmhost.ErrnoInval
	}
	return buf[:n], wasmhost.ErrnoSuccess
}

func (fsys *OSFilesystem) Write(handle uint32, data []byte) (int, wasmhost.Errno) {
	file, ok := fsys.files.Get(handle)
	if !ok {
		return 0, wasmhost.ErrnoBadf
	}

	n, err := file.Write(data)
	if errors.Is(err, fs.ErrClosed) {
		return n, wasmhost.ErrnoBadf
	}
	if err != nil {
		return n, wasmhost.ErrnoInval
	}
	return n, wasmhost.ErrnoSuccess
}

func (fsys *OSFilesystem) Close(handle uint32) wasmhost.Errno {
	file, ok := fsys.files.Remove(handle)
	if !ok {
		return wasmhost.ErrnoBadf
	}
	if err := file.Close(); err != nil {
		return wasmhost.ErrnoInval
	}
	return wasmhost.ErrnoSuccess
}

func errnoFromPathError(err error) wasmhost.Errno {
	if errors.Is(err, fs.ErrNotExist) {
		return wasmhost.ErrnoNoent
	}
	if errors.Is(err, fs.ErrExist) {
		return wasmhost.ErrnoInval
	}
	return wasmhost.ErrnoInval
}
