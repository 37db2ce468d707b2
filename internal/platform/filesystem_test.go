package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

func TestOpenOptionsFlagsPriority(t *testing.T) {
	cases := []struct {
		name string
		opts OpenOptions
		want int
	}{
		{"truncate wins over append/write/read", OpenOptions{Truncate: true, Append: true, Write: true, Read: true}, os.O_WRONLY | os.O_TRUNC},
		{"append wins over write/read", OpenOptions{Append: true, Write: true, Read: true}, os.O_WRONLY | os.O_APPEND},
		{"write wins over read", OpenOptions{Write: true, Read: true}, os.O_RDWR},
		{"read alone", OpenOptions{Read: true}, os.O_RDONLY},
		{"none set defaults to read-only", OpenOptions{}, os.O_RDONLY},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.opts.flags(); got != c.want {
				t.Errorf("flags() = %b, want %b", got, c.want)
			}
		})
	}
}

func TestOpenOptionsCreateFlags(t *testing.T) {
	if got := (OpenOptions{CreateNew: true, Read: true}).flags(); got&(os.O_CREATE|os.O_EXCL) != os.O_CREATE|os.O_EXCL {
		t.Errorf("expected CreateNew to set O_CREATE|O_EXCL, got %b", got)
	}
	if got := (OpenOptions{Create: true, Read: true}).flags(); got&os.O_CREATE == 0 {
		t.Errorf("expected Create to set O_CREATE, got %b", got)
	}
}

func TestOSFilesystemOpenReadWriteClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")

	fsys := NewOSFilesystem(nil)

	h, errno := fsys.Open(path, OpenOptions{Create: true, Write: true})
	if errno != wasmhost.ErrnoSuccess {
		t.Fatalf("expected success opening for write, got errno %d", errno)
	}

	n, errno := fsys.Write(h, []byte("hello"))
	if errno != wasmhost.ErrnoSuccess || n != 5 {
		t.Fatalf("expected to write 5 bytes, got %d, errno %d", n, errno)
	}
	if errno := fsys.Close(h); errno != wasmhost.ErrnoSuccess {
		t.Fatalf("expected close to succeed, got errno %d", errno)
	}

	h2, errno := fsys.Open(path, OpenOptions{Read: true})
	if errno != wasmhost.ErrnoSuccess {
		t.Fatalf("expected success opening for read, got errno %d", errno)
	}
	defer fsys.Close(h2)

	data, errno := fsys.Read(h2, 16)
	if errno != wasmhost.ErrnoSuccess {
		t.Fatalf("expected successful read, got errno %d", errno)
	}
	if string(data) != "hello" {
		t.Errorf("expected to read back %q, got %q", "hello", data)
	}
}

func TestOSFilesystemOpenMissingFileReturnsNoent(t *testing.T) {
	fsys := NewOSFilesystem(nil)
	_, errno := fsys.Open(filepath.Join(t.TempDir(), "missing.txt"), OpenOptions{Read: true})
	if errno != wasmhost.ErrnoNoent {
		t.Errorf("expected NOENT for a missing file, got %d", errno)
	}
}

func TestOSFilesystemOpsOnUnknownHandleReturnBadf(t *testing.T) {
	fsys := NewOSFilesystem(nil)
	if _, errno := fsys.Read(99, 10); errno != wasmhost.ErrnoBadf {
		t.Errorf("expected BADF reading unknown handle, got %d", errno)
	}
	if _, errno := fsys.Write(99, []byte("x")); errno != wasmhost.ErrnoBadf {
		t.Errorf("expected BADF writing unknown handle, got %d", errno)
	}
	if errno := fsys.Close(99); errno != wasmhost.ErrnoBadf {
		t.Errorf("expected BADF closing unknown handle, got %d", errno)
	}
}
