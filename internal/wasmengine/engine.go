// Package wasmengine is the capability interface spec §1/§6 calls the
// WebAssembly engine: "instantiate, call export, read/write linear
// memory". It is deliberately engine-agnostic so the runtime core
// (internal/runtime) never imports wazero or wasmtime-go directly;
// concrete implementations live in the wazero and wasmtime
// subpackages.
package wasmengine

import (
	"context"

	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

// HostExport is one of the five sf_host_unstable functions linked into
// the guest (spec §4.4). Every parameter and the result are i32; engines
// adapt their native host-function signatures to this uniform shape.
type HostExport struct {
	Name   string
	Params int
	Func   func(mem wasmhost.Memory, args []uint32) (uint32, error)
}

// Config carries the engine-independent knobs every implementation
// applies to a compiled module: the process environment exposed to WASI
// and the sinks for the guest's stdout/stderr (spec §6's WASI binding;
// the teacher's Module.SetWriter/SetLogger carried the same concern).
type Config struct {
	Env    []string
	Stdout func(string)
	Stderr func(string)
}

// Engine names and instantiates compiled modules for one WebAssembly
// runtime (wazero, wasmtime, ...).
type Engine interface {
	// Name identifies the engine, e.g. "wazero" or "wasmtime".
	Name() string

	// New compiles code and links hostExports under the
	// sf_host_unstable module name, plus WASI preview-1.
	New(ctx context.Context, code []byte, hostExports []HostExport, cfg Config) (Module, error)
}

// Module is a compiled guest module, ready to be instantiated one or
// more times.
type Module interface {
	// Instantiate creates a fresh instance with its own linear memory
	// and calls no guest export; the caller invokes CallSetup
	// separately (spec §4.6).
	Instantiate(ctx context.Context) (Instance, error)

	Close(ctx context.Context) error
}

// Instance is one instantiation of a guest module. Required guest
// exports (spec §6): memory, oneclient_core_setup, oneclient_core_teardown,
// oneclient_core_perform, oneclient_core_get_metrics,
// oneclient_core_clear_metrics, oneclient_core_get_developer_dump. All
// must resolve at Instantiate time or it fails.
type Instance interface {
	CallSetup(ctx context.Context) error
	CallTeardown(ctx context.Context) error
	CallPerform(ctx context.Context) error

	// CallGetMetrics and CallGetDeveloperDump return the guest pointer
	// to their four-word tracing arena (spec §4.7).
	CallGetMetrics(ctx context.Context) (uint32, error)
	CallClearMetrics(ctx context.Context) error
	CallGetDeveloperDump(ctx context.Context) (uint32, error)

	// Memory returns a fresh view into the instance's current linear
	// memory. Never cache the result across a guest export call (spec
	// §3 invariant 4, §4.2, §9).
	Memory(ctx context.Context) (wasmhost.Memory, error)

	// MemorySize returns the current linear memory size in bytes.
	MemorySize(ctx context.Context) (uint32, error)

	Close(ctx context.Context) error
}
