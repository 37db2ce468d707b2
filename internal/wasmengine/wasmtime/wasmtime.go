//go:build (((amd64 || arm64) && !windows) || (amd64 && windows)) && cgo

// Package wasmtime adapts bytecodealliance/wasmtime-go to the
// wasmengine.Engine interface. It is the cgo-dependent alternative to
// internal/wasmengine/wazero, selected the way the teacher's
// engines/wasmtime package was: a build-tagged sibling engine sharing
// the same host ABI wiring shape, grounded on engines/wasmtime/wasmtime.go
// but adapted from waPC's __guest_call/__host_call pair to the five
// sf_host_unstable exports.
package wasmtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go/v25"

	"github.com/superfaceai/one-sdk-go/internal/wasmengine"
	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

const hostModuleName = "sf_host_unstable"

const (
	exportSetup            = "oneclient_core_setup"
	exportTeardown         = "oneclient_core_teardown"
	exportPerform          = "oneclient_core_perform"
	exportGetMetrics       = "oneclient_core_get_metrics"
	exportClearMetrics     = "oneclient_core_clear_metrics"
	exportGetDeveloperDump = "oneclient_core_get_developer_dump"
)

type engineImpl struct{}

// Engine returns the wasmtime-backed wasmengine.Engine.
func Engine() wasmengine.Engine {
	return engineImpl{}
}

func (engineImpl) Name() string { return "wasmtime" }

type module struct {
	engine *wasmtime.Engine
	linked *wasmtime.Module
	cfg    wasmengine.Config

	hostExports []wasmengine.HostExport

	closed uint32
}

func (e engineImpl) New(ctx context.Context, code []byte, hostExports []wasmengine.HostExport, cfg wasmengine.Config) (wasmengine.Module, error) {
	engine := wasmtime.NewEngine()

	mod, err := wasmtime.NewModule(engine, code)
	if err != nil {
		return nil, fmt.Errorf("wasmtime: compiling module: %w", err)
	}

	return &module{engine: engine, linked: mod, cfg: cfg, hostExports: hostExports}, nil
}

func (m *module) Instantiate(ctx context.Context) (wasmengine.Instance, error) {
	if atomic.LoadUint32(&m.closed) != 0 {
		return nil, errors.New("wasmtime: cannot instantiate a closed module")
	}

	store := wasmtime.NewStore(m.engine)

	wasiConfig := wasmtime.NewWasiConfig()
	for _, kv := range m.cfg.Env {
		name, value := splitEnv(kv)
		wasiConfig.SetEnv([]string{name}, []string{value})
	}
	// wasmtime-go's WasiConfig only takes a file path or host fd
	// inheritance for stdio, unlike wazero's io.Writer-based
	// ModuleConfig; cfg.Stdout/Stderr are honored by the wazero engine
	// and this engine inherits the host's stdio instead.
	wasiConfig.InheritStdout()
	wasiConfig.InheritStderr()
	store.SetWasi(wasiConfig)

	linker := wasmtime.NewLinker(m.engine)
	if err := linker.DefineWasi(); err != nil {
		return nil, fmt.Errorf("wasmtime: defining WASI: %w", err)
	}

	inst := &instance{store: store}
	for _, export := range m.hostExports {
		export := export
		paramTypes := make([]*wasmtime.ValType, export.Params)
		for i := range paramTypes {
			paramTypes[i] = wasmtime.NewValType(wasmtime.KindI32)
		}
		resultTypes := []*wasmtime.ValType{wasmtime.NewValType(wasmtime.KindI32)}

		fn := wasmtime.NewFunc(store, wasmtime.NewFuncType(paramTypes, resultTypes),
			func(caller *wasmtime.Caller, args []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
				mem, err := memoryOf(caller, store)
				if err != nil {
					return nil, wasmtime.NewTrap(err.Error())
				}

				uargs := make([]uint32, len(args))
				for i, a := range args {
					uargs[i] = uint32(a.I32())
				}

				result, err := export.Func(mem, uargs)
				if err != nil {
					return nil, wasmtime.NewTrap(err.Error())
				}
				return []wasmtime.Val{wasmtime.ValI32(int32(result))}, nil
			},
		)
		if err := linker.Define(store, hostModuleName, export.Name, fn); err != nil {
			return nil, fmt.Errorf("wasmtime: defining %s.%s: %w", hostModuleName, export.Name, err)
		}
	}

	wasmInst, err := linker.Instantiate(store, m.linked)
	if err != nil {
		return nil, fmt.Errorf("wasmtime: instantiating guest: %w", err)
	}
	inst.inst = wasmInst

	mem := wasmInst.GetExport(store, "memory")
	if mem == nil || mem.Memory() == nil {
		return nil, errors.New("wasmtime: guest module does not export linear memory")
	}
	inst.mem = mem.Memory()

	for _, required := range []string{exportSetup, exportTeardown, exportPerform, exportGetMetrics, exportClearMetrics, exportGetDeveloperDump} {
		if wasmInst.GetFunc(store, required) == nil {
			return nil, fmt.Errorf("wasmtime: guest module is missing required export %q", required)
		}
	}

	return inst, nil
}

func (m *module) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&m.closed, 0, 1) {
		return nil
	}
	m.linked = nil
	m.engine = nil
	return nil
}

type instance struct {
	store *wasmtime.Store
	inst  *wasmtime.Instance
	mem   *wasmtime.Memory

	closed uint32
}

func (i *instance) callVoid(ctx context.Context, name string) error {
	_, err := i.inst.GetFunc(i.store, name).Call(i.store)
	return err
}

func (i *instance) callPtr(ctx context.Context, name string) (uint32, error) {
	result, err := i.inst.GetFunc(i.store, name).Call(i.store)
	if err != nil {
		return 0, err
	}
	v, _ := result.(int32)
	return uint32(v), nil
}

func (i *instance) CallSetup(ctx context.Context) error    { return i.callVoid(ctx, exportSetup) }
func (i *instance) CallTeardown(ctx context.Context) error { return i.callVoid(ctx, exportTeardown) }
func (i *instance) CallPerform(ctx context.Context) error  { return i.callVoid(ctx, exportPerform) }

func (i *instance) CallGetMetrics(ctx context.Context) (uint32, error) {
	return i.callPtr(ctx, exportGetMetrics)
}
func (i *instance) CallClearMetrics(ctx context.Context) error {
	return i.callVoid(ctx, exportClearMetrics)
}
func (i *instance) CallGetDeveloperDump(ctx context.Context) (uint32, error) {
	return i.callPtr(ctx, exportGetDeveloperDump)
}

func (i *instance) Memory(ctx context.Context) (wasmhost.Memory, error) {
	return wasmhost.NewMemory(i.mem.UnsafeData(i.store)), nil
}

func (i *instance) MemorySize(ctx context.Context) (uint32, error) {
	return uint32(i.mem.DataSize(i.store)), nil
}

func (i *instance) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&i.closed, 0, 1) {
		return nil
	}
	i.inst = nil
	i.mem = nil
	if i.store != nil {
		i.store.GC()
	}
	return nil
}

// memoryOf derives a fresh wasmhost.Memory view from within a host
// export call, by asking the caller for the guest's exported memory
// rather than relying on the outer instance (which is not yet
// populated during Instantiate's own host calls, if any run).
func memoryOf(caller *wasmtime.Caller, store *wasmtime.Store) (wasmhost.Memory, error) {
	ext := caller.GetExport("memory")
	if ext == nil || ext.Memory() == nil {
		return wasmhost.Memory{}, errors.New("wasmtime: guest module does not export linear memory")
	}
	return wasmhost.NewMemory(ext.Memory().UnsafeData(store)), nil
}

func splitEnv(kv string) (string, string) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}
