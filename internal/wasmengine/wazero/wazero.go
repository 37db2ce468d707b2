// Package wazero adapts the pure-Go tetratelabs/wazero runtime to the
// wasmengine.Engine interface. It is the default engine onesdk.NewClient
// hands to internal/runtime.App.
//
// Grounded on the teacher's engines/wazero/wazero.go, modernized to the
// wazero API actually published today (HostModuleBuilder, api.Module,
// GoModuleFunction) since the teacher's file targets a pre-1.0 wazero
// snapshot that no longer matches the library.
package wazero

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

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
	exportMemory           = "memory"
)

type engine struct{}

// Engine returns the wazero-backed wasmengine.Engine.
func Engine() wasmengine.Engine {
	return engine{}
}

func (engine) Name() string { return "wazero" }

type module struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	cfg      wasmengine.Config
}

func (e engine) New(ctx context.Context, code []byte, hostExports []wasmengine.HostExport, cfg wasmengine.Config) (wasmengine.Module, error) {
	runtime := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("wazero: instantiating WASI: %w", err)
	}

	builder := runtime.NewHostModuleBuilder(hostModuleName)
	for _, export := range hostExports {
		export := export
		paramTypes := make([]api.ValueType, export.Params)
		for i := range paramTypes {
			paramTypes[i] = api.ValueTypeI32
		}

		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				args := make([]uint32, len(stack))
				for i, v := range stack {
					args[i] = api.DecodeU32(v)
				}

				mem, err := memoryOf(mod)
				if err != nil {
					panic(err)
				}

				result, err := export.Func(mem, args)
				if err != nil {
					panic(err)
				}
				stack[0] = api.EncodeU32(result)
			}), paramTypes, []api.ValueType{api.ValueTypeI32}).
			Export(export.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("wazero: instantiating host module: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, code)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("wazero: compiling module: %w", err)
	}

	return &module{runtime: runtime, compiled: compiled, cfg: cfg}, nil
}

func (m *module) Instantiate(ctx context.Context) (wasmengine.Instance, error) {
	config := wazero.NewModuleConfig().
		WithStdout(logWriter{m.cfg.Stdout}).
		WithStderr(logWriter{m.cfg.Stderr})
	for _, kv := range m.cfg.Env {
		name, value := splitEnv(kv)
		config = config.WithEnv(name, value)
	}

	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, config)
	if err != nil {
		return nil, fmt.Errorf("wazero: instantiating guest: %w", err)
	}

	inst := &instance{mod: mod}
	for _, required := range []string{exportSetup, exportTeardown, exportPerform, exportGetMetrics, exportClearMetrics, exportGetDeveloperDump} {
		if mod.ExportedFunction(required) == nil {
			mod.Close(ctx)
			return nil, fmt.Errorf("wazero: guest module is missing required export %q", required)
		}
	}
	if mod.Memory() == nil {
		mod.Close(ctx)
		return nil, errors.New("wazero: guest module does not export linear memory")
	}

	return inst, nil
}

func (m *module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

type instance struct {
	mod api.Module
}

func (i *instance) callVoid(ctx context.Context, name string) error {
	_, err := i.mod.ExportedFunction(name).Call(ctx)
	return err
}

func (i *instance) callPtr(ctx context.Context, name string) (uint32, error) {
	results, err := i.mod.ExportedFunction(name).Call(ctx)
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(results[0]), nil
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
	return memoryOf(i.mod)
}

func (i *instance) MemorySize(ctx context.Context) (uint32, error) {
	mem := i.mod.Memory()
	if mem == nil {
		return 0, errors.New("wazero: guest module does not export linear memory")
	}
	return mem.Size(), nil
}

func (i *instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// memoryOf derives a fresh wasmhost.Memory view into mod's current
// linear memory. Must be called anew on every host-export entry (spec
// §3 invariant 4); wazero's Memory.Read returns a slice aliasing the
// live backing array, never a snapshot, so this is always up to date.
func memoryOf(mod api.Module) (wasmhost.Memory, error) {
	mem := mod.Memory()
	if mem == nil {
		return wasmhost.Memory{}, errors.New("wazero: guest module does not export linear memory")
	}
	data, ok := mem.Read(0, mem.Size())
	if !ok {
		return wasmhost.Memory{}, errors.New("wazero: failed to read guest linear memory")
	}
	return wasmhost.NewMemory(data), nil
}

// logWriter adapts a wasmengine.Config callback to io.Writer for
// wazero's stdout/stderr plumbing. A nil callback discards output.
type logWriter struct {
	log func(string)
}

func (w logWriter) Write(p []byte) (int, error) {
	if w.log != nil {
		w.log(string(p))
	}
	return len(p), nil
}

func splitEnv(kv string) (string, string) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}
