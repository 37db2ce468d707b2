// Package runtime is the WasiApp runtime core: it owns the compiled
// guest module and its one live instance, the perform-state machine,
// the message dispatcher, and trap recovery. Grounded almost line for
// line on original_source's one_sdk/app.py WasiApp.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/superfaceai/one-sdk-go/internal/handlemap"
	"github.com/superfaceai/one-sdk-go/internal/platform"
	"github.com/superfaceai/one-sdk-go/internal/telemetry"
	"github.com/superfaceai/one-sdk-go/internal/wasmengine"
	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

type performState struct {
	profileURL  string
	providerURL string
	mapURL      string
	usecase     string
	input       json.RawMessage
	parameters  map[string]string
	security    json.RawMessage

	result    json.RawMessage
	perform   *PerformError
	exception error
}

// App is a single guest runtime: one engine, one compiled module, at
// most one live instance. It is not safe for concurrent use; callers
// needing concurrency should pool multiple Apps (internal/runtimepool).
type App struct {
	engine wasmengine.Engine
	cfg    wasmengine.Config
	logger *zap.Logger

	filesystem  platform.Filesystem
	network     platform.Network
	persistence platform.Persistence

	module   wasmengine.Module
	instance wasmengine.Instance

	messages *wasmhost.MessageStore
	streams  *handlemap.HandleMap[stream]
	requests *handlemap.HandleMap[*platform.DeferredResponse]

	state *performState

	metrics *telemetry.Metrics

	// Debug gates a strace-style debug log line per host export call
	// (sf_host.py's strace wrapper), off by default.
	Debug bool
}

// New constructs an App. The guest isn't loaded or instantiated yet;
// call LoadCore then Init.
func New(engine wasmengine.Engine, cfg wasmengine.Config, fs platform.Filesystem, network platform.Network, persistence platform.Persistence, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		engine:      engine,
		cfg:         cfg,
		logger:      logger,
		filesystem:  fs,
		network:     network,
		persistence: persistence,
		messages:    wasmhost.NewMessageStore(),
		streams:     handlemap.New[stream](),
		requests:    handlemap.New[*platform.DeferredResponse](),
		metrics:     telemetry.NewMetrics(),
	}
}

// Metrics returns the Prometheus collector set this App observes perform
// outcomes and traps into, so an embedding application can expose it
// under its own /metrics endpoint (no default registerer is touched).
func (a *App) Metrics() *telemetry.Metrics {
	return a.metrics
}

// hostExports binds the five sf_host_unstable functions to this App's
// message store and Callbacks implementation, in the shape every
// wasmengine.Engine expects.
func (a *App) hostExports() []wasmengine.HostExport {
	return []wasmengine.HostExport{
		{Name: "message_exchange", Params: 5, Func: func(mem wasmhost.Memory, args []uint32) (uint32, error) {
			return a.strace("sf_host_unstable::message_exchange", args, func() (uint32, error) {
				r, err := wasmhost.MessageExchange(mem, a.messages, a, args[0], args[1], args[2], args[3], args[4])
				return uint32(r), err
			})
		}},
		{Name: "message_exchange_retrieve", Params: 3, Func: func(mem wasmhost.Memory, args []uint32) (uint32, error) {
			return a.strace("sf_host_unstable::message_exchange_retrieve", args, func() (uint32, error) {
				r, err := wasmhost.MessageExchangeRetrieve(mem, a.messages, args[0], args[1], args[2])
				return uint32(r), err
			})
		}},
		{Name: "stream_read", Params: 3, Func: func(mem wasmhost.Memory, args []uint32) (uint32, error) {
			return a.strace("sf_host_unstable::stream_read", args, func() (uint32, error) {
				r, err := wasmhost.StreamRead(mem, a, args[0], args[1], args[2])
				return uint32(r), err
			})
		}},
		{Name: "stream_write", Params: 3, Func: func(mem wasmhost.Memory, args []uint32) (uint32, error) {
			return a.strace("sf_host_unstable::stream_write", args, func() (uint32, error) {
				r, err := wasmhost.StreamWrite(mem, a, args[0], args[1], args[2])
				return uint32(r), err
			})
		}},
		{Name: "stream_close", Params: 1, Func: func(mem wasmhost.Memory, args []uint32) (uint32, error) {
			return a.strace("sf_host_unstable::stream_close", args, func() (uint32, error) {
				return uint32(wasmhost.StreamClose(a, args[0])), nil
			})
		}},
	}
}

// strace logs name, args and result at debug level when a.Debug is set,
// mirroring sf_host.py's strace/_strace_inner wrapper. A no-op otherwise.
func (a *App) strace(name string, args []uint32, fn func() (uint32, error)) (uint32, error) {
	result, err := fn()
	if a.Debug {
		a.logger.Debug("strace",
			zap.String("call", name),
			zap.Uint32s("args", args),
			zap.Uint32("result", result),
			zap.Error(err),
		)
	}
	return result, err
}

// LoadCore compiles the guest wasm bytes. Safe to call once per App.
func (a *App) LoadCore(ctx context.Context, wasm []byte) error {
	module, err := a.engine.New(ctx, wasm, a.hostExports(), a.cfg)
	if err != nil {
		return fmt.Errorf("runtime: loading core: %w", err)
	}
	a.module = module
	return nil
}

// AttachModule assigns an already-compiled module to this App, skipping
// LoadCore's compile step. Used by internal/runtimepool to instantiate
// many independent Apps from one compiled module, the same relationship
// the teacher's Pool keeps between one Module and many pooled Instances.
func (a *App) AttachModule(module wasmengine.Module) {
	a.module = module
}

// Module returns the compiled module this App loaded, or nil if
// LoadCore/AttachModule hasn't run yet. Used by internal/runtimepool to
// share one compiled module across several Apps.
func (a *App) Module() wasmengine.Module {
	return a.module
}

// Init instantiates the loaded module and calls its setup export. A
// no-op if already initialized.
func (a *App) Init(ctx context.Context) error {
	if a.module == nil {
		return &UnexpectedError{Name: "CoreNotLoaded", Message: "call LoadCore first"}
	}
	if a.instance != nil {
		return nil
	}

	instance, err := a.module.Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("runtime: instantiating core: %w", err)
	}
	a.instance = instance

	return a.wrapCall(ctx, instance.CallSetup)
}

// Destroy sends final metrics, tears down the guest, and releases the
// instance. A no-op if not initialized.
func (a *App) Destroy(ctx context.Context) error {
	if a.instance == nil {
		return nil
	}

	a.SendMetrics(ctx)

	instance := a.instance
	if err := a.wrapCall(ctx, instance.CallTeardown); err != nil {
		instance.Close(ctx)
		a.instance = nil
		return err
	}

	err := instance.Close(ctx)
	a.instance = nil
	for _, s := range a.streams.Clear() {
		s.Close()
	}
	a.requests.Clear()
	return err
}

// PerformInput is the set of parameters a single perform call seeds
// into perform-state before invoking the guest's perform export.
type PerformInput struct {
	ProfileURL  string
	ProviderURL string
	MapURL      string
	Usecase     string
	Input       json.RawMessage
	Parameters  map[string]string
	Security    json.RawMessage
}

// Perform seeds perform-state, invokes the guest, and extracts the
// result (or raises the guest's reported error/exception) from the
// perform-state the dispatcher populated via perform-output-* messages.
func (a *App) Perform(ctx context.Context, in PerformInput) (json.RawMessage, error) {
	if a.instance == nil {
		return nil, &UninitializedError{}
	}

	start := time.Now()

	a.state = &performState{
		profileURL:  in.ProfileURL,
		providerURL: in.ProviderURL,
		mapURL:      in.MapURL,
		usecase:     in.Usecase,
		input:       in.Input,
		parameters:  in.Parameters,
		security:    in.Security,
	}

	if err := a.wrapCall(ctx, a.instance.CallPerform); err != nil {
		a.state = nil
		a.observePerform(in.Usecase, err, start)
		return nil, err
	}

	state := a.state
	a.state = nil

	var result json.RawMessage
	var outErr error
	switch {
	case state.exception != nil:
		outErr = state.exception
	case state.perform != nil:
		outErr = state.perform
	default:
		result = state.result
	}

	a.observePerform(in.Usecase, outErr, start)
	return result, outErr
}

// observePerform records one completed Perform call's outcome and
// latency on a.metrics, classifying err by its concrete error type.
func (a *App) observePerform(usecase string, err error, start time.Time) {
	outcome := telemetry.OutcomeSuccess
	switch err.(type) {
	case nil:
		outcome = telemetry.OutcomeSuccess
	case *PerformError:
		outcome = telemetry.OutcomePerform
	case *ValidationError:
		outcome = telemetry.OutcomeValidation
	default:
		outcome = telemetry.OutcomeUnexpected
	}
	a.metrics.ObservePerform(usecase, outcome, time.Since(start).Seconds())
}

// wrapCall invokes fn and, on a trap or any other failure reported by
// the engine, discards the instance after attempting a developer dump
// and a best-effort metrics flush from the still-valid (if doomed)
// instance memory, mirroring _wrap_export in app.py. If the dump or the
// metrics flush itself fails, that failure is raised as a distinct
// UnexpectedError("UnexpectedError", "Error during dumping") chained
// from the flush error, rather than the original trap error, the same
// distinction _wrap_export's except clauses make.
func (a *App) wrapCall(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}

	errName := "UnexpectedError"
	if isTrap(err) {
		errName = "WebAssemblyRuntimeError"
	}

	if instance := a.instance; instance != nil {
		a.instance = nil
		a.metrics.ObserveTrap()

		var flushErr error
		if dumpErr := a.createDeveloperDump(ctx, instance); dumpErr != nil {
			flushErr = dumpErr
		} else if metricsErr := a.sendMetricsOnPanic(ctx, instance); metricsErr != nil {
			flushErr = metricsErr
		}
		instance.Close(ctx)

		if flushErr != nil {
			return &UnexpectedError{Name: "UnexpectedError", Message: "Error during dumping", cause: flushErr}
		}
	}

	return &UnexpectedError{Name: errName, Message: "Error while executing WebAssembly", cause: err}
}

// isTrap reports whether err originated from a guest trap as opposed to
// a host-side marshalling failure. Engines report traps as plain errors
// from Call*; this module has no portable way to distinguish a trap
// from any other engine-level failure without depending on a specific
// engine's trap type, so every wrapCall failure is treated the same way
// spec.md's trap-poisoning behavior requires regardless of cause.
func isTrap(err error) bool {
	return err != nil
}

func (a *App) getTracingEventsByArena(ctx context.Context, instance wasmengine.Instance, arenaPtr uint32) ([]string, error) {
	mem, err := instance.Memory(ctx)
	if err != nil {
		return nil, err
	}

	buf1Ptr, err := mem.ReadI32(arenaPtr)
	if err != nil {
		return nil, err
	}
	buf1Len, err := mem.ReadI32(arenaPtr + 4)
	if err != nil {
		return nil, err
	}
	buf2Ptr, err := mem.ReadI32(arenaPtr + 8)
	if err != nil {
		return nil, err
	}
	buf2Len, err := mem.ReadI32(arenaPtr + 12)
	if err != nil {
		return nil, err
	}

	seg1, err := mem.ReadBytes(uint32(buf1Ptr), uint32(buf1Len))
	if err != nil {
		return nil, err
	}
	seg2, err := mem.ReadBytes(uint32(buf2Ptr), uint32(buf2Len))
	if err != nil {
		return nil, err
	}

	buffer := append(seg1, seg2...)
	var events []string
	start := 0
	for i, b := range buffer {
		if b == 0 {
			events = append(events, string(buffer[start:i]))
			start = i + 1
		}
	}
	return events, nil
}

// SendMetrics flushes the tracing arena returned by
// oneclient_core_get_metrics to Persistence, then clears it; the arena
// is left uncleared when persisting fails. A no-op when the runtime
// isn't initialized.
func (a *App) SendMetrics(ctx context.Context) error {
	if a.instance == nil {
		return nil
	}

	arenaPtr, err := a.instance.CallGetMetrics(ctx)
	if err != nil {
		return err
	}
	events, err := a.getTracingEventsByArena(ctx, a.instance, arenaPtr)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		if err := a.persistence.PersistMetrics(ctx, events); err != nil {
			return err
		}
	}
	return a.instance.CallClearMetrics(ctx)
}

func (a *App) sendMetricsOnPanic(ctx context.Context, instance wasmengine.Instance) error {
	arenaPtr, err := instance.CallGetMetrics(ctx)
	if err != nil {
		return err
	}
	events, err := a.getTracingEventsByArena(ctx, instance, arenaPtr)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		return a.persistence.PersistMetrics(ctx, events)
	}
	return nil
}

func (a *App) createDeveloperDump(ctx context.Context, instance wasmengine.Instance) error {
	arenaPtr, err := instance.CallGetDeveloperDump(ctx)
	if err != nil {
		return err
	}
	events, err := a.getTracingEventsByArena(ctx, instance, arenaPtr)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		return a.persistence.PersistDeveloperDump(events)
	}
	return nil
}

var errUnexpectedPerformState = errors.New("unexpected perform state")
