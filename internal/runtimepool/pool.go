// Package runtimepool pools several independent runtime.App instances
// behind a ring buffer, the same shape as the teacher's Pool but over
// whole Apps rather than bare wasmengine.Instances: spec.md's handle
// registries and perform-state live on App, so two concurrent Perform
// calls must never share one App the way two waPC invocations could
// safely share one stateless Instance.
package runtimepool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/superfaceai/one-sdk-go/internal/platform"
	"github.com/superfaceai/one-sdk-go/internal/runtime"
	"github.com/superfaceai/one-sdk-go/internal/wasmengine"
)

// Pool owns `size` fully-initialized runtime.App values, all sharing one
// compiled wasmengine.Module, and a ring buffer used to check them out
// and back in.
type Pool struct {
	rb     *queue.RingBuffer
	apps   []*runtime.App
	module wasmengine.Module
	logger *zap.Logger
}

// New compiles wasm once via engine and spins up size independent, fully
// initialized (LoadCore+Init'd) Apps sharing that compiled module, the
// same one-Module-many-Instances relationship as the teacher's NewPool.
func New(
	ctx context.Context,
	engine wasmengine.Engine,
	wasm []byte,
	cfg wasmengine.Config,
	size uint64,
	newFilesystem func() platform.Filesystem,
	newNetwork func() platform.Network,
	newPersistence func() platform.Persistence,
	logger *zap.Logger,
) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	bootstrap := runtime.New(engine, cfg, newFilesystem(), newNetwork(), newPersistence(), logger)
	if err := bootstrap.LoadCore(ctx, wasm); err != nil {
		return nil, fmt.Errorf("runtimepool: compiling core: %w", err)
	}
	module := bootstrap.Module()

	rb := queue.NewRingBuffer(size)
	apps := make([]*runtime.App, size)

	for i := uint64(0); i < size; i++ {
		id := uuid.New().String()
		app := runtime.New(engine, cfg, newFilesystem(), newNetwork(), newPersistence(), logger.With(zap.String("instance", id)))
		app.AttachModule(module)

		if err := app.Init(ctx); err != nil {
			return nil, fmt.Errorf("runtimepool: initializing instance %d: %w", i, err)
		}

		ok, err := rb.Offer(app)
		if err != nil {
			return nil, fmt.Errorf("runtimepool: offering instance %d: %w", i, err)
		}
		if !ok {
			return nil, fmt.Errorf("runtimepool: could not add instance %d to pool of size %d", i, size)
		}

		apps[i] = app
	}

	return &Pool{rb: rb, apps: apps, module: module, logger: logger}, nil
}

// Get checks out an App within timeout, or returns an error if none
// become available in time.
func (p *Pool) Get(timeout time.Duration) (*runtime.App, error) {
	v, err := p.rb.Poll(timeout)
	if err != nil {
		return nil, fmt.Errorf("runtimepool: get timed out: %w", err)
	}

	app, ok := v.(*runtime.App)
	if !ok {
		return nil, errors.New("runtimepool: item retrieved from pool is not an App")
	}
	return app, nil
}

// Return checks an App back in. Callers must not use the App again
// after returning it.
func (p *Pool) Return(app *runtime.App) error {
	ok, err := p.rb.Offer(app)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("runtimepool: cannot return instance to a full pool")
	}
	return nil
}

// Close tears down every pooled App and disposes of the ring buffer.
func (p *Pool) Close(ctx context.Context) error {
	p.rb.Dispose()

	var firstErr error
	for _, app := range p.apps {
		if err := app.Destroy(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.module != nil {
		if err := p.module.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
