// Package onesdk is the public façade: Client, Profile and UseCase wrap
// internal/runtime.App behind the same thin API InternalClient/OneClient/
// Profile/UseCase expose in client.py, resolving profile/provider/map
// names to file:// URLs and routing perform calls to the one guest
// instance a Client owns.
package onesdk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/superfaceai/one-sdk-go/internal/assets"
	"github.com/superfaceai/one-sdk-go/internal/platform"
	"github.com/superfaceai/one-sdk-go/internal/runtime"
	"github.com/superfaceai/one-sdk-go/internal/wasmengine"
	"github.com/superfaceai/one-sdk-go/internal/wasmengine/wazero"
)

const defaultSuperfaceAPIURL = "https://superface.ai"

// corePath resolves the compiled core's location: the CORE_PATH
// environment variable wins when set, otherwise assets/core.wasm next
// to the calling binary, mirroring client.py's CORE_PATH constant.
func corePath() string {
	if p, ok := os.LookupEnv("CORE_PATH"); ok {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("assets", "core.wasm")
	}
	return filepath.Join(filepath.Dir(exe), "assets", "core.wasm")
}

// Option configures optional Client construction parameters.
type Option func(*Client)

// WithEngine overrides the default wazero engine, e.g. to run under
// wasmtime instead.
func WithEngine(engine wasmengine.Engine) Option {
	return func(c *Client) { c.engine = engine }
}

// WithLogger attaches structured logging to the underlying runtime.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSuperfaceAPIURL overrides the default https://superface.ai base
// used for the insights endpoint. Provider and map URLs are always
// resolved against the local assets directory.
func WithSuperfaceAPIURL(url string) Option {
	return func(c *Client) { c.superfaceAPIURL = url }
}

// WithToken sets the Superface SDK token sent with metrics uploads.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// Client owns one guest runtime instance and the assets directory its
// profiles/providers/maps resolve against, the Go analogue of
// InternalClient in client.py.
type Client struct {
	assetsPath      string
	corePath        string
	token           string
	superfaceAPIURL string
	engine          wasmengine.Engine
	logger          *zap.Logger

	assets *assets.Resolver
	app    *runtime.App

	mu    sync.Mutex
	ready bool
}

// NewClient constructs a Client rooted at assetsPath ("superface" if
// empty, matching OneClient's default), applying any Options.
func NewClient(assetsPath string, opts ...Option) *Client {
	if assetsPath == "" {
		assetsPath = "superface"
	}

	c := &Client{
		assetsPath:      assetsPath,
		corePath:        corePath(),
		superfaceAPIURL: defaultSuperfaceAPIURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = wazero.Engine()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.assets = assets.NewResolver(c.assetsPath)

	userAgent := runtime.UserAgent()
	cfg := wasmengine.Config{Env: []string{"ONESDK_DEFAULT_USERAGENT=" + userAgent}}
	network := platform.NewHTTPNetwork(c.logger)
	persistence := platform.NewInsightsPersistence(network, c.token, c.superfaceAPIURL, userAgent, c.logger)
	c.app = runtime.New(c.engine, cfg, platform.NewOSFilesystem(c.logger), network, persistence, c.logger)

	return c
}

// Init loads and initializes the guest core. A no-op once already ready;
// Perform calls it lazily, so most callers never need to call it
// directly.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked(ctx)
}

func (c *Client) initLocked(ctx context.Context) error {
	if c.ready {
		return nil
	}

	wasm, err := os.ReadFile(c.corePath)
	if err != nil {
		return fmt.Errorf("onesdk: reading core: %w", err)
	}
	if err := c.app.LoadCore(ctx, wasm); err != nil {
		return err
	}
	if err := c.app.Init(ctx); err != nil {
		return err
	}

	c.ready = true
	return nil
}

// Destroy tears down the guest instance. A no-op if not initialized.
func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return nil
	}
	err := c.app.Destroy(ctx)
	c.ready = false
	return err
}

// SendMetrics flushes buffered tracing events to Superface on demand,
// independent of Destroy (OneClient.send_metrics_to_superface in
// client.py).
func (c *Client) SendMetrics(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.app.SendMetrics(ctx)
}

// GetProfile returns a handle to a locally resolved profile by name.
func (c *Client) GetProfile(name string) (*Profile, error) {
	url, err := c.assets.ProfileURL(name)
	if err != nil {
		return nil, err
	}
	return &Profile{client: c, name: name, url: url}, nil
}

// perform resolves profile/provider/map URLs and invokes the guest. On
// a WebAssemblyRuntimeError the underlying runtime.App has already
// discarded and closed the poisoned instance (runtime.wrapCall); perform
// re-initializes a fresh one before returning so the Client is usable
// again, then re-raises the original error unchanged, mirroring
// InternalClient.perform's destroy-then-init-then-raise recovery. If that
// re-initialization itself fails, its error is returned instead.
func (c *Client) perform(ctx context.Context, profile, provider, usecase string, input json.RawMessage, parameters map[string]string, security json.RawMessage) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.initLocked(ctx); err != nil {
		return nil, err
	}

	profileURL, err := c.assets.ProfileURL(profile)
	if err != nil {
		return nil, err
	}
	providerURL, err := c.assets.ProviderURL(provider)
	if err != nil {
		return nil, err
	}
	mapURL, err := c.assets.MapURL(profile, provider)
	if err != nil {
		return nil, err
	}

	in := runtime.PerformInput{
		ProfileURL:  profileURL,
		ProviderURL: providerURL,
		MapURL:      mapURL,
		Usecase:     usecase,
		Input:       input,
		Parameters:  parameters,
		Security:    security,
	}

	result, err := c.app.Perform(ctx, in)
	if unexpected, ok := err.(*runtime.UnexpectedError); ok && unexpected.Name == "WebAssemblyRuntimeError" {
		c.ready = false
		if initErr := c.initLocked(ctx); initErr != nil {
			return nil, initErr
		}
	}

	return result, err
}
