package guest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

var ErrRuntimeClosed = errors.New("guest runtime closed")

type runtimeConfig struct {
	cacheDir         string
	diskCache        bool
	memoryLimitPages uint32
	log              *zap.Logger
}

type Option func(*runtimeConfig)

// WithCacheDir caches compiled modules on disk in dir. An empty dir uses
// the user cache directory.
func WithCacheDir(dir string) Option {
	return func(c *runtimeConfig) {
		c.diskCache = true
		c.cacheDir = dir
	}
}

// WithMemoryLimitPages caps guest memory in 64 KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *runtimeConfig) {
		c.memoryLimitPages = pages
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *runtimeConfig) {
		c.log = l
	}
}

// Runtime compiles and instantiates guest modules.
type Runtime struct {
	rt    wazero.Runtime
	cache wazero.CompilationCache
	log   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Module is a compiled guest bundle.
type Module struct {
	name     string
	compiled wazero.CompiledModule
}

func (m *Module) Name() string {
	return m.name
}

func NewRuntime(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := runtimeConfig{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &Runtime{rt: rt, cache: cache, log: cfg.log}, nil
}

// Compile validates and compiles a wasip1 module.
func (r *Runtime) Compile(ctx context.Context, name string, wasm []byte) (*Module, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrRuntimeClosed
	}

	compiled, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Module{name: name, compiled: compiled}, nil
}

// CompileFile reads and compiles the module at path.
func (r *Runtime) CompileFile(ctx context.Context, path string) (*Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	return r.Compile(ctx, filepath.Base(path), wasm)
}

// Close releases the runtime and any running guests.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.rt.Close(ctx)
	if r.cache != nil {
		if cerr := r.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "bioctl")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "bioctl")
	}
	return filepath.Join(os.TempDir(), "bioctl-cache")
}
