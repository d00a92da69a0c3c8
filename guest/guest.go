package guest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/caffeineduck/browserinterop/interop"
	"github.com/caffeineduck/browserinterop/transport"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrStartTimeout = errors.New("guest start timeout")
	ErrNotReady     = errors.New("guest exited before ready")
	ErrStarted      = errors.New("guest already started")
)

const DefaultStartTimeout = 30 * time.Second

type startConfig struct {
	args         []string
	env          map[string]string
	stdout       io.Writer
	stderr       io.Writer
	startTimeout time.Duration
}

type StartOption func(*startConfig)

// WithArgs sets the guest's argv after the module name.
func WithArgs(args ...string) StartOption {
	return func(c *startConfig) {
		c.args = append(c.args, args...)
	}
}

func WithEnv(key, value string) StartOption {
	return func(c *startConfig) {
		c.env[key] = value
	}
}

// WithStdout receives everything the guest writes to stdout.
func WithStdout(w io.Writer) StartOption {
	return func(c *startConfig) {
		c.stdout = w
	}
}

// WithStderr receives guest stderr text found outside frames.
func WithStderr(w io.Writer) StartOption {
	return func(c *startConfig) {
		c.stderr = w
	}
}

func WithStartTimeout(d time.Duration) StartOption {
	return func(c *startConfig) {
		c.startTimeout = d
	}
}

// runner executes a guest with the given stdio until it exits.
type runner func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error

// Guest is a client bundle instance. Its transport carries frames between
// the guest and a host-role peer, which should be attached before Start.
type Guest struct {
	name   string
	log    *zap.Logger
	cfg    startConfig
	run    runner
	stream *transport.Stream
	framer *transport.Framer
	stdout *lockedBuffer

	stdinR *io.PipeReader
	stdinW *io.PipeWriter

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
}

// NewGuest prepares an instance of m. Nothing runs until Start.
func (r *Runtime) NewGuest(m *Module, opts ...StartOption) (*Guest, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrRuntimeClosed
	}

	return newGuest(m.name, r.log, func(sc startConfig) runner {
		return func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
			cfg := wazero.NewModuleConfig().
				WithStdout(stdout).
				WithStderr(stderr).
				WithStdin(stdin).
				WithArgs(append([]string{m.name}, sc.args...)...).
				WithSysWalltime().
				WithSysNanotime().
				WithSysNanosleep().
				WithName("")
			for k, v := range sc.env {
				cfg = cfg.WithEnv(k, v)
			}
			mod, err := r.rt.InstantiateModule(ctx, m.compiled, cfg)
			if mod != nil {
				mod.Close(ctx)
			}
			return exitError(err)
		}
	}, opts...), nil
}

// exitError maps a clean proc_exit to nil.
func exitError(err error) error {
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
		return nil
	}
	return err
}

func newGuest(name string, log *zap.Logger, build func(startConfig) runner, opts ...StartOption) *Guest {
	cfg := startConfig{
		env:          make(map[string]string),
		startTimeout: DefaultStartTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.env["BIO_GUEST"] = "1"
	if cfg.stdout == nil {
		cfg.stdout = io.Discard
	}

	log = log.With(zap.String("guest", name))
	g := &Guest{
		name:   name,
		log:    log,
		cfg:    cfg,
		run:    build(cfg),
		stdout: &lockedBuffer{},
		done:   make(chan struct{}),
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.stdinR, g.stdinW = io.Pipe()
	g.stream = transport.NewStream(g.stdinW, transport.WithStreamLogger(log))
	g.framer = transport.NewFramer(func(f transport.Frame) {
		g.stream.Deliver(g.ctx, f)
	}, cfg.stderr)
	return g
}

// Start runs the guest and waits until it signals readiness. Cancelling
// ctx stops the guest.
func (g *Guest) Start(ctx context.Context) error {
	err := ErrStarted
	g.startOnce.Do(func() {
		err = g.start(ctx)
	})
	return err
}

func (g *Guest) start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, g.cancel)

	var gctx context.Context
	g.group, gctx = errgroup.WithContext(g.ctx)
	g.group.Go(func() error {
		defer stop()
		defer close(g.done)
		defer g.stdinR.CloseWithError(io.ErrClosedPipe)
		err := g.run(gctx, g.stdinR, io.MultiWriter(g.stdout, g.cfg.stdout), g.framer)
		if err != nil && g.ctx.Err() == nil {
			g.log.Warn("guest exited", zap.Error(err))
		}
		return err
	})

	timer := time.NewTimer(g.cfg.startTimeout)
	defer timer.Stop()

	select {
	case <-g.framer.Ready():
		g.log.Debug("guest ready")
		return nil
	case <-g.done:
		select {
		case <-g.framer.Ready():
			return nil
		default:
		}
		err := g.group.Wait()
		g.shutdown()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return ErrNotReady
	case <-timer.C:
		g.stop()
		return ErrStartTimeout
	case <-ctx.Done():
		g.stop()
		return context.Cause(ctx)
	}
}

func (g *Guest) Name() string {
	return g.name
}

// Transport is the frame transport for a host-role peer.
func (g *Guest) Transport() interop.Transport {
	return g.stream
}

// Attach routes guest calls to d.
func (g *Guest) Attach(d interop.Dispatcher) {
	g.stream.Attach(d)
}

// Done is closed when the guest exits.
func (g *Guest) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the guest exits and returns its error. A guest stopped
// by Close returns nil.
func (g *Guest) Wait() error {
	if g.group == nil {
		return nil
	}
	err := g.group.Wait()
	g.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Output returns guest stdout followed by stderr text outside frames.
func (g *Guest) Output() string {
	return g.stdout.String() + g.framer.Text()
}

// InvalidFrames returns the number of guest frames that failed to decode.
func (g *Guest) InvalidFrames() int {
	return g.framer.Invalid()
}

// Close stops the guest and waits for it to exit.
func (g *Guest) Close() error {
	g.startOnce.Do(func() {})
	return g.stop()
}

func (g *Guest) stop() error {
	g.stdinW.Close()
	g.cancel()
	err := g.Wait()
	g.shutdown()
	return err
}

func (g *Guest) shutdown() {
	g.closeOnce.Do(func() {
		g.cancel()
		g.stdinW.Close()
		g.stream.Close()
	})
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
