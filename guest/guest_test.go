package guest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/caffeineduck/browserinterop/service"
	"github.com/caffeineduck/browserinterop/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

var echoDesc = contract.NewDescriptor("test.Echo", contract.Version2019_05)

func newHost(g *Guest) *interop.Peer {
	host := interop.New(g.Transport(), interop.WithRole(interop.RoleHost))
	host.Registry().RegisterMethod(echoDesc, service.MethodFunc(func(ctx context.Context, payload string) (string, error) {
		return "echo:" + payload, nil
	}))
	g.Attach(host)
	return host
}

// goClient behaves like a client bundle: it signals readiness, runs the
// handshake and calls test.Echo once the host lists it.
func goClient(stdin io.Reader, stdout, stderr io.Writer, ctx context.Context) error {
	s := transport.NewStream(stderr, transport.WithMarkerFraming())
	defer s.Close()
	client := interop.New(s, interop.WithRole(interop.RoleClient))
	s.Attach(client)

	fmt.Fprintln(stdout, "booting")
	stderr.Write(transport.ReadySignal())

	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, stdin) }()

	if err := client.Handshake(ctx); err != nil {
		return err
	}
	for !client.Directory().Has(echoDesc) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-served:
			return err
		case <-time.After(5 * time.Millisecond):
		}
	}
	resp, err := client.CallMethod(ctx, echoDesc, "hi")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, resp)
	return <-served
}

func fakeRunner(run func(stdin io.Reader, stdout, stderr io.Writer, ctx context.Context) error) func(startConfig) runner {
	return func(startConfig) runner {
		return func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
			return run(stdin, stdout, stderr, ctx)
		}
	}
}

func TestStartHandshake(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	g := newGuest("fake", zap.NewNop(), fakeRunner(goClient))
	host := newHost(g)
	require.NoError(t, g.Start(context.Background()))
	assert.ErrorIs(t, g.Start(context.Background()), ErrStarted)

	require.Eventually(t, func() bool {
		return strings.Contains(g.Output(), "echo:hi")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, contract.InteropVersion, host.RemoteVersion())
	assert.Contains(t, g.Output(), "booting")
	assert.Zero(t, g.InvalidFrames())

	require.NoError(t, g.Close())
	select {
	case <-g.Done():
	default:
		t.Fatal("guest still running after Close")
	}
}

func TestStartExitBeforeReady(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	boom := errors.New("boom")
	g := newGuest("fake", zap.NewNop(), fakeRunner(func(stdin io.Reader, stdout, stderr io.Writer, ctx context.Context) error {
		return boom
	}))
	err := g.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, boom)
}

func TestStartTimeout(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	g := newGuest("fake", zap.NewNop(), fakeRunner(func(stdin io.Reader, stdout, stderr io.Writer, ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), WithStartTimeout(20*time.Millisecond))
	err := g.Start(context.Background())
	assert.ErrorIs(t, err, ErrStartTimeout)
}

func TestStderrPassthrough(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	var stderr lockedBuffer
	g := newGuest("fake", zap.NewNop(), fakeRunner(func(stdin io.Reader, stdout, stderr io.Writer, ctx context.Context) error {
		io.WriteString(stderr, "warming up\n")
		stderr.Write(transport.ReadySignal())
		io.WriteString(stderr, "\x00BIO:{not json}\x00")
		_, err := io.Copy(io.Discard, stdin)
		return err
	}), WithStderr(&stderr))
	require.NoError(t, g.Start(context.Background()))

	require.Eventually(t, func() bool {
		return g.InvalidFrames() == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, g.Close())
	assert.Equal(t, "warming up\n", stderr.String())
	assert.Equal(t, "warming up\n", g.Output())
}

func TestCompileInvalidModule(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = rt.Compile(ctx, "junk.wasm", []byte("not wasm"))
	assert.Error(t, err)
}

func TestRuntimeClosed(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, WithCacheDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, rt.Close(ctx))
	require.NoError(t, rt.Close(ctx))

	_, err = rt.Compile(ctx, "x.wasm", nil)
	assert.ErrorIs(t, err, ErrRuntimeClosed)
	_, err = rt.NewGuest(&Module{name: "x.wasm"})
	assert.ErrorIs(t, err, ErrRuntimeClosed)
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "bioctl"), defaultCacheDir())
}

// TestWasmGuest needs testdata/guest.wasm, built with:
//
//	GOOS=wasip1 GOARCH=wasm go build -o testdata/guest.wasm ./testdata/guest
func TestWasmGuest(t *testing.T) {
	path := filepath.Join("testdata", "guest.wasm")
	if _, err := os.Stat(path); err != nil {
		t.Skip("testdata/guest.wasm not built")
	}

	ctx := context.Background()
	rt, err := NewRuntime(ctx)
	require.NoError(t, err)
	defer rt.Close(ctx)

	mod, err := rt.CompileFile(ctx, path)
	require.NoError(t, err)

	g, err := rt.NewGuest(mod, WithStartTimeout(10*time.Second))
	require.NoError(t, err)
	newHost(g)
	require.NoError(t, g.Start(ctx))

	require.Eventually(t, func() bool {
		return strings.Contains(g.Output(), "echo:hi")
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, g.Close())
}
