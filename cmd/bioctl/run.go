package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caffeineduck/browserinterop/guest"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run [module.wasm]",
	Short: "Host a client bundle compiled to WebAssembly",
	Long: `Run a wasip1 client bundle and act as its host.

The bundle talks to bioctl over its stdio: frames on stderr, replies on
stdin. bioctl answers the handshake, offers the logger-forward and
interop query services, and logs what the client sends.

The module comes from the argument or guest.module in the config.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	runCmd.Flags().StringSlice("arg", nil, "Argument passed to the module (repeatable)")
	runCmd.Flags().StringToString("env", nil, "Environment variable for the module (key=value, repeatable)")
	runCmd.Flags().Bool("no-cache", false, "Disable compilation cache")
	runCmd.Flags().Uint32("memory-pages", 0, "Memory limit in 64KiB pages (0 uses config)")
	runCmd.Flags().Duration("start-timeout", 0, "Time allowed until the module is ready (0 uses config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	path := cfg.Guest.Module
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		cmd.Help()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hostGuest(ctx, cmd, path); err != nil {
		fatal(err)
	}
}

func guestOptions(cmd *cobra.Command) ([]guest.Option, []guest.StartOption) {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	pages, _ := cmd.Flags().GetUint32("memory-pages")
	extraArgs, _ := cmd.Flags().GetStringSlice("arg")
	env, _ := cmd.Flags().GetStringToString("env")
	timeout, _ := cmd.Flags().GetDuration("start-timeout")

	rtOpts := []guest.Option{guest.WithLogger(logger.Named("guest"))}
	if !noCache {
		rtOpts = append(rtOpts, guest.WithCacheDir(cfg.Guest.CacheDir))
	}
	if pages == 0 {
		pages = cfg.Guest.MemoryLimitPages
	}
	if pages > 0 {
		rtOpts = append(rtOpts, guest.WithMemoryLimitPages(pages))
	}

	if timeout == 0 {
		timeout = cfg.Guest.StartTimeout
	}
	startOpts := []guest.StartOption{
		guest.WithArgs(append(append([]string(nil), cfg.Guest.Args...), extraArgs...)...),
		guest.WithStdout(os.Stdout),
		guest.WithStderr(os.Stderr),
	}
	if timeout > 0 {
		startOpts = append(startOpts, guest.WithStartTimeout(timeout))
	}
	for k, v := range cfg.Guest.Env {
		startOpts = append(startOpts, guest.WithEnv(k, v))
	}
	for k, v := range env {
		startOpts = append(startOpts, guest.WithEnv(k, v))
	}
	return rtOpts, startOpts
}

func hostGuest(ctx context.Context, cmd *cobra.Command, path string) error {
	rtOpts, startOpts := guestOptions(cmd)

	rt, err := guest.NewRuntime(ctx, rtOpts...)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	mod, err := rt.CompileFile(ctx, path)
	if err != nil {
		return err
	}

	g, err := rt.NewGuest(mod, startOpts...)
	if err != nil {
		return err
	}

	s, err := newStack(g.Transport(), interop.RoleHost, cfg, logger)
	if err != nil {
		return err
	}
	g.Attach(s.peer)

	started := time.Now()
	if err := g.Start(ctx); err != nil {
		return err
	}
	logger.Info("guest ready", zap.String("module", mod.Name()), zap.Duration("elapsed", time.Since(started)))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(g.Wait)
	eg.Go(func() error {
		select {
		case <-egCtx.Done():
			return g.Close()
		case <-g.Done():
			return nil
		}
	})
	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("guest exited",
		zap.String("remoteVersion", s.peer.RemoteVersion()),
		zap.Int("clientServices", s.peer.Directory().Len()))
	return err
}
