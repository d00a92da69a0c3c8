package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caffeineduck/browserinterop/relay"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the websocket relay for remote rooms",
	Long: `Start the relay that connects remote clients and hosts in rooms.

Endpoints:
  GET /bio-namespace   Websocket; members send join-room first
  GET /health          Health check
  GET /rooms           Rooms with their member counts`,
	Run: runRelay,
}

func init() {
	relayCmd.Flags().String("addr", "", "Listen address (default from config)")
	relayCmd.Flags().Duration("stats-interval", 0, "Log room statistics at this interval (0 disables)")
	rootCmd.AddCommand(relayCmd)
}

func relayConfig(cmd *cobra.Command) relay.Config {
	rc := relay.DefaultConfig()
	rc.Addr = cfg.Relay.Addr
	if cfg.Relay.RateLimit > 0 {
		rc.RateLimit = rate.Limit(cfg.Relay.RateLimit)
	}
	if cfg.Relay.Burst > 0 {
		rc.Burst = cfg.Relay.Burst
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		rc.Addr = addr
	}
	return rc
}

func runRelay(cmd *cobra.Command, args []string) {
	interval, _ := cmd.Flags().GetDuration("stats-interval")

	srv := relay.New(relayConfig(cmd), relay.WithLogger(logger.Named("relay")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if interval > 0 {
		g.Go(func() error {
			logRoomStats(gctx, srv.Hub(), interval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fatal(err)
	}
}

func logRoomStats(ctx context.Context, hub *relay.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rooms := hub.Rooms()
			members := 0
			for _, r := range rooms {
				members += r.Clients + r.Hosts
			}
			logger.Info("relay stats", zap.Int("rooms", len(rooms)), zap.Int("members", members))
		}
	}
}
