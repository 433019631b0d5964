package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	"github.com/netcfgd/netcfgd/pkg/platform"
	"github.com/netcfgd/netcfgd/pkg/server"
	"github.com/netcfgd/netcfgd/pkg/snapshot"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Tracks the host's links, addresses and routes and serves them over HTTP",
	Long: `This command enumerates the kernel's network configuration, keeps it in a cache
that follows every netlink notification and, when the status server is enabled,
serves read-only JSON views of it together with health probes and metrics.

	Example use: './netcfgd daemon --config /etc/netcfgd/netcfgd.toml'`,
	Run: func(cmd *cobra.Command, args []string) {
		runDaemon(context.Background())
	},
}

func runDaemon(pCtx context.Context) {
	ctx, cancel := context.WithCancel(pCtx)
	defer cancel()
	log := logger.FromContext(ctx)

	p, cfg, stopped, err := startPlatform(ctx, func(e platform.Event) {
		log.WithField("ifindex", e.Index).Debugf("%v", e)
	})
	if err != nil {
		log.Fatalf("Unable to start platform: %v", err)
	}

	wg := sync.WaitGroup{}
	if cfg.Status.Enabled {
		srv := server.NewStatusServer(fmt.Sprintf("%s:%d", cfg.Status.Address, cfg.Status.Port),
			snapshot.NewPlatformSource(p), p, cfg.Status.RequestRate)
		wg.Add(1)
		go func(childCtx context.Context) {
			defer wg.Done()
			if err := srv.ListenUntilContextCancelled(childCtx); err != nil {
				log.Errorf("Status server failed: %v", err)
				cancel()
			}
		}(logger.ContextWithField(ctx, "bind-addr", srv.Addr()))
	}

	// Create a channel to listen for an interrupt or terminate signal from the operating system
	// syscall.SIGTERM is equivalent to kill which allows the process time to cleanup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
	<-stopped
	if err := p.Close(); err != nil {
		log.Warnf("Unable to release backend: %v", err)
	}
	log.Info("netcfgd stopped")
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
