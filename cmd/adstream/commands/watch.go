package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"adstream/internal/core/services"
	"adstream/internal/infrastructure/media"
	"adstream/internal/infrastructure/transport"
	"adstream/pkg/identity"
	"adstream/pkg/retry"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Discover a producer on the local network and play its stream",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := media.CheckBinaries("ffplay"); err != nil {
		return err
	}

	id, err := identity.GetOrCreate(cfg.Identity.Path)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Infow("identity ready", "hash", id.Hash())

	discoverer := transport.NewDiscoverer(cfg.Transport.MulticastAddress, log)
	dialer := transport.NewDialer(id, retry.DefaultConfig(), log)

	watcher := services.NewWatcher(
		cfg.Service.Aspect,
		cfg.Client.DiscoveryTimeout,
		cfg.Client.ReconnectDelay,
		discoverer,
		dialer,
		media.NewDecoderStarter(log),
		log,
	)
	if err := watcher.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	watcher.Stop()
	return nil
}
