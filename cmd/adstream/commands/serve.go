package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/services"
	handlers "adstream/internal/handlers/http"
	"adstream/internal/infrastructure/media"
	"adstream/internal/infrastructure/monitoring"
	"adstream/internal/infrastructure/transport"
	"adstream/pkg/config"
	"adstream/pkg/identity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Share the screen and relay it to connected watchers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := media.CheckBinaries("ffmpeg"); err != nil {
		return err
	}

	id, err := identity.GetOrCreate(cfg.Identity.Path)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Infow("identity ready", "hash", id.Hash())

	settings := streamSettings(cfg)

	var metrics services.Metrics
	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics = monitoring.NewPrometheusCollector(reg)
		gatherer = reg
	}

	registry := services.NewRegistry(settings, media.NewEncoderStarter(settings, log), metrics, log)
	registry.Start()
	defer registry.Close()

	listener := transport.NewListener(id, registry, log)
	if err := listener.Start(cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("start listener: %w", err)
	}

	announcer, err := transport.NewAnnouncer(cfg.Transport.MulticastAddress, listener.Endpoint(), id, log)
	if err != nil {
		return fmt.Errorf("start announcer: %w", err)
	}
	defer announcer.Close()

	service := domain.ServiceAddress{AppName: cfg.Service.AppName, Aspect: cfg.Service.Aspect}
	metadata := map[string]string{
		"nickname": cfg.Service.Nickname,
		"res":      settings.Resolution(),
		"fps":      strconv.Itoa(settings.FPS),
	}
	if err := announcer.Announce(service, metadata); err != nil {
		log.Warnw("initial announcement failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(cfg.Server.AnnounceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := announcer.Announce(service, metadata); err != nil {
					log.Warnw("announcement failed", "error", err)
				}
			}
		}
	}()

	var statusSrv *handlers.Server
	if cfg.Server.StatusAddress != "" {
		statusSrv = handlers.NewServer(cfg.Server.StatusAddress,
			handlers.NewStatusHandler(registry, gatherer), log)
		statusSrv.Start()
	}

	log.Infow("relay serving",
		"nickname", cfg.Service.Nickname,
		"resolution", settings.Resolution(),
		"fps", settings.FPS,
		"max_clients", settings.MaxClients)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if statusSrv != nil {
		statusSrv.Shutdown(shutdownCtx)
	}
	listener.Close(shutdownCtx)
	registry.Close()
	return nil
}

func streamSettings(cfg *config.Config) domain.StreamSettings {
	return domain.StreamSettings{
		Width:      cfg.Stream.Width,
		Height:     cfg.Stream.Height,
		FPS:        cfg.Stream.FPS,
		CRF:        cfg.Stream.CRF,
		Preset:     cfg.Stream.Preset,
		GOPSeconds: cfg.Stream.GOPSeconds,

		MaxClients:        cfg.Server.MaxClients,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Server.HeartbeatTimeout,
		PollInterval:      cfg.Server.PollInterval,
		MaxSendKbps:       cfg.Stream.MaxSendKbps,
	}
}
