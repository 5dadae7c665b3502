package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/cmdclient/internal/config"
	"github.com/danmuck/cmdclient/internal/observability"
	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/danmuck/cmdclient/internal/server"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/cmdserverd/config.toml", "server config path")
	flag.Parse()

	observability.InitLogger("cmdserverd")
	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load server config")
	}
	log.Info().Str("path", *configPath).Msg("loaded server config")

	rec := server.NewRecorder(cfg.RecorderLimit)
	handler := server.HandlerFunc(func(ctx context.Context, peer net.Addr, cmd command.Command) {
		if !cmd.Type.Valid() {
			log.Warn().Str("peer", peer.String()).Int32("ordinal", int32(cmd.Type)).Msg("unknown command type")
		}
		rec.HandleCommand(ctx, peer, cmd)
	})

	srv, err := server.New(config.ServerRuntime(cfg), handler)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := strings.TrimSpace(cfg.AdminAddr); addr != "" {
		admin := server.NewAdmin(cfg.ID, addr, cfg.CorsOrigins, srv, rec)
		go func() {
			log.Info().Str("addr", addr).Msg("admin http started")
			if err := admin.Serve(); err != nil {
				log.Error().Err(err).Msg("admin http stopped")
			}
		}()
	}

	log.Info().Str("id", cfg.ID).Str("addr", cfg.Addr).Msg("cmdserverd started")
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal().Err(err).Msg("cmdserverd stopped")
	}
	log.Info().Msg("cmdserverd stopped")
}
