package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/relayhq/relay/internal/channel"
	"github.com/relayhq/relay/internal/channel/adapters"
	"github.com/relayhq/relay/internal/channel/adapters/telegram"
	"github.com/relayhq/relay/internal/channel/adapters/whatsapp"
	"github.com/relayhq/relay/internal/config"
	"github.com/relayhq/relay/internal/db"
	dbsqlc "github.com/relayhq/relay/internal/db/sqlc"
	"github.com/relayhq/relay/internal/engine"
	"github.com/relayhq/relay/internal/handlers"
	"github.com/relayhq/relay/internal/logger"
	"github.com/relayhq/relay/internal/media"
	"github.com/relayhq/relay/internal/pairing"
	"github.com/relayhq/relay/internal/server"
	"github.com/relayhq/relay/internal/storage"
	"github.com/relayhq/relay/internal/stream"
	"github.com/relayhq/relay/internal/thread"
)

func runServe(cfgPath string) {
	fx.New(
		fx.Provide(
			func() (config.Config, error) {
				cfg, err := config.Load(cfgPath)
				if err != nil {
					return config.Config{}, fmt.Errorf("load config: %w", err)
				}
				if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
					return config.Config{}, fmt.Errorf("auth.jwt_secret is required")
				}
				return cfg, nil
			},
			provideLogger,
			provideDBConn,
			provideDBQueries,
			provideEngineClient,
			provideStorageClient,
			provideChannelService,
			providePairingService,
			provideThreadResolver,
			provideStreamService,
			provideMediaService,
			provideEndpointStore,
			provideProcessor,
			provideTelegram,
			provideWhatsApp,
			provideHandlers,
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	log.Info("database ready", slog.String("database", cfg.Postgres.Database))
	lc.Append(fx.Hook{OnStop: func(context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries { return dbsqlc.New(conn) }

func provideEngineClient(log *slog.Logger, cfg config.Config) *engine.Client {
	return engine.NewClient(log, cfg.Engine.BaseURL, secondsToDuration(cfg.Engine.TimeoutSeconds))
}

func provideStorageClient(cfg config.Config) *storage.Client {
	return storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.Token, secondsToDuration(cfg.Storage.TimeoutSeconds))
}

func provideChannelService(log *slog.Logger, queries *dbsqlc.Queries) *channel.Service {
	return channel.NewService(log, queries)
}

func providePairingService(log *slog.Logger, queries *dbsqlc.Queries, channels *channel.Service, cfg config.Config) *pairing.Service {
	return pairing.NewService(log, queries, channels, cfg.Gateway.PairingTTL())
}

func provideThreadResolver(log *slog.Logger, queries *dbsqlc.Queries, engineClient *engine.Client) *thread.Resolver {
	return thread.NewResolver(log, queries, engineClient)
}

func provideStreamService(log *slog.Logger, queries *dbsqlc.Queries, resolver *thread.Resolver) *stream.Service {
	return stream.NewService(log, queries, resolver)
}

func provideMediaService(log *slog.Logger, store *storage.Client) *media.Service {
	return media.NewService(log, store, 0)
}

func provideEndpointStore(queries *dbsqlc.Queries) adapters.EndpointStore {
	return adapters.NewEndpointStore(queries)
}

func provideProcessor(
	log *slog.Logger,
	cfg config.Config,
	channels *channel.Service,
	pairings *pairing.Service,
	resolver *thread.Resolver,
	streams *stream.Service,
	mediaSvc *media.Service,
	engineClient *engine.Client,
) *adapters.Processor {
	return adapters.NewProcessor(log, channels, pairings, resolver, streams, mediaSvc, engineClient, cfg.Gateway.ReplyTimeout())
}

func provideTelegram(log *slog.Logger, store adapters.EndpointStore, processor *adapters.Processor) *telegram.WebhookHandler {
	return telegram.NewWebhookHandler(log, telegram.NewAdapter(log), store, processor)
}

func provideWhatsApp(log *slog.Logger, store adapters.EndpointStore, processor *adapters.Processor) *whatsapp.WebhookHandler {
	return whatsapp.NewWebhookHandler(log, whatsapp.NewAdapter(log), store, processor)
}

type handlerSet struct {
	fx.Out

	Ping     *handlers.PingHandler
	Threads  *handlers.ThreadHandler
	Pairings *handlers.PairingHandler
	Channels *handlers.ChannelHandler
}

func provideHandlers(log *slog.Logger, streams *stream.Service, pairings *pairing.Service, channels *channel.Service) handlerSet {
	return handlerSet{
		Ping:     handlers.NewPingHandler(log),
		Threads:  handlers.NewThreadHandler(log, streams),
		Pairings: handlers.NewPairingHandler(log, pairings),
		Channels: handlers.NewChannelHandler(log, channels),
	}
}

func provideServer(
	log *slog.Logger,
	cfg config.Config,
	ping *handlers.PingHandler,
	threads *handlers.ThreadHandler,
	pairings *handlers.PairingHandler,
	channels *handlers.ChannelHandler,
	telegramWebhook *telegram.WebhookHandler,
	whatsappWebhook *whatsapp.WebhookHandler,
) *server.Server {
	addr := cfg.Server.Addr
	if value := os.Getenv("HTTP_ADDR"); value != "" {
		addr = value
	}
	return server.NewServer(log, addr, cfg.Auth.JWTSecret, ping, threads, pairings, channels, telegramWebhook, whatsappWebhook)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return nil
		},
	})
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
