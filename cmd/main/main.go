package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/sync/errgroup"

	"sticker-bot/cdn"
	"sticker-bot/db"
	"sticker-bot/handlers"
	"sticker-bot/internal"
	"sticker-bot/metrics"
	"sticker-bot/packs"
	"sticker-bot/resolver"
	"sticker-bot/util"
	"sticker-bot/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := sentry.Init(sentry.ClientOptions{
		Dsn:           os.Getenv("SENTRY_DSN"),
		EnableTracing: false,
	})
	if err != nil {
		panic(err)
	}
	defer sentry.Flush(2 * time.Second)

	logger := slog.New(slogmulti.Fanout(
		tint.NewHandler(os.Stdout, &tint.Options{
			Level: slog.LevelInfo,
		}),
		sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelError},
			LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
		}.NewSentryHandler(ctx)))
	slog.SetDefault(logger)

	slog.Info("starting the sticker bot...", slog.String("disgo.version", disgo.Version))

	cfg := internal.ConfigFromEnv()

	var store db.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			panic(err)
		}
		defer pool.Close()
		postgres := db.NewPostgres(pool)
		if err := postgres.Migrate(ctx); err != nil {
			panic(err)
		}
		store = postgres
	} else {
		slog.Warn("DATABASE_URL is not set, all state is kept in memory")
		store = db.NewMemory()
	}

	cdnClient := cdn.New(util.NewCDNClient(cfg.CDNAPIKey), util.NewImageClient(), cfg.CDNBaseURL)
	perms := &internal.DiscordPermissions{}
	packService := packs.NewService(store, cdnClient, perms)
	m := metrics.New()

	b := &internal.Bot{
		Store:    store,
		Packs:    packService,
		Resolver: resolver.New(store, cfg.ResolverMode),
		CDN:      cdnClient,
		Metrics:  m,
	}
	h := handlers.NewHandler(b, cfg)

	client, err := disgo.New(cfg.BotToken,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuildMessages, gateway.IntentDirectMessages, gateway.IntentMessageContent, gateway.IntentGuilds),
			gateway.WithPresenceOpts(gateway.WithWatchingActivity("sticker shortcodes"))),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagChannels, cache.FlagRoles)),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnMessageCreate: h.OnMessageCreate,
		}))
	if err != nil {
		panic(err)
	}
	defer client.Close(context.TODO())
	perms.Client = client

	server := web.NewServer(store, packService, perms, m, &web.DiscordVerifier{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}, cfg.APIToken)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := client.OpenGateway(ctx); err != nil {
		panic(err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	slog.Info("sticker bot is now running.", slog.String("listen.addr", cfg.ListenAddr))
	if err := eg.Wait(); err != nil {
		slog.Error("sticker bot shut down with an error", tint.Err(err))
	}
}
