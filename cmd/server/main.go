package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"vn.io.arda/marketplace-notification/internal/application"
	"vn.io.arda/marketplace-notification/internal/channel"
	"vn.io.arda/marketplace-notification/internal/config"
	"vn.io.arda/marketplace-notification/internal/eventbus"
	"vn.io.arda/marketplace-notification/internal/events"
	"vn.io.arda/marketplace-notification/internal/events/handlers"
	"vn.io.arda/marketplace-notification/internal/infrastructure/directory"
	"vn.io.arda/marketplace-notification/internal/infrastructure/postgres"
	transporthttp "vn.io.arda/marketplace-notification/internal/transport/http"
)

const serviceName = "marketplace-notification"

func main() {
	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Str("bus", cfg.Bus.Driver).
		Msg("starting " + serviceName)

	if cfg.Auth.JWTSecret == "" {
		if cfg.Server.Env == "production" {
			log.Fatal().Msg("JWT_SECRET is required in production")
		}
		cfg.Auth.JWTSecret = "dev-secret"
		log.Warn().Msg("JWT_SECRET not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("postgres connected")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}
	}

	// ── Channels ─────────────────────────────────────────────────────────────
	email := channel.NewEmail(cfg.SMTP, cfg.Channels.Timeout)
	whatsapp := channel.NewWhatsApp(cfg.Twilio, cfg.Channels.Timeout)
	verifier := channel.NewSignatureVerifier(cfg.Twilio.AuthToken)

	// ── Application Services ─────────────────────────────────────────────────
	hub := transporthttp.NewHub()
	dispatcher := application.NewDispatcher(
		postgres.NewNotificationRepository(pool),
		email,
		hub,
		application.DispatcherOptions{StrictStatus: cfg.Notifications.StrictStatus},
	)
	conversations := application.NewConversations(postgres.NewConversationRepository(pool), whatsapp)

	// ── Event Routing ────────────────────────────────────────────────────────
	registry := events.NewRegistry()
	handlers.Register(registry, handlers.Deps{
		Notifier:  dispatcher,
		Directory: directory.New(cfg.Directory.UsersURL, cfg.Directory.OrdersURL, cfg.Channels.Timeout),
	})

	topics := cfg.Bus.Topics
	if len(topics) == 0 {
		topics = registry.Types()
	}

	var background conc.WaitGroup

	switch cfg.Bus.Driver {
	case "nats":
		nc, err := eventbus.ConnectNATS(cfg.Bus.URL, serviceName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer nc.Close()

		dlq := eventbus.NewNATSDeadLetter(nc, cfg.Bus.DeadLetterTopic)
		router := events.NewRouter(registry, dlq)
		sub := eventbus.NewNATSSubscriber(nc, topics, cfg.Bus.Group, router, dlq, cfg.Bus.Workers)
		background.Go(func() {
			if err := sub.Run(ctx); err != nil {
				log.Error().Err(err).Msg("nats subscriber failed")
				stop()
			}
		})

	case "kafka":
		dlq, err := eventbus.NewKafkaDeadLetter(cfg.Bus.Brokers(), cfg.Bus.DeadLetterTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka dead-letter producer")
		}
		defer dlq.Close()

		router := events.NewRouter(registry, dlq)
		sub, err := eventbus.NewKafkaSubscriber(cfg.Bus.Brokers(), cfg.Bus.Group, topics, router, dlq, cfg.Bus.Workers)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka subscriber")
		}
		background.Go(func() { sub.Run(ctx) })

	default:
		log.Fatal().Str("driver", cfg.Bus.Driver).Msg("unknown event bus driver")
	}
	log.Info().Strs("topics", topics).Msg("event bus subscriber started")

	// ── Retention Purge Job (every 24h) ───────────────────────────────────────
	background.Go(func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				dispatcher.PurgeRead(ctx, cfg.Notifications.RetentionDays)
			case <-ctx.Done():
				return
			}
		}
	})

	// ── HTTP Server ───────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(dispatcher, conversations, verifier, cfg.Twilio.WebhookURL, hub)
	e := transporthttp.NewRouter(handler, cfg.Auth.JWTSecret)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Subscribers drain their in-flight handlers before returning.
	background.Wait()

	log.Info().Msg(serviceName + " stopped")
}
