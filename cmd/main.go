package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/config"
	"github.com/Gopher0727/TempVoice/internal/audit"
	"github.com/Gopher0727/TempVoice/internal/cache"
	"github.com/Gopher0727/TempVoice/internal/engine"
	"github.com/Gopher0727/TempVoice/internal/events"
	"github.com/Gopher0727/TempVoice/internal/notify"
	"github.com/Gopher0727/TempVoice/internal/platform/discord"
	"github.com/Gopher0727/TempVoice/internal/repository"
	"github.com/Gopher0727/TempVoice/internal/server"
	"github.com/Gopher0727/TempVoice/internal/storage"
	"github.com/Gopher0727/TempVoice/internal/ws"
	"github.com/Gopher0727/TempVoice/middleware/jwt"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
	"github.com/Gopher0727/TempVoice/utils/ratelimit"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Close()

	// PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		zlog.Fatal("failed to init postgres", zap.Error(err))
	}

	// Redis
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		zlog.Fatal("failed to init redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Repositories
	roomRepo := repository.NewRoomRepository(postgres)
	configRepo := repository.NewConfigRepository(postgres)

	// Discord session
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		zlog.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages
	platformClient := discord.NewClient(session)
	if err := session.Open(); err != nil {
		zlog.Fatal("failed to open discord gateway", zap.Error(err))
	}
	defer session.Close()
	if err := session.UpdateListeningStatus(cfg.Discord.Status); err != nil {
		zlog.Warn("failed to set presence", zap.Error(err))
	}

	// Audit publishers: websocket fan-out always, Kafka when configured.
	hub := ws.NewHub()
	publishers := []audit.Publisher{hub}
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		if err != nil {
			// Degraded mode: keep running without the durable audit trail.
			zlog.Warn("failed to init kafka publisher, audit events stay local", zap.Error(err))
		} else {
			defer kafkaPublisher.Close()
			publishers = append(publishers, kafkaPublisher)
		}
	}
	auditor := audit.MultiPublisher(publishers)

	// Engine
	memberCache := cache.NewMemberCache(redisClient, cache.DefaultTTL)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient, zlog.Logger, true)
	notifier := notify.NewNotifier(platformClient, limiter, cfg.Notify.PerMinute, zlog)
	eng := engine.New(roomRepo, configRepo, platformClient, memberCache, notifier, auditor, zlog, engine.Options{
		MemberFetchLimit:   cfg.Discord.MemberFetchLimit,
		MemberFetchTimeout: cfg.Discord.MemberFetchTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	dispatcher := events.NewDispatcher(eng, zlog, cfg.Dispatcher.Shards, cfg.Dispatcher.QueueSize)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, platformClient)
		close(dispatcherDone)
	}()

	// HTTP surface
	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	mw := server.NewMiddlewareManager(tokenManager, limiter, zlog)
	handler := server.NewHandler(eng, roomRepo, zlog)
	router := server.NewRouter(handler, mw, hub, zlog, cfg.Server.Mode)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: router,
	}
	go func() {
		zlog.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("server shutdown failed", zap.Error(err))
	}

	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		fmt.Fprintln(os.Stderr, "dispatcher did not drain in time")
	}
}
