package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"shopdesk-realtime/config"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/handler"
	"shopdesk-realtime/internal/kafka"
	"shopdesk-realtime/internal/nats"
	"shopdesk-realtime/internal/redis"
	"shopdesk-realtime/internal/repository"
	"shopdesk-realtime/internal/repository/memory"
	"shopdesk-realtime/internal/server"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/storage"
	"shopdesk-realtime/internal/websocket"
	"shopdesk-realtime/pkg/database"
	"shopdesk-realtime/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// pushTransport is one end of the node-to-node push fan-out.
type pushTransport interface {
	events.Publisher
	events.Subscriber
}

type redisPush struct {
	*redis.Publisher
	*redis.Subscriber
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("shopdesk-realtime: %v", err)
	}
}

func run() error {
	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redis.Ping(ctx, redisClient); err != nil {
		return err
	}

	push, closePush, err := openPush(cfg, redisClient, l)
	if err != nil {
		return err
	}
	defer closePush()

	var sink events.RecordSink = events.NopSink{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := kafka.NewRecordSink(cfg.KafkaBrokers, cfg.KafkaRecordTopic)
		defer kafkaSink.Close()
		sink = kafkaSink
		l.Infof("exporting records to kafka topic %s", cfg.KafkaRecordTopic)
	}

	var presigner services.Presigner
	if cfg.S3Enabled() {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		presigner = s3Client
	}

	deskID, err := uuid.Parse(cfg.GuestDeskUserID)
	if err != nil {
		return fmt.Errorf("GUEST_DESK_USER_ID: %w", err)
	}

	profiles := redis.NewProfileCache(redisClient, store.Users(), cfg.ProfileCacheTTL)
	members := services.NewMembershipStore(store.Conversations())
	dispatcher := services.NewDispatcher(members, profiles, push, sink, l)
	messages := services.NewMessageService(store, members, dispatcher)
	guests := services.NewGuestBridge(store, members, dispatcher, services.GuestConfig{
		DeskUserID:  deskID,
		IdleTimeout: cfg.GuestIdleTimeout,
	}, l)
	authService := services.NewAuthService(cfg.JWTSecret, 0)

	gateway := websocket.NewGateway(members)
	hub := websocket.NewHub()
	bridge := websocket.NewPushBridge(push, hub)

	handlers := &server.Handlers{
		Broadcast:    handler.NewBroadcastHandler(gateway),
		Conversation: handler.NewConversationHandler(services.NewConversationService(store, members), messages, dispatcher),
		Message:      handler.NewMessageHandler(messages, dispatcher),
		Social: handler.NewSocialHandler(
			services.NewFriendshipService(store, dispatcher),
			services.NewNotificationService(store.Notifications()),
		),
		Call:       handler.NewCallHandler(services.NewCallRelay(members, dispatcher)),
		Guest:      handler.NewGuestHandler(guests, dispatcher),
		Attachment: handler.NewAttachmentHandler(services.NewAttachmentService(presigner)),
		Socket: websocket.NewHandler(gateway, hub, redis.NewPresenceStore(redisClient, cfg.PresenceTTL), dispatcher,
			websocket.HandlerConfig{
				AllowedOrigins:    cfg.AllowedWSOrigins,
				PresenceHeartbeat: cfg.PresenceTTL / 3,
			}, l),
	}
	limiter := redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
		MessageLimit: cfg.MessageRateLimit,
		SignalLimit:  redis.DefaultRateLimitConfig().SignalLimit,
		GuestLimit:   cfg.GuestRateLimit,
		Window:       cfg.RateLimitWindow,
	})

	go hub.Run(ctx)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			l.Logger.Error("push bridge stopped", zap.Error(err))
			stop()
		}
	}()
	go guests.RunSweeper(ctx, cfg.GuestSweepEvery)

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, authService, limiter, func(ctx context.Context) error {
		if err := health(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})
	return srv.Start(ctx)
}

// openStore picks the persistence backend. The memory store keeps
// everything in process and suits demos and single-node development.
func openStore(ctx context.Context, cfg *config.Config, l *logger.Logger) (repository.Store, server.HealthCheck, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		l.Infof("using in-memory store")
		return memory.NewStore(), func(context.Context) error { return nil }, func() {}, nil
	case "postgres":
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.HealthCheck(ctx, db); err != nil {
			_ = database.Close(db)
			return nil, nil, nil, fmt.Errorf("database ping: %w", err)
		}
		health := func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
		return repository.NewStore(db), health, func() { _ = database.Close(db) }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func openPush(cfg *config.Config, client *goredis.Client, l *logger.Logger) (pushTransport, func(), error) {
	switch cfg.PushDriver {
	case "redis":
		return redisPush{redis.NewPublisher(client), redis.NewSubscriber(client)}, func() {}, nil
	case "nats":
		nc, err := nats.Connect(cfg.NATSURL, l)
		if err != nil {
			return nil, nil, fmt.Errorf("nats: %w", err)
		}
		return nc, nc.Close, nil
	default:
		return nil, nil, errors.New("PUSH_DRIVER must be redis or nats")
	}
}
