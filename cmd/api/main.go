package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/config"
	gateway "github.com/swiftdrop/delivery-gateway/internal/gateways"
	"github.com/swiftdrop/delivery-gateway/internal/handlers"
	"github.com/swiftdrop/delivery-gateway/internal/queue"
	"github.com/swiftdrop/delivery-gateway/internal/repository"
	"github.com/swiftdrop/delivery-gateway/internal/services"
	xhttp "github.com/swiftdrop/delivery-gateway/pkg/http"
	"github.com/swiftdrop/delivery-gateway/pkg/logger"
	"github.com/swiftdrop/delivery-gateway/pkg/pg"
	"github.com/swiftdrop/delivery-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	pushQueue, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().PushQueueName,
		ConsumerGroup:     config.Get().PushQueueConsumerGroup,
		ConsumerName:      config.Get().PushQueueConsumerName,
		MaxRetries:        config.Get().PushQueueMaxRetries,
		VisibilityTimeout: config.Get().PushQueueVisibilityTimeout,
		PollInterval:      config.Get().PushQueuePollInterval,
		BatchSize:         config.Get().PushQueueBatchSize,
		MaxLen:            config.Get().PushQueueMaxLen,
		EnableDLQ:         config.Get().PushQueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating push queue", "error", err)
		return
	}

	mapsClient, err := gateway.NewMapsClient(&gateway.Config{
		BaseURL:         config.Get().MapsApiUrl,
		APIKey:          config.Get().MapsApiKey,
		Timeout:         config.Get().MapsTimeout,
		MaxRetries:      config.Get().MapsMaxRetries,
		RetryDelay:      time.Millisecond * 100,
		MaxConns:        1000,
		ReadBufferSize:  1024 * 4,
		WriteBufferSize: 1024 * 4,
	})
	if err != nil {
		logger.Error("failed to create maps client", "error", err)
		return
	}

	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// services
	notificationService := services.NewNotificationService(notificationRepo, userRepo, pushQueue)
	orderService := services.NewOrderService(
		orderRepo,
		userRepo,
		ratingRepo,
		mapsClient,
		notificationService,
		config.Get().FeeBase,
		config.Get().FeeWeightFactor,
	)
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	deliveryHandler := handlers.NewDeliveryHandler(orderService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterDeliveryRoutes(g, deliveryHandler)
	handlers.RegisterNotificationRoutes(g, notificationHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
