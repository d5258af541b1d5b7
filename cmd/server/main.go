package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/handler"
	"github.com/GoPolymarket/dutchauction/internal/middleware"
	"github.com/GoPolymarket/dutchauction/internal/notify"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	"github.com/GoPolymarket/dutchauction/internal/repository"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/GoPolymarket/dutchauction/internal/stream"
	"github.com/GoPolymarket/dutchauction/internal/strategy"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 0. Environment and configuration
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to read .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	// 1. Catalog and roster
	lots, err := service.LoadLots(cfg)
	if err != nil {
		log.Fatalf("Failed to load lots: %v", err)
	}
	catalog, err := service.NewLotCatalog(lots)
	if err != nil {
		log.Fatalf("Invalid lot catalog: %v", err)
	}
	registry, err := service.NewBidderRegistry(service.BiddersFromConfig(cfg.Bidders), cfg.Auction.HumanBidderID, cfg.Auction.HumanRate)
	if err != nil {
		log.Fatalf("Invalid bidder roster: %v", err)
	}

	// 2. Persistence
	// Deal store: Postgres > Redis > memory only
	var dealRepo service.DealRepo
	var pgDeals *repository.PostgresDealRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			pgDeals, err = repository.NewPostgresDealRepo(db)
		}
		if err == nil {
			logger.Info("connected to PostgreSQL")
			dealRepo = pgDeals
		} else {
			logger.Error("failed to set up Postgres deal store", "error", err)
		}
	}

	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to Redis")
		} else {
			logger.Error("failed to connect to Redis, falling back to memory", "error", err)
			redisClient = nil
		}
	}
	if dealRepo == nil && redisClient != nil {
		dealRepo = repository.NewRedisDealRepo(redisClient, cfg.Redis.DealsKey, cfg.Redis.DealsMax)
	}

	var idempotencyStore middleware.IdempotencyStore
	idemTTL := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
	if redisClient != nil {
		idempotencyStore = repository.NewRedisIdempotencyStore(redisClient, idemTTL)
	} else {
		idempotencyStore = middleware.NewInMemIdempotencyStore(idemTTL)
	}

	dealSvc, err := service.NewDealService(cfg.Deals.LogDir, cfg.Deals.Buffer, dealRepo)
	if err != nil {
		log.Fatalf("Failed to initialize deal recorder: %v", err)
	}

	// 3. Event fan-out
	hub := stream.NewHub()
	sinks := []service.EventSink{hub}
	var kafkaNotifier *notify.KafkaNotifier
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier, err = notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatalf("Failed to initialize kafka notifier: %v", err)
		}
		sinks = append(sinks, kafkaNotifier)
	} else {
		sinks = append(sinks, notify.LogNotifier{})
	}
	dispatcher := service.NewEventDispatcher(256, sinks...)

	// 4. Auction core
	seed := cfg.Auction.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := strategy.NewLockedRand(seed)

	selection, err := service.ParseLotSelection(cfg.Auction.LotSelection)
	if err != nil {
		log.Fatalf("Invalid lot selection: %v", err)
	}
	selector, err := service.NewWinnerSelector(cfg.Auction.TieBreak, cfg.Auction.TieBreakTopN, cfg.Auction.TieBreakBestProbability)
	if err != nil {
		log.Fatalf("Invalid tie break: %v", err)
	}

	state := service.NewRoundStateManager(catalog, registry, service.StateOptions{
		Selection: selection,
		Rand:      rng,
		Deals:     dealSvc,
		Events:    dispatcher,
	})
	engine := service.NewEngine(state, registry, selector, rng, service.EngineConfig{
		AutoReset:  cfg.Auction.AutoReset,
		ResetDelay: cfg.Auction.ResetDelay,
	})
	auctionSvc := service.NewAuctionService(state, engine, registry, dealSvc)

	if catalog.Len() > 0 {
		if err := auctionSvc.Start(); err != nil {
			log.Fatalf("Failed to start auction engine: %v", err)
		}
	} else {
		logger.Warn("lot catalog is empty, auction engine not started")
	}

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	if pgDeals != nil {
		go runDealCleanup(cleanupCtx, pgDeals, cfg.Database)
	}

	// 5. Handlers and router
	auctionHandler := handler.NewAuctionHandler(auctionSvc)
	adminHandler := handler.NewAdminHandler(auctionSvc)
	streamHandler := handler.NewStreamHandler(auctionSvc, hub)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AccessLogMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "service": "dutchauction", "engine_running": auctionSvc.EngineRunning()}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()); err != nil {
				body["status"] = "degraded"
				body["redis"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, body)
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.BidderMiddleware(registry))
	{
		v1.GET("/state", auctionHandler.GetState)
		v1.GET("/balances", auctionHandler.GetBalances)
		v1.GET("/deals", auctionHandler.GetDeals)
		v1.GET("/lots", auctionHandler.GetLots)
		v1.GET("/bidders", auctionHandler.GetBidders)
		v1.GET("/stream", streamHandler.Serve)
		v1.POST("/human/action",
			middleware.RateLimitMiddleware(registry),
			middleware.IdempotencyMiddleware(idempotencyStore),
			auctionHandler.HumanAction)
	}

	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.POST("/reset", adminHandler.Reset)
		admin.POST("/start", adminHandler.Start)
		admin.POST("/stop", adminHandler.Stop)
		admin.POST("/balances/:id", adminHandler.AdjustBalance)
	}

	// 6. Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("dutch auction started", "port", cfg.Server.Port, "lots", catalog.Len(), "bidders", len(registry.List()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// the engine goes first so no event or deal is produced after its sinks close
	auctionSvc.Stop()
	stopCleanup()
	dispatcher.Close()
	hub.Close()
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka writer close failed", "error", err)
		}
	}
	dealSvc.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server exiting")
}

func runDealCleanup(ctx context.Context, repo *repository.PostgresDealRepo, cfg config.DatabaseConfig) {
	if cfg.DealRetentionDays <= 0 {
		return
	}
	interval := time.Duration(cfg.CleanupIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(cfg.DealRetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.Cleanup(ctx, retention); err != nil {
				logger.LogError(ctx, err, "deal cleanup failed")
			}
		}
	}
}
