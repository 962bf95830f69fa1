package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wildlife-challenge-service/config"
	"wildlife-challenge-service/handlers"
	"wildlife-challenge-service/middleware"
	"wildlife-challenge-service/models"
	"wildlife-challenge-service/services"
	"wildlife-challenge-service/utils"
	"wildlife-challenge-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, envFound, err := config.Load()
	if err != nil {
		// logger is not up yet
		panic(err)
	}

	utils.InitLogger("wildlife-challenge-service", cfg.Debug)
	defer utils.Logger.Sync()
	if !envFound {
		utils.Logger.Warn("No .env file found, reading environment variables directly")
	}

	loc, err := cfg.Location()
	if err != nil {
		utils.Logger.Fatal("invalid TIMEZONE", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		utils.Logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.Animal{},
		&models.Region{},
		&models.UserChallenge{},
		&models.UserProgress{},
		&models.BadgeType{},
		&models.UserBadge{},
	); err != nil {
		utils.Logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// --- Catalog, progression and badges ---
	catalogService := services.NewCatalogService(db)
	if cfg.CatalogFile != "" {
		n, err := catalogService.SeedFromFile(ctx, cfg.CatalogFile)
		if err != nil {
			utils.Logger.Fatal("failed to seed animal catalog", zap.String("file", cfg.CatalogFile), zap.Error(err))
		}
		utils.Logger.Info("Animal catalog seeded", zap.Int("animals", n))
	}
	sched, err := catalogService.StartRefreshScheduler(cfg.CatalogRefreshInterval)
	if err != nil {
		utils.Logger.Fatal("failed to start catalog scheduler", zap.Error(err))
	}

	progressionService := services.NewProgressionService(db)
	badgeService := services.NewBadgeService(db)
	if err := badgeService.SeedBadgeTypes(ctx); err != nil {
		utils.Logger.Fatal("failed to seed badge types", zap.Error(err))
	}

	// --- Region resolution ---
	oracle, err := services.NewGeminiOracle(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		utils.Logger.Fatal("failed to initialize manifest oracle", zap.Error(err))
	}

	var locker services.RegionLocker = services.NewLocalRegionLocker()
	if cfg.RedisURL != "" {
		redisLocker, err := services.NewRedisRegionLocker(ctx, cfg.RedisURL, cfg.RegionLockTTL)
		if err != nil {
			utils.Logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisLocker.Close()
		locker = redisLocker
	} else {
		utils.Logger.Warn("REDIS_URL not set, region generation is serialized per process only")
	}

	resolver := services.NewRegionResolver(
		services.NewHTTPGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent),
		services.NewGormManifestStore(db),
		services.NewManifestGenerator(oracle, catalogService),
		locker,
	)
	resolver.Threshold = cfg.ProximityThreshold

	if cfg.R2Enabled() {
		archiver, err := utils.NewR2Archiver(ctx, utils.R2Config{
			AccountID:       cfg.CloudflareAccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
		})
		if err != nil {
			utils.Logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		resolver.Archiver = archiver
	}

	// --- Challenges ---
	challengeStore := services.NewGormChallengeStore(db)
	challengeService := services.NewChallengeService(resolver, challengeStore, services.NewRandomSource(), loc)
	tracker := services.NewProgressTracker(challengeStore, progressionService, badgeService)

	var consumer *workers.SightingConsumer
	if cfg.AMQPURL != "" {
		consumer = workers.NewSightingConsumer(workers.SightingConsumerConfig{
			URL:        cfg.AMQPURL,
			Exchange:   cfg.SightingExchange,
			Queue:      cfg.SightingQueue,
			BindingKey: cfg.SightingRouting,
		}, tracker)
		consumer.Start(ctx)
	} else {
		utils.Logger.Warn("AMQP_URL not set, sightings are only applied through the admin endpoint")
	}

	// --- HTTP ---
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// 🔐 GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupRegionRoutes(app, resolver, challengeService)
	handlers.SetupChallengeRoutes(app, challengeService, tracker)
	handlers.SetupProgressionRoutes(app, progressionService, badgeService, catalogService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			utils.Logger.Error("Server error", zap.Error(err))
		}
	}()

	utils.Logger.Info("✅ Server running",
		zap.String("port", cfg.Port),
		zap.Strings("cors_origins", cfg.AllowedOrigins),
		zap.String("timezone", loc.String()))

	<-ctx.Done()
	utils.Logger.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		utils.Logger.Warn("HTTP shutdown failed", zap.Error(err))
	}
	if consumer != nil {
		<-consumer.Done()
	}
	tracker.Wait()
	if err := sched.Shutdown(); err != nil {
		utils.Logger.Warn("scheduler shutdown failed", zap.Error(err))
	}
}
