package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/handlers"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/internal/api/routes"
	"github.com/gocomet/ride-lifecycle/internal/config"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/repository/memory"
	"github.com/gocomet/ride-lifecycle/internal/repository/mongodb"
	"github.com/gocomet/ride-lifecycle/internal/repository/postgres"
	"github.com/gocomet/ride-lifecycle/internal/repository/redisgeo"
	"github.com/gocomet/ride-lifecycle/internal/service/geocoding"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	"github.com/gocomet/ride-lifecycle/internal/service/matching"
	"github.com/gocomet/ride-lifecycle/internal/service/notification"
	"github.com/gocomet/ride-lifecycle/internal/service/pricing"
	"github.com/gocomet/ride-lifecycle/pkg/cache"
	"github.com/gocomet/ride-lifecycle/pkg/database"
	"github.com/gocomet/ride-lifecycle/pkg/events"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/metrics"
	"github.com/gocomet/ride-lifecycle/pkg/monitoring"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ride lifecycle service",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("storage", cfg.Storage.Backend),
		logger.String("driver_index", cfg.DriverIndexBackend()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized successfully", logger.String("app_name", cfg.NewRelic.AppName))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	promMetrics := metrics.New(prometheus.DefaultRegisterer)

	// Redis backs the GEO driver index, the address cache and the token blacklist
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			MinIdleConn: cfg.Redis.MinIdleConn,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis successfully")

		go nrApp.ReportRedisPool(ctx, redisClient, 30*time.Second)
	}

	store, err := openStorage(ctx, cfg, redisClient, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize storage", logger.Err(err))
	}
	defer store.close()

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run(ctx)

	var mirror notification.Mirror
	if cfg.Features.EnableEventStream {
		publisher, err := events.NewKafkaPublisher(events.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			appLogger.Fatal("Failed to create Kafka publisher", logger.Err(err))
		}
		defer publisher.Close()
		mirror = publisher
		appLogger.Info("Ride events mirrored to Kafka", logger.String("topic", cfg.Kafka.Topic))
	}

	gateway, err := newGateway(cfg, redisClient, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize geocoding", logger.Err(err))
	}

	calculator, err := pricing.NewCalculator(pricing.Config{
		Rates: map[ride.VehicleType]pricing.Rate{
			ride.VehicleAuto: {BaseFare: cfg.Pricing.Auto.BaseFare, PerKMRate: cfg.Pricing.Auto.PerKMRate},
			ride.VehicleCar:  {BaseFare: cfg.Pricing.Car.BaseFare, PerKMRate: cfg.Pricing.Car.PerKMRate},
			ride.VehicleMoto: {BaseFare: cfg.Pricing.Moto.BaseFare, PerKMRate: cfg.Pricing.Moto.PerKMRate},
		},
	})
	if err != nil {
		appLogger.Fatal("Invalid pricing table", logger.Err(err))
	}

	locator := matching.NewLocator(store.drivers, wsHub, appLogger)
	dispatcher := notification.NewDispatcher(wsHub, mirror, appLogger)

	engine := lifecycle.NewService(lifecycle.Deps{
		Rides:     store.rides,
		Geocoder:  gateway,
		Pricing:   calculator,
		Locator:   locator,
		Notifier:  dispatcher,
		Directory: wsHub,
		Recorder:  lifecycle.Recorders{promMetrics, nrApp},
		Logger:    appLogger,
	}, lifecycle.Config{MatchingRadiusKM: cfg.Matching.RadiusKM})

	var (
		blacklist middleware.TokenBlacklist
		revoker   handlers.TokenRevoker
	)
	if redisClient != nil {
		rb := middleware.NewRedisBlacklist(redisClient)
		blacklist, revoker = rb, rb
	}
	auth := middleware.NewAuthenticator(cfg.JWT.Secret, blacklist, wsHub, appLogger)

	var realtime *websocket.Hub
	if cfg.Features.EnableRealTimeUpdates {
		realtime = wsHub
	}

	// Initialize handlers with dependencies
	h := handlers.NewHandlers(engine, gateway, locator, realtime, revoker, appLogger, handlers.Options{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		TokenTTL:        cfg.JWT.Expiry,
	})

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(appLogger))

	routeOpts := routes.Options{
		Metrics:        promMetrics,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	}
	if nrApp.IsEnabled() {
		routeOpts.NewRelic = nrApp.Application
	}
	routes.SetupRoutes(router, h, auth, routeOpts)

	appLogger.Info("Routes configured successfully")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}

// storage is the ride store and driver index selected by configuration
type storage struct {
	rides   ride.Repository
	drivers matching.DriverIndex
	closers []func()
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, redisClient *redis.Client, appLogger *logger.Logger) (*storage, error) {
	s := &storage{}

	var (
		pg  *sqlx.DB
		mdb *mongo.Database
		err error
	)

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		s.rides = memory.NewRideRepository()

	case config.StoragePostgres:
		pg, err = database.NewPostgresDB(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.Name,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConnections,
			MaxIdle:     cfg.Database.MaxIdleConns,
			MaxLifetime: cfg.Database.MaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { pg.Close() })

		repo := postgres.NewRideRepository(pg)
		if err := repo.EnsureSchema(ctx); err != nil {
			s.close()
			return nil, err
		}
		s.rides = repo
		appLogger.Info("Connected to PostgreSQL successfully")

	case config.StorageMongo:
		mdb, err = openMongo(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.rides = mongodb.NewRideRepository(mdb)
		appLogger.Info("Connected to MongoDB successfully")
	}

	switch cfg.DriverIndexBackend() {
	case config.StorageMemory:
		s.drivers = memory.NewDriverIndex()

	case config.IndexRedis:
		s.drivers = redisgeo.NewDriverIndex(redisClient)

	case config.StorageMongo:
		if mdb == nil {
			if mdb, err = openMongo(ctx, cfg, s); err != nil {
				s.close()
				return nil, err
			}
		}
		idx := mongodb.NewDriverIndex(mdb)
		if err := idx.EnsureIndexes(ctx); err != nil {
			s.close()
			return nil, fmt.Errorf("failed to create driver index: %w", err)
		}
		s.drivers = idx
	}

	return s, nil
}

func openMongo(ctx context.Context, cfg *config.Config, s *storage) (*mongo.Database, error) {
	db, err := database.NewMongoDatabase(ctx, database.MongoConfig{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.CloseMongo(closeCtx, db)
	})
	return db, nil
}

func newGateway(cfg *config.Config, redisClient *redis.Client, appLogger *logger.Logger) (*geocoding.Gateway, error) {
	var provider geocoding.Provider
	switch cfg.Geocoding.Provider {
	case config.ProviderGoogle:
		google, err := geocoding.NewGoogleProvider(cfg.Geocoding.APIKey, cfg.Geocoding.Country)
		if err != nil {
			return nil, err
		}
		provider = google
	default:
		provider = geocoding.NewORSProvider(cfg.Geocoding.ORSEndpoint, cfg.Geocoding.APIKey, cfg.Geocoding.Country, cfg.Geocoding.Timeout)
	}

	var addressCache geocoding.AddressCache
	if redisClient != nil && cfg.Features.EnableGeocodeCache {
		addressCache = geocoding.NewRedisAddressCache(redisClient, cfg.Geocoding.CacheTTL)
	}

	appLogger.Info("Geocoding configured",
		logger.String("provider", cfg.Geocoding.Provider),
		logger.Bool("cache", addressCache != nil),
		logger.Bool("route_fallback", cfg.Geocoding.RouteFallback),
	)

	return geocoding.NewGateway(provider, addressCache, geocoding.Config{
		Timeout:       cfg.Geocoding.Timeout,
		RouteFallback: cfg.Geocoding.RouteFallback,
	}, appLogger), nil
}
