package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/LeMinhLong2000/cart-store/internal/cache"
	h "github.com/LeMinhLong2000/cart-store/internal/http"
	"github.com/LeMinhLong2000/cart-store/internal/metrics"
	"github.com/LeMinhLong2000/cart-store/internal/poller"
	"github.com/LeMinhLong2000/cart-store/internal/pricing"
	"github.com/LeMinhLong2000/cart-store/internal/repository"
	"github.com/LeMinhLong2000/cart-store/internal/store"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDBName     string
	SQLitePath      string
	MigrationsPath  string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    string
	PricingURL      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDBName:     getEnv("MONGO_DB_NAME", "cartdb"),
		SQLitePath:      getEnv("SQLITE_PATH", ""),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", ""),
		PricingURL:      getEnv("PRICING_URL", ""),
		RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Pick the snapshot backend: MongoDB, then SQLite, then memory-only
	var repo repository.SnapshotRepository
	switch {
	case cfg.MongoURI != "":
		client, db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(ctx)

		mongoRepo := repository.NewMongoRepository(db)
		if err := mongoRepo.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create MongoDB indexes: %v", err)
		}
		repo = mongoRepo
		log.Infof("Connected to MongoDB at %s", cfg.MongoURI)
	case cfg.SQLitePath != "":
		sqliteRepo, err := repository.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open SQLite database: %v", err)
		}
		defer sqliteRepo.Close()

		if err := sqliteRepo.RunMigrations(cfg.MigrationsPath); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		repo = sqliteRepo
		log.Infof("Using SQLite snapshot store at %s", cfg.SQLitePath)
	default:
		repo = repository.NewMemoryRepository()
		log.Warn("No MONGO_URI or SQLITE_PATH configured, snapshots are held in memory only")
	}

	// Optional Redis snapshot cache
	var snapCache cache.SnapshotCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		snapCache = cache.NewRedisCache(redisClient)
		log.Infof("Connected to Redis at %s", cfg.RedisAddr)
	}

	var quoter pricing.Quoter
	if cfg.PricingURL != "" {
		quoter = pricing.NewRemote(cfg.PricingURL, log)
		log.Infof("Using remote pricing at %s", cfg.PricingURL)
	} else {
		quoter = pricing.NewCalculator(pricing.DefaultDeliveryOptions(), pricing.DefaultTaxRate)
		log.Info("Using built-in price calculator")
	}

	storeMetrics := metrics.NewStoreMetrics(prometheus.DefaultRegisterer)
	serverMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer)

	manager := store.NewManager(quoter, repo, snapCache, storeMetrics, log)

	// Optional checkout poller wipes carts once checkout completes
	var checkoutPoller *poller.Poller
	var pollerCancel context.CancelFunc
	if cfg.KafkaBrokers != "" {
		var pollerCtx context.Context
		pollerCtx, pollerCancel = context.WithCancel(context.Background())

		checkoutPoller = poller.NewPoller(manager, log, strings.Split(cfg.KafkaBrokers, ",")...)
		go checkoutPoller.Run(pollerCtx)
		log.Infof("Checkout poller consuming from %s", cfg.KafkaBrokers)
	}

	cartHandler := h.NewCartHandler(manager, cfg.RequestTimeout, log)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.SessionMiddleware)
	r.Use(h.MetricsMiddleware(serverMetrics))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateItem)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Delete("/", cartHandler.ClearCart)
			r.Put("/address", cartHandler.SetShippingAddress)
			r.Put("/payment", cartHandler.SetPaymentMethod)
			r.Put("/delivery", cartHandler.SetDeliveryDate)
			r.Post("/reset", cartHandler.ResetCart)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "cart-store"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("cart-store listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	if checkoutPoller != nil {
		pollerCancel()
		checkoutPoller.Close()
	}

	log.Info("server exited")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
