package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/service-scheduler/internal/auth"
	"github.com/ukydev/service-scheduler/internal/config"
	"github.com/ukydev/service-scheduler/internal/db"
	"github.com/ukydev/service-scheduler/internal/handlers"
	"github.com/ukydev/service-scheduler/internal/middleware"
	"github.com/ukydev/service-scheduler/internal/notify"
	"github.com/ukydev/service-scheduler/internal/schedule"
	"github.com/ukydev/service-scheduler/internal/tenant"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// newRouter wires the HTTP surface: rate limiting, then authentication, then
// the per-route permission checks.
func newRouter(scheduler handlers.Scheduler, authService *auth.Service, limiter *middleware.RateLimitMiddleware) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(authService)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	handlers.NewScheduleHandler(scheduler).Register(mux, authMiddleware)

	return limiter.RateLimit(authMiddleware.Authenticate(mux))
}

func newPublisher(cfg *config.Config) (notify.Publisher, func()) {
	if !cfg.MQTTEnabled() {
		return notify.NopPublisher{}, func() {}
	}
	publisher, err := notify.NewMQTTPublisher(notify.MQTTConfig{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopicPrefix,
		QoS:         1,
	})
	if err != nil {
		// Events are best effort; the scheduler still serves without a broker.
		log.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT unavailable, schedule events disabled")
		return notify.NopPublisher{}, func() {}
	}
	log.WithField("broker", cfg.MQTTBroker).Info("Publishing schedule events over MQTT")
	return publisher, publisher.Close
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.SetFormatter(&log.JSONFormatter{})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	client, err := db.ConnectMongo(cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())
	log.Info("Connected to MongoDB successfully")

	database := client.Database(cfg.MongoDB)
	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, database); err != nil {
		cancel()
		log.Fatalf("Failed to create indexes: %v", err)
	}
	cancel()
	store := db.NewStore(database)

	groups, err := tenant.ParseScopes(cfg.TenantScopes)
	if err != nil {
		log.Fatalf("Invalid TENANT_SCOPES: %v", err)
	}
	scopes := tenant.NewCachedResolver(tenant.NewStaticResolver(groups), cfg.TenantScopeTTL)

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	scheduler := schedule.NewService(store.Catalog, store.Schedules, store.Profiles, scopes,
		schedule.WithNotifier(publisher),
		schedule.WithScanLimit(cfg.CatalogScanLimit),
	)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		log.Fatalf("Failed to create auth service: %v", err)
	}

	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
	}
	limiter := middleware.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst,
		middleware.WithIdleTTL(cfg.RateLimitIdleTTL),
		middleware.WithTrustedProxies(trusted),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(scheduler, authService, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
