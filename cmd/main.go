package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/storecore/paygate/gateway"
	"github.com/storecore/paygate/handler"
	"github.com/storecore/paygate/infra/config"
	"github.com/storecore/paygate/infra/logger"
	"github.com/storecore/paygate/infra/middle"
	"github.com/storecore/paygate/infra/opensearch"
	"github.com/storecore/paygate/infra/response"
	"github.com/storecore/paygate/router"
	"github.com/storecore/paygate/store"
	"github.com/storecore/paygate/webhook"
)

var openSearchLogger *opensearch.Logger

// gatewayEnvKeys maps each gateway to the environment variables that can
// seed its settings, e.g. LIQPAY_PUBLIC_KEY.
var gatewayEnvKeys = map[string][]string{
	"liqpay":            {"public_key", "private_key", "language", "server_url"},
	"paypal-checkout":   {"client_id", "env", "size", "shape", "color", "notify_url", "allow_sandbox"},
	"stripe-elements":   {"public_key", "secret_key"},
	"razorpay-checkout": {"key_id", "key_secret"},
}

func init() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	cfg := config.GetAppConfig()
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	logger.InitGlobalLogger(openSearchLogger)
}

func main() {
	cfg := config.GetAppConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Gateway credentials live in SQLite, seeded from env on first run
	gatewayStorage, err := config.NewGatewayStorage(cfg.GatewayDBPath)
	if err != nil {
		log.Fatalf("Failed to open gateway storage: %v", err)
	}
	defer gatewayStorage.Close()

	if err := gatewayStorage.SeedFromEnv(ctx, gatewayEnvKeys); err != nil {
		log.Printf("Failed to seed gateway settings from env: %v", err)
	}

	mongoClient, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	db := store.New(mongoClient.Database(cfg.MongoDatabase))
	dispatcher := webhook.NewDispatcher(db)
	db.SetDispatcher(dispatcher)

	coordinatorCfg := gateway.CoordinatorConfig{
		Orders:          db,
		Transactions:    db,
		Settings:        db,
		GatewaySettings: gatewayStorage,
	}
	if openSearchLogger != nil {
		coordinatorCfg.Events = openSearchLogger
	}
	coordinator := gateway.NewCoordinator(coordinatorCfg)

	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middle.PanicRecoveryMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]any{
			"status":             "ok",
			"timestamp":          time.Now().UTC(),
			"gateways":           gateway.DefaultRegistry.Gateways(),
			"opensearch_enabled": openSearchLogger != nil,
		}
		_ = response.WriteJSON(w, http.StatusOK, response.Response{
			Code:    http.StatusOK,
			Success: true,
			Message: "Service is healthy",
			Data:    health,
		})
	})

	router.Routes(r, router.Deps{
		Payments: handler.NewPaymentHandler(coordinator, db),
		Webhooks: handler.NewWebhookHandler(db, dispatcher),
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{
			Code:    http.StatusNotFound,
			Success: false,
			Message: "Not Found",
		})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err.Error())
		}
	}()

	logger.Info("API is running", logger.LogContext{Fields: map[string]any{"port": cfg.Port}})

	<-ctx.Done()

	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
