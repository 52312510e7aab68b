package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomsync/internal/config"
	"roomsync/internal/handler"
	"roomsync/internal/messaging"
	"roomsync/internal/middleware"
	"roomsync/internal/observability"
	"roomsync/internal/presence"
	"roomsync/internal/pubsub"
	"roomsync/internal/repository/postgres"
	"roomsync/internal/service"
	"roomsync/internal/session"
	"roomsync/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting roomsync server")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	presenceStore, err := presence.NewStore(cfg.RedisAddr)
	if err != nil {
		slog.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer presenceStore.Close()
	slog.Info("connected to redis")

	broker, brokerConn, err := newBroker(cfg)
	if err != nil {
		slog.Error("failed to connect to push broker",
			slog.String("backend", cfg.PushBackend),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer brokerConn.Close()
	slog.Info("connected to push broker", slog.String("backend", cfg.PushBackend))

	messageRepo := postgres.NewMessageRepository(db)
	roomRepo := postgres.NewRoomRepository(db)

	sendLimiter := service.NewSendLimiter(cfg.SendRatePerMin, cfg.SendRatePerMin)
	defer sendLimiter.Stop()

	roomService := service.NewRoomService(messageRepo, roomRepo, broker, sendLimiter)
	presenceService := service.NewPresenceService(roomRepo, presenceStore)
	sessionStore := session.NewStore(presenceStore.Client())

	hub := websocket.NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && err != context.Canceled {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()
	bridge := websocket.NewBridge(hub, broker)
	slog.Info("websocket hub started")

	sessionHandler := handler.NewSessionHandler(sessionStore)
	roomHandler := handler.NewRoomHandler(roomService)
	messageHandler := handler.NewMessageHandler(roomService)
	presenceHandler := handler.NewPresenceHandler(presenceService)
	wsHandler := handler.NewWebSocketHandler(hub, bridge, roomService, broker,
		middleware.ParseOrigins(cfg.AllowedOrigins))

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	r.Use(middleware.OpenAPIValidator(validatorConfig(cfg)))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, presenceStore.Client(), brokerConn))
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	sessionLimiter := middleware.NewRateLimiter(5, 10)
	defer sessionLimiter.Stop()
	apiLimiter := middleware.NewRateLimiter(20, 50)
	defer apiLimiter.Stop()

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sessionLimiter.Middleware())
			r.Post("/session", sessionHandler.Create)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionStore))
			r.Use(apiLimiter.Middleware())

			r.Get("/session", sessionHandler.Me)
			r.Get("/rooms", roomHandler.List)
			r.Post("/rooms", roomHandler.Create)
			r.Post("/rooms/{id}/join", roomHandler.Join)
			r.Get("/rooms/{id}/messages", messageHandler.List)
			r.Post("/rooms/{id}/messages", messageHandler.Send)
			r.Post("/rooms/{id}/presence", presenceHandler.Heartbeat)
			r.Delete("/rooms/{id}/presence", presenceHandler.Withdraw)
			r.Get("/rooms/{id}/presence", presenceHandler.Online)
		})
	})

	// Websocket upgrade needs auth too; token may arrive as a query param.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sessionStore))
		r.Get("/ws/rooms/{id}", wsHandler.HandleConnection)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("roomsync server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	hubCancel()
	time.Sleep(100 * time.Millisecond)

	slog.Info("server stopped gracefully")
}

// brokerCloser is the lifecycle surface both broker backends share.
type brokerCloser interface {
	handler.ConnChecker
	Close() error
}

// newBroker connects the configured push backend. Both backends
// implement pubsub.Broker and report liveness for the readiness probe.
func newBroker(cfg *config.Config) (pubsub.Broker, brokerCloser, error) {
	switch cfg.PushBackend {
	case config.PushBackendNATS:
		nb, err := messaging.NewNATSBroker(cfg.NATSURL, "roomsync-server")
		if err != nil {
			return nil, nil, err
		}
		return nb, nb, nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		rmq, err := messaging.NewRabbitMQWithRetry(ctx, cfg.RabbitMQURL)
		if err != nil {
			return nil, nil, err
		}
		return rmq, rmq, nil
	}
}

func validatorConfig(cfg *config.Config) *middleware.OpenAPIValidatorConfig {
	vc := middleware.DefaultOpenAPIValidatorConfig(cfg.Environment)
	if cfg.OpenAPISpec != "" {
		vc.SpecPath = cfg.OpenAPISpec
	} else {
		vc.Enabled = false
	}
	return vc
}
