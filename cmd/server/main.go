package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/callstate"
	"github.com/dkrstic/peerlink/internal/conferencing"
	"github.com/dkrstic/peerlink/internal/config"
	"github.com/dkrstic/peerlink/internal/database"
	"github.com/dkrstic/peerlink/internal/logger"
	"github.com/dkrstic/peerlink/internal/notify"
	postgresrepo "github.com/dkrstic/peerlink/internal/repository/postgres"
	"github.com/dkrstic/peerlink/internal/scheduler"
	"github.com/dkrstic/peerlink/internal/service"
	"github.com/dkrstic/peerlink/internal/telephony"
	"github.com/dkrstic/peerlink/internal/transport/http/handlers"
	"github.com/dkrstic/peerlink/internal/transport/http/middleware"
	"github.com/dkrstic/peerlink/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "peerlink")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	log.Info("connected to database")

	// Redis mirrors transient call state. The service layer treats it as
	// advisory, so a missing Redis only costs fast busy lookups.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	var callState service.CallStateStore
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, call-state mirror disabled", zap.Error(err))
	} else {
		callState = callstate.NewStore(redisClient)
		log.Info("connected to redis")
	}

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	connRepo := postgresrepo.NewConnectionRepo(pool)
	linkRepo := postgresrepo.NewCareLinkRepo(pool)
	surveyRepo := postgresrepo.NewSurveyRepo(pool)
	sessionRepo := postgresrepo.NewSessionRepo(pool)

	// Mail dispatch
	mailer, err := notify.NewMailer(cfg)
	if err != nil {
		log.Warn("mailer not configured, dispatches will be logged only", zap.Error(err))
		mailer = nil
	}
	dispatcher := notify.NewDispatcher(mailer, cfg.AppBaseURL, log)
	go dispatcher.Run(ctx)

	// External call backends
	var meetings service.MeetingCreator
	if cfg.ConferencingURL != "" {
		meetings = conferencing.NewClient(cfg.ConferencingURL, cfg.ConferencingAPIKey, log)
	}
	var dialer service.Dialer
	if cfg.TelephonyURL != "" {
		dialer = telephony.NewClient(cfg.TelephonyURL, cfg.TelephonyAPIKey, log)
	}

	// WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run()
	notifier := ws.NewHubNotifier(hub, log)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	connService := service.NewConnectionService(connRepo, userRepo, dispatcher, notifier, log)
	linkService := service.NewCareLinkService(linkRepo, userRepo, log)
	surveyService := service.NewSurveyService(surveyRepo, linkRepo, userRepo, dispatcher, notifier, log)
	monitor := service.NewCallMonitor(sessionRepo, callState, notifier, log)
	sessionService := service.NewSessionService(sessionRepo, connRepo, userRepo, meetings, dialer, callState, monitor, notifier, log)

	// Background sweeps and reminders
	sched := scheduler.New(connRepo, sessionRepo, userRepo, monitor, dispatcher, log)
	go sched.Run(ctx)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	connHandler := handlers.NewConnectionHandler(connService, log)
	linkHandler := handlers.NewCareLinkHandler(linkService, log)
	surveyHandler := handlers.NewSurveyHandler(surveyService, log)
	sessionHandler := handlers.NewSessionHandler(sessionService, monitor, log)
	telephonyHandler := handlers.NewTelephonyHandler(monitor, cfg.TelephonyAPIKey, log)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	// Provider callbacks (authenticated by shared key, not JWT)
	mux.HandleFunc("POST /api/v1/telephony/events", telephonyHandler.Events)

	// Protected - Connections
	mux.Handle("POST /api/v1/connections", auth(http.HandlerFunc(connHandler.Invite)))
	mux.Handle("GET /api/v1/connections", auth(http.HandlerFunc(connHandler.List)))
	mux.Handle("POST /api/v1/connections/{token}/accept", auth(http.HandlerFunc(connHandler.Accept)))
	mux.Handle("POST /api/v1/connections/{token}/decline", auth(http.HandlerFunc(connHandler.Decline)))
	mux.Handle("POST /api/v1/connections/{id}/resend", auth(http.HandlerFunc(connHandler.Resend)))
	mux.Handle("DELETE /api/v1/connections/{id}", auth(http.HandlerFunc(connHandler.Cancel)))

	// Protected - Care links
	mux.Handle("POST /api/v1/care-links/tokens", auth(http.HandlerFunc(linkHandler.MintToken)))
	mux.Handle("POST /api/v1/care-links/resolve", auth(http.HandlerFunc(linkHandler.ResolveToken)))
	mux.Handle("GET /api/v1/care-links/patients", auth(http.HandlerFunc(linkHandler.ListPatients)))
	mux.Handle("GET /api/v1/care-links/doctors", auth(http.HandlerFunc(linkHandler.ListDoctors)))

	// Protected - Surveys
	mux.Handle("POST /api/v1/surveys", auth(http.HandlerFunc(surveyHandler.Send)))
	mux.Handle("POST /api/v1/surveys/resend", auth(http.HandlerFunc(surveyHandler.Resend)))
	mux.Handle("POST /api/v1/surveys/{id}/complete", auth(http.HandlerFunc(surveyHandler.Complete)))
	mux.Handle("GET /api/v1/surveys", auth(http.HandlerFunc(surveyHandler.ListMine)))
	mux.Handle("GET /api/v1/surveys/analytics", auth(http.HandlerFunc(surveyHandler.Analytics)))

	// Protected - Call sessions
	mux.Handle("POST /api/v1/sessions", auth(http.HandlerFunc(sessionHandler.Schedule)))
	mux.Handle("POST /api/v1/sessions/call", auth(http.HandlerFunc(sessionHandler.Call)))
	mux.Handle("GET /api/v1/sessions", auth(http.HandlerFunc(sessionHandler.List)))
	mux.Handle("GET /api/v1/sessions/{id}", auth(http.HandlerFunc(sessionHandler.Get)))
	mux.Handle("DELETE /api/v1/sessions/{id}", auth(http.HandlerFunc(sessionHandler.Cancel)))
	mux.Handle("POST /api/v1/sessions/{id}/end", auth(http.HandlerFunc(sessionHandler.End)))
	mux.Handle("POST /api/v1/sessions/{id}/artifacts", auth(http.HandlerFunc(sessionHandler.AttachArtifacts)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret, log))

	// Start server with CORS
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Info("starting server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, middleware.CORS(mux)); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
