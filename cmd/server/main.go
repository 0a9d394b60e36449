package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/auth"
	"chatsync/internal/cache"
	"chatsync/internal/chat"
	"chatsync/internal/config"
	"chatsync/internal/db"
	"chatsync/internal/logger"
	myMiddleware "chatsync/internal/middleware"
	"chatsync/internal/realtime"
	"chatsync/internal/seed"
	"chatsync/internal/store"
	"chatsync/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// entityStore is what both repositories need; Memory and Postgres satisfy it.
type entityStore interface {
	user.Repository
	chat.Repository
}

func main() {
	// 1. Config & logging
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config.load", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server.exit", "err", err)
		os.Exit(1)
	}
	log.Info("server.stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// 2. Entity store
	var (
		st    entityStore
		ready = func(context.Context) error { return nil }
	)
	if cfg.UseDatabase() {
		database, err := db.NewDatabase(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer database.Close()
		log.Info("db.connected")

		if cfg.AutoMigrate {
			if err := database.AutoMigrate(ctx); err != nil {
				return err
			}
			log.Info("db.migrated")
		}
		st = store.NewPostgres(database.Conn)
		ready = database.Ping
	} else {
		st = store.NewMemory()
		log.Warn("store.memory", "reason", "DB_DSN not set, state is lost on exit")
	}

	tokens := auth.NewTokens(cfg.JWTSecret, 0)
	if err := seedAccounts(ctx, cfg, st, tokens, log); err != nil {
		return err
	}

	// 3. Metrics & realtime hub
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hub := realtime.NewHub(log, realtime.NewMetrics(reg))

	// 4. Chat service, with the optional preview cache
	opts := []chat.Option{
		chat.WithLogger(log),
		chat.WithPreviewSize(cfg.PreviewSize),
		chat.WithMaxContentLength(cfg.MaxContentLength),
	}
	if cfg.UseRedis() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The cache is an optimisation; run without it.
			log.Warn("redis.unreachable", "addr", cfg.RedisAddr, "err", err)
		} else {
			log.Info("redis.connected", "addr", cfg.RedisAddr)
			opts = append(opts, chat.WithPreviewCache(cache.NewRedisPreviews(rdb, cfg.PreviewCacheTTL)))
		}
	}
	chatService := chat.NewService(st, st, hub, opts...)
	userService := user.NewService(st, log)

	chatHandler := chat.NewHandler(chatService, log)
	userHandler := user.NewHandler(userService, log)
	wsHandler := realtime.NewHandler(hub, chatService, log, cfg.WSSendQueue, cfg.AllowedOrigins())
	authMiddleware := myMiddleware.NewAuthMiddleware(tokens)

	// 5. Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(pingCtx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/ws", wsHandler.ServeWs)

		r.Get("/api/me", userHandler.Me)
		r.Post("/api/contacts", userHandler.AddContact)
		r.Get("/api/contacts", userHandler.ListContacts)

		chatHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Serve until a signal, then drain
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(hubCtx)
		return nil
	})
	g.Go(func() error {
		log.Info("server.start", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server.shutdown", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Hijacked websocket connections are not tracked by Shutdown; the hub closes them.
		stopHub()
		return err
	})
	return g.Wait()
}

func seedAccounts(ctx context.Context, cfg config.Config, repo user.Repository, tokens *auth.Tokens, log *slog.Logger) error {
	accounts, err := seed.Parse(cfg.SeedUsers)
	if err != nil || len(accounts) == 0 {
		return err
	}
	results, err := seed.Run(ctx, repo, tokens, accounts, cfg.SeedPassword)
	if err != nil {
		return err
	}
	for _, res := range results {
		log.Info("seed.account", "user_id", res.User.ID, "email", res.User.Email, "existing", res.Existing, "token", res.Token)
	}
	return nil
}
