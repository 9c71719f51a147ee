package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drouple.org/internal/auth"
	"drouple.org/internal/config"
	"drouple.org/internal/httpapi"
	"drouple.org/internal/obs"
	"drouple.org/internal/ratelimit"
	pgstore "drouple.org/internal/store/pg"
	redisstore "drouple.org/internal/store/redis"
	"drouple.org/internal/tenancy"
	"drouple.org/internal/token"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("DROUPLE_COMMIT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	secret, err := token.NewSigningSecret(cfg.AuthSecret)
	if err != nil {
		log.Fatalf("signing secret: %v", err)
	}

	ctx := context.Background()

	// Persistence. Postgres carries users, tenants and refresh tokens;
	// without a DSN the process runs fully in memory (dev only).
	var (
		store    *pgstore.Store
		users    auth.UserDirectory
		tenants  tenancy.TenantDirectory
		refresh  token.RefreshTokenStore
		denyList token.DenyList
		attempts ratelimit.AttemptStore
	)
	if cfg.PostgresDSN != "" {
		store, err = pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		users = store
		tenants = store
		refresh = store
	} else {
		log.Print("DROUPLE_PG_DSN not set, using in-memory stores")
		mem := newMemoryDirectory()
		users = mem
		tenants = mem
		refresh = token.NewMemoryRefreshTokenStore()
	}

	// Redis switches the login limiter and deny-list to shared state so
	// several API instances enforce one budget.
	if cfg.RedisAddr != "" {
		client, err := redisstore.Open(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("open redis: %v", err)
		}
		defer func() { _ = client.Close() }()
		attempts = redisstore.NewAttemptStore(client)
		denyList = redisstore.NewDenyList(client)
	} else {
		attempts = ratelimit.NewMemoryAttemptStore()
		denyList = token.NewMemoryDenyList()
	}

	tokens, err := token.NewService(secret, refresh, denyList,
		token.WithAccessTTL(cfg.AccessTokenTTL),
		token.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	limiterOpts := []ratelimit.LimiterOption{ratelimit.WithWindow(cfg.LoginWindow)}
	if cfg.LoginMaxAttempts > 0 {
		limiterOpts = append(limiterOpts, ratelimit.WithMaxAttempts(cfg.LoginMaxAttempts))
	}
	limiter, err := ratelimit.NewLimiter(attempts, limiterOpts...)
	if err != nil {
		log.Fatalf("rate limiter: %v", err)
	}

	authSvc, err := auth.NewService(users, limiter, tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	resolver, err := tenancy.NewResolver(tenants)
	if err != nil {
		log.Fatalf("tenant resolver: %v", err)
	}

	var probe httpapi.ReadyProbe
	if store != nil {
		probe.DB = store.DB()
	}
	api := httpapi.New(probe, version, authSvc, resolver)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting drouple-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
