package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"carehome.org/internal/audit"
	"carehome.org/internal/auth"
	"carehome.org/internal/cache"
	"carehome.org/internal/db"
	"carehome.org/internal/httpapi"
	"carehome.org/internal/obs"
	"carehome.org/internal/residents"
)

// Overridden at build time via -ldflags.
var (
	version = "0.3.1"
	commit  = "dev"
)

// Config is built once from the environment and passed down explicitly.
type Config struct {
	Addr          string
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TokenSecret   string
	TokenIssuer   string
	AccessTTL     time.Duration
	Migrate       bool
}

func loadConfig() Config {
	cfg := Config{
		Addr:          envOr("CAREHOME_ADDR", ":8080"),
		PGDSN:         os.Getenv("CAREHOME_PG_DSN"),
		RedisAddr:     os.Getenv("CAREHOME_REDIS_ADDR"),
		RedisPassword: os.Getenv("CAREHOME_REDIS_PASSWORD"),
		TokenSecret:   os.Getenv("CAREHOME_TOKEN_SECRET"),
		TokenIssuer:   envOr("CAREHOME_TOKEN_ISSUER", "carehome-api"),
		Migrate:       os.Getenv("CAREHOME_MIGRATE") == "true",
	}
	if raw := os.Getenv("CAREHOME_REDIS_DB"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.RedisDB = n
		}
	}
	if raw := os.Getenv("CAREHOME_ACCESS_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.AccessTTL = d
		}
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := loadConfig()
	if cfg.PGDSN == "" {
		log.Fatal("CAREHOME_PG_DSN is required")
	}
	if cfg.TokenSecret == "" {
		log.Fatal("CAREHOME_TOKEN_SECRET is required")
	}

	conn, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := conn.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("ping db: %v", err)
	}
	if cfg.Migrate {
		if err := db.NewMigrator(conn).Up(ctx); err != nil {
			cancel()
			log.Fatalf("migrate: %v", err)
		}
	}

	var store cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			cancel()
			log.Fatalf("connect redis: %v", err)
		}
		store = redisCache
	} else {
		// Single-instance fallback. Lockout and captcha state stays local.
		log.Print("CAREHOME_REDIS_ADDR not set, using in-process cache")
		store = cache.NewMemory()
	}
	cancel()

	authOpts := []auth.ServiceOption{
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithLockoutHook(func(ctx context.Context, username string) {
			obs.ObserveLockout()
			_ = audit.LogEvent(ctx, audit.EventAccountLocked, map[string]any{
				"login_name": username,
			})
		}),
	}
	if cfg.AccessTTL > 0 {
		authOpts = append(authOpts, auth.WithAccessTTL(cfg.AccessTTL))
	}
	authSvc, err := auth.NewService(auth.NewPGStore(conn), store, cfg.TokenSecret, authOpts...)
	if err != nil {
		log.Fatalf("init auth: %v", err)
	}

	api := httpapi.New(authSvc, residents.NewStore(conn), httpapi.ReadyProbe{DB: conn}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting carehome-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = conn.Close()
	log.Println("Stopped")
}
