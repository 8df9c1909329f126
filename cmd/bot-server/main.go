package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicbridge/clinic-bot/internal/api"
	"github.com/clinicbridge/clinic-bot/internal/booking"
	"github.com/clinicbridge/clinic-bot/internal/clinic"
	"github.com/clinicbridge/clinic-bot/internal/config"
	"github.com/clinicbridge/clinic-bot/internal/conversation"
	"github.com/clinicbridge/clinic-bot/internal/dates"
	"github.com/clinicbridge/clinic-bot/internal/db"
	redisclient "github.com/clinicbridge/clinic-bot/internal/redis"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("bot-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s backend=%s tz=%s window=%02d:00-%02d:00",
		cfg.Env, cfg.HTTPPort, cfg.StorageBackend, cfg.Timezone, cfg.Window.StartHour, cfg.Window.EndHour)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store clinic.Store
	routerCfg := api.RouterConfig{Env: cfg.Env, Version: version}

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		log.Println("connected to Postgres")

		store = clinic.NewPgStore(pgPool, cfg.Location)
		routerCfg.PgPool = pgPool
	case config.BackendCSV:
		csvStore, err := clinic.NewCSVStore(cfg.CSVDir, cfg.Location)
		if err != nil {
			log.Fatalf("csv store error: %v", err)
		}
		store = csvStore
		log.Printf("using csv store at dir=%s", cfg.CSVDir)
	}

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")
	routerCfg.Redis = rdb

	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	bookingSvc := booking.NewService(store, locker, cfg.Location)
	engine := conversation.NewEngine(
		store,
		bookingSvc,
		dates.NewParser(cfg.Location),
		cfg.Window,
		cfg.SlotInterval,
		cfg.Location,
	)
	routerCfg.Engine = engine

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down bot-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
