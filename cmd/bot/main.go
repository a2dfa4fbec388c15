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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Montivagant/calenbot/internal/auth"
	"github.com/Montivagant/calenbot/internal/bot"
	"github.com/Montivagant/calenbot/internal/config"
	"github.com/Montivagant/calenbot/internal/schedule"
	"github.com/Montivagant/calenbot/internal/session"
	"github.com/Montivagant/calenbot/internal/storage"
	"github.com/Montivagant/calenbot/internal/storage/memstore"
	"github.com/Montivagant/calenbot/internal/storage/redisstore"
	"github.com/Montivagant/calenbot/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional: without it the bot runs on the in-memory store and
	// loses state on restart
	var store storage.Store = memstore.New()
	if cfg.Redis.Address != "" {
		redisClient := redisstore.NewClient(cfg.Redis)
		if err := redisstore.Ping(ctx, redisClient); err != nil {
			log.Printf("Redis unavailable, falling back to in-memory store: %v", err)
		} else {
			rs := redisstore.New(redisClient)
			defer rs.Close()
			store = rs
		}
	}

	svc := schedule.NewService(store)
	gate := auth.NewGate(store, cfg.Admins)
	sessions := session.NewManager(time.Duration(cfg.Session.IdleTimeoutMinutes)*time.Minute, time.Now)

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort)
	}

	reset := worker.NewMonthlyReset(store, time.Now)
	go reset.Start(ctx)
	go sessions.Janitor(ctx, time.Minute)

	telegramBot, err := bot.New(cfg, store, svc, gate, sessions)
	if err != nil {
		log.Fatalf("Error creating bot: %v", err)
	}

	log.Printf("%s started", cfg.App.Name)
	go telegramBot.Start(ctx)

	<-ctx.Done()
	log.Println("Shutdown signal received...")
}

func startMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server error: %v", err)
	}
}
