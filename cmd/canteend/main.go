package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canteen/internal/api"
	"canteen/internal/config"
	"canteen/internal/database"
	"canteen/internal/lifecycle"
	"canteen/internal/monitoring"
	"canteen/internal/realtime"
	"canteen/internal/store"
)

var configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Open(cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close(db)

	metrics := monitoring.New()
	hub := realtime.NewHub(metrics)

	var publisher realtime.Publisher = hub
	if cfg.Redis.Addr != "" {
		bridge := realtime.NewRedisBridge(cfg.Redis.Addr)
		defer bridge.Close()
		go bridge.Run(ctx, hub)
		publisher = realtime.MultiPublisher{hub, bridge}
		log.Printf("Realtime bridge connected to redis at %s", cfg.Redis.Addr)
	}

	engine := lifecycle.NewEngine(store.NewOrderStore(db), publisher, metrics)
	apiServer := api.NewServer(engine, hub, db, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: apiServer.Router(),
	}

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Addr, metrics)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		cancel()
	}()

	log.Printf("Starting server on %s", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

func startMetricsServer(addr string, metrics *monitoring.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	log.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server error: %v", err)
	}
}
