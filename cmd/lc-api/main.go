package main

import (
	"LightCount/internal/api"
	"LightCount/internal/config"
	"LightCount/internal/engine"
	"LightCount/internal/period"
	"LightCount/internal/query"
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := query.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	eng, err := engine.New(store, nil, engine.OptionsFromConfig(cfg.Engine))
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer eng.Close()

	loc, err := period.LoadLocation(cfg.Engine.TimeZone, period.DefaultLocation())
	if err != nil {
		log.Fatalf("Failed to load time zone: %v", err)
	}

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: api.NewHandler(eng, loc).Router(),
	}

	go func() {
		log.Printf("API server starting on %s (time zone %s)", server.Addr, loc)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}
