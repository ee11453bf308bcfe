// Package main runs the itemgrid gateway: the item CRUD API with event
// history, watch streaming, and pluggable storage backends.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/itemgrid/itemgrid/internal/app/runtime"
	"github.com/itemgrid/itemgrid/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to the gateway config file")
	envFile := flag.String("env", "", "Optional .env file loaded before the config")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("load env (%s): %v", *envFile, err)
		}
	} else {
		_ = godotenv.Load() // allow .env for local runs
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	gateway, err := runtime.NewApplicationWithConfig(cfg)
	if err != nil {
		log.Fatalf("create gateway: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	if err := gateway.Run(ctx); err != nil {
		log.Fatalf("gateway error: %v", err)
	}

	if err := gateway.Shutdown(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Gateway stopped")
}
