package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/adxl345_driver/internal/app"
	"github.com/relabs-tech/adxl345_driver/internal/config"
)

func main() {
	log.Println("starting adxl345 console (simulated sensors)")

	if err := config.InitGlobal("adxl345_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunLocalConsole(ctx, os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
