// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/adxl345_driver/internal/app"
	"github.com/relabs-tech/adxl345_driver/internal/config"
)

func main() {
	log.Println("starting adxl345 web server (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("adxl345_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunWeb(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
