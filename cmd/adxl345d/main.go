// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/takama/daemon"

	"github.com/relabs-tech/adxl345_driver/internal/app"
	"github.com/relabs-tech/adxl345_driver/internal/config"
)

const (
	name        = "adxl345d"
	description = "ADXL345 accelerometer driver"
)

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage() (string, error) {
	configPath := flag.String("config", "adxl345_config.txt", "configuration file")
	flag.Parse()

	usage := "Usage: " + name + " [-config file] install | remove | start | stop | status"
	// if received any kind of command, do it
	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "install":
			return service.Install("-config", *configPath)
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	if err := config.InitGlobal(*configPath); err != nil {
		return "failed to load config", err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunDriver(ctx); err != nil {
		return "driver stopped", err
	}
	return "Daemon was interrupted by system signal", nil
}

func main() {
	log.Println("starting adxl345 driver daemon")

	srv, err := daemon.New(name, description, daemon.SystemDaemon)
	if err != nil {
		log.Println("Error: ", err)
		os.Exit(1)
	}
	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		log.Println(status, "\nError: ", err)
		os.Exit(1)
	}
	fmt.Println(status)
}
