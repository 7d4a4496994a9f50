package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/shuttle_tracker/internal/app"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "shuttle.conf", "path to config file")
	driverID := flag.String("driver", "", "driver identity to publish as")
	flag.Parse()

	if *driverID == "" {
		log.Fatal("usage: driver -driver <id> [-config <path>]")
	}

	log.Println("starting shuttle-tracker driver (GPS → feed)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := app.RunDriver(*driverID); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
