package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/shuttle_tracker/internal/app"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "shuttle.conf", "path to config file")
	driverID := flag.String("driver", "", "driver identity to simulate")
	speed := flag.Float64("speed", 8, "ground speed in m/s")
	flag.Parse()

	if *driverID == "" {
		log.Fatal("usage: sim -driver <id> [-speed <m/s>] [-config <path>]")
	}

	log.Println("starting shuttle-tracker route simulator")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := app.RunSim(*driverID, *speed); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
