package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/shuttle_tracker/internal/app"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "shuttle.conf", "path to config file")
	routeID := flag.String("route", "", "route to watch (default: first in catalog)")
	flag.Parse()

	log.Println("starting shuttle-tracker rider console")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := app.RunRider(*routeID); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
