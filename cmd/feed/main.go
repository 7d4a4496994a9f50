package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/shuttle_tracker/internal/app"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "shuttle.conf", "path to config file")
	flag.Parse()

	log.Println("starting shuttle-tracker location feed")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := app.RunFeed(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
