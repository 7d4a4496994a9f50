package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/auth"
	"github.com/relabs-tech/shuttle_tracker/internal/catalog"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
	"github.com/relabs-tech/shuttle_tracker/internal/locate"
	"github.com/relabs-tech/shuttle_tracker/internal/track"
	"github.com/relabs-tech/shuttle_tracker/internal/tracker"
)

// RunSim drives a simulated shuttle along its route polyline and
// publishes through the same channel the real driver app uses. Handy for
// demos and for load-testing the feed without a vehicle.
func RunSim(driverID string, speedMps float64) error {
	cfg := config.Get()

	cat, err := catalog.Load(cfg.RouteCatalogPath)
	if err != nil {
		return err
	}
	route, ok := cat.RouteForDriver(driverID)
	if !ok {
		return fmt.Errorf("driver %q is not assigned to any route", driverID)
	}
	if speedMps <= 0 {
		speedMps = 8 // a campus shuttle, not a race car
	}

	provider, err := locate.NewPlaybackProvider(route.Points(), speedMps, time.Second)
	if err != nil {
		return err
	}

	t := tracker.New(trackerConfig(cfg, route.ID, func(rec track.Record) {
		log.Printf("sim: %s at (%f, %f)", driverID, rec.Point.Latitude, rec.Point.Longitude)
	}), cat, provider, auth.StaticAuthorizer(driverID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() { <-quit; cancel() }()

	if err := t.Start(ctx); err != nil {
		return err
	}
	if err := t.BecomeDriver(driverID); err != nil {
		t.Stop()
		return err
	}

	<-ctx.Done()
	t.Stop()
	return nil
}
