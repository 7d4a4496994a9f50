package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/catalog"
	"github.com/relabs-tech/shuttle_tracker/internal/channel"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
	"github.com/relabs-tech/shuttle_tracker/internal/geo"
	"github.com/relabs-tech/shuttle_tracker/internal/locate"
	"github.com/relabs-tech/shuttle_tracker/internal/track"
	"github.com/relabs-tech/shuttle_tracker/internal/tracker"
)

// RunRider runs a passive console subscriber on one route and prints
// every position update, the way a map client would redraw markers.
func RunRider(routeID string) error {
	cfg := config.Get()

	cat, err := catalog.Load(cfg.RouteCatalogPath)
	if err != nil {
		return err
	}
	if routeID == "" {
		routeID = cat.Routes[0].ID
	}
	route, ok := cat.Route(routeID)
	if !ok {
		return fmt.Errorf("unknown route %q", routeID)
	}
	fmt.Printf("watching route %q (%s)\n", route.ID, route.Name)

	center := geo.Point{Latitude: cfg.DefaultCenterLat, Longitude: cfg.DefaultCenterLon}
	provider := &locate.FixedProvider{Point: center}

	t := tracker.New(trackerConfig(cfg, route.ID, func(rec track.Record) {
		if rec.DriverID == tracker.SelfDriverID {
			return
		}
		fmt.Printf("[POS] route=%-8s driver=%-8s lat=%10.6f lon=%11.6f\n",
			rec.RouteID, rec.DriverID, rec.Point.Latitude, rec.Point.Longitude)
	}), cat, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() { <-quit; cancel() }()

	if err := t.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	t.Stop()
	return nil
}

// trackerConfig maps the flat config file onto a tracker configuration.
func trackerConfig(cfg *config.Config, routeID string, notify func(track.Record)) tracker.Config {
	scheme, err := channel.ParseScheme(cfg.FeedAddressScheme)
	if err != nil {
		scheme = channel.SchemeDriver
	}
	return tracker.Config{
		BaseURL:        cfg.FeedBaseURL,
		Scheme:         scheme,
		SeedURL:        cfg.SeedURL,
		Center:         geo.Point{Latitude: cfg.DefaultCenterLat, Longitude: cfg.DefaultCenterLon},
		DefaultRouteID: routeID,
		PollInterval:   time.Duration(cfg.PollInterval) * time.Millisecond,
		FixTimeout:     time.Duration(cfg.FixTimeout) * time.Millisecond,
		ReconnectDelay: time.Duration(cfg.ReconnectDelay) * time.Millisecond,
		Notify:         notify,
	}
}
