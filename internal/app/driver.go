// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/shuttle_tracker/internal/auth"
	"github.com/relabs-tech/shuttle_tracker/internal/catalog"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
	"github.com/relabs-tech/shuttle_tracker/internal/locate"
	"github.com/relabs-tech/shuttle_tracker/internal/session"
	"github.com/relabs-tech/shuttle_tracker/internal/track"
	"github.com/relabs-tech/shuttle_tracker/internal/tracker"
)

// RunDriver runs the subsystem as a publishing driver: GPS fixes from
// the serial receiver go out on the feed until the process is stopped.
func RunDriver(driverID string) error {
	cfg := config.Get()

	if cfg.GPSSerialPort == "" {
		return fmt.Errorf("driver mode needs GPS_SERIAL_PORT")
	}

	cat, err := catalog.Load(cfg.RouteCatalogPath)
	if err != nil {
		return err
	}
	route, ok := cat.RouteForDriver(driverID)
	if !ok {
		return fmt.Errorf("driver %q is not assigned to any route", driverID)
	}
	log.Printf("driver %q serves route %q (%s)", driverID, route.ID, route.Name)

	provider := locate.NewSerialProvider(cfg.GPSSerialPort, uint(cfg.GPSBaudRate))

	var authorize session.Authorizer
	if cfg.AuthJWTSecret != "" {
		authorize = auth.JWTAuthorizer(cfg.AuthJWTSecret, cfg.AuthToken)
	} else {
		log.Println("WARNING: AUTH_JWT_SECRET not set, allowing driver mode without a token")
		authorize = auth.StaticAuthorizer(driverID)
	}

	t := tracker.New(trackerConfig(cfg, route.ID, func(rec track.Record) {
		log.Printf("driver: published (%f, %f)", rec.Point.Latitude, rec.Point.Longitude)
	}), cat, provider, authorize)

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
	_ = t.BecomeRider()
	t.Stop()
	return nil
}
