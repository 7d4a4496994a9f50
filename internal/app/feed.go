package app

import (
	"log"

	"github.com/relabs-tech/shuttle_tracker/internal/catalog"
	"github.com/relabs-tech/shuttle_tracker/internal/config"
	"github.com/relabs-tech/shuttle_tracker/internal/feedserver"
	"github.com/relabs-tech/shuttle_tracker/internal/geo"
	"github.com/relabs-tech/shuttle_tracker/internal/track"
)

// RunFeed starts the location feed: the websocket hub, the seed and
// catalog endpoints, and the optional MQTT mirror.
func RunFeed() error {
	cfg := config.Get()

	cat, err := catalog.Load(cfg.RouteCatalogPath)
	if err != nil {
		return err
	}
	log.Printf("feed: loaded %d route(s) from %s", len(cat.Routes), cfg.RouteCatalogPath)

	center := geo.Point{Latitude: cfg.DefaultCenterLat, Longitude: cfg.DefaultCenterLon}
	store := track.NewStore(center)

	mirror, err := feedserver.NewMirror(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		return err
	}
	defer mirror.Close()

	srv := feedserver.NewServer(store, cat, mirror)
	return srv.Run(cfg.FeedListenAddr)
}
