package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/trackmap/internal/config"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/geo"
	"github.com/MeKo-Tech/trackmap/internal/infowindow"
	"github.com/MeKo-Tech/trackmap/internal/mapview"
	"github.com/MeKo-Tech/trackmap/internal/popup"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/paulmach/orb"
)

// session is one headless map with a popup coordinator and a track player
// whose stores are registered in the coordinator's pool.
type session struct {
	m      *mapview.Headless
	popups *popup.Coordinator
	stores *track.Stores
	player *track.Player
}

func newSession(cfg config.Config, scheduler track.Scheduler) (*session, error) {
	m := mapview.NewHeadless(mapview.HeadlessOptions{
		Width:  cfg.Map.Width,
		Height: cfg.Map.Height,
		Center: orb.Point{cfg.Map.CenterLon, cfg.Map.CenterLat},
		Zoom:   cfg.Map.Zoom,
		Logger: logger,
	})

	popups, err := popup.New(m, popup.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create popup coordinator: %w", err)
	}

	stores, err := track.NewStores(track.StoresOptions{
		InfoWindow: markerInfoWindow,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create track stores: %w", err)
	}
	if err := popups.Pool().Add(stores.Player); err != nil {
		return nil, fmt.Errorf("failed to register track stores: %w", err)
	}

	player, err := track.NewPlayer(stores, m, track.Options{
		Interval:  cfg.Play.Interval,
		Scheduler: scheduler,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	if err := player.SetPlayType(cfg.Play.PlayType()); err != nil {
		return nil, err
	}

	return &session{m: m, popups: popups, stores: stores, player: player}, nil
}

// load sets the track and fits the view to its path.
func (s *session) load(t track.Track) error {
	if err := s.player.SetTrack(t); err != nil {
		return err
	}
	line, ok := s.player.Marker(track.KindLine)
	if ok {
		s.m.Fit(line.Geometry().Bound())
	}
	return nil
}

func (s *session) close() {
	s.player.Detach()
	s.popups.Detach()
}

// markerInfoWindow shows the coordinates of the start and end markers
// above them. The active marker has no popup.
func markerInfoWindow(f *feature.Feature) (infowindow.InfoWindow, bool) {
	attrs := f.Attributes()
	var title string
	switch track.Kind(attrs.String(track.AttrKind)) {
	case track.KindStart:
		title = "Start"
	case track.KindEnd:
		title = "End"
	default:
		return infowindow.InfoWindow{}, false
	}
	p, ok := attrs[track.AttrGeodetic].(orb.Point)
	if !ok {
		return infowindow.InfoWindow{}, false
	}
	lon, lat := geo.FormatLonLat(p, 2)
	return infowindow.New(fmt.Sprintf("%s: %s, %s", title, lat, lon), infowindow.Top, infowindow.Offset{}), true
}
