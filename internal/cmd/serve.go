package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the track database as GeoJSON",
	Long: `Serve exposes the tracks of --db over HTTP:

  /tracks/                         track listing
  /tracks/{id}.geojson             raw path
  /tracks/{id}/waypoints.geojson   resampled waypoints

The database is opened read-only when the server starts; tracks imported
later are served after a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served tracks")

	bindFlags(serveCmd, map[string]string{
		"serve.addr":          "addr",
		"serve.cache_control": "cache-control",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := viper.GetString("serve.addr")
	cacheControl := viper.GetString("serve.cache_control")

	tracks, err := server.NewTrackHandler(server.TrackConfig{
		DBPath:       cfg.Store.DB,
		CacheControl: cacheControl,
	}, logger)
	if err != nil {
		return err
	}
	defer tracks.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/tracks", server.WithCORS(tracks.Handler()))
	mux.Handle("/tracks/", server.WithCORS(tracks.Handler()))

	logger.Info("Track server listening", "addr", addr, "db", cfg.Store.DB)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
