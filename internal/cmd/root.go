package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/trackmap/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "trackmap",
	Short: "Trajectory resampling and playback on a headless map",
	Long: `TrackMap loads recorded trajectories from YAML, GeoJSON, shapefiles or
OpenStreetMap, resamples them to evenly spaced waypoints and plays them back
on a headless map with start, end and active markers.

Tracks can be kept in a SQLite database together with their resampled
playback datasets.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("db", "tracks.db", "SQLite track database")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	if err := viper.BindPFlag("store.db", rootCmd.PersistentFlags().Lookup("db")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("TRACKMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig initializes logging and returns the validated configuration.
func loadConfig() (config.Config, error) {
	if logger == nil {
		initLogging()
	}
	return config.Load(viper.GetViper())
}

// bindFlags binds command flags to dotted viper keys.
func bindFlags(cmd *cobra.Command, bindings map[string]string) {
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}
