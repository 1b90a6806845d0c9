package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "flexiview",
		Short: "FlexiView - Transformed media presentation on a secondary monitor",
		Long: `FlexiView shows images, videos, webcams and infrared cameras full-screen on
a chosen monitor, with live scale, rotation, offset and mirroring.

Features:
  • Borderless presentation window per monitor
  • Image, video, webcam and infrared camera sources
  • Live geometric transform and alignment guide
  • YAML/JSON presets
  • REST API, websocket status and MJPEG preview
  • Optional MQTT status publishing`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/flexiview/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8000)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
