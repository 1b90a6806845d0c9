package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/FlexiView/internal/api"
	"github.com/bryanchriswhite/FlexiView/internal/app"
	"github.com/bryanchriswhite/FlexiView/internal/config"
	"github.com/bryanchriswhite/FlexiView/internal/display"
	"github.com/bryanchriswhite/FlexiView/internal/emitter"
	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/infrared/v4l2"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/player"
	"github.com/bryanchriswhite/FlexiView/internal/preset"
	"github.com/bryanchriswhite/FlexiView/internal/source"
	"github.com/bryanchriswhite/FlexiView/internal/source/opencv"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the FlexiView server",
	Long: `Start the presentation loop, the operator preview and the HTTP API.

The presentation window opens on the configured monitor. Media is loaded and
transformed through the REST API or the web viewer.`,
	Example: `  # Start server on default port (8000)
  flexiview serve

  # Start server on custom port
  flexiview serve --port 9090

  # Run without opening a window
  flexiview serve --headless

  # Start with debug logging
  flexiview serve --log-level debug`,
	RunE: runServe,
}

var serveHeadless bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "render without a presentation window")
}

// loadConfig opens the config file and applies the global flag overrides.
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Override port from flag if provided
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			if err := configMgr.SetPort(port); err != nil {
				return nil, err
			}
		}
	}

	// Override log level from flag if provided
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			if err := configMgr.SetLogLevel(level); err != nil {
				return nil, err
			}
		}
	}
	return configMgr, nil
}

// monitorRegistry prefers the configured monitor list over enumeration.
func monitorRegistry(cfg config.DisplayConfig) monitor.Registry {
	if len(cfg.Monitors) == 0 {
		return monitor.Default(os.Getenv("DISPLAY"))
	}
	static := make(monitor.Static, 0, len(cfg.Monitors))
	for i, m := range cfg.Monitors {
		static = append(static, monitor.Descriptor{
			Index:   i,
			Name:    m.Name,
			X:       m.X,
			Y:       m.Y,
			Width:   m.Width,
			Height:  m.Height,
			Primary: i == 0,
		})
	}
	return static
}

func openers() player.Openers {
	o := player.DefaultOpeners()
	o.Video = func(path string) (source.Source, error) {
		v, err := opencv.OpenVideoFile(path)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	o.Camera = func(id int) (source.Source, error) {
		c, err := opencv.OpenCamera(id)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return o
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("serve")

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("FlexiView starting")

	surfaces := display.X11Surfaces(os.Getenv("DISPLAY"))
	if serveHeadless || cfg.Display.Headless {
		surfaces = display.HeadlessSurfaces
	}

	var irProvider infrared.Provider
	if cfg.Infrared.Enabled {
		irProvider = v4l2.NewProvider(opencv.OpenDevice)
	}

	mjpegOut := output.NewMJPEGOutput(output.Config{
		Width:   cfg.Preview.Width,
		Height:  cfg.Preview.Height,
		FPS:     cfg.Preview.FPS,
		Quality: cfg.Preview.Quality,
	})
	defer mjpegOut.Stop()

	a := app.New(app.Options{
		Registry:         monitorRegistry(cfg.Display),
		Surfaces:         surfaces,
		DisplayFPS:       cfg.Display.FPS,
		DisplayEnabled:   cfg.Display.Enabled,
		Openers:          openers(),
		Infrared:         irProvider,
		ProbeCameras:     opencv.ProbeCameras,
		PreviewOutput:    mjpegOut,
		PreviewWidth:     cfg.Preview.Width,
		PreviewHeight:    cfg.Preview.Height,
		PreviewFPS:       cfg.Preview.FPS,
		PreviewProcessed: cfg.Preview.Processed,
		ShowStatus:       cfg.Preview.ShowStatus,
	})
	a.SelectMonitor(cfg.Display.MonitorIndex)

	presets, err := preset.NewStore(cfg.Media.PresetsDir)
	if err != nil {
		return fmt.Errorf("failed to open preset directory: %w", err)
	}
	if cfg.Media.DefaultPreset != "" {
		p, _, err := presets.Load(cfg.Media.DefaultPreset)
		if err == nil {
			err = a.ApplyPreset(p)
		}
		if err != nil {
			log.Warn().Err(err).Str("preset", cfg.Media.DefaultPreset).Msg("Default preset not applied")
		}
	}
	if err := os.MkdirAll(cfg.Media.UploadsDir, 0755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	if cfg.MQTT.Enabled {
		em := emitter.NewStatusEmitter(cfg.MQTT, func() any { return a.Status() })
		if err := em.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("MQTT status publishing disabled")
		} else {
			defer em.Disconnect()
			go em.Run(ctx)
		}
	}

	server := api.NewServer(api.Options{
		App:      a,
		Presets:  presets,
		MediaDir: cfg.Media.UploadsDir,
		Preview:  mjpegOut,
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ServerPort)
	}()

	log.Info().
		Str("web_ui", fmt.Sprintf("http://localhost:%d", cfg.ServerPort)).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("FlexiView is running, press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
