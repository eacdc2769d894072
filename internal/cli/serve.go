package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/alerting"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/anomaly"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/api"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/compose"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/config"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/controller"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/display"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/mobitec"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/mqtt"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/sensors"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/storage"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sign controller and its control surface",
		Long: `Run the sign controller: the render scheduler, the HTTP control surface
on server.listen, the preview WebSocket and, if enabled, the MQTT client.

Every flag overrides the config key of the same name.

Example:
  mobitec-notify serve --config-dir /etc/mobitec-notify
  mobitec-notify serve --display.driver=terminal --log.level=debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigDir, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().String("server.listen", ":2343", "address of the HTTP control surface")
	cmd.Flags().String("display.driver", "mobitec", "sign driver (mobitec|terminal|log)")
	cmd.Flags().String("display.mobitec.port", "/dev/ttyUSB0", "serial port of the sign")
	cmd.Flags().String("log.level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().String("log.format", "text", "log format (text|json)")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger, err := newLogger(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	clk := clock.Real()

	hub := websocket.NewHub(clk, logger.With("component", "preview"))
	g.Go(func() error { return hub.Run(ctx) })

	primary, closer, err := openDriver(ctx, g, cfg, clk, stdout, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	ha, err := sensors.NewHomeAssistant(cfg.HomeAssistant, &http.Client{}, clk, logger.With("component", "homeassistant"))
	if err != nil {
		return err
	}

	layout := compose.DefaultLayout()
	if cfg.Display.Mobitec.Width > 0 {
		layout.Width = cfg.Display.Mobitec.Width
	}
	if cfg.Display.Mobitec.Height > 0 {
		layout.Height = cfg.Display.Mobitec.Height
	}
	if cfg.Notifications.CycleTime > 0 {
		layout.CycleTime = cfg.Notifications.CycleTime
	}
	if cfg.Notifications.ScrollSpeed > 0 {
		layout.ScrollSpeed = cfg.Notifications.ScrollSpeed
	}
	layout.Location = loc

	ctrl := controller.New(controller.Options{
		Clock:       clk,
		Store:       storage.NewNotificationStore(cfg.Notifications.TTL),
		Sensors:     ha,
		Driver:      display.NewMulti(logger, primary, hub),
		Layout:      layout,
		SendTimeout: cfg.Display.SendTimeout,
		Logger:      logger.With("component", "controller"),
	})

	detector := anomaly.NewDetector(cfg.Anomaly.Rules, logger.With("component", "anomaly"))
	alerter := alerting.NewAlerter(detector, ctrl, clk, cfg.Anomaly.Cooldown, logger.With("component", "alerting"))
	scheduler := controller.NewScheduler(ctrl, clk, cfg.Scheduler.Tick, alerter, logger.With("component", "scheduler"))
	g.Go(func() error { return scheduler.Run(ctx) })

	if cfg.MQTT.Enabled {
		control := mqtt.NewControl(cfg.MQTT, ctrl, logger.With("component", "mqtt"))
		ctrl.OnPowerChange(control.PowerChanged)
		g.Go(func() error { return control.Run(ctx) })
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.NewRouter(api.NewAPIHandler(ctrl, hub, logger.With("component", "api"))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("starting control surface", "listen", cfg.Server.Listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openDriver builds the configured sign driver. The Mobitec player is
// started on g; the returned closer releases the serial port.
func openDriver(ctx context.Context, g *errgroup.Group, cfg *config.Config, clk clock.Clock, stdout io.Writer, logger *slog.Logger) (display.Driver, io.Closer, error) {
	switch cfg.Display.Driver {
	case "mobitec":
		sign, port, err := mobitec.Open(cfg.Display.Mobitec, clk, logger.With("component", "mobitec"))
		if err != nil {
			return nil, nil, err
		}
		g.Go(func() error { return sign.Run(ctx) })
		return sign, port, nil
	case "terminal":
		charWidth := cfg.Display.Mobitec.CharWidth
		if charWidth <= 0 {
			charWidth = 6
		}
		return display.NewTerminal(stdout, cfg.Display.Mobitec.Width/charWidth), nil, nil
	case "log":
		return display.LogDriver{Logger: logger.With("component", "display")}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown display driver %q", cfg.Display.Driver)
	}
}
