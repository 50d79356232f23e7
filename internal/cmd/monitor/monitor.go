package monitor

import (
	"context"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var Cmd = cobra.Command{
	Use:   "monitor",
	Short: "Set thermostats to occupied while their zones are booked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, viper.GetViper(), cmd.Root().Version, prometheus.DefaultRegisterer, slog.Default())
	},
}

func run(ctx context.Context, cfg *viper.Viper, version string, promRegistry prometheus.Registerer, logger *slog.Logger) error {
	logger.Info("calendar-hvac monitor starting", "version", version)
	defer logger.Info("calendar-hvac monitor stopped")

	r, err := app.LoadRegistry(cfg, logger)
	if err != nil {
		return err
	}

	metrics := app.NewHTTPMetrics()
	promRegistry.MustRegister(metrics)

	source, err := app.Source(ctx, cfg, r, "", metrics.Client("google"), logger)
	if err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	thermostats, err := app.Thermostats(cfg, metrics.Client("ecobee"), logger)
	if err != nil {
		return fmt.Errorf("thermostats: %w", err)
	}

	return app.Monitor(cfg, r, source, thermostats, app.Notifiers(cfg, logger), promRegistry, logger).Run(ctx)
}
