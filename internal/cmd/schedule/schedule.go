package schedule

import (
	"context"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/app"
	"github.com/clambin/calendar-hvac/internal/ecobee"
	"github.com/clambin/calendar-hvac/internal/scheduler"
	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	Cmd = cobra.Command{
		Use:   "schedule",
		Short: "Push next week's schedule to all thermostats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, viper.GetViper(), cmd.OutOrStdout(), slog.Default())
		},
	}

	args = charmer.Arguments{
		"dry-run": {Default: false, Help: "log the schedules instead of pushing them to the thermostats"},
		"events":  {Default: "", Help: "read events from this file instead of the calendars (JSON, keyed by calendar id)"},
		"now":     {Default: "", Help: "schedule the week starting at this time (RFC3339) instead of today"},
	}
)

func init() {
	_ = charmer.SetPersistentFlags(&Cmd, viper.GetViper(), args)
}

func run(ctx context.Context, cfg *viper.Viper, w io.Writer, logger *slog.Logger) error {
	reference := time.Now()
	if now := cfg.GetString("now"); now != "" {
		var err error
		if reference, err = time.Parse(time.RFC3339, now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	r, err := app.LoadRegistry(cfg, logger)
	if err != nil {
		return err
	}

	source, err := app.Source(ctx, cfg, r, cfg.GetString("events"), nil, logger)
	if err != nil {
		return fmt.Errorf("calendar: %w", err)
	}

	var pusher scheduler.Pusher = ecobee.DryRun{Logger: logger.With("component", "dryrun")}
	if !cfg.GetBool("dry-run") {
		if pusher, err = app.Thermostats(cfg, nil, logger); err != nil {
			return fmt.Errorf("thermostats: %w", err)
		}
	}

	s := scheduler.New(r, source, pusher, app.Notifiers(cfg, logger), cfg.GetInt("workers"), logger.With("component", "scheduler"))
	report, err := s.Run(ctx, reference)
	if err != nil {
		return err
	}
	if err = report.Write(w); err != nil {
		return err
	}
	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d thermostats not updated", failed, len(report.Outcomes))
	}
	return nil
}
