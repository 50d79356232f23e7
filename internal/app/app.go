// Package app builds the components of calendar-hvac from its configuration.
package app

import (
	"context"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/calendar"
	"github.com/clambin/calendar-hvac/internal/collector"
	"github.com/clambin/calendar-hvac/internal/controller"
	"github.com/clambin/calendar-hvac/internal/controller/notifier"
	"github.com/clambin/calendar-hvac/internal/ecobee"
	"github.com/clambin/calendar-hvac/internal/health"
	"github.com/clambin/calendar-hvac/internal/poller"
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/clambin/go-common/taskmanager"
	"github.com/clambin/go-common/taskmanager/httpserver"
	promserver "github.com/clambin/go-common/taskmanager/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// LoadRegistry loads the zone registry. If no registry file is configured, zones.yaml in the directory of the
// configuration file is used.
func LoadRegistry(cfg *viper.Viper, logger *slog.Logger) (*registry.Registry, error) {
	path := registryPath(cfg)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	defer func() { _ = f.Close() }()
	return registry.Load(f, cfg.GetBool("debug-set"), logger.With("component", "registry"))
}

func registryPath(cfg *viper.Viper) string {
	if path := cfg.GetString("registry"); path != "" {
		return path
	}
	return filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "zones.yaml")
}

// Source returns the calendar source. If eventsFile is set, events are read from that file instead of Google Calendar.
func Source(ctx context.Context, cfg *viper.Viper, r *registry.Registry, eventsFile string, httpClient *http.Client, logger *slog.Logger) (calendar.Source, error) {
	logger = logger.With("component", "calendar")
	if eventsFile != "" {
		f, err := os.Open(eventsFile)
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		defer func() { _ = f.Close() }()
		source, err := calendar.NewFileSource(f, r.Location, logger)
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		return source, nil
	}
	client, err := calendar.GoogleHTTPClient(ctx, cfg.GetString("google.credentials"), cfg.GetString("google.token"), httpClient)
	if err != nil {
		return nil, err
	}
	source, err := calendar.NewGoogleSource(ctx, r.Location, logger, option.WithHTTPClient(client))
	if err != nil {
		return nil, err
	}
	return source, nil
}

// Thermostats returns a client for the thermostat API.
func Thermostats(cfg *viper.Viper, httpClient *http.Client, logger *slog.Logger) (*ecobee.Client, error) {
	logger = logger.With("component", "ecobee")
	url := cfg.GetString("ecobee.url")
	tokens, err := ecobee.LoadTokens(cfg.GetString("ecobee.credentials"), url, httpClient, logger)
	if err != nil {
		return nil, err
	}
	return ecobee.New(url, tokens, httpClient, logger), nil
}

// Notifiers returns the configured notifiers. Notifications are always logged. If a Slack token is configured,
// they are also posted to Slack.
func Notifiers(cfg *viper.Viper, logger *slog.Logger) notifier.Notifiers {
	n := notifier.Notifiers{notifier.SLogNotifier{Logger: logger.With("component", "notifier")}}
	if token := cfg.GetString("slack.token"); token != "" {
		n = append(n, &notifier.SlackNotifier{
			Logger:      logger.With("component", "slack"),
			SlackSender: slack.New(token),
			Channel:     cfg.GetString("slack.channel"),
		})
	}
	return n
}

// Monitor wires the real-time occupancy loop: the poller, the controller that acts on its updates, the Prometheus
// collector and the health endpoint.
func Monitor(cfg *viper.Viper, r *registry.Registry, source calendar.Source, pusher controller.Pusher, n notifier.Notifier, promRegistry prometheus.Registerer, logger *slog.Logger) *taskmanager.Manager {
	return taskmanager.New(monitorTasks(cfg, r, source, pusher, n, promRegistry, logger)...)
}

func monitorTasks(cfg *viper.Viper, r *registry.Registry, source calendar.Source, pusher controller.Pusher, n notifier.Notifier, promRegistry prometheus.Registerer, logger *slog.Logger) []taskmanager.Task {
	var tasks []taskmanager.Task
	workers := cfg.GetInt("workers")

	// Poller
	p := poller.New(r, source, cfg.GetDuration("poller.interval"), cfg.GetDuration("poller.timeout"), workers, logger.With("component", "poller"))
	tasks = append(tasks, p)

	// Controller
	c := controller.New(p, pusher, n, cfg.GetDuration("controller.resync"), workers, logger.With("component", "controller"))
	// wait for the poller's last cycle to complete
	c.ShutdownTimeout = max(cfg.GetDuration("poller.timeout"), cfg.GetDuration("poller.interval")) + c.PushTimeout
	tasks = append(tasks, c)

	// Collector
	coll := &collector.Collector{Poller: p, Logger: logger.With("component", "collector")}
	if promRegistry != nil {
		promRegistry.MustRegister(coll)
	}
	tasks = append(tasks, coll)

	// Prometheus Server
	tasks = append(tasks, promserver.New(promserver.WithAddr(cfg.GetString("exporter.addr"))))

	// Health Endpoint
	h := health.New(p, cfg.GetDuration("poller.interval"), logger.With("component", "health"))
	tasks = append(tasks, h)
	m := http.NewServeMux()
	m.Handle("/health", h)
	tasks = append(tasks, httpserver.New(cfg.GetString("health.addr"), m))

	return tasks
}
