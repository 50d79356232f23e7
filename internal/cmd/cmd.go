package cmd

import (
	"github.com/clambin/calendar-hvac/internal/cmd/config"
	"github.com/clambin/calendar-hvac/internal/cmd/monitor"
	"github.com/clambin/calendar-hvac/internal/cmd/schedule"
	"github.com/clambin/calendar-hvac/internal/controller"
	"github.com/clambin/calendar-hvac/internal/ecobee"
	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"time"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "calendar-hvac",
		Short: "Drives thermostats from room booking calendars",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))
	RootCmd.PersistentFlags().Bool("debug-set", false, "Use the debug set of thermostats and calendars")
	_ = viper.BindPFlag("debug-set", RootCmd.PersistentFlags().Lookup("debug-set"))

	RootCmd.AddCommand(&schedule.Cmd, &monitor.Cmd, &config.Cmd)
}

var args = charmer.Arguments{
	"debug":              charmer.Argument{Default: false, Help: "Log debug messages"},
	"debug-set":          charmer.Argument{Default: false, Help: "Use the debug set of thermostats and calendars"},
	"registry":           charmer.Argument{Default: "", Help: "Zone registry (default: zones.yaml next to the configuration file)"},
	"workers":            charmer.Argument{Default: 4, Help: "Maximum number of parallel calendar and thermostat requests"},
	"google.credentials": charmer.Argument{Default: "credentials.json", Help: "Google OAuth client credentials"},
	"google.token":       charmer.Argument{Default: "token.json", Help: "Google OAuth user token"},
	"ecobee.credentials": charmer.Argument{Default: "ecobee.json", Help: "Thermostat API credentials"},
	"ecobee.url":         charmer.Argument{Default: ecobee.DefaultURL, Help: "Thermostat API URL"},
	"poller.interval":    charmer.Argument{Default: time.Minute, Help: "Occupancy polling interval"},
	"poller.timeout":     charmer.Argument{Default: 30 * time.Second, Help: "Maximum duration of a polling cycle"},
	"controller.resync":  charmer.Argument{Default: controller.DefaultResync, Help: "Push unchanged occupancy after this interval"},
	"exporter.addr":      charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":        charmer.Argument{Default: ":8080", Help: "Address of /health endpoint"},
	"slack.token":        charmer.Argument{Default: "", Help: "Slack token"},
	"slack.channel":      charmer.Argument{Default: "", Help: "Slack channel (default: all channels the bot is a member of)"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/calendar-hvac/")
		viper.AddConfigPath("$HOME/.calendar-hvac")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("CALENDAR_HVAC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}
