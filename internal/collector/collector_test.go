package collector

import (
	"context"
	"github.com/clambin/calendar-hvac/internal/poller"
	"github.com/clambin/calendar-hvac/internal/poller/testutils"
	"github.com/clambin/calendar-hvac/pkg/pubsub"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakePoller struct {
	*pubsub.Publisher[poller.Update]
}

func (fakePoller) Refresh() {}

func TestCollector(t *testing.T) {
	c := Collector{Logger: slog.New(slog.DiscardHandler)}

	// no update yet: no metrics
	assert.Zero(t, testutil.CollectAndCount(&c))

	c.process(testutils.Update(
		testutils.WithZone("CC Library", true, 2, testutils.WithTrigger("Book club")),
		testutils.WithZone("CC Kitchen", false, 0, testutils.WithZoneError("calendar not accessible")),
		testutils.WithThermostat(0, "Hall", poller.Occupied),
		testutils.WithThermostat(2, "Kitchen", poller.Undecided),
	))

	require.NoError(t, testutil.CollectAndCompare(&c, strings.NewReader(`
# HELP calendar_hvac_last_update_timestamp_seconds Timestamp of the last occupancy update
# TYPE calendar_hvac_last_update_timestamp_seconds gauge
calendar_hvac_last_update_timestamp_seconds 1.7416152e+09

# HELP calendar_hvac_thermostat_decision Occupancy decision for the thermostat. Always 1. Label decision specifies the decision
# TYPE calendar_hvac_thermostat_decision gauge
calendar_hvac_thermostat_decision{decision="occupied",thermostat="Hall"} 1
calendar_hvac_thermostat_decision{decision="undecided",thermostat="Kitchen"} 1

# HELP calendar_hvac_zone_error 1 if the zone's occupancy could not be determined
# TYPE calendar_hvac_zone_error gauge
calendar_hvac_zone_error{zone="CC Kitchen"} 1
calendar_hvac_zone_error{zone="CC Library"} 0

# HELP calendar_hvac_zone_events Number of qualifying events in the zone's calendars within the occupancy window
# TYPE calendar_hvac_zone_events gauge
calendar_hvac_zone_events{zone="CC Kitchen"} 0
calendar_hvac_zone_events{zone="CC Library"} 2

# HELP calendar_hvac_zone_occupied 1 if the zone is occupied
# TYPE calendar_hvac_zone_occupied gauge
calendar_hvac_zone_occupied{zone="CC Kitchen"} 0
calendar_hvac_zone_occupied{zone="CC Library"} 1
`)))
}

func TestCollector_Run(t *testing.T) {
	p := fakePoller{Publisher: pubsub.New[poller.Update](slog.New(slog.DiscardHandler))}
	c := Collector{Poller: p, Logger: slog.New(slog.DiscardHandler)}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error)
	go func() { errCh <- c.Run(ctx) }()

	assert.Eventually(t, func() bool {
		p.Publish(testutils.Update(testutils.WithZone("CC Library", true, 1)))
		return testutil.CollectAndCount(&c, "calendar_hvac_zone_occupied") == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}
