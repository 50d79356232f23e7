// Package collector exports the latest occupancy update as Prometheus metrics.
package collector

import (
	"context"
	"github.com/clambin/calendar-hvac/internal/poller"
	"github.com/prometheus/client_golang/prometheus"
	"log/slog"
	"sync"
)

var (
	zoneOccupied = prometheus.NewDesc(
		prometheus.BuildFQName("calendar_hvac", "zone", "occupied"),
		"1 if the zone is occupied",
		[]string{"zone"},
		nil,
	)
	zoneEvents = prometheus.NewDesc(
		prometheus.BuildFQName("calendar_hvac", "zone", "events"),
		"Number of qualifying events in the zone's calendars within the occupancy window",
		[]string{"zone"},
		nil,
	)
	zoneError = prometheus.NewDesc(
		prometheus.BuildFQName("calendar_hvac", "zone", "error"),
		"1 if the zone's occupancy could not be determined",
		[]string{"zone"},
		nil,
	)
	thermostatDecision = prometheus.NewDesc(
		prometheus.BuildFQName("calendar_hvac", "thermostat", "decision"),
		"Occupancy decision for the thermostat. Always 1. Label decision specifies the decision",
		[]string{"thermostat", "decision"},
		nil,
	)
	lastUpdate = prometheus.NewDesc(
		prometheus.BuildFQName("calendar_hvac", "", "last_update_timestamp_seconds"),
		"Timestamp of the last occupancy update",
		nil,
		nil,
	)
)

var _ prometheus.Collector = &Collector{}

type Collector struct {
	Poller     poller.Poller
	Logger     *slog.Logger
	lock       sync.RWMutex
	lastUpdate *poller.Update
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Poller.Subscribe()
	defer c.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			c.process(update)
		}
	}
}

func (c *Collector) process(update poller.Update) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lastUpdate = &update
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- zoneOccupied
	ch <- zoneEvents
	ch <- zoneError
	ch <- thermostatDecision
	ch <- lastUpdate
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.lastUpdate == nil {
		return
	}
	for _, zone := range c.lastUpdate.Zones {
		ch <- prometheus.MustNewConstMetric(zoneOccupied, prometheus.GaugeValue, boolValue(zone.Occupied), zone.Name)
		ch <- prometheus.MustNewConstMetric(zoneEvents, prometheus.GaugeValue, float64(zone.Events), zone.Name)
		ch <- prometheus.MustNewConstMetric(zoneError, prometheus.GaugeValue, boolValue(zone.Err != nil), zone.Name)
	}
	for _, t := range c.lastUpdate.Thermostats {
		ch <- prometheus.MustNewConstMetric(thermostatDecision, prometheus.GaugeValue, 1, t.Name, t.Decision.String())
	}
	ch <- prometheus.MustNewConstMetric(lastUpdate, prometheus.GaugeValue, float64(c.lastUpdate.Time.Unix()))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
