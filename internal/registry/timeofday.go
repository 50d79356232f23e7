package registry

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"time"
)

// TimeOfDay is a wall-clock time, independent of any date.
type TimeOfDay struct {
	Hour    int
	Minutes int
	Seconds int
	Valid   bool
}

func (t *TimeOfDay) UnmarshalYAML(value *yaml.Node) error {
	ts, err := time.Parse("15:04:05", value.Value)
	if err != nil {
		ts, err = time.Parse("15:04", value.Value)
	}
	if err != nil {
		return fmt.Errorf("invalid time of day: %w", err)
	}
	*t = TimeOfDay{
		Hour:    ts.Hour(),
		Minutes: ts.Minute(),
		Seconds: ts.Second(),
		Valid:   true,
	}
	return nil
}

func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

func (t TimeOfDay) String() string {
	return time.Date(0, 1, 1, t.Hour, t.Minutes, t.Seconds, 0, time.UTC).Format("15:04:05")
}

// Offset returns the time elapsed since midnight.
func (t TimeOfDay) Offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minutes)*time.Minute + time.Duration(t.Seconds)*time.Second
}

// On returns the time of day on the calendar date of day, in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minutes, t.Seconds, 0, loc)
}
