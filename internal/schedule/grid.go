// Package schedule builds a week-ahead thermostat schedule from calendar events.
//
// A schedule covers seven consecutive days, each divided in 48 half-hour slots. Outside the overnight period, a slot
// is "away" unless an event overlaps with it, in which case it is "home". The overnight period is always "sleep".
package schedule

import (
	"fmt"
	"github.com/clambin/calendar-hvac/internal/calendar"
	"github.com/clambin/calendar-hvac/internal/registry"
	"gopkg.in/yaml.v3"
	"log/slog"
	"strings"
	"time"
)

const (
	Days         = 7
	SlotsPerDay  = 48
	SlotDuration = 30 * time.Minute
)

// Mode is the thermostat mode of a slot.
type Mode int

const (
	Sleep Mode = iota
	Away
	Home
)

func (m Mode) String() string {
	switch m {
	case Sleep:
		return "sleep"
	case Away:
		return "away"
	case Home:
		return "home"
	default:
		return "unknown"
	}
}

func (m Mode) MarshalYAML() (any, error) {
	if m < Sleep || m > Home {
		return nil, fmt.Errorf("invalid mode: %d", m)
	}
	return m.String(), nil
}

func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	switch node.Value {
	case "sleep":
		*m = Sleep
	case "away", "unoccupied":
		*m = Away
	case "home", "occupied":
		*m = Home
	default:
		return fmt.Errorf("invalid mode: %s", node.Value)
	}
	return nil
}

// DaySchedule holds the mode of each slot. Rows are ordered Monday through Sunday, regardless of the reference date
// the schedule was built for. Dates holds the midnight of the calendar date of each row.
type DaySchedule struct {
	Slots [Days][SlotsPerDay]Mode
	Dates [Days]time.Time
}

// Build creates the schedule for the seven days starting at the reference date.
//
// The daytime window of each day runs from overnight.End (wake time) to overnight.Start (bedtime). An event marks
// every slot overlapping with its part inside a day's daytime window as Home. Marking is monotonic: a slot
// marked as Home is never reset, so the order of events does not matter.
func Build(events []calendar.Event, reference time.Time, overnight registry.Overnight, loc *time.Location) DaySchedule {
	var s DaySchedule
	y, m, d := reference.In(loc).Date()

	for offset := range Days {
		day := time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
		row := Weekday(day.Weekday())
		s.Dates[row] = day
		s.Slots[row] = baseline(overnight)

		daytimeStart := overnight.End.On(day, loc)
		daytimeEnd := overnight.Start.On(day, loc)

		for _, e := range events {
			effectiveStart := latest(e.Start, daytimeStart)
			effectiveEnd := earliest(e.End, daytimeEnd)
			if !effectiveEnd.After(effectiveStart) {
				continue
			}
			for slot := range SlotsPerDay {
				slotStart, slotEnd := slotTime(day, slot), slotTime(day, slot+1)
				if slotEnd.After(effectiveStart) && slotStart.Before(effectiveEnd) {
					s.Slots[row][slot] = Home
				}
			}
		}
	}
	return s
}

// slotTime returns the wall-clock start of a slot, so that slots keep their labels on days with a DST change.
func slotTime(day time.Time, slot int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, slot*int(SlotDuration/time.Minute), 0, 0, day.Location())
}

// baseline returns a day without events: Away if the slot starts during the daytime window, Sleep otherwise.
func baseline(overnight registry.Overnight) [SlotsPerDay]Mode {
	var day [SlotsPerDay]Mode
	wake, bedtime := overnight.End.Offset(), overnight.Start.Offset()
	for slot := range SlotsPerDay {
		offset := time.Duration(slot) * SlotDuration
		if offset >= wake && offset < bedtime {
			day[slot] = Away
		} else {
			day[slot] = Sleep
		}
	}
	return day
}

// Weekday returns the row of a weekday: Monday is 0, Sunday is 6.
func Weekday(day time.Weekday) int {
	return (int(day) + 6) % 7
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Tokens returns the mode of each slot, as provider tokens, Monday first.
func (s DaySchedule) Tokens() [][]string {
	tokens := make([][]string, Days)
	for row := range Days {
		tokens[row] = make([]string, SlotsPerDay)
		for slot, mode := range s.Slots[row] {
			tokens[row][slot] = mode.String()
		}
	}
	return tokens
}

// Count returns the number of slots set to mode.
func (s DaySchedule) Count(mode Mode) int {
	var count int
	for row := range Days {
		for _, m := range s.Slots[row] {
			if m == mode {
				count++
			}
		}
	}
	return count
}

func (s DaySchedule) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, Days)
	for row := range Days {
		var intervals []string
		for _, i := range s.Intervals(row) {
			if i.Mode == Home {
				intervals = append(intervals, i.String())
			}
		}
		if len(intervals) > 0 {
			attrs = append(attrs, slog.String(time.Weekday((row+1)%7).String(), strings.Join(intervals, ",")))
		}
	}
	return slog.GroupValue(attrs...)
}
