package schedule

import (
	"time"
)

// Interval is a run of consecutive slots with the same mode.
type Interval struct {
	From time.Time
	To   time.Time
	Mode Mode
}

func (i Interval) String() string {
	return i.From.Format("15:04") + "-" + i.To.Format("15:04") + " " + i.Mode.String()
}

// Intervals collapses the slots of a row into intervals.
func (s DaySchedule) Intervals(row int) []Interval {
	day := s.Dates[row]
	var intervals []Interval
	for slot := 0; slot < SlotsPerDay; {
		mode := s.Slots[row][slot]
		count := 1
		for slot+count < SlotsPerDay && s.Slots[row][slot+count] == mode {
			count++
		}
		intervals = append(intervals, Interval{
			From: slotTime(day, slot),
			To:   slotTime(day, slot+count),
			Mode: mode,
		})
		slot += count
	}
	return intervals
}

// SlotLabel returns the start time of a slot, e.g. "12:30 AM".
func SlotLabel(slot int) string {
	return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(slot) * SlotDuration).Format("03:04 PM")
}
