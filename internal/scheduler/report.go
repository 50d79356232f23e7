package scheduler

import (
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/clambin/calendar-hvac/internal/schedule"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Report holds the outcome of one run, one Outcome per thermostat, ordered by thermostat.
type Report struct {
	Reference time.Time
	Outcomes  []Outcome
}

type Outcome struct {
	Thermostat registry.Thermostat
	Pushed     bool
	Events     int
	Schedule   schedule.DaySchedule
	Err        error
}

func (r Report) Failed() int {
	var failed int
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed++
		}
	}
	return failed
}

// Write prints the occupied intervals of each thermostat's schedule, in the order of the week being scheduled.
func (r Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, o := range r.Outcomes {
		if o.Err != nil {
			if _, err := tw.Write([]byte(o.Thermostat.Name + "\tskipped\t" + o.Err.Error() + "\n")); err != nil {
				return err
			}
			continue
		}
		for offset := range schedule.Days {
			row := schedule.Weekday(r.Reference.AddDate(0, 0, offset).Weekday())
			var home []string
			for _, i := range o.Schedule.Intervals(row) {
				if i.Mode == schedule.Home {
					home = append(home, i.From.Format("15:04")+"-"+i.To.Format("15:04"))
				}
			}
			if len(home) == 0 {
				home = []string{"-"}
			}
			line := o.Thermostat.Name + "\t" + o.Schedule.Dates[row].Format("Mon 2006-01-02") + "\t" + strings.Join(home, ", ") + "\n"
			if _, err := tw.Write([]byte(line)); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}
