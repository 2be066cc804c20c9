package collision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval is returned when an interval does not satisfy start < end.
var ErrInvalidInterval = errors.New("interval start must be before end")

// Interval is a half-open range of absolute instants [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate reports ErrInvalidInterval when Start is not strictly before End.
func (i Interval) Validate() error {
	if !i.Start.Before(i.End) {
		return fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval,
			i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
	}
	return nil
}

// Overlaps uses half-open intersection: intervals that only touch at an
// endpoint do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// In returns the interval with both instants expressed in loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// Block is a period during which the professional cannot be booked.
type Block struct {
	Start  time.Time `json:"start_at"`
	End    time.Time `json:"end_at"`
	Reason string    `json:"reason,omitempty"`
}

// Interval returns the block span.
func (b Block) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// TimeOfDay is a wall-clock time expressed as seconds after midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time format %q: expected HH:MM or HH:MM:SS", s)
	}

	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for idx, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid time format %q: expected two digits per field", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid time format %q: %w", s, err)
		}
		if n < 0 || n > limits[idx] {
			return 0, fmt.Errorf("time field out of range in %q", s)
		}
		values[idx] = n
	}

	return TimeOfDay(values[0]*3600 + values[1]*60 + values[2]), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ClockOf returns the time of day of t in t's own location.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return (int(t) % 3600) / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// On anchors the time of day on the calendar date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, day.Location())
}

// String renders HH:MM, or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AvailabilityRule declares a recurring weekly working window.
type AvailabilityRule struct {
	Weekday   time.Weekday `json:"weekday"`
	StartTime TimeOfDay    `json:"start_time"`
	EndTime   TimeOfDay    `json:"end_time"`
}

// Validate checks the weekday range and that the window is not empty.
func (r AvailabilityRule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("weekday must be between 0 and 6, got %d", r.Weekday)
	}
	if r.StartTime < 0 || r.EndTime > secondsPerDay {
		return fmt.Errorf("time of day out of range")
	}
	if r.StartTime >= r.EndTime {
		return fmt.Errorf("start_time %s must be before end_time %s", r.StartTime, r.EndTime)
	}
	return nil
}

// Window returns the rule anchored on the calendar date of day.
func (r AvailabilityRule) Window(day time.Time) Interval {
	return Interval{Start: r.StartTime.On(day), End: r.EndTime.On(day)}
}
