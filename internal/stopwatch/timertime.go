package stopwatch

import (
	"encoding/json"
	"fmt"
	"time"
)

// Unit sizes used by the carry cascade.
const (
	millisPerSecond = 1000
	secondsPerMin   = 60
	minutesPerHour  = 60
)

// TimerTime is an elapsed duration split into hours, minutes, seconds and
// milliseconds. Every constructor and mutation keeps it normalized: minutes and
// seconds stay in [0,59], milliseconds in [0,999], and any excess is carried into
// the next larger unit. Hours never carry.
//
// The zero value is the zero duration.
type TimerTime struct {
	hours        int64
	minutes      int64
	seconds      int64
	milliseconds int64
}

// Zero returns the all-zero TimerTime.
func Zero() TimerTime {
	return TimerTime{}
}

// NewTimerTime builds a normalized TimerTime. Components above their range are
// carried, so NewTimerTime(0, 0, 0, 3661001) equals NewTimerTime(1, 1, 1, 1).
// Negative components are treated as zero.
func NewTimerTime(hours, minutes, seconds, milliseconds int64) TimerTime {
	t := TimerTime{
		hours:        max(hours, 0),
		minutes:      max(minutes, 0),
		seconds:      max(seconds, 0),
		milliseconds: max(milliseconds, 0),
	}
	t.normalize()
	return t
}

// FromMilliseconds converts a total millisecond count into a TimerTime.
func FromMilliseconds(total int64) TimerTime {
	return NewTimerTime(0, 0, 0, total)
}

// Hours returns the hour component. It has no upper bound.
func (t TimerTime) Hours() int64 { return t.hours }

// Minutes returns the minute component in [0,59].
func (t TimerTime) Minutes() int64 { return t.minutes }

// Seconds returns the second component in [0,59].
func (t TimerTime) Seconds() int64 { return t.seconds }

// Milliseconds returns the millisecond component in [0,999].
func (t TimerTime) Milliseconds() int64 { return t.milliseconds }

// IncrementMilliseconds adds delta milliseconds and carries the overflow through
// every unit in one pass. A zero or negative delta leaves t unchanged.
// delta is split into whole seconds and a remainder before it is added, so even
// math.MaxInt64 cannot push a component past the int64 range.
func (t *TimerTime) IncrementMilliseconds(delta int64) {
	if delta <= 0 {
		return
	}
	t.seconds += delta / millisPerSecond
	t.milliseconds += delta % millisPerSecond
	t.normalize()
}

// Reset sets t back to zero.
func (t *TimerTime) Reset() {
	*t = Zero()
}

// Equal reports whether both values have the same normalized components.
func (t TimerTime) Equal(other TimerTime) bool {
	return t == other
}

// IsZero reports whether t is the zero duration.
func (t TimerTime) IsZero() bool {
	return t == TimerTime{}
}

// TotalMilliseconds returns the whole duration in milliseconds.
func (t TimerTime) TotalMilliseconds() int64 {
	return ((t.hours*minutesPerHour+t.minutes)*secondsPerMin+t.seconds)*millisPerSecond + t.milliseconds
}

// Duration converts t to a time.Duration.
func (t TimerTime) Duration() time.Duration {
	return time.Duration(t.TotalMilliseconds()) * time.Millisecond
}

// String renders the same digits as Format, separated by colons.
func (t TimerTime) String() string {
	return t.Format().String()
}

// MarshalJSON exposes the normalized components and the total.
func (t TimerTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Hours        int64 `json:"hours"`
		Minutes      int64 `json:"minutes"`
		Seconds      int64 `json:"seconds"`
		Milliseconds int64 `json:"milliseconds"`
		TotalMillis  int64 `json:"total_ms"`
	}{t.hours, t.minutes, t.seconds, t.milliseconds, t.TotalMilliseconds()})
}

func (t *TimerTime) normalize() {
	t.seconds += t.milliseconds / millisPerSecond
	t.milliseconds %= millisPerSecond

	t.minutes += t.seconds / secondsPerMin
	t.seconds %= secondsPerMin

	t.hours += t.minutes / minutesPerHour
	t.minutes %= minutesPerHour
}

// Formatted is the display form of a TimerTime, one string per readout field.
type Formatted struct {
	Hours        string `json:"hours"`
	Minutes      string `json:"minutes"`
	Seconds      string `json:"seconds"`
	Milliseconds string `json:"milliseconds"`
}

// String joins the fields as HH:MM:SS:ms.
func (f Formatted) String() string {
	return f.Hours + ":" + f.Minutes + ":" + f.Seconds + ":" + f.Milliseconds
}

// Format renders hours, minutes and seconds zero-padded to at least two digits.
// Milliseconds are zero-padded to two digits and then cut to the first two
// characters, so 8 shows as "08", 83 as "83" and 830 as "83". The last digit
// is truncated, never rounded.
func (t TimerTime) Format() Formatted {
	ms := fmt.Sprintf("%02d", t.milliseconds)
	return Formatted{
		Hours:        fmt.Sprintf("%02d", t.hours),
		Minutes:      fmt.Sprintf("%02d", t.minutes),
		Seconds:      fmt.Sprintf("%02d", t.seconds),
		Milliseconds: ms[:2],
	}
}
