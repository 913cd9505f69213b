package query

import (
	"fmt"
	"time"

	"github.com/star/tlepos/internal/transform"
)

// Instant is a UTC calendar instant as entered by a caller. It is validated
// only when resolved.
type Instant struct {
	Year, Month, Day int
	Hour, Minute     int
	Second           float64
}

// InstantFromTime converts t to UTC calendar fields.
func InstantFromTime(t time.Time) Instant {
	t = t.UTC()
	return Instant{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: float64(t.Second()) + float64(t.Nanosecond())/1e9,
	}
}

// Epoch validates the fields and returns the UTC epoch.
func (in Instant) Epoch() (transform.Epoch, error) {
	return transform.FromCalendar(in.Year, in.Month, in.Day, in.Hour, in.Minute, in.Second)
}

func (in Instant) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%06.3fZ", in.Year, in.Month, in.Day, in.Hour, in.Minute, in.Second)
}
