package timebucket

import "time"

// Key identifies one hourly aggregation bucket. Both the rollup write
// path and the history read path derive keys through here so the
// idempotency key stays stable regardless of host timezone.
type Key struct {
	Date string // YYYY-MM-DD, UTC
	Hour int    // 0..23, UTC
}

const dateLayout = "2006-01-02"

// Of returns the bucket key containing t.
func Of(t time.Time) Key {
	u := t.UTC()
	return Key{Date: u.Format(dateLayout), Hour: u.Hour()}
}

// DayStart returns midnight UTC of the key's date.
func (k Key) DayStart() time.Time {
	d, err := time.Parse(dateLayout, k.Date)
	if err != nil {
		return time.Time{}
	}
	return d
}

// HourStart returns the first instant of the key's hour.
func (k Key) HourStart() time.Time {
	return k.DayStart().Add(time.Duration(k.Hour) * time.Hour)
}

// TruncateMinute floors t to the start of its minute in UTC. Counter
// density series are keyed on this.
func TruncateMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}
