package timeline

import "time"

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() time.Time
}

// NewTimeTeller returns a TimeTeller backed by the host's monotonic clock.
func NewTimeTeller() TimeTeller {
	return wallClockTimeTeller{}
}

type wallClockTimeTeller struct{}

func (t wallClockTimeTeller) CurrentTime() time.Time {
	return time.Now()
}
