package domain

import "time"

// Clock supplies ledger time. All expiry and window checks read it instead of
// calling time.Now directly, so tests can drive the lifecycle without
// sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
