package envelope

import "time"

// Millis is a point in time carried as Unix milliseconds in JSON.
// The zero value means "unset" and is omitted from encoded envelopes.
type Millis int64

// Now returns the current time as Millis.
func Now() Millis {
	return Millis(time.Now().UnixMilli())
}

// At converts a time.Time to Millis.
func At(t time.Time) Millis {
	if t.IsZero() {
		return 0
	}
	return Millis(t.UnixMilli())
}

// Time returns the underlying time.Time value.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// IsZero reports whether m is unset.
func (m Millis) IsZero() bool {
	return m == 0
}

// Before reports whether m is before t.
func (m Millis) Before(t Millis) bool {
	return m < t
}

// After reports whether m is after t.
func (m Millis) After(t Millis) bool {
	return m > t
}

// Equal reports whether m and t represent the same instant.
func (m Millis) Equal(t Millis) bool {
	return m == t
}

// Sub returns the duration m-t.
func (m Millis) Sub(t Millis) time.Duration {
	return time.Duration(int64(m)-int64(t)) * time.Millisecond
}

// Add returns the time m+d.
func (m Millis) Add(d time.Duration) Millis {
	return m + Millis(d.Milliseconds())
}

// String returns the time formatted as a string.
func (m Millis) String() string {
	return m.Time().String()
}
