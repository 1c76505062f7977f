package token

import "time"

// Clock supplies the current time for all expiration comparisons, so
// tests can pin it and callers can compensate for local skew.
type Clock interface {
	Now() int64 // epoch seconds
}

// SystemClock reads wall time, shifted by a fixed skew offset.
type SystemClock struct {
	// SkewSeconds is added to the local time to tolerate divergence
	// between this machine and the provider. Usually 0.
	SkewSeconds int64
}

func (c SystemClock) Now() int64 { return time.Now().Unix() + c.SkewSeconds }
