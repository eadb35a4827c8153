package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobsConfigDefaults(t *testing.T) {
	var cfg JobsConfig
	assert.Equal(t, time.Minute, cfg.TickInterval())
	assert.Equal(t, 9, cfg.DigestHour())
	assert.Equal(t, time.Saturday, cfg.WeekStartDay())
}

func TestJobsConfigOverrides(t *testing.T) {
	cfg := JobsConfig{TickSeconds: 15, DigestHourUTC: 6, WeekStart: "Monday"}
	assert.Equal(t, 15*time.Second, cfg.TickInterval())
	assert.Equal(t, 6, cfg.DigestHour())
	assert.Equal(t, time.Monday, cfg.WeekStartDay())

	cfg = JobsConfig{DigestHourUTC: 31, WeekStart: "someday"}
	assert.Equal(t, 9, cfg.DigestHour(), "out-of-range hour falls back to default")
	assert.Equal(t, time.Saturday, cfg.WeekStartDay(), "unknown weekday falls back to default")
}

func TestNextDigestAt(t *testing.T) {
	// before the hour: same day
	now := time.Date(2025, time.November, 3, 5, 30, 0, 0, time.UTC)
	next := nextDigestAt(now, 9)
	assert.Equal(t, time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC), next)

	// at or after the hour: next day
	now = time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)
	next = nextDigestAt(now, 9)
	assert.Equal(t, time.Date(2025, time.November, 4, 9, 0, 0, 0, time.UTC), next)

	// month rollover
	now = time.Date(2025, time.November, 30, 23, 59, 0, 0, time.UTC)
	next = nextDigestAt(now, 9)
	assert.Equal(t, time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC), next)
}
