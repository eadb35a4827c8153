package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
)

// JobsConfig controls the background job schedule.
type JobsConfig struct {
	TickSeconds   int    `yaml:"tick_seconds" envconfig:"JOBS_TICK_SECONDS"`
	DigestHourUTC int    `yaml:"digest_hour_utc" envconfig:"JOBS_DIGEST_HOUR_UTC"`
	WeekStart     string `yaml:"week_start" envconfig:"JOBS_WEEK_START"`
}

// TickInterval returns the price tick interval, defaulting to one minute.
func (c JobsConfig) TickInterval() time.Duration {
	if c.TickSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.TickSeconds) * time.Second
}

// DigestHour returns the UTC hour of the daily digest run; 0 -> default (9).
func (c JobsConfig) DigestHour() int {
	if c.DigestHourUTC <= 0 || c.DigestHourUTC > 23 {
		return 9
	}
	return c.DigestHourUTC
}

// WeekStartDay parses the configured week start, defaulting to Saturday.
func (c JobsConfig) WeekStartDay() time.Weekday {
	switch strings.ToLower(strings.TrimSpace(c.WeekStart)) {
	case "sunday":
		return time.Sunday
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	default:
		return time.Saturday
	}
}

type job struct {
	name   string
	cancel context.CancelFunc
}

// Jobs owns the two periodic loops. Each loop has its own cancellation
// handle so one can be stopped without disturbing the other.
type Jobs struct {
	collector *Collector
	digest    *Digest
	cfg       JobsConfig

	mu      sync.Mutex
	running []job
	wg      sync.WaitGroup
}

// NewJobs wires the job runner over an already-built collector and digest.
func NewJobs(c *Collector, d *Digest, cfg JobsConfig) *Jobs {
	return &Jobs{collector: c, digest: d, cfg: cfg}
}

// Start launches both loops. The parent context bounds every run; Stop
// cancels the per-job contexts and waits for the loops to drain.
func (j *Jobs) Start(ctx context.Context) {
	j.spawn(ctx, "price_tick", j.runTicks)
	j.spawn(ctx, "digest", j.runDigests)
}

func (j *Jobs) spawn(parent context.Context, name string, loop func(context.Context)) {
	ctx, cancel := context.WithCancel(parent)

	j.mu.Lock()
	j.running = append(j.running, job{name: name, cancel: cancel})
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		logger.COLLECT.Info("job started",
			slog.String("event", "jobs.start"),
			slog.String("job", name),
		)
		loop(ctx)
		logger.COLLECT.Info("job stopped",
			slog.String("event", "jobs.stop"),
			slog.String("job", name),
		)
	}()
}

// Stop cancels all loops and blocks until they exit.
func (j *Jobs) Stop() {
	j.mu.Lock()
	for _, jb := range j.running {
		jb.cancel()
	}
	j.running = nil
	j.mu.Unlock()
	j.wg.Wait()
}

// runTicks drives the ingestion/match cycle at a fixed interval. The first
// tick runs immediately so prices are available right after startup.
func (j *Jobs) runTicks(ctx context.Context) {
	_ = j.collector.Tick(ctx)

	t := time.NewTicker(j.cfg.TickInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = j.collector.Tick(ctx)
		}
	}
}

// runDigests fires the digest once per day at the configured UTC hour.
func (j *Jobs) runDigests(ctx context.Context) {
	for {
		now := time.Now().UTC()
		next := nextDigestAt(now, j.cfg.DigestHour())

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case fireAt := <-timer.C:
			j.digest.Run(ctx, fireAt.UTC())
		}
	}
}

// nextDigestAt returns the next occurrence of the given UTC hour strictly
// after now.
func nextDigestAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
