// Package collector implements a Prometheus collector for stopwatch metrics.
//
// The collector reads a consistent snapshot on every scrape and exposes:
//   - stopwatch_elapsed_seconds: Accumulated time
//   - stopwatch_state: One series per state, 1 for the current state
//   - stopwatch_ticks_total: Ticks applied since startup
//   - stopwatch_tick_interval_seconds: Configured tick interval
//   - stopwatch_subscribers: Number of change notification subscribers
//   - stopwatch_build_info: Build version information
//
// Example usage:
//
//	sw := stopwatch.New(cfg.Interval(), clock.RealClock{}, log)
//	prometheus.MustRegister(collector.NewStopwatchCollector(sw, log))
package collector
