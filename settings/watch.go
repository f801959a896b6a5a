package settings

import (
	"context"
	"time"
)

// WatchOptions tunes the settings watch loop.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a detected change before
	// onChange fires; further changes reset the timer. Default: 200ms.
	Debounce time.Duration
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Debounce <= 0 {
		o.Debounce = 200 * time.Millisecond
	}
}

// Watch blocks until ctx is cancelled, polling PRAGMA data_version so
// writes from any connection or process are noticed, and invokes
// onChange with the fresh settings once a change settles.
func (s *Store) Watch(ctx context.Context, opts WatchOptions, onChange func(Settings)) {
	opts.defaults()

	last, err := s.dataVersion(ctx)
	if err != nil {
		s.logger.Warn("settings: initial version check failed", "error", err)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := false

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			cur, err := s.dataVersion(ctx)
			if err != nil {
				s.logger.Warn("settings: version check failed", "error", err)
				continue
			}
			if cur != last {
				last = cur
				pending = true
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.NewTimer(opts.Debounce)
				debounceCh = debounceTimer.C
			}

		case <-debounceCh:
			debounceCh = nil
			if !pending {
				continue
			}
			pending = false
			cfg, err := s.Get(ctx)
			if err != nil {
				s.logger.Warn("settings: reload failed", "error", err)
				continue
			}
			onChange(cfg)
		}
	}
}

func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}
