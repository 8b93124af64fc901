package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mentormatch/internal/pkg/logx"
)

// scheduleParser accepts 5-field, 6-field (seconds) and descriptor schedules.
var scheduleParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Retention periodically deletes notifications read longer than maxAge ago.
type Retention struct {
	store  Store
	maxAge time.Duration
	cron   *cron.Cron
	now    func() time.Time
	logger zerolog.Logger
}

// NewRetention schedules the purge job. Call Start to run it.
func NewRetention(store Store, schedule string, maxAge time.Duration) (*Retention, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}

	r := &Retention{
		store:  store,
		maxAge: maxAge,
		cron:   cron.New(cron.WithParser(scheduleParser)),
		now:    time.Now,
		logger: logx.Component("notification_retention"),
	}

	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = r.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	return r, nil
}

// Start runs the schedule in the background.
func (r *Retention) Start() {
	r.cron.Start()
	r.logger.Info().Dur("max_age", r.maxAge).Msg("Notification retention scheduled")
}

// Stop stops the schedule and waits for a running purge to finish or ctx to end.
func (r *Retention) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce purges once and returns the number of removed notifications.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)

	removed, err := r.store.PurgeRead(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("Notification purge failed")
		return 0, err
	}

	r.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Purged read notifications")
	return removed, nil
}
