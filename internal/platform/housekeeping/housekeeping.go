// Package housekeeping runs periodic maintenance on the agenda store.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// BlockPruner deletes blocks that ended before cutoff across all tenants.
type BlockPruner interface {
	PruneEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job removes blocks that ended more than the retention window ago.
type Job struct {
	pruner    BlockPruner
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewJob(pruner BlockPruner, retentionDays int, logger zerolog.Logger) *Job {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Job{
		pruner:    pruner,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		timeout:   time.Minute,
		now:       time.Now,
		logger:    logger.With().Str("component", "housekeeping").Logger(),
	}
}

// Cutoff is the instant before which ended blocks are pruned.
func (j *Job) Cutoff() time.Time {
	return j.now().Add(-j.retention)
}

// PruneExpiredBlocks deletes blocks that ended before Cutoff.
func (j *Job) PruneExpiredBlocks(ctx context.Context) (int64, error) {
	cutoff := j.Cutoff()
	n, err := j.pruner.PruneEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune blocks ended before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		j.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned expired blocks")
	} else {
		j.logger.Debug().Time("cutoff", cutoff).Msg("no expired blocks")
	}
	return n, nil
}

// run is the cron entry point. Errors are logged; the next tick retries.
func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.PruneExpiredBlocks(ctx); err != nil {
		j.logger.Error().Err(err).Msg("housekeeping run failed")
	}
}

// Scheduler owns the cron runner for maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewScheduler registers job on schedule, which accepts standard five-field
// cron expressions and descriptors such as "@daily" or "@every 6h".
func NewScheduler(job *Job, schedule string, loc *time.Location, logger zerolog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(schedule, job.run); err != nil {
		return nil, fmt.Errorf("invalid housekeeping schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, logger: logger.With().Str("component", "housekeeping").Logger()}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info().Time("next", e.Next).Msg("housekeeping scheduled")
	}
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("housekeeping still running at shutdown")
	}
}
