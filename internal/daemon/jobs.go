package daemon

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/backup"
	"github.com/oslokommune/okdata-permission-api/internal/config"
)

const jobTimeout = 30 * time.Minute

// Job is a task run on a cron schedule.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Schedule adds every job with a spec to c. Jobs without a spec are skipped.
func Schedule(c *cron.Cron, jobs ...Job) error {
	for _, job := range jobs {
		if job.Spec == "" {
			log.Info().Str("job", job.Name).Msg("job disabled")
			continue
		}

		if _, err := c.AddFunc(job.Spec, func() { runJob(job) }); err != nil {
			return errors.Wrapf(err, "invalid schedule %q of job %s", job.Spec, job.Name)
		}

		log.Info().Str("job", job.Name).Str("schedule", job.Spec).Msg("job scheduled")
	}

	return nil
}

func runJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()

	log.Info().Str("job", job.Name).Msg("job started")

	if err := job.Run(ctx); err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("job failed")
		return
	}

	log.Info().Str("job", job.Name).Dur("duration", time.Since(start)).Msg("job finished")
}

// Jobs returns the backup and deleted user check jobs of cfg.
func Jobs(
	cfg *config.Config, rs backup.PermissionLister, users backup.UserLookup,
	store *backup.Store, notifier backup.Notifier,
) []Job {
	return []Job{
		{
			Name: "backup",
			Spec: cfg.Jobs.Backup,
			Run: func(ctx context.Context) error {
				_, err := backup.Backup(ctx, rs, store)
				return err //nolint:wrapcheck
			},
		},
		{
			Name: "check-users",
			Spec: cfg.Jobs.CheckUsers,
			Run: func(ctx context.Context) error {
				_, err := backup.CheckUsers(ctx, store, users, notifier, cfg.Backup.MaxAge)
				return err //nolint:wrapcheck
			},
		},
	}
}
