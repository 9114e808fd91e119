// Package janitor prunes aged persistence rows on a cron schedule.
package janitor

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/radioteateonair/radiod/pkg/logging"
	"github.com/radioteateonair/radiod/pkg/player"
)

// Janitor deletes play history, logs, metrics, and error records older
// than the configured retention window
type Janitor struct {
	repo      player.PlayerRepository
	logger    logging.Logger
	retention time.Duration
	schedule  string
	cron      *cron.Cron
}

// New creates a Janitor. retentionDays rows survive; older ones go.
func New(repo player.PlayerRepository, logger logging.Logger, retentionDays int, schedule string) *Janitor {
	return &Janitor{
		repo:      repo,
		logger:    logger.WithPipeline("janitor"),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		cron:      cron.New(),
	}
}

// Start registers the prune job and begins the scheduler
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.RunOnce); err != nil {
		return err
	}
	j.cron.Start()

	j.logger.Info("Retention pruning scheduled", map[string]interface{}{
		"schedule":       j.schedule,
		"retention_days": int(j.retention.Hours() / 24),
	})
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// RunOnce prunes immediately. The cron job calls this on schedule.
func (j *Janitor) RunOnce() {
	cutoff := time.Now().Add(-j.retention)

	deleted, err := j.repo.PruneBefore(cutoff)
	if err != nil {
		j.logger.Error("Retention prune failed", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return
	}

	j.logger.Info("Retention prune completed", map[string]interface{}{
		"cutoff":  cutoff,
		"deleted": deleted,
	})
}
