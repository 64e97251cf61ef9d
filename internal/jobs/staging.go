package jobs

import (
	"context"

	"onboard/internal/logger"
)

// StagingPruner removes staged uploads that no draft refers to any more;
// the drafts service satisfies it.
type StagingPruner interface {
	PruneStaging(ctx context.Context) (int, error)
}

// StagingCleaner clears staged files left behind by expired drafts.
type StagingCleaner struct {
	drafts StagingPruner
	log    logger.Logger
}

func NewStagingCleaner(drafts StagingPruner, log logger.Logger) *StagingCleaner {
	return &StagingCleaner{drafts: drafts, log: log}
}

// Run is the cron entry point.
func (c *StagingCleaner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSweepTimeout)
	defer cancel()

	removed, err := c.drafts.PruneStaging(ctx)
	if err != nil {
		c.log.WithError(err).Error("staging cleanup failed", map[string]interface{}{"removed": removed})
		return
	}
	if removed > 0 {
		c.log.Info("staging cleanup finished", map[string]interface{}{"removed": removed})
	}
}
