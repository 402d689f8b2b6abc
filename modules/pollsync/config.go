package pollsync

import (
	"fmt"

	"reward-polls/modules/config"

	"github.com/robfig/cron/v3"
)

const DEFAULT_SCHEDULE = "@every 1m"

type syncConfig struct {
	// cron spec, standard five fields or a descriptor like "@every 30s"
	Schedule string
}

type SyncConfig struct {
	*config.Config[syncConfig]
}

func NewSyncConfig(dataDir ...string) SyncConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return SyncConfig{config.New(syncConfig{
		Schedule: DEFAULT_SCHEDULE,
	}, dataDirPtr)}
}

func (sc SyncConfig) SetSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return sc.Update(func(c *syncConfig) {
		c.Schedule = schedule
	})
}
