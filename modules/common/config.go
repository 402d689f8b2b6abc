package common

import (
	"fmt"
	"time"

	"reward-polls/modules/config"
)

type pollsConfig struct {
	// IANA name of the zone whose calendar days bound poll deadlines
	Timezone string
}

type pollsConfigStruct struct {
	*config.Config[pollsConfig]
}

type PollsConfig = *pollsConfigStruct

func NewPollsConfig(dataDir ...string) PollsConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return &pollsConfigStruct{config.New(pollsConfig{
		Timezone: DEFAULT_TIMEZONE,
	}, dataDirPtr)}
}

func (pc *pollsConfigStruct) SetTimezone(name string) error {
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return pc.Update(func(c *pollsConfig) {
		c.Timezone = name
	})
}

// Location falls back to UTC when the configured zone cannot be loaded.
func (pc *pollsConfigStruct) Location() *time.Location {
	loc, err := time.LoadLocation(pc.Get().Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
