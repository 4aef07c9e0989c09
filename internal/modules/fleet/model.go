// README: Operator-editable fleet settings read by the auto-assign scheduler.
package fleet

import (
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("invalid fleet config")

const DefaultMaxWaitSeconds = 300

type Config struct {
	MaxWaitTimeBeforeAutoAssign int       `json:"maxWaitTimeBeforeAutoAssign"`
	AutoAssignEnabled           bool      `json:"autoAssignEnabled"`
	UpdatedAt                   time.Time `json:"updatedAt"`
}

func Default() Config {
	return Config{MaxWaitTimeBeforeAutoAssign: DefaultMaxWaitSeconds}
}

func (c Config) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitTimeBeforeAutoAssign) * time.Second
}

func (c Config) Validate() error {
	if c.MaxWaitTimeBeforeAutoAssign <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
