// Package scheduler fires workflow executions from cron schedule triggers.
package scheduler

import (
	"errors"
	"time"
)

var ErrTriggerNotFound = errors.New("schedule trigger not found")

// Trigger starts its workflow every time CronExpression comes due.
type Trigger struct {
	ID             string     `json:"id" yaml:"id"`
	WorkflowID     string     `json:"workflowId" yaml:"-"`
	CronExpression string     `json:"cronExpression" yaml:"cron"`
	Timezone       string     `json:"timezone" yaml:"timezone"` // IANA name, default "UTC"
	IsActive       bool       `json:"isActive" yaml:"is_active"`
	NextRunAt      *time.Time `json:"nextRunAt,omitempty" yaml:"-"`
	LastFiredAt    *time.Time `json:"lastFiredAt,omitempty" yaml:"-"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"-"`
	UpdatedAt      time.Time  `json:"updatedAt" yaml:"-"`
}

// TriggerData is the input recorded on a SCHEDULE execution.
type TriggerData struct {
	TriggerID string `json:"triggerId"`
	Cron      string `json:"cron"`
	Timezone  string `json:"timezone"`
	Timestamp string `json:"timestamp"`
}
