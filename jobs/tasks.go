package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIntegrityScan schedules the mapping integrity scan routine.
	TaskIntegrityScan = "consol:integrity_scan"
)

// IntegrityScanPayload configures the scope of the integrity scan job.
// Organization "all" fans out over every organization; period "current"
// resolves to the month the job runs in.
type IntegrityScanPayload struct {
	Organization string `json:"organization"`
	Period       string `json:"period"`
}

// NewIntegrityScanTask creates an Asynq task for scanning unmapped balances.
func NewIntegrityScanTask(organization, period string) (*asynq.Task, error) {
	if organization == "" {
		organization = "all"
	}
	if period == "" {
		period = "current"
	}
	payload := IntegrityScanPayload{Organization: organization, Period: period}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityScan, body, asynq.Queue(QueueDefault)), nil
}
