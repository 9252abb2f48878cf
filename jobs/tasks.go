package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskComplianceSweep re-evaluates compliance for every active claim.
	TaskComplianceSweep = "compliance:sweep"
	// TaskOffsetRefresh recalculates stored offset fields for one claim.
	TaskOffsetRefresh = "offset:refresh"
	// TaskDeadlineScan finds claims nearing their registration deadline.
	TaskDeadlineScan = "deadline:scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP delivery.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// ComplianceSweepPayload carries scheduling metadata for a sweep run.
type ComplianceSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Concurrency  int       `json:"concurrency,omitempty"`
}

// NewComplianceSweepTask constructs an Asynq task for a compliance sweep.
func NewComplianceSweepTask(at time.Time, concurrency int) (*asynq.Task, error) {
	body, err := json.Marshal(ComplianceSweepPayload{ScheduledFor: at, Concurrency: concurrency})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskComplianceSweep, body, asynq.Queue(QueueDefault)), nil
}

// OffsetRefreshPayload names the claim whose offsets should be recalculated.
type OffsetRefreshPayload struct {
	ClaimID int64 `json:"claim_id"`
}

// NewOffsetRefreshTask constructs an Asynq task for an offset refresh.
func NewOffsetRefreshTask(claimID int64) (*asynq.Task, error) {
	body, err := json.Marshal(OffsetRefreshPayload{ClaimID: claimID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOffsetRefresh, body, asynq.Queue(QueueDefault)), nil
}

// DeadlineScanPayload carries the warning window for a deadline scan.
type DeadlineScanPayload struct {
	ScheduledFor time.Time     `json:"scheduled_for"`
	Window       time.Duration `json:"window,omitempty"`
}

// NewDeadlineScanTask constructs an Asynq task for a deadline scan.
func NewDeadlineScanTask(at time.Time, window time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(DeadlineScanPayload{ScheduledFor: at, Window: window})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeadlineScan, body, asynq.Queue(QueueDefault)), nil
}
