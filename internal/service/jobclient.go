package service

import (
	"fieldbox/internal/jobs"

	"github.com/hibiken/asynq"
)

// JobClient schedules best-effort background notifications. They run after
// the synchronous mutation has committed and never affect it.
type JobClient interface {
	ScheduleAssignmentNotice(requestID, technicianID string) error
	ScheduleInvoiceNotice(requestID string) error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) ScheduleAssignmentNotice(requestID, technicianID string) error {
	return jobs.ScheduleAssignmentNotice(c.client, requestID, technicianID)
}

func (c *AsynqJobClient) ScheduleInvoiceNotice(requestID string) error {
	return jobs.ScheduleInvoiceNotice(c.client, requestID)
}
