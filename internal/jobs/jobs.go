package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"fieldbox/internal/pubsub"
	"fieldbox/internal/store"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task type names.
const (
	TaskAssignmentNotice = "notify:assignment"
	TaskInvoiceNotice    = "notify:invoice"
)

type assignmentPayload struct {
	RequestID    string `json:"requestId"`
	TechnicianID string `json:"technicianId"`
}

// JobServer processes best-effort notification jobs. Handlers re-read the
// store, so a job enqueued for a request that was since deleted or
// re-assigned simply does nothing.
type JobServer struct {
	server *asynq.Server
	client *asynq.Client
	store  *store.Store
	bus    *pubsub.Bus
	log    *zap.Logger
}

func NewJobServer(redisAddr string, st *store.Store, bus *pubsub.Bus, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 5,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server: server,
		client: client,
		store:  st,
		bus:    bus,
		log:    log,
	}, client
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskAssignmentNotice, js.handleAssignmentNotice)
	mux.HandleFunc(TaskInvoiceNotice, js.handleInvoiceNotice)
	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

func (js *JobServer) handleAssignmentNotice(ctx context.Context, t *asynq.Task) error {
	var p assignmentPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("bad assignment payload: %w", err)
	}

	req, ok := js.store.GetRequest(p.RequestID)
	if !ok {
		return nil
	}
	// The board may have moved the request again before this job ran.
	if req.AssignedTechnicianID == nil || *req.AssignedTechnicianID != p.TechnicianID {
		return nil
	}

	tech, ok := js.store.GetTechnician(p.TechnicianID)
	if !ok {
		return nil
	}

	_ = js.bus.PublishTechnician(tech.ID, map[string]interface{}{
		"type":      "technician.work_order_notice",
		"requestId": req.ID,
		"date":      *req.ScheduledDate,
		"urgency":   string(req.Analysis.Urgency),
		"summary":   req.Analysis.Summary,
	})

	js.log.Info("assignment notice sent",
		zap.String("request_id", req.ID), zap.String("technician_id", tech.ID))
	return nil
}

func (js *JobServer) handleInvoiceNotice(ctx context.Context, t *asynq.Task) error {
	requestID := string(t.Payload())

	req, ok := js.store.GetRequest(requestID)
	if !ok {
		return nil
	}
	if req.CompletedAt == nil || req.AmountPaid == nil {
		return nil
	}

	_ = js.bus.PublishRequest(req.ID, map[string]interface{}{
		"type":      "invoice.ready",
		"requestId": req.ID,
		"amount":    *req.AmountPaid,
	})

	js.log.Info("invoice notice sent", zap.String("request_id", req.ID))
	return nil
}

// Schedule helpers

func ScheduleAssignmentNotice(client *asynq.Client, requestID, technicianID string) error {
	payload, err := json.Marshal(assignmentPayload{RequestID: requestID, TechnicianID: technicianID})
	if err != nil {
		return err
	}
	_, err = client.Enqueue(asynq.NewTask(TaskAssignmentNotice, payload))
	return err
}

func ScheduleInvoiceNotice(client *asynq.Client, requestID string) error {
	_, err := client.Enqueue(asynq.NewTask(TaskInvoiceNotice, []byte(requestID)))
	return err
}
