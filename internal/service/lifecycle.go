package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"fieldbox/internal/model"
	"fieldbox/internal/registry"
	"fieldbox/internal/store"
	"fieldbox/internal/triage"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// EventBus publishes domain events to interested channels.
type EventBus interface {
	PublishRequest(requestID string, event map[string]interface{}) error
	PublishTechnician(technicianID string, event map[string]interface{}) error
	PublishUser(userID string, event map[string]interface{}) error
	PublishBoard(event map[string]interface{}) error
}

// LifecycleService owns the canonical status of each request and the
// completion workflow.
type LifecycleService struct {
	store     *store.Store
	registry  registry.Registry
	analyzer  triage.Analyzer
	bus       EventBus
	jobClient JobClient
	log       *zap.Logger
}

func NewLifecycleService(st *store.Store, reg registry.Registry, analyzer triage.Analyzer, bus EventBus, log *zap.Logger) *LifecycleService {
	return &LifecycleService{
		store:    st,
		registry: reg,
		analyzer: analyzer,
		bus:      bus,
		log:      log,
	}
}

// SetJobClient sets the client for scheduling background notifications.
func (s *LifecycleService) SetJobClient(client JobClient) {
	s.jobClient = client
}

type CreateRequestInput struct {
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	Contact      model.Contact `json:"contact"`
	Address      string        `json:"address,omitempty"`
	UserLocation string        `json:"userLocation,omitempty"`
	Photos       []string      `json:"photos,omitempty"`
	UserID       *string       `json:"userId,omitempty"`
}

// CreateRequest runs intake: validates contact details, resolves the
// category in the registry, invokes the triage collaborator exactly once,
// and persists the new request with status NEW. A triage failure aborts
// creation wholesale; nothing is persisted.
func (s *LifecycleService) CreateRequest(ctx context.Context, input CreateRequestInput) (*model.Request, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, newValidationError("description", "must not be empty")
	}
	if strings.TrimSpace(input.Contact.Name) == "" {
		return nil, newValidationError("contact.name", "must not be empty")
	}
	if strings.TrimSpace(input.Contact.Phone) == "" {
		return nil, newValidationError("contact.phone", "must not be empty")
	}

	cat, err := s.registry.GetCategory(input.Category)
	if err != nil {
		return nil, newValidationError("category", err.Error())
	}

	analysis, err := s.analyzer.Analyze(ctx, triage.Input{
		Description:  input.Description,
		Category:     cat.Name,
		PhotoURLs:    input.Photos,
		Technicians:  s.store.ListTechnicians(),
		UserLocation: input.UserLocation,
		CommonIssues: cat.CommonIssues,
	})
	if err != nil {
		return nil, &ExternalServiceError{Service: "ai triage", Err: err}
	}

	now := time.Now().UTC()
	req := &model.Request{
		ID:            ulid.Make().String(),
		UserID:        input.UserID,
		Description:   input.Description,
		Analysis:      *analysis,
		Contact:       input.Contact,
		Address:       input.Address,
		Photos:        input.Photos,
		InspectionFee: cat.InspectionFee,
		Status:        model.StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.store.PutRequest(ctx, req)

	_ = s.bus.PublishRequest(req.ID, map[string]interface{}{
		"type":      "request.created",
		"requestId": req.ID,
		"urgency":   string(req.Analysis.Urgency),
	})
	_ = s.bus.PublishBoard(map[string]interface{}{
		"type":      "board.changed",
		"requestId": req.ID,
	})

	return req, nil
}

func (s *LifecycleService) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	req, ok := s.store.GetRequest(id)
	if !ok {
		return nil, newNotFoundError("request", id)
	}
	return req, nil
}

func (s *LifecycleService) ListRequests(ctx context.Context) []*model.Request {
	return s.store.ListRequests()
}

// SetStatus applies an explicit status edit. A direct transition to
// COMPLETED is rejected here: completion must go through Complete so the
// cause/solution/amount payload is always captured.
func (s *LifecycleService) SetStatus(ctx context.Context, id string, status model.Status) (*model.Request, error) {
	if !status.Valid() {
		return nil, newValidationError("status", "unknown status value")
	}
	if status == model.StatusCompleted {
		return nil, newValidationError("status", "completion requires a cause/solution/amount payload; use the complete operation")
	}

	req, err := s.store.UpdateRequest(ctx, id, func(r *model.Request) error {
		if r.Status.Terminal() {
			return newInvariantViolation("set status", "request is "+string(r.Status))
		}
		r.Status = status
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("request", id)
	}
	if err != nil {
		var iv *InvariantViolation
		if errors.As(err, &iv) {
			s.log.Warn("rejected status edit on terminal request",
				zap.String("request_id", id), zap.String("status", string(status)))
		}
		return nil, err
	}

	_ = s.bus.PublishRequest(id, map[string]interface{}{
		"type":      "request.status_changed",
		"requestId": id,
		"status":    string(status),
	})
	_ = s.bus.PublishBoard(map[string]interface{}{"type": "board.changed", "requestId": id})
	return req, nil
}

type CompletionInput struct {
	ProblemCause string  `json:"problemCause"`
	Solution     string  `json:"solution"`
	AmountPaid   float64 `json:"amountPaid"`
}

// Complete transitions a request to COMPLETED. The payload is validated
// before any mutation; a rejected payload leaves the request untouched so
// the caller can re-prompt.
func (s *LifecycleService) Complete(ctx context.Context, id string, input CompletionInput) (*model.Request, error) {
	cause := strings.TrimSpace(input.ProblemCause)
	solution := strings.TrimSpace(input.Solution)
	if cause == "" {
		return nil, newValidationError("problemCause", "must not be empty")
	}
	if solution == "" {
		return nil, newValidationError("solution", "must not be empty")
	}
	if math.IsNaN(input.AmountPaid) || math.IsInf(input.AmountPaid, 0) {
		return nil, newValidationError("amountPaid", "must be a valid number")
	}
	if input.AmountPaid < 0 {
		return nil, newValidationError("amountPaid", "must not be negative")
	}

	req, err := s.store.UpdateRequest(ctx, id, func(r *model.Request) error {
		if r.Status.Terminal() {
			return newInvariantViolation("complete", "request is "+string(r.Status))
		}
		now := time.Now().UTC()
		amount := input.AmountPaid
		r.Status = model.StatusCompleted
		r.ProblemCause = &cause
		r.Solution = &solution
		r.AmountPaid = &amount
		r.CompletedAt = &now
		r.UpdatedAt = now
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("request", id)
	}
	if err != nil {
		return nil, err
	}

	_ = s.bus.PublishRequest(id, map[string]interface{}{
		"type":      "request.completed",
		"requestId": id,
		"amount":    input.AmountPaid,
	})
	_ = s.bus.PublishBoard(map[string]interface{}{"type": "board.changed", "requestId": id})

	if s.jobClient != nil {
		if err := s.jobClient.ScheduleInvoiceNotice(id); err != nil {
			s.log.Warn("failed to schedule invoice notice", zap.String("request_id", id), zap.Error(err))
		}
	}

	return req, nil
}

// Cancel transitions a request to CANCELLED. No payload is required.
func (s *LifecycleService) Cancel(ctx context.Context, id string) (*model.Request, error) {
	req, err := s.store.UpdateRequest(ctx, id, func(r *model.Request) error {
		if r.Status.Terminal() {
			return newInvariantViolation("cancel", "request is "+string(r.Status))
		}
		r.Status = model.StatusCancelled
		r.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("request", id)
	}
	if err != nil {
		return nil, err
	}

	_ = s.bus.PublishRequest(id, map[string]interface{}{
		"type":      "request.cancelled",
		"requestId": id,
	})
	_ = s.bus.PublishBoard(map[string]interface{}{"type": "board.changed", "requestId": id})
	return req, nil
}

// Delete removes a request from the store. Deletion is an administrative
// action, not a lifecycle transition; it is allowed from any state.
func (s *LifecycleService) Delete(ctx context.Context, id string) error {
	if !s.store.DeleteRequest(ctx, id) {
		return newNotFoundError("request", id)
	}
	_ = s.bus.PublishRequest(id, map[string]interface{}{
		"type":      "request.deleted",
		"requestId": id,
	})
	_ = s.bus.PublishBoard(map[string]interface{}{"type": "board.changed", "requestId": id})
	return nil
}

// Invoice renders the read-side invoice projection for a completed request.
func (s *LifecycleService) Invoice(ctx context.Context, id string) (*model.Invoice, error) {
	req, ok := s.store.GetRequest(id)
	if !ok {
		return nil, newNotFoundError("request", id)
	}
	if req.Status != model.StatusCompleted {
		return nil, newInvariantViolation("invoice", "request is not completed")
	}
	return &model.Invoice{
		RequestID:     req.ID,
		Requester:     req.Contact,
		Category:      req.Analysis.Category,
		ProblemCause:  *req.ProblemCause,
		Solution:      *req.Solution,
		AmountPaid:    *req.AmountPaid,
		InspectionFee: req.InspectionFee,
		CreatedAt:     req.CreatedAt,
		CompletedAt:   *req.CompletedAt,
	}, nil
}
