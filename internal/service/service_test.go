package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldbox/internal/model"
	"fieldbox/internal/registry"
	"fieldbox/internal/store"
	"fieldbox/internal/triage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Shared fakes for the service tests.

type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{data: make(map[string][]byte)}
}

func (m *memSnapshots) Save(ctx context.Context, collection string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[collection] = append([]byte(nil), data...)
	return nil
}

func (m *memSnapshots) Load(ctx context.Context, collection string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[collection]
	if !ok {
		return nil, store.ErrNoSnapshot
	}
	return data, nil
}

type busEvent struct {
	Channel string
	Event   map[string]interface{}
}

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *recordingBus) record(channel string, event map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{Channel: channel, Event: event})
	return nil
}

func (b *recordingBus) PublishRequest(requestID string, event map[string]interface{}) error {
	return b.record("request:"+requestID, event)
}

func (b *recordingBus) PublishTechnician(technicianID string, event map[string]interface{}) error {
	return b.record("tech:"+technicianID, event)
}

func (b *recordingBus) PublishUser(userID string, event map[string]interface{}) error {
	return b.record("user:"+userID, event)
}

func (b *recordingBus) PublishBoard(event map[string]interface{}) error {
	return b.record("board", event)
}

func (b *recordingBus) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		if t, ok := e.Event["type"].(string); ok {
			out = append(out, t)
		}
	}
	return out
}

// stubAnalyzer returns a canned analysis, or fails when err is set.
type stubAnalyzer struct {
	analysis model.Analysis
	err      error
	calls    int
}

func (a *stubAnalyzer) Analyze(ctx context.Context, input triage.Input) (*model.Analysis, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	cp := a.analysis
	cp.Category = input.Category
	return &cp, nil
}

// stubJobClient records scheduled notifications.
type stubJobClient struct {
	mu          sync.Mutex
	assignments []string
	invoices    []string
}

func (c *stubJobClient) ScheduleAssignmentNotice(requestID, technicianID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignments = append(c.assignments, requestID+"/"+technicianID)
	return nil
}

func (c *stubJobClient) ScheduleInvoiceNotice(requestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invoices = append(c.invoices, requestID)
	return nil
}

type fixture struct {
	store     *store.Store
	bus       *recordingBus
	analyzer  *stubAnalyzer
	jobs      *stubJobClient
	lifecycle *LifecycleService
	board     *BoardService
	rewards   *RewardsService
	users     *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()

	st := store.New(newMemSnapshots(), log)
	require.NoError(t, st.Load(context.Background()))

	bus := &recordingBus{}
	analyzer := &stubAnalyzer{analysis: model.Analysis{
		Urgency:             model.UrgencyMedium,
		Summary:             "leaking pipe under the kitchen sink",
		SuggestedTechnician: "Marco Reyes",
		SuggestionReason:    "plumbing specialist in region",
		EstimatedCostRange:  model.CostRange{Min: 80, Max: 200},
	}}
	jobs := &stubJobClient{}

	lifecycle := NewLifecycleService(st, registry.NewDefault(), analyzer, bus, log)
	lifecycle.SetJobClient(jobs)

	board := NewBoardService(st, bus, log)
	board.SetJobClient(jobs)

	rewards := NewRewardsService(st, model.DefaultPointsConfig(), bus, log)
	users := NewUserService(st, rewards, log)

	return &fixture{
		store:     st,
		bus:       bus,
		analyzer:  analyzer,
		jobs:      jobs,
		lifecycle: lifecycle,
		board:     board,
		rewards:   rewards,
		users:     users,
	}
}

func (f *fixture) createRequest(t *testing.T) *model.Request {
	t.Helper()
	req, err := f.lifecycle.CreateRequest(context.Background(), CreateRequestInput{
		Description: "leaking pipe under the kitchen sink",
		Category:    "plumbing",
		Contact:     model.Contact{Name: "Dana", Phone: "555-0101"},
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) createRequestForUser(t *testing.T, userID string) *model.Request {
	t.Helper()
	req, err := f.lifecycle.CreateRequest(context.Background(), CreateRequestInput{
		Description: "breaker trips when the oven is on",
		Category:    "electrical",
		Contact:     model.Contact{Name: "Dana", Phone: "555-0101"},
		UserID:      &userID,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) createUser(t *testing.T, name string) *model.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), CreateUserInput{Name: name, Phone: "555-0102"})
	require.NoError(t, err)
	return user
}

func (f *fixture) complete(t *testing.T, id string) *model.Request {
	t.Helper()
	req, err := f.lifecycle.Complete(context.Background(), id, CompletionInput{
		ProblemCause: "corroded joint",
		Solution:     "replaced the joint and resealed",
		AmountPaid:   180,
	})
	require.NoError(t, err)
	return req
}

var errUpstream = errors.New("upstream timeout")

func anyTechnicianID(t *testing.T, f *fixture, available bool) string {
	t.Helper()
	for _, tech := range f.store.ListTechnicians() {
		if tech.IsAvailable == available {
			return tech.ID
		}
	}
	t.Fatalf("no technician with availability %v", available)
	return ""
}

func futureMonday() string {
	d := time.Now().UTC()
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}
