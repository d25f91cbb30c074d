package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"fieldbox/internal/model"
	"fieldbox/internal/registry"
	"fieldbox/internal/service"
	"fieldbox/internal/storage"
	"fieldbox/internal/store"
	"fieldbox/internal/triage"
	"fieldbox/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
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

type nopBus struct{}

func (nopBus) PublishRequest(string, map[string]interface{}) error    { return nil }
func (nopBus) PublishTechnician(string, map[string]interface{}) error { return nil }
func (nopBus) PublishUser(string, map[string]interface{}) error       { return nil }
func (nopBus) PublishBoard(map[string]interface{}) error              { return nil }

type stubAnalyzer struct{ err error }

func (a *stubAnalyzer) Analyze(ctx context.Context, input triage.Input) (*model.Analysis, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &model.Analysis{
		Category:            input.Category,
		Urgency:             model.UrgencyHigh,
		Summary:             "burst pipe behind the washing machine",
		SuggestedTechnician: "Marco Reyes",
		SuggestionReason:    "closest plumbing specialist",
		EstimatedCostRange:  model.CostRange{Min: 120, Max: 400},
	}, nil
}

type testEnv struct {
	server   *httptest.Server
	store    *store.Store
	analyzer *stubAnalyzer
	rewards  *service.RewardsService
}

func newTestEnv(t *testing.T, pointsCfg model.PointsConfig) *testEnv {
	t.Helper()
	log := zap.NewNop()

	st := store.New(&memSnapshots{data: make(map[string][]byte)}, log)
	require.NoError(t, st.Load(context.Background()))

	analyzer := &stubAnalyzer{}
	bus := nopBus{}

	lifecycle := service.NewLifecycleService(st, registry.NewDefault(), analyzer, bus, log)
	board := service.NewBoardService(st, bus, log)
	rewards := service.NewRewardsService(st, pointsCfg, bus, log)
	users := service.NewUserService(st, rewards, log)

	photos, err := storage.NewLocalPhotoStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	srv := httptest.NewServer(Routes(Dependencies{
		Store:     st,
		Lifecycle: lifecycle,
		Board:     board,
		Rewards:   rewards,
		Users:     users,
		Photos:    photos,
		Hub:       ws.NewHub(log),
		Log:       log,
	}))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: st, analyzer: analyzer, rewards: rewards}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *testEnv) createRequest(t *testing.T, userID string) string {
	t.Helper()
	body := map[string]interface{}{
		"description": "burst pipe behind the washing machine",
		"category":    "plumbing",
		"contact":     map[string]string{"name": "Dana", "phone": "555-0101"},
	}
	if userID != "" {
		body["userId"] = userID
	}
	resp, decoded := e.do(t, http.MethodPost, "/v1/requests", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decoded["id"].(string)
}

func (e *testEnv) createUser(t *testing.T) string {
	t.Helper()
	resp, decoded := e.do(t, http.MethodPost, "/v1/users", map[string]string{
		"name": "Dana", "phone": "555-0101",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decoded["id"].(string)
}

func TestCreateAndFetchRequest(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())

	id := env.createRequest(t, "")

	resp, decoded := env.do(t, http.MethodGet, "/v1/requests/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "NEW", decoded["status"])

	analysis := decoded["analysis"].(map[string]interface{})
	assert.Equal(t, "HIGH", analysis["urgency"])
}

func TestGetRequestNotFound(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())

	resp, decoded := env.do(t, http.MethodGet, "/v1/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decoded["code"])
}

func TestTriageFailureReturnsBadGateway(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	env.analyzer.err = fmt.Errorf("model unavailable")

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests", map[string]interface{}{
		"description": "burst pipe",
		"category":    "plumbing",
		"contact":     map[string]string{"name": "Dana", "phone": "555-0101"},
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_failed", decoded["code"])
}

func TestCompleteThenCancelConflicts(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	id := env.createRequest(t, "")

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests/"+id+"/complete", map[string]interface{}{
		"problemCause": "corroded joint",
		"solution":     "replaced the joint",
		"amountPaid":   180,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "COMPLETED", decoded["status"])

	resp, decoded = env.do(t, http.MethodPost, "/v1/requests/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", decoded["code"])
}

func TestCompleteValidation(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	id := env.createRequest(t, "")

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests/"+id+"/complete", map[string]interface{}{
		"problemCause": "corroded joint",
		"solution":     "replaced the joint",
		"amountPaid":   -1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", decoded["code"])
}

func TestStatusEditRejectsCompleted(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	id := env.createRequest(t, "")

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests/"+id+"/status", map[string]string{
		"status": "COMPLETED",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", decoded["code"])
}

func TestAssignAndGrid(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	id := env.createRequest(t, "")

	var tech string
	for _, candidate := range env.store.ListTechnicians() {
		if candidate.IsAvailable {
			tech = candidate.ID
			break
		}
	}
	require.NotEmpty(t, tech)

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests/"+id+"/assign", map[string]string{
		"technicianId": tech,
		"date":         "2026-08-25",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "IN_PROGRESS", decoded["status"])

	resp, decoded = env.do(t, http.MethodGet, "/v1/board/grid?anchor=2026-08-26", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	days := decoded["days"].([]interface{})
	require.Len(t, days, 7)
	assert.Equal(t, "2026-08-24", days[0])

	resp, _ = env.do(t, http.MethodGet, "/v1/board/grid?anchor=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssignBadDate(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	id := env.createRequest(t, "")

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests/"+id+"/assign", map[string]string{
		"technicianId": "tech-1",
		"date":         "soon",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", decoded["code"])
}

func TestBoardQueue(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	env.createRequest(t, "")
	env.createRequest(t, "")

	resp, _ := env.do(t, http.MethodGet, "/v1/board/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAwardFlow(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	userID := env.createUser(t)
	id := env.createRequest(t, userID)

	resp, _ := env.do(t, http.MethodPost, "/v1/requests/"+id+"/complete", map[string]interface{}{
		"problemCause": "corroded joint",
		"solution":     "replaced the joint",
		"amountPaid":   180,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests/"+id+"/award", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["awarded"])
	assert.Equal(t, float64(15), decoded["points"])

	resp, decoded = env.do(t, http.MethodPost, "/v1/requests/"+id+"/award", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decoded["awarded"])
	assert.Equal(t, float64(15), decoded["balance"])
}

func TestAwardWhileRewardsDisabled(t *testing.T) {
	cfg := model.DefaultPointsConfig()
	cfg.Enabled = false
	env := newTestEnv(t, cfg)

	userID := env.createUser(t)
	id := env.createRequest(t, userID)
	resp, _ := env.do(t, http.MethodPost, "/v1/requests/"+id+"/complete", map[string]interface{}{
		"problemCause": "corroded joint",
		"solution":     "replaced the joint",
		"amountPaid":   180,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, decoded := env.do(t, http.MethodPost, "/v1/requests/"+id+"/award", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "rewards_disabled", decoded["code"])
}

func TestRewardsConfig(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())

	resp, decoded := env.do(t, http.MethodGet, "/v1/rewards/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["isEnabled"])
	assert.Equal(t, float64(15), decoded["pointsPerMaintenanceRequest"])
}

func TestInvoiceEndpoint(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())
	id := env.createRequest(t, "")

	resp, _ := env.do(t, http.MethodGet, "/v1/requests/"+id+"/invoice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/v1/requests/"+id+"/complete", map[string]interface{}{
		"problemCause": "corroded joint",
		"solution":     "replaced the joint",
		"amountPaid":   180,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, decoded := env.do(t, http.MethodGet, "/v1/requests/"+id+"/invoice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(180), decoded["amountPaid"])
	assert.Equal(t, float64(50), decoded["inspectionFee"])
}

func TestTechnicianAvailabilityToggle(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())

	techs := env.store.ListTechnicians()
	require.NotEmpty(t, techs)
	id := techs[0].ID

	resp, decoded := env.do(t, http.MethodPut, "/v1/technicians/"+id+"/availability", map[string]bool{
		"isAvailable": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decoded["isAvailable"])

	resp, decoded = env.do(t, http.MethodPut, "/v1/technicians/missing/availability", map[string]bool{
		"isAvailable": true,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decoded["code"])
}

func TestSignPhoto(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())

	resp, decoded := env.do(t, http.MethodPost, "/v1/photos/sign", map[string]interface{}{
		"fileName":    "leak.jpg",
		"contentType": "image/jpeg",
		"sizeBytes":   1024,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decoded["uploadUrl"])
	assert.NotEmpty(t, decoded["photoUrl"])

	resp, _ = env.do(t, http.MethodPost, "/v1/photos/sign", map[string]interface{}{
		"fileName":    "notes.pdf",
		"contentType": "application/pdf",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPhotoUploadRoundTrip(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())

	resp, decoded := env.do(t, http.MethodPost, "/v1/photos/sign", map[string]interface{}{
		"fileName":    "leak.jpg",
		"contentType": "image/jpeg",
		"sizeBytes":   4,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	objectName := decoded["objectName"].(string)

	// The signed uploadUrl path is served by this router.
	uploadURL, err := url.Parse(decoded["uploadUrl"].(string))
	require.NoError(t, err)
	require.Equal(t, "/photos/"+objectName, uploadURL.Path)

	req, err := http.NewRequest(http.MethodPut, env.server.URL+uploadURL.Path, strings.NewReader("jpeg"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/jpeg")
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()
	require.Equal(t, http.StatusCreated, putResp.StatusCode)

	getResp, err := http.Get(env.server.URL + "/photos/" + objectName)
	require.NoError(t, err)
	body, err := io.ReadAll(getResp.Body)
	getResp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, "jpeg", string(body))

	delReq, err := http.NewRequest(http.MethodDelete, env.server.URL+"/photos/"+objectName, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(delReq)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	getResp, err = http.Get(env.server.URL + "/photos/" + objectName)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestUploadPhotoRejectsNonImage(t *testing.T) {
	env := newTestEnv(t, model.DefaultPointsConfig())

	req, err := http.NewRequest(http.MethodPut, env.server.URL+"/photos/notes.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/pdf")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
