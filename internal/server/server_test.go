package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"work-item-svc/internal/models"
	"work-item-svc/internal/workitem"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type createCall struct {
	projectID     int64
	workStreamID  int64
	phaseID       int64
	params        models.CreatePhaseProductParams
	actorID       int64
	correlationID string
}

type getCall struct {
	projectID int64
	phaseID   int64
	productID int64
}

type fakeCreator struct {
	view     models.PhaseProductView
	err      error
	calls    []createCall
	getCalls []getCall
}

func (f *fakeCreator) Create(_ context.Context, projectID, workStreamID, phaseID int64, params models.CreatePhaseProductParams, actorID int64, correlationID string) (models.PhaseProductView, error) {
	f.calls = append(f.calls, createCall{projectID, workStreamID, phaseID, params, actorID, correlationID})
	if f.err != nil {
		return models.PhaseProductView{}, f.err
	}
	return f.view, nil
}

func (f *fakeCreator) Get(_ context.Context, projectID, phaseID, productID int64) (models.PhaseProductView, error) {
	f.getCalls = append(f.getCalls, getCall{projectID, phaseID, productID})
	if f.err != nil {
		return models.PhaseProductView{}, f.err
	}
	return f.view, nil
}

func signToken(t *testing.T, userID int64, scopes ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, apiClaims{
		UserID: userID,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doCreate(t *testing.T, creator *fakeCreator, token, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(creator, ScopeAuthorizer{}, testSecret)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "req-123")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const createPath = "/projects/1/workstreams/10/works/100/products"

func TestCreateWorkItemSuccess(t *testing.T) {
	creator := &fakeCreator{
		view: models.PhaseProductView{ID: 42, ProjectID: 1, PhaseID: 100, Name: "Design", Type: "product"},
	}
	token := signToken(t, 7, ActionWorkItemCreate)

	w := doCreate(t, creator, token, createPath,
		`{"param":{"name":"Design","type":"product"}}`)

	require.Equal(t, 201, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))

	var envelope Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "req-123", envelope.ID)
	assert.Equal(t, apiVersion, envelope.Version)
	assert.True(t, envelope.Result.Success)
	assert.Equal(t, 201, envelope.Result.Status)

	content, err := json.Marshal(envelope.Result.Content)
	require.NoError(t, err)
	var view models.PhaseProductView
	require.NoError(t, json.Unmarshal(content, &view))
	assert.Equal(t, int64(42), view.ID)

	require.Len(t, creator.calls, 1)
	call := creator.calls[0]
	assert.Equal(t, int64(1), call.projectID)
	assert.Equal(t, int64(10), call.workStreamID)
	assert.Equal(t, int64(100), call.phaseID)
	assert.Equal(t, int64(7), call.actorID)
	assert.Equal(t, "req-123", call.correlationID)
	assert.Equal(t, "Design", call.params.Name)
}

func TestCreateWorkItemMissingToken(t *testing.T) {
	creator := &fakeCreator{}
	w := doCreate(t, creator, "", createPath,
		`{"param":{"name":"Design","type":"product"}}`)

	assert.Equal(t, 401, w.Code)
	assert.Empty(t, creator.calls)
}

func TestCreateWorkItemBadToken(t *testing.T) {
	creator := &fakeCreator{}
	w := doCreate(t, creator, "not-a-token", createPath,
		`{"param":{"name":"Design","type":"product"}}`)

	assert.Equal(t, 401, w.Code)
	assert.Empty(t, creator.calls)
}

func TestCreateWorkItemMissingScope(t *testing.T) {
	creator := &fakeCreator{}
	token := signToken(t, 7, "workItem.read")

	w := doCreate(t, creator, token, createPath,
		`{"param":{"name":"Design","type":"product"}}`)

	assert.Equal(t, 403, w.Code)
	assert.Empty(t, creator.calls)
}

func TestCreateWorkItemInvalidPathParams(t *testing.T) {
	creator := &fakeCreator{}
	token := signToken(t, 7, ActionWorkItemCreate)

	for _, path := range []string{
		"/projects/0/workstreams/10/works/100/products",
		"/projects/abc/workstreams/10/works/100/products",
		"/projects/1/workstreams/-5/works/100/products",
	} {
		w := doCreate(t, creator, token, path,
			`{"param":{"name":"Design","type":"product"}}`)
		assert.Equal(t, 400, w.Code, "path %s", path)
	}
	assert.Empty(t, creator.calls)
}

func TestCreateWorkItemInvalidPayload(t *testing.T) {
	creator := &fakeCreator{}
	token := signToken(t, 7, ActionWorkItemCreate)

	for name, body := range map[string]string{
		"missing param":       `{}`,
		"missing name":        `{"param":{"type":"product"}}`,
		"missing type":        `{"param":{"name":"Design"}}`,
		"negative template":   `{"param":{"name":"Design","type":"product","templateId":-1}}`,
		"zero estimatedPrice": `{"param":{"name":"Design","type":"product","estimatedPrice":0}}`,
		"not json":            `not json`,
	} {
		w := doCreate(t, creator, token, createPath, body)
		assert.Equal(t, 400, w.Code, "case %s", name)
	}
	assert.Empty(t, creator.calls)
}

func TestCreateWorkItemNotFound(t *testing.T) {
	creator := &fakeCreator{
		err: &workitem.NotFoundError{Message: "phase 100 not found for work stream 10 in project 1"},
	}
	token := signToken(t, 7, ActionWorkItemCreate)

	w := doCreate(t, creator, token, createPath,
		`{"param":{"name":"Design","type":"product"}}`)

	require.Equal(t, 404, w.Code)
	var envelope Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Result.Success)
	assert.Equal(t, 404, envelope.Result.Status)
	assert.Contains(t, w.Body.String(), "phase 100")
}

func TestCreateWorkItemQuotaExceeded(t *testing.T) {
	creator := &fakeCreator{err: &workitem.QuotaExceededError{Limit: 2}}
	token := signToken(t, 7, ActionWorkItemCreate)

	w := doCreate(t, creator, token, createPath,
		`{"param":{"name":"Design","type":"product"}}`)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "cannot exceed 2")
}

func TestCreateWorkItemStoreFailure(t *testing.T) {
	creator := &fakeCreator{err: errors.New("connection reset")}
	token := signToken(t, 7, ActionWorkItemCreate)

	w := doCreate(t, creator, token, createPath,
		`{"param":{"name":"Design","type":"product"}}`)

	assert.Equal(t, 500, w.Code)
	// Store failures must not leak details to the client.
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func doGet(t *testing.T, creator *fakeCreator, token, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(creator, ScopeAuthorizer{}, testSecret)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetWorkItemSuccess(t *testing.T) {
	creator := &fakeCreator{
		view: models.PhaseProductView{ID: 42, ProjectID: 1, PhaseID: 100, Name: "Design", Type: "product"},
	}
	token := signToken(t, 7, ActionWorkItemView)

	w := doGet(t, creator, token, "/projects/1/works/100/products/42")

	require.Equal(t, 200, w.Code)
	var envelope Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Result.Success)
	assert.Equal(t, 200, envelope.Result.Status)

	require.Len(t, creator.getCalls, 1)
	assert.Equal(t, getCall{projectID: 1, phaseID: 100, productID: 42}, creator.getCalls[0])
}

func TestGetWorkItemNotFound(t *testing.T) {
	creator := &fakeCreator{
		err: &workitem.NotFoundError{Message: "phase product 42 not found for phase 100 in project 1"},
	}
	token := signToken(t, 7, ActionWorkItemView)

	w := doGet(t, creator, token, "/projects/1/works/100/products/42")

	assert.Equal(t, 404, w.Code)
	assert.Contains(t, w.Body.String(), "phase product 42")
}

func TestGetWorkItemMissingScope(t *testing.T) {
	creator := &fakeCreator{}
	token := signToken(t, 7, ActionWorkItemCreate)

	w := doGet(t, creator, token, "/projects/1/works/100/products/42")

	assert.Equal(t, 403, w.Code)
	assert.Empty(t, creator.getCalls)
}

func TestHealth(t *testing.T) {
	srv := New(&fakeCreator{}, ScopeAuthorizer{}, testSecret)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
}
