package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/pilabs/users-api/internal/application"
	"github.com/pilabs/users-api/internal/domain/entity"
	repo "github.com/pilabs/users-api/internal/domain/repository"
	"github.com/pilabs/users-api/pkg/apperrors"
	"github.com/pilabs/users-api/pkg/validation"
)

// fakeService records the last call so tests can assert what the handler
// passed down.
type fakeService struct {
	user       *entity.User
	list       *userapp.ListResult
	err        error
	lastPatch  repo.UserPatch
	lastFilter repo.ListFilter
	lastPage   repo.Pagination
	deleted    int64
}

func (f *fakeService) Create(_ context.Context, in userapp.CreateUserInput) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeService) GetByID(_ context.Context, id int64) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeService) List(_ context.Context, fl repo.ListFilter, p repo.Pagination) (*userapp.ListResult, error) {
	f.lastFilter = fl
	f.lastPage = p
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeService) Update(_ context.Context, id int64, patch repo.UserPatch) (*entity.User, error) {
	f.lastPatch = patch
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeService) Delete(_ context.Context, id int64) error {
	f.deleted = id
	return f.err
}

func (f *fakeService) Search(_ context.Context, q string, size int) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []map[string]any{{"email": "a@x.com"}}, nil
}

func sampleUser() *entity.User {
	age := 30
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &entity.User{
		ID: 1, Email: "a@x.com", Name: "Alice", Age: &age,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
}

func newTestRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.Init()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	h := NewUserHandler(svc, logger)

	r := gin.New()
	users := r.Group("/api/users")
	users.POST("", h.Create)
	users.GET("", h.List)
	users.GET("/search", h.Search)
	users.GET("/:id", h.Get)
	users.PUT("/:id", h.Update)
	users.DELETE("/:id", h.Delete)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateEndpoint(t *testing.T) {
	svc := &fakeService{user: sampleUser()}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/users", map[string]any{"email": "a@x.com", "name": "Alice", "age": 30})
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
}

func TestCreateEndpoint_ValidationFailure(t *testing.T) {
	r := newTestRouter(&fakeService{})

	// missing name, bad email
	w := doJSON(r, http.MethodPost, "/api/users", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "name")
}

func TestCreateEndpoint_Conflict(t *testing.T) {
	svc := &fakeService{err: apperrors.AlreadyExists("user", "email", "a@x.com")}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/users", map[string]any{"email": "a@x.com", "name": "Alice"})
	assert.Equal(t, http.StatusConflict, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "ALREADY_EXISTS", errBody["code"])
}

func TestGetEndpoint(t *testing.T) {
	svc := &fakeService{user: sampleUser()}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "a@x.com", data["email"])
	assert.Equal(t, true, data["isActive"])
}

func TestGetEndpoint_NotFound(t *testing.T) {
	svc := &fakeService{err: apperrors.NotFound("user", 42)}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/users/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetEndpoint_BadID(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := doJSON(r, http.MethodGet, "/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEndpoint_StoreFailureHidesDetail(t *testing.T) {
	svc := &fakeService{err: apperrors.Store("SELECT secret", nil, assert.AnError)}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "internal server error", errBody["message"])
	assert.NotContains(t, w.Body.String(), "SELECT secret")
}

func TestListEndpoint(t *testing.T) {
	svc := &fakeService{list: &userapp.ListResult{
		Users: []*entity.User{sampleUser()},
		Total: 25, Page: 2, Limit: 10,
	}}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/users?page=2&limit=10&isActive=true&ageMin=18&ageMax=65&search=ali", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, svc.lastFilter.IsActive)
	assert.True(t, *svc.lastFilter.IsActive)
	require.NotNil(t, svc.lastFilter.AgeMin)
	assert.Equal(t, 18, *svc.lastFilter.AgeMin)
	assert.Equal(t, "ali", svc.lastFilter.Search)
	assert.Equal(t, repo.Pagination{Page: 2, Limit: 10}, svc.lastPage)

	p := decode(t, w)["pagination"].(map[string]any)
	assert.Equal(t, float64(2), p["page"])
	assert.Equal(t, float64(25), p["total"])
	assert.Equal(t, float64(3), p["totalPages"])
	assert.Equal(t, true, p["hasNext"])
	assert.Equal(t, true, p["hasPrev"])
}

func TestListEndpoint_LimitClampedNotReset(t *testing.T) {
	svc := &fakeService{list: &userapp.ListResult{
		Users: []*entity.User{}, Total: 0, Page: 1, Limit: 100,
	}}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/users?limit=250", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, svc.lastPage.Limit)

	w = doJSON(r, http.MethodGet, "/api/users?limit=0", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, svc.lastPage.Limit)
}

func TestListEndpoint_EmptyPageKeepsDataKey(t *testing.T) {
	svc := &fakeService{list: &userapp.ListResult{
		Users: []*entity.User{}, Total: 0, Page: 1, Limit: 10,
	}}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/users?isActive=false", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	data, ok := body["data"]
	require.True(t, ok)
	assert.Equal(t, []any{}, data)
}

func TestListEndpoint_BadFilter(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := doJSON(r, http.MethodGet, "/api/users?isActive=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateEndpoint_PartialPatch(t *testing.T) {
	svc := &fakeService{user: sampleUser()}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodPut, "/api/users/1", map[string]any{"name": "New"})
	assert.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, svc.lastPatch.Name)
	assert.Equal(t, "New", *svc.lastPatch.Name)
	assert.Nil(t, svc.lastPatch.Age)
	assert.False(t, svc.lastPatch.ClearAge)
	assert.Nil(t, svc.lastPatch.IsActive)
}

func TestUpdateEndpoint_ExplicitNullClearsAge(t *testing.T) {
	svc := &fakeService{user: sampleUser()}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodPut, "/api/users/1", map[string]any{"age": nil})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastPatch.ClearAge)
	assert.Nil(t, svc.lastPatch.Age)
}

func TestUpdateEndpoint_AgeOutOfRange(t *testing.T) {
	r := newTestRouter(&fakeService{user: sampleUser()})
	w := doJSON(r, http.MethodPut, "/api/users/1", map[string]any{"age": 200})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/users/7", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, int64(7), svc.deleted)
}

func TestDeleteEndpoint_NotFound(t *testing.T) {
	svc := &fakeService{err: apperrors.NotFound("user", 999999)}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/users/999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchEndpoint_RequiresQuery(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := doJSON(r, http.MethodGet, "/api/users/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/users/search?q=alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNullableIntUnmarshal(t *testing.T) {
	var req updateUserRequest
	require.NoError(t, json.Unmarshal([]byte(`{"age": 31}`), &req))
	assert.True(t, req.Age.Present)
	assert.True(t, req.Age.Valid)
	assert.Equal(t, 31, req.Age.Value)

	req = updateUserRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"age": null}`), &req))
	assert.True(t, req.Age.Present)
	assert.False(t, req.Age.Valid)

	req = updateUserRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	assert.False(t, req.Age.Present)
}
