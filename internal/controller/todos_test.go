package controller_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-api/internal/controller"
	"todo-api/internal/models"
	"todo-api/internal/repository"
	"todo-api/internal/service"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// memStore applies the store's assignment rules to an in-memory table.
// Its clock starts at now and moves a minute on every update.
type memStore struct {
	mu      sync.Mutex
	rows    map[int64]models.Todo
	nextID  int64
	failAll error
	writes  int
	ticks   int
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]models.Todo{}, nextID: 1}
}

func (m *memStore) List(context.Context) ([]models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := make([]models.Todo, 0, len(m.rows))
	for id := int64(1); id < m.nextID; id++ {
		if t, ok := m.rows[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return models.Todo{}, m.failAll
	}
	t, ok := m.rows[id]
	if !ok {
		return models.Todo{}, repository.ErrNotFound
	}
	return t, nil
}

func (m *memStore) Create(_ context.Context, in models.NewTodo) (models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return models.Todo{}, m.failAll
	}
	t := models.Todo{ID: m.nextID, Title: in.Title, Description: in.Description}
	m.rows[t.ID] = t
	m.nextID++
	m.writes++
	return t, nil
}

func (m *memStore) Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return models.Todo{}, err
	}
	m.mu.Lock()
	at := now.Add(time.Duration(m.ticks) * time.Minute)
	m.ticks++
	m.mu.Unlock()
	set := repository.Assignments(t, patch, at)
	if len(set) == 0 {
		return t, nil
	}
	for _, a := range set {
		switch a.Column {
		case repository.ColumnTitle:
			t.Title = a.Value.(string)
		case repository.ColumnDescription:
			ns := a.Value.(sql.NullString)
			t.Description = nil
			if ns.Valid {
				t.Description = &ns.String
			}
		case repository.ColumnCompleted:
			t.Completed = a.Value.(bool)
		case repository.ColumnCompletionDate:
			nt := a.Value.(pq.NullTime)
			t.CompletionDate = nil
			if nt.Valid {
				at := nt.Time
				t.CompletionDate = &at
			}
		}
	}
	m.mu.Lock()
	m.rows[id] = t
	m.writes++
	m.mu.Unlock()
	return t, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	m.writes++
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.failAll }

func newServer(t *testing.T) (*gin.Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	h := controller.NewTodoHandler(service.NewTodoService(store))

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/todos", h.GetTodos)
	r.POST("/todos", h.CreateTodo)
	r.GET("/todos/:id", h.GetTodo)
	r.PUT("/todos/:id", h.UpdateTodo)
	r.DELETE("/todos/:id", h.DeleteTodo)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateTodo_BuyMilk(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)

	rec := do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"id":1,"title":"buy milk","description":null,"completed":false,"completion_date":null}`,
		rec.Body.String())
}

func TestCreateTodo_Validation(t *testing.T) {
	t.Parallel()
	r, store := newServer(t)

	for _, body := range []string{`{}`, `{"title":5}`, `{"title":""}`, `[1,2]`, `{bad json`, ``} {
		rec := do(t, r, http.MethodPost, "/todos", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
		resp := decodeJSON[map[string]any](t, rec)
		assert.Equal(t, "validation failed", resp["error"])
		assert.NotEmpty(t, resp["details"])
	}
	assert.Zero(t, store.writes)
}

func TestListTodos(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)

	rec := do(t, r, http.MethodGet, "/todos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	do(t, r, http.MethodPost, "/todos", `{"title":"a"}`)
	do(t, r, http.MethodPost, "/todos", `{"title":"b","description":"bee"}`)

	rec = do(t, r, http.MethodGet, "/todos", "")
	todos := decodeJSON[[]models.Todo](t, rec)
	require.Len(t, todos, 2)
	assert.Equal(t, "b", todos[1].Title)
	require.NotNil(t, todos[1].Description)
	assert.Equal(t, "bee", *todos[1].Description)
}

func TestGetTodo(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"a"}`)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/todos/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/todos/2", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, r, http.MethodGet, "/todos/abc", "").Code)
}

func TestUpdateTodo_CompletedTrueSetsNow(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)

	rec := do(t, r, http.MethodPut, "/todos/1", `{"completed":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[models.Todo](t, rec)
	assert.True(t, got.Completed)
	require.NotNil(t, got.CompletionDate)
	assert.True(t, now.Equal(*got.CompletionDate))
}

func TestUpdateTodo_CompletedTrueIgnoresExplicitDate(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)

	rec := do(t, r, http.MethodPut, "/todos/1", `{"completed":true,"completion_date":"2020-01-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[models.Todo](t, rec)
	require.NotNil(t, got.CompletionDate)
	assert.True(t, now.Equal(*got.CompletionDate))
}

func TestUpdateTodo_CompletedFalseClearsDate(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)
	do(t, r, http.MethodPut, "/todos/1", `{"completed":true}`)

	rec := do(t, r, http.MethodPut, "/todos/1", `{"completed":false,"completion_date":"2020-01-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[models.Todo](t, rec)
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletionDate)
}

func TestUpdateTodo_ExplicitDateAlone(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)

	rec := do(t, r, http.MethodPut, "/todos/1", `{"completion_date":"2020-01-01"}`)
	got := decodeJSON[models.Todo](t, rec)
	require.NotNil(t, got.CompletionDate)
	assert.Equal(t, "2020-01-01", got.CompletionDate.Format("2006-01-02"))

	rec = do(t, r, http.MethodPut, "/todos/1", `{"completion_date":null}`)
	got = decodeJSON[models.Todo](t, rec)
	assert.Nil(t, got.CompletionDate)
}

func TestUpdateTodo_EmptyPatchUnchanged(t *testing.T) {
	t.Parallel()
	r, store := newServer(t)
	created := do(t, r, http.MethodPost, "/todos", `{"title":"buy milk","description":"2l"}`)
	writes := store.writes

	rec := do(t, r, http.MethodPut, "/todos/1", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, created.Body.String(), rec.Body.String())
	assert.Equal(t, writes, store.writes)
}

func TestUpdateTodo_Idempotent(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)

	patch := `{"title":"buy oat milk","description":null,"completed":true}`
	first := do(t, r, http.MethodPut, "/todos/1", patch)
	second := do(t, r, http.MethodPut, "/todos/1", patch)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestUpdateTodo_NotFound(t *testing.T) {
	t.Parallel()
	r, store := newServer(t)

	rec := do(t, r, http.MethodPut, "/todos/999", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Todo not found", decodeJSON[map[string]any](t, rec)["error"])
	assert.Zero(t, store.writes)
}

func TestUpdateTodo_WrongTypes(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)

	rec := do(t, r, http.MethodPut, "/todos/1", `{"completed":"yes","title":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeJSON[struct {
		Details []struct{ Field string } `json:"details"`
	}](t, rec)
	require.Len(t, resp.Details, 2)
	assert.Equal(t, "completed", resp.Details[0].Field)
	assert.Equal(t, "title", resp.Details[1].Field)
}

func TestDeleteTodo(t *testing.T) {
	t.Parallel()
	r, _ := newServer(t)
	do(t, r, http.MethodPost, "/todos", `{"title":"buy milk"}`)

	rec := do(t, r, http.MethodDelete, "/todos/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Todo deleted successfully"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/todos/1", "").Code)
}

func TestStorageErrorIs500(t *testing.T) {
	t.Parallel()
	r, store := newServer(t)
	store.failAll = &repository.StorageError{Op: "list todos", Err: errors.New("connection refused")}

	rec := do(t, r, http.MethodGet, "/todos", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeJSON[map[string]any](t, rec)["error"], "connection refused")

	rec = do(t, r, http.MethodPost, "/todos", `{"title":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	r, store := newServer(t)

	rec := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	store.failAll = errors.New("db down")
	rec = do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unhealthy", decodeJSON[map[string]any](t, rec)["status"])

	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/ready", "").Code)
}
