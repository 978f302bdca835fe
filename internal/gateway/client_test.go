package gateway_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanbandash/internal/gateway"
	"kanbandash/internal/kanban"
	"kanbandash/internal/logging"
)

const boardJSON = `{
  "board": {"id": "main-board", "title": "Main Board", "columnIds": ["next-up"]},
  "columns": {"next-up": {"id": "next-up", "title": "Next Up", "order": 0, "color": "bg-amber-500", "taskIds": ["1"]}},
  "tasks": {"1": {"id": "1", "title": "Mockups", "priority": "medium", "dueDate": "", "order": 1000, "columnId": "next-up", "archivedAt": null}}
}`

func newClient(t *testing.T, h http.HandlerFunc, session gateway.Session) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return gateway.New(srv.URL, session, gateway.WithLogger(logging.NewNop()))
}

var session = gateway.Session{Token: "tok", UserID: "u1"}

func TestFetchBoardState_DecodesSnapshot(t *testing.T) {
	// Arrange
	var auth string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/board", r.URL.Path)
		_, _ = io.WriteString(w, boardJSON)
	}, session)

	// Act
	state, err := c.FetchBoardState(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, []string{"next-up"}, state.Board.ColumnIDs)
	assert.Equal(t, kanban.PriorityMedium, state.Tasks["1"].Priority)
	assert.Equal(t, 1000.0, state.Tasks["1"].Order)
	assert.NoError(t, state.Validate())
}

func TestCalls_WithoutSessionFailFast(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, gateway.Session{})

	_, err := c.FetchBoardState(context.Background())
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	err = c.ArchiveTask(context.Background(), "1")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	err = c.Watch(context.Background(), gateway.WatchHandlers{})
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	assert.Equal(t, int32(0), hits.Load())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Invalid or expired token"}`, gateway.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{}`, gateway.ErrUnauthorized},
		{"not found", http.StatusNotFound, `{"error":"Task not found"}`, gateway.ErrNotFound},
		{"validation", http.StatusBadRequest, `{"error":"Missing required fields"}`, gateway.ErrValidation},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, gateway.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, session)

			err := c.ArchiveTask(context.Background(), "1")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var gerr *gateway.Error
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, tt.status, gerr.Status)
			assert.Equal(t, "archive task", gerr.Op)
		})
	}
}

func TestErrorMessageComesFromBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Missing required fields"}`)
	}, session)

	_, err := c.CreateTask(context.Background(), kanban.TaskFields{Title: "x"})

	assert.Contains(t, err.Error(), "Missing required fields")
}

func TestUndecodableBodyIsTransport(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}, session)

	_, err := c.FetchBoardState(context.Background())

	assert.ErrorIs(t, err, gateway.ErrTransport)
}

func TestUnreachableServerIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := gateway.New(srv.URL, session, gateway.WithTimeout(time.Second), gateway.WithLogger(logging.NewNop()))

	_, err := c.FetchBoardState(context.Background())

	assert.ErrorIs(t, err, gateway.ErrTransport)
}

func TestWithTimeout_LeavesCallerClientAlone(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	shared := &http.Client{}

	c := gateway.New(srv.URL, session,
		gateway.WithHTTPClient(shared),
		gateway.WithTimeout(50*time.Millisecond),
		gateway.WithLogger(logging.NewNop()))

	// Act
	_, err := c.FetchBoardState(context.Background())

	// Assert
	assert.ErrorIs(t, err, gateway.ErrTransport)
	assert.Zero(t, shared.Timeout)
}

func TestCreateTask_MapsRecord(t *testing.T) {
	// Arrange
	var sent map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, jsonUnmarshal(body, &sent))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"perm-1","title":"Write docs","priority":"high","due_date":"2026-03-01T00:00:00Z","sort_order":2000,"column_id":"next-up","archived_at":null}`)
	}, session)

	// Act
	task, err := c.CreateTask(context.Background(), kanban.TaskFields{
		Title: "Write docs", Priority: kanban.PriorityHigh, DueDate: "2026-03-01", ColumnID: "next-up", Order: 2000,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &kanban.Task{
		ID: "perm-1", Title: "Write docs", Priority: kanban.PriorityHigh, DueDate: "2026-03-01T00:00:00Z",
		Order: 2000, ColumnID: "next-up",
	}, task)
	assert.Equal(t, "next-up", sent["columnId"])
	assert.Equal(t, 2000.0, sent["order"])
	assert.Equal(t, "2026-03-01", sent["dueDate"])
}

func TestListTasks(t *testing.T) {
	var query string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("columnIds")
		_, _ = io.WriteString(w, `[{"id":"3","title":"Usability Testing","priority":"low","due_date":"","sort_order":2000,"column_id":"in-progress","archived_at":null}]`)
	}, session)

	tasks, err := c.ListTasks(context.Background(), []string{"in-progress", "next-up"})

	require.NoError(t, err)
	assert.Equal(t, "in-progress,next-up", query)
	require.Len(t, tasks, 1)
	assert.Equal(t, "in-progress", tasks[0].ColumnID)

	_, err = c.ListTasks(context.Background(), nil)
	assert.ErrorIs(t, err, gateway.ErrValidation)
}

func TestMoveTask_SendsDestination(t *testing.T) {
	var sent map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/tasks/3/move", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, jsonUnmarshal(body, &sent))
		_, _ = io.WriteString(w, `{"id":"3","title":"t","priority":"low","due_date":"","sort_order":2500,"column_id":"next-up","archived_at":null}`)
	}, session)

	task, err := c.MoveTask(context.Background(), "3", "next-up", 2500)

	require.NoError(t, err)
	assert.Equal(t, "next-up", task.ColumnID)
	assert.Equal(t, 2500.0, sent["order"])
}

func TestLogin_ReturnsSession(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"token":"jwt","user":{"id":"u9","email":"a@b.c","name":"A"}}`)
	}, gateway.Session{})

	s, err := c.Login(context.Background(), "a@b.c", "secret")

	require.NoError(t, err)
	assert.Equal(t, gateway.Session{Token: "jwt", UserID: "u9"}, s)
	assert.Equal(t, "board:u9", s.BoardKey())
}
