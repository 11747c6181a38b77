package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/identity"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/tests/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) (*gin.Engine, *board.Service) {
	t.Helper()
	store := testutil.NewTestStore(t)
	svc := board.New(store, model.Paths{AppID: "test"}, 2, nil)
	return NewRouter(Config{Board: svc, Store: store}), svc
}

func do(t *testing.T, h http.Handler, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Name", strings.ToUpper(user[:1])+user[1:])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	r, _ := setupRouter(t)
	rec, body := do(t, r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRequiresUserID(t *testing.T) {
	r, _ := setupRouter(t)
	rec, _ := do(t, r, http.MethodGet, "/api/v1/projects", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIFlow(t *testing.T) {
	r, _ := setupRouter(t)

	rec, body := do(t, r, http.MethodPost, "/api/v1/projects", "ana", `{"name":"Website","description":"relaunch"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Project created successfully!", body["message"])
	projectID := body["id"].(string)

	rec, body = do(t, r, http.MethodGet, "/api/v1/projects", "ana", "")
	require.Equal(t, http.StatusOK, rec.Code)
	projects := body["projects"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, "Website", projects[0].(map[string]any)["name"])

	tasks := "/api/v1/projects/" + projectID + "/tasks"
	rec, body = do(t, r, http.MethodPost, tasks, "ana", `{"title":"Design homepage"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Task added successfully!", body["message"])
	task := tasks + "/" + body["id"].(string)

	rec, body = do(t, r, http.MethodPut, task, "ana",
		`{"title":"Design homepage","status":"in-progress","assignedTo":"bob","assignedToDisplayName":"Bob"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Task updated successfully!", body["message"])

	rec, body = do(t, r, http.MethodGet, task, "ana", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in-progress", body["status"])
	assert.Equal(t, "Bob", body["assignedToDisplayName"])

	rec, body = do(t, r, http.MethodPost, task+"/comments", "bob", `{"text":"On it"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, body, "message")

	rec, body = do(t, r, http.MethodGet, task+"/comments", "ana", "")
	require.Equal(t, http.StatusOK, rec.Code)
	comments := body["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "Bob", comments[0].(map[string]any)["userName"])

	rec, body = do(t, r, http.MethodDelete, "/api/v1/projects/"+projectID, "ana", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Project deleted successfully!", body["message"])

	rec, _ = do(t, r, http.MethodGet, task, "ana", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	r, _ := setupRouter(t)

	rec, body := do(t, r, http.MethodPost, "/api/v1/projects", "ana", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Project name cannot be empty.", body["error"])

	rec, body = do(t, r, http.MethodPost, "/api/v1/projects/p1/tasks/t1/comments", "ana", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Comment cannot be empty.", body["error"])

	rec, _ = do(t, r, http.MethodPost, "/api/v1/projects", "ana", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodPut, "/api/v1/projects/p1/tasks/missing", "ana", `{"title":"x","status":"done"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, resp *http.Response) <-chan sseEvent {
	t.Helper()
	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "":
				if ev.name != "" {
					out <- ev
				}
				ev = sseEvent{}
			}
		}
	}()
	return out
}

func next(t *testing.T, events <-chan sseEvent, name string) sseEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream ended before %q", name)
			if ev.name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %q event", name)
		}
	}
}

func TestNotificationStream(t *testing.T) {
	r, svc := setupRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx := context.Background()
	ana := identity.Identity{ID: "ana", DisplayName: "Ana"}
	bob := identity.Identity{ID: "bob", DisplayName: "Bob"}
	projectID, err := svc.CreateProject(ctx, ana, "Website", "")
	require.NoError(t, err)
	taskID, err := svc.CreateTask(ctx, ana, projectID, "Design homepage", "")
	require.NoError(t, err)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet,
		srv.URL+"/api/v1/projects/"+projectID+"/notifications", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "ana")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := readEvents(t, resp)
	next(t, events, "ready")

	_, err = svc.PostComment(ctx, bob, projectID, taskID, "Looks good")
	require.NoError(t, err)

	ev := next(t, events, "comment")
	var n model.Notification
	require.NoError(t, json.Unmarshal([]byte(ev.data), &n))
	assert.Equal(t, `New comment on task "Design homepage" by Bob`, n.Message)
	assert.Equal(t, model.SeverityInfo, n.Severity)
	assert.Equal(t, taskID, n.TaskID)
}
