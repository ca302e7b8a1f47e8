package container

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "approval.db")
	cfg.Server.Port = 18080
	return cfg
}

func startContainer(t *testing.T, cfg *Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		if !c.closed.Load() {
			c.Close()
		}
	})
	return c
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestContainer_Lifecycle(t *testing.T) {
	c := startContainer(t, testConfig(t))

	assert.True(t, c.Ready())
	assert.NotNil(t, c.DB())
	assert.NotNil(t, c.Repositories())
	assert.NotNil(t, c.Directory())
	assert.NotNil(t, c.Dispatcher())
	assert.NotNil(t, c.WorkflowEngine())
	assert.NotNil(t, c.HTTPServer())
	require.NotNil(t, c.Services())
	assert.NotNil(t, c.Services().Applications)
	assert.NotNil(t, c.Services().Decisions)

	err := c.Start(context.Background())
	assert.ErrorContains(t, err, "already started")

	health := c.Health()
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "nodes: 1", health.Components["workflow"].Message)
	assert.Equal(t, fmt.Sprintf("handlers: %d", len(event.AllTypes())), health.Components["dispatcher"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.ErrorContains(t, c.Close(), "already closed")
	assert.ErrorContains(t, c.Start(context.Background()), "has been closed")
	assert.False(t, c.Health().Overall)
}

func TestContainer_UnresolvableChainFailsStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.Nodes = []workflow.NodeSpec{{Name: "审批", Strategy: "vote"}}

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow")
	assert.False(t, c.Ready())
}

func TestContainer_AuditSubscribed(t *testing.T) {
	c := startContainer(t, testConfig(t))

	for _, eventType := range []event.Type{event.TypeApplicationSubmitted, event.TypeApplicationDecided} {
		var found bool
		for _, info := range c.Dispatcher().ListHandlers(eventType) {
			if info.Name == "audit-log" {
				found = true
			}
		}
		assert.True(t, found, eventType.String())
	}
}

func requester(t *testing.T, c *Container) func(method, path string, userID int64, body interface{}) *httptest.ResponseRecorder {
	router := c.HTTPServer().Router()
	return func(method, path string, userID int64, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
}

func TestContainer_RevokedAdminLosesAccessImmediately(t *testing.T) {
	c := startContainer(t, testConfig(t))
	do := requester(t, c)

	// Warm the directory cache with the admin's record
	_, err := c.Directory().GetUserByID(context.Background(), 1)
	require.NoError(t, err)

	w := do(http.MethodGet, "/api/admin/applications", 1, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err = c.sqlDB.Exec("DELETE FROM sys_user_role WHERE user_id = 1 AND role_code = 'admin'")
	require.NoError(t, err)

	w = do(http.MethodGet, "/api/admin/applications", 1, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestContainer_SubmitAndApproveOverHTTP(t *testing.T) {
	c := startContainer(t, testConfig(t))
	do := requester(t, c)

	w := do(http.MethodPost, "/api/applications/leave", 3, map[string]interface{}{
		"leave_type": 3,
		"start_time": "2025-07-01T09:00:00+08:00",
		"end_time":   "2025-07-02T18:00:00+08:00",
		"days":       2,
		"reason":     "回老家探亲",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var todo struct {
		Data struct {
			Records []struct {
				TaskID int64 `json:"task_id"`
			} `json:"records"`
			Total int64 `json:"total"`
		} `json:"data"`
	}
	w = do(http.MethodGet, "/api/tasks/todo", 2, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &todo))
	require.Equal(t, int64(1), todo.Data.Total)
	require.Len(t, todo.Data.Records, 1)

	taskPath := "/api/tasks/" + strconv.FormatInt(todo.Data.Records[0].TaskID, 10) + "/decision"
	w = do(http.MethodPost, taskPath, 2, map[string]interface{}{"action": 1, "comment": "同意"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A second decision on the closed task is a state conflict
	w = do(http.MethodPost, taskPath, 2, map[string]interface{}{"action": 1})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = do(http.MethodGet, "/api/summary", 3, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Data struct {
			TotalCount    int64 `json:"total_count"`
			ApprovedCount int64 `json:"approved_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.Data.TotalCount)
	assert.Equal(t, int64(1), summary.Data.ApprovedCount)
}
