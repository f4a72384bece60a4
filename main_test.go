package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gitlab.grandhoo.com/rock/rock_pattern/config"
	"gitlab.grandhoo.com/rock/rock_pattern/dao"
	"gitlab.grandhoo.com/rock/rock_pattern/global_variables"
	"gitlab.grandhoo.com/rock/rock_pattern/request"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func writeScenarioCsv(t *testing.T) string {
	rows := [][2]int{
		{1, 1}, {1, 2}, {2, 1}, {2, 2}, {3, 1}, {1, 3}, {2, 3}, {3, 2}, {3, 3}, {4, 1},
		{6, 6}, {6, 7}, {7, 6}, {7, 7}, {8, 8}, {5, 6}, {6, 5}, {8, 6}, {4, 4}, {2, 6},
	}
	var sb strings.Builder
	sb.WriteString("id,x,y,label\n")
	for i, row := range rows {
		label := "a"
		if i >= 10 {
			label = "b"
		}
		sb.WriteString(fmt.Sprintf("%d,%d,%d,%s\n", i, row[0], row[1], label))
	}
	path := filepath.Join(t.TempDir(), "scenario.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func testConfig() *config.AllConfig {
	conf := config.Default()
	conf.Mining.NumIterations = 50
	conf.Mining.Workers = 2
	return conf
}

func doRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
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

type mineResult struct {
	Success bool                 `json:"success"`
	Data    request.MineResponse `json:"data"`
	Error   string               `json:"error"`
}

func decodeMine(t *testing.T, w *httptest.ResponseRecorder) mineResult {
	var res mineResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestHealth(t *testing.T) {
	r := newRouter(testConfig())
	w := doRequest(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success":true`)
}

func TestMine(t *testing.T) {
	r := newRouter(testConfig())
	csvPath := writeScenarioCsv(t)

	w := doRequest(r, http.MethodPost, "/mine", request.MineRequest{CsvPath: csvPath})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeMine(t, w)
	require.True(t, res.Success)
	require.Equal(t, []string{"a", "b"}, res.Data.Labels)
	require.Len(t, res.Data.RuleSets, 2)
	require.Empty(t, res.Data.Failed)
	require.Zero(t, res.Data.TaskId)
	count := 0
	for _, view := range res.Data.RuleSets {
		require.Equal(t, 10, view.LabelSize)
		for _, rule := range view.Rules {
			require.Greater(t, rule.TruePositive, rule.FalsePositive)
			require.Equal(t, rule.TruePositive, len(rule.TruePositives.Rows()))
		}
		count += len(view.Rules)
	}
	require.Equal(t, res.Data.RuleCount, count)
	require.False(t, global_variables.IsJobRunning())
}

func TestMineExport(t *testing.T) {
	r := newRouter(testConfig())
	outDir := t.TempDir()

	w := doRequest(r, http.MethodPost, "/mine", request.MineRequest{
		CsvPath:   writeScenarioCsv(t),
		Labels:    []string{"a"},
		OutputDir: outDir,
		DotLabels: []string{"a"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeMine(t, w)
	require.Len(t, res.Data.Files, 3)
	for _, file := range res.Data.Files {
		require.FileExists(t, file)
	}
	require.FileExists(t, filepath.Join(outDir, "search_a.dot"))
}

func TestMineBadRequest(t *testing.T) {
	r := newRouter(testConfig())

	w := doRequest(r, http.MethodPost, "/mine", map[string]string{"labelColumn": "label"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/mine", request.MineRequest{CsvPath: filepath.Join(t.TempDir(), "missing.csv")})
	require.Equal(t, http.StatusBadRequest, w.Code)

	sita := 1.5
	w = doRequest(r, http.MethodPost, "/mine", request.MineRequest{CsvPath: writeScenarioCsv(t), Sita: &sita})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decodeMine(t, w).Error, "sita")

	w = doRequest(r, http.MethodPost, "/mine", request.MineRequest{CsvPath: writeScenarioCsv(t), LabelColumn: "class"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMineJobRunning(t *testing.T) {
	r := newRouter(testConfig())
	require.True(t, global_variables.TryStartJob("other"))
	defer global_variables.FinishJob()

	w := doRequest(r, http.MethodPost, "/mine", request.MineRequest{CsvPath: writeScenarioCsv(t)})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Contains(t, w.Body.String(), "a job is running")

	w = doRequest(r, http.MethodGet, "/health", nil)
	require.Contains(t, w.Body.String(), `"job":"other"`)
}

func TestTasksWithoutDb(t *testing.T) {
	r := newRouter(testConfig())
	require.Equal(t, http.StatusServiceUnavailable, doRequest(r, http.MethodGet, "/tasks", nil).Code)
	require.Equal(t, http.StatusServiceUnavailable, doRequest(r, http.MethodGet, "/tasks/1/rules", nil).Code)

	w := doRequest(r, http.MethodPost, "/mine", request.MineRequest{CsvPath: writeScenarioCsv(t), Persist: true})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPersistedTask(t *testing.T) {
	require.NoError(t, dao.InitGorm("sqlite", filepath.Join(t.TempDir(), "rock_pattern.db")))
	t.Cleanup(func() { dao.DB = nil })
	r := newRouter(testConfig())

	w := doRequest(r, http.MethodPost, "/mine", request.MineRequest{CsvPath: writeScenarioCsv(t), Persist: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeMine(t, w)
	taskId := res.Data.TaskId
	require.Positive(t, taskId)

	task, err := dao.GetPatternTaskById(taskId)
	require.NoError(t, err)
	require.Equal(t, dao.TaskDone, task.Status)
	require.Equal(t, res.Data.RuleCount, task.RuleCount)

	w = doRequest(r, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "scenario.csv")

	w = doRequest(r, http.MethodGet, fmt.Sprintf("/tasks/%d/rules", taskId), nil)
	require.Equal(t, http.StatusOK, w.Code)
	rules, err := dao.GetPatternRulesByTaskId(taskId)
	require.NoError(t, err)
	require.Len(t, rules, res.Data.RuleCount)

	w = doRequest(r, http.MethodGet, fmt.Sprintf("/tasks/%d/rules?format=text&label=a", taskId), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Regexp(t, `covered \d+/10`, w.Body.String())

	require.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/tasks/x/rules", nil).Code)
	require.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/tasks/999/rules", nil).Code)

	w = doRequest(r, http.MethodDelete, fmt.Sprintf("/tasks/%d", taskId), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, fmt.Sprintf("/tasks/%d/rules", taskId), nil).Code)
	rules, err = dao.GetPatternRulesByTaskId(taskId)
	require.NoError(t, err)
	require.Empty(t, rules)

	require.Equal(t, http.StatusNotFound, doRequest(r, http.MethodDelete, fmt.Sprintf("/tasks/%d", taskId), nil).Code)
	require.Equal(t, http.StatusNotFound, doRequest(r, http.MethodDelete, "/tasks/999", nil).Code)
	require.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodDelete, "/tasks/x", nil).Code)
}
