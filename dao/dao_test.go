package dao

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initTestDB(t *testing.T) {
	require.NoError(t, InitGorm("sqlite", filepath.Join(t.TempDir(), "rock_pattern.db")))
	t.Cleanup(func() { DB = nil })
}

func TestInitGorm(t *testing.T) {
	require.Error(t, InitGorm("mysql", "x"))
	require.False(t, Enabled())
	initTestDB(t)
	require.True(t, Enabled())
}

func TestPatternTask(t *testing.T) {
	initTestDB(t)

	taskId, err := CreatePatternTask(&PatternTask{CsvPath: "data.csv", Labels: `["a","b"]`})
	require.NoError(t, err)
	require.Positive(t, taskId)

	task, err := GetPatternTaskById(taskId)
	require.NoError(t, err)
	require.Equal(t, "data.csv", task.CsvPath)
	require.Equal(t, TaskRunning, task.Status)
	require.Positive(t, task.CreateTime)

	require.NoError(t, FinishPatternTask(taskId, TaskDone, 3, 120, ""))
	task, err = GetPatternTaskById(taskId)
	require.NoError(t, err)
	require.Equal(t, TaskDone, task.Status)
	require.Equal(t, 3, task.RuleCount)
	require.Equal(t, int64(120), task.TotalTime)

	second, err := CreatePatternTask(&PatternTask{CsvPath: "other.csv"})
	require.NoError(t, err)
	tasks, err := ListPatternTasks(10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, second, tasks[0].Id)

	deleted, err := DeletePatternTask(taskId)
	require.NoError(t, err)
	require.True(t, deleted)
	_, err = GetPatternTaskById(taskId)
	require.Error(t, err)
	deleted, err = DeletePatternTask(taskId)
	require.NoError(t, err)
	require.False(t, deleted)
	deleted, err = DeletePatternTask(999)
	require.NoError(t, err)
	require.False(t, deleted)
	tasks, err = ListPatternTasks(10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestPatternRule(t *testing.T) {
	initTestDB(t)

	require.NoError(t, CreatePatternRules(nil))
	rules := []PatternRule{
		{TaskId: 1, Label: "b", Rank: 0, Ree: "1 <= x <= 2", TruePositive: 4},
		{TaskId: 1, Label: "a", Rank: 1, Ree: "3 <= x <= 4", TruePositive: 3},
		{TaskId: 1, Label: "a", Rank: 0, Ree: "0 <= x <= 1", TruePositive: 5},
		{TaskId: 2, Label: "a", Rank: 0, Ree: "0 <= x <= 9", TruePositive: 1},
	}
	require.NoError(t, CreatePatternRules(rules))

	got, err := GetPatternRulesByTaskId(1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "0 <= x <= 1", got[0].Ree)
	require.Equal(t, "3 <= x <= 4", got[1].Ree)
	require.Equal(t, "b", got[2].Label)

	got, err = GetPatternRulesByLabel(1, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 5, got[0].TruePositive)

	require.NoError(t, DeletePatternRulesByTaskId(1))
	got, err = GetPatternRulesByTaskId(1)
	require.NoError(t, err)
	require.Empty(t, got)
	got, err = GetPatternRulesByTaskId(2)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
