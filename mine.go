package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/config"
	"gitlab.grandhoo.com/rock/rock_pattern/dao"
	"gitlab.grandhoo.com/rock/rock_pattern/logger"
	"gitlab.grandhoo.com/rock/rock_pattern/request"
	"gitlab.grandhoo.com/rock/rock_pattern/rule_dig"
	"gitlab.grandhoo.com/rock/rock_pattern/rule_export"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
	"gitlab.grandhoo.com/rock/rock_pattern/utils/set"
)

// runMine 读 csv, 挖掘规则, 按请求导出文件和写库. http 和命令行共用
func runMine(ctx context.Context, conf *config.AllConfig, req *request.MineRequest) (resp *request.MineResponse, err error) {
	startTime := time.Now()
	mining, err := req.Mining(conf.Mining)
	if err != nil {
		return nil, err
	}
	table, err := table_data.LoadCsv(req.CsvPath, req.CsvOption(mining.LabelColumn))
	if err != nil {
		return nil, err
	}

	var taskId int64
	if req.Persist {
		if !dao.Enabled() {
			return nil, errors.New("persist requested but db is not configured")
		}
		labels, _ := json.Marshal(req.Labels)
		params, _ := json.Marshal(mining)
		taskId, err = dao.CreatePatternTask(&dao.PatternTask{
			CsvPath: req.CsvPath,
			Labels:  string(labels),
			Params:  string(params),
			Status:  dao.TaskRunning,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create pattern task")
		}
		defer func() {
			if err != nil {
				if e := dao.FinishPatternTask(taskId, dao.TaskFailed, 0, time.Since(startTime).Milliseconds(), err.Error()); e != nil {
					logger.Errorf("finish task %d failed: %v", taskId, e)
				}
			}
		}()
	}

	result, err := rule_dig.DigRules(ctx, table, rule_dig.Option{
		Mining:    mining,
		Labels:    req.Labels,
		KeepGraph: len(req.DotLabels) > 0,
	})
	if err != nil {
		return nil, err
	}

	views := rule_export.Views(table.Header, result.RuleSets)
	resp = &request.MineResponse{
		TaskId:     taskId,
		Labels:     result.Labels,
		RuleSets:   views,
		RuleCount:  result.RuleCount(),
		SearchTime: result.SearchTime,
		SelectTime: result.SelectTime,
	}
	if len(result.Failed) > 0 {
		resp.Failed = map[string]string{}
		for label, e := range result.Failed {
			resp.Failed[label] = e.Error()
		}
	}

	if req.OutputDir != "" {
		resp.Files, err = exportFiles(req.OutputDir, table.Header, views, result, req.DotLabels)
		if err != nil {
			return nil, err
		}
	}

	resp.TotalTime = time.Since(startTime).Milliseconds()
	if taskId > 0 {
		if err = dao.CreatePatternRules(rule_export.ToDbRules(taskId, views)); err != nil {
			return nil, errors.Wrap(err, "save pattern rules")
		}
		if err = dao.FinishPatternTask(taskId, dao.TaskDone, resp.RuleCount, resp.TotalTime, ""); err != nil {
			return nil, errors.Wrap(err, "finish pattern task")
		}
	}
	logger.Infof("mine %s finish, task: %d, rules: %d, failed: %d, time: %dms", req.CsvPath, taskId, resp.RuleCount, len(resp.Failed), resp.TotalTime)
	return resp, nil
}

func exportFiles(outDir string, header []string, views []rule_export.RuleSetView, result *rule_dig.Result, dotLabels []string) ([]string, error) {
	var files []string
	path, err := rule_export.WriteCsv(outDir, "rules", views)
	if err != nil {
		return nil, errors.Wrap(err, "write rule csv")
	}
	files = append(files, path)
	path, err = rule_export.WriteSnapshot(outDir, "rules", views)
	if err != nil {
		return nil, errors.Wrap(err, "write rule snapshot")
	}
	files = append(files, path)
	dots := set.Of(dotLabels...)
	for _, detail := range result.Details {
		if detail.Graph == nil || !dots.Exist(detail.Label) {
			continue
		}
		path, err = rule_export.WriteDot(outDir, header, detail.Label, detail.Graph)
		if err != nil {
			return nil, errors.Wrapf(err, "write dot of %s", detail.Label)
		}
		files = append(files, path)
	}
	return files, nil
}
