package request

import (
	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/config"
	"gitlab.grandhoo.com/rock/rock_pattern/rule_export"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
)

// MineRequest 一次挖掘任务. 参数字段为空时使用配置文件里的值
type MineRequest struct {
	CsvPath     string                     `json:"csvPath" binding:"required"` // 本地完整路径,如/data/test.csv
	LabelColumn string                     `json:"labelColumn"`
	Columns     []string                   `json:"columns"`     // 为空时使用除 label 和 id 外的所有列
	SkipColumns []string                   `json:"skipColumns"` // 为空时跳过 id
	Derived     []table_data.DerivedColumn `json:"derived"`     // govaluate 表达式, 如 "income / age"
	Labels      []string                   `json:"labels"`      // 为空时挖掘所有 label

	MinSupport    *int     `json:"minSupport"`
	NumIterations *int     `json:"numIterations"`
	Sita          *float64 `json:"sita"`
	M             *float64 `json:"m"`
	MinCovered    *int     `json:"minCovered"`
	Seed          *int64   `json:"seed"`

	Persist   bool     `json:"persist"`   // 结果写库
	OutputDir string   `json:"outputDir"` // 不为空时导出 csv 和 msgpack
	DotLabels []string `json:"dotLabels"` // 这些 label 的搜索图导出为 dot, 需要 outputDir
}

type MineResponse struct {
	TaskId     int64                     `json:"taskId,omitempty"`
	Labels     []string                  `json:"labels"`
	RuleSets   []rule_export.RuleSetView `json:"ruleSets"`
	Failed     map[string]string         `json:"failed,omitempty"`
	RuleCount  int                       `json:"ruleCount"`
	TotalTime  int64                     `json:"totalTime"` // ms
	SearchTime string                    `json:"searchTime"`
	SelectTime string                    `json:"selectTime"`
	Files      []string                  `json:"files,omitempty"`
}

// Mining 请求参数覆盖到 base 上
func (r *MineRequest) Mining(base config.Mining) (config.Mining, error) {
	m := base
	if r.LabelColumn != "" {
		m.LabelColumn = r.LabelColumn
	}
	if r.MinSupport != nil {
		m.MinSupport = *r.MinSupport
	}
	if r.NumIterations != nil {
		m.NumIterations = *r.NumIterations
	}
	if r.Sita != nil {
		m.Sita = *r.Sita
	}
	if r.M != nil {
		m.M = *r.M
	}
	if r.MinCovered != nil {
		m.MinCovered = *r.MinCovered
	}
	if r.Seed != nil {
		m.Seed = *r.Seed
	}
	if err := m.Validate(); err != nil {
		return m, errors.Wrap(common.ErrInvalidParams, err.Error())
	}
	return m, nil
}

func (r *MineRequest) CsvOption(labelColumn string) table_data.CsvOption {
	return table_data.CsvOption{
		LabelColumn: labelColumn,
		Columns:     r.Columns,
		SkipColumns: r.SkipColumns,
		Derived:     r.Derived,
	}
}
