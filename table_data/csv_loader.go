package table_data

import (
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/logger"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
	"gitlab.grandhoo.com/rock/rock_pattern/utils"
)

// DerivedColumn 由已有 feature 列计算出的新列, 例如 {Name: "ratio", Expression: "a / b"}
type DerivedColumn struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

type CsvOption struct {
	LabelColumn string          // 为空时优先用 "label" 列, 否则最后一列
	Columns     []string        // 参与搜索的 feature 列, 为空表示全部
	SkipColumns []string        // 为 nil 时跳过 id 列
	Derived     []DerivedColumn // 按顺序计算, 后面的表达式可以引用前面的派生列
}

// LoadCsv 读取带表头的 csv, label 列之外的列都必须是数值
func LoadCsv(path string, option CsvOption) (*Table, error) {
	preData, err := utils.GetCsvData(path)
	if err != nil {
		return nil, err
	}
	if len(preData) == 0 {
		return nil, errors.Wrapf(common.ErrEmptyDataset, "%s has no header", path)
	}
	header := preData[0]

	labelIndex, err := findLabelColumn(header, option.LabelColumn)
	if err != nil {
		return nil, err
	}
	skip := option.SkipColumns
	if skip == nil {
		skip = []string{rds_config.SkipColumnId}
	}
	skip = append(append([]string{}, skip...), header[labelIndex])
	featureIndexes := utils.SelectColumns(header, option.Columns, skip)

	rowSize := len(preData) - 1
	names := make([]string, 0, len(featureIndexes)+len(option.Derived))
	columns := make([][]float64, 0, len(featureIndexes)+len(option.Derived))
	for _, i := range featureIndexes {
		column := make([]float64, rowSize)
		for j := 1; j <= rowSize; j++ {
			v, err := parseValue(preData[j][i])
			if err != nil {
				return nil, errors.Wrapf(common.ErrParseValue, "row %d column %s: %q", j, header[i], preData[j][i])
			}
			column[j-1] = v
		}
		names = append(names, header[i])
		columns = append(columns, column)
	}

	for _, derived := range option.Derived {
		column, err := evaluateDerived(derived, names, columns, rowSize)
		if err != nil {
			return nil, err
		}
		names = append(names, derived.Name)
		columns = append(columns, column)
	}

	labels := make([]string, rowSize)
	for j := 1; j <= rowSize; j++ {
		labels[j-1] = strings.TrimSpace(preData[j][labelIndex])
	}

	table, err := New(names, columns, labels)
	if err != nil {
		return nil, err
	}
	table.LabelName = header[labelIndex]
	logger.Infof("load csv %s, rows: %d, dims: %d, labels: %v", path, table.RowSize(), table.Dims(), table.LabelValues())
	return table, nil
}

func findLabelColumn(header []string, labelColumn string) (int, error) {
	if labelColumn != "" {
		for i, name := range header {
			if name == labelColumn {
				return i, nil
			}
		}
		return -1, errors.Wrapf(common.ErrLabelColumn, "%s not in %v", labelColumn, header)
	}
	for i, name := range header {
		if name == rds_config.LabelColumn {
			return i, nil
		}
	}
	if len(header) < 2 {
		return -1, errors.Wrapf(common.ErrLabelColumn, "need at least one feature and a label, header %v", header)
	}
	return len(header) - 1, nil
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

func evaluateDerived(derived DerivedColumn, names []string, columns [][]float64, rowSize int) ([]float64, error) {
	expression, err := govaluate.NewEvaluableExpression(derived.Expression)
	if err != nil {
		return nil, errors.Wrapf(common.ErrDerivedColumn, "%s: %v", derived.Name, err)
	}
	vars := expression.Vars()
	indexes := make([]int, len(vars))
	for k, name := range vars {
		indexes[k] = -1
		for d, n := range names {
			if n == name {
				indexes[k] = d
				break
			}
		}
		if indexes[k] == -1 {
			return nil, errors.Wrapf(common.ErrDerivedColumn, "%s: unknown column %s", derived.Name, name)
		}
	}

	column := make([]float64, rowSize)
	variables := make(map[string]interface{}, len(vars))
	for i := 0; i < rowSize; i++ {
		for k, name := range vars {
			variables[name] = columns[indexes[k]][i]
		}
		result, err := expression.Evaluate(variables)
		if err != nil {
			return nil, errors.Wrapf(common.ErrDerivedColumn, "%s row %d: %v", derived.Name, i+1, err)
		}
		v, ok := result.(float64)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(common.ErrDerivedColumn, "%s row %d: result %v is not a finite number", derived.Name, i+1, result)
		}
		column[i] = v
	}
	return column, nil
}
