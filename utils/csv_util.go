package utils

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/wxnacy/wgo/arrays"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/logger"
)

// GetCsvData 读取整个 csv, 第一行为表头
func GetCsvData(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		logger.Errorf("open csv %s failed, err: %v", path, err)
		return nil, errors.Wrapf(common.ErrOpenCsv, "%s: %v", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	preData, err := reader.ReadAll()
	if err != nil {
		logger.Errorf("read csv %s failed, err: %v", path, err)
		return nil, errors.Wrapf(common.ErrReadCsv, "%s: %v", path, err)
	}
	if len(preData) > 0 && len(preData[0]) > 0 {
		// excel 导出的 csv 带 BOM
		preData[0][0] = trimBom(preData[0][0])
	}
	return preData, nil
}

// SelectColumns 返回表头中需要保留的列下标. columns 为空时保留全部, skip 中的列总是跳过
func SelectColumns(header []string, columns []string, skip []string) []int {
	var indexes []int
	for i, columnName := range header {
		if arrays.ContainsString(skip, columnName) != -1 {
			continue
		}
		if len(columns) > 0 && arrays.ContainsString(columns, columnName) == -1 {
			continue
		}
		indexes = append(indexes, i)
	}
	return indexes
}

// CreateCsv 在 outputFolderPath 下写出 csv, 返回绝对路径
func CreateCsv(outputFolderPath, name string, data [][]string) (string, error) {
	if err := os.MkdirAll(outputFolderPath, 0777); err != nil {
		return "", errors.Wrap(err, "mkdir output")
	}

	path := filepath.Join(outputFolderPath, name)
	csvFile, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create csv")
	}
	defer csvFile.Close()

	csvFile.WriteString("\xEF\xBB\xBF")
	csvWriter := csv.NewWriter(csvFile)
	if err = csvWriter.WriteAll(data); err != nil {
		logger.Errorf("write csv %s failed, err: %v", path, err)
		return "", errors.Wrap(err, "write csv")
	}
	absPath, _ := filepath.Abs(path)
	return absPath, nil
}

func trimBom(s string) string {
	const bom = "\xEF\xBB\xBF"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
