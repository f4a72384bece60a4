package table_data

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"golang.org/x/exp/slices"
)

// Table 只读的列存数值表, 加载后在所有 label 的搜索间共享.
// 行号 0..N-1 在一次运行内保持不变
type Table struct {
	Header    []string    // feature 列名, 下标即维度
	LabelName string      // label 列名
	Columns   [][]float64 // dim -> row -> value
	Labels    []string    // row -> label

	distinct    [][]float64 // dim -> 有序去重值
	labelValues []string
	labelMasks  map[string]*bitset.BitSet
	labelRows   map[string]*roaring.Bitmap
}

// New 由列数据创建 Table, 零行或零维返回 common.ErrEmptyDataset
func New(header []string, columns [][]float64, labels []string) (*Table, error) {
	if len(columns) == 0 || len(labels) == 0 {
		return nil, errors.Wrapf(common.ErrEmptyDataset, "%d dims, %d rows", len(columns), len(labels))
	}
	if len(header) != len(columns) {
		return nil, errors.Errorf("header has %d names for %d columns", len(header), len(columns))
	}
	rowSize := len(labels)
	for d, column := range columns {
		if len(column) != rowSize {
			return nil, errors.Errorf("column %s has %d values, label has %d", header[d], len(column), rowSize)
		}
		for row, v := range column {
			if math.IsNaN(v) {
				return nil, errors.Wrapf(common.ErrParseValue, "column %s row %d is NaN", header[d], row)
			}
		}
	}

	t := &Table{
		Header:     header,
		LabelName:  "label",
		Columns:    columns,
		Labels:     labels,
		distinct:   make([][]float64, len(columns)),
		labelMasks: map[string]*bitset.BitSet{},
		labelRows:  map[string]*roaring.Bitmap{},
	}
	for d, column := range columns {
		values := slices.Clone(column)
		sort.Float64s(values)
		t.distinct[d] = slices.Compact(values)
	}
	for row, label := range labels {
		mask, ok := t.labelMasks[label]
		if !ok {
			mask = bitset.New(uint(rowSize))
			t.labelMasks[label] = mask
			t.labelRows[label] = roaring.New()
			t.labelValues = append(t.labelValues, label)
		}
		mask.Set(uint(row))
		t.labelRows[label].Add(uint32(row))
	}
	sort.Strings(t.labelValues)
	return t, nil
}

// NewFromRows 行存形式的便捷构造, rows[i] 是第 i 行的 feature 值
func NewFromRows(header []string, rows [][]float64, labels []string) (*Table, error) {
	if len(rows) != len(labels) {
		return nil, errors.Errorf("%d rows but %d labels", len(rows), len(labels))
	}
	columns := make([][]float64, len(header))
	for d := range columns {
		columns[d] = make([]float64, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.Errorf("row %d has %d values, header has %d", i, len(row), len(header))
		}
		for d, v := range row {
			columns[d][i] = v
		}
	}
	return New(header, columns, labels)
}

func (t *Table) RowSize() int {
	return len(t.Labels)
}

func (t *Table) Dims() int {
	return len(t.Columns)
}

func (t *Table) Value(row, dim int) float64 {
	return t.Columns[dim][row]
}

// Distinct 维度 dim 的有序去重值, 调用方不能修改
func (t *Table) Distinct(dim int) []float64 {
	return t.distinct[dim]
}

func (t *Table) Min(dim int) float64 {
	return t.distinct[dim][0]
}

func (t *Table) Max(dim int) float64 {
	return t.distinct[dim][len(t.distinct[dim])-1]
}

// LabelValues 所有不同的 label, 已排序
func (t *Table) LabelValues() []string {
	return t.labelValues
}

func (t *Table) HasLabel(label string) bool {
	_, ok := t.labelMasks[label]
	return ok
}

// LabelMask 行号 bitset, 未知 label 返回 nil
func (t *Table) LabelMask(label string) *bitset.BitSet {
	return t.labelMasks[label]
}

// LabelRows label 的行号集合, 共享只读; 未知 label 返回空集合
func (t *Table) LabelRows(label string) *roaring.Bitmap {
	if rows, ok := t.labelRows[label]; ok {
		return rows
	}
	return roaring.New()
}

func (t *Table) LabelCount(label string) int {
	if rows, ok := t.labelRows[label]; ok {
		return int(rows.GetCardinality())
	}
	return 0
}

// Prior label 在整表中的占比
func (t *Table) Prior(label string) float64 {
	if t.RowSize() == 0 {
		return 0
	}
	return float64(t.LabelCount(label)) / float64(t.RowSize())
}

// DimIndex 列名对应的维度, 不存在返回 -1
func (t *Table) DimIndex(name string) int {
	return slices.Index(t.Header, name)
}
