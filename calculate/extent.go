package calculate

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
)

// Evaluation 一个 pattern 对某个 label 的全部统计, 节点创建时算一次后缓存
type Evaluation struct {
	Extent        *roaring.Bitmap
	Support       int // extent 中属于 label 的行数
	FalsePositive int
	Quality       float64 // m-estimate
}

func (e Evaluation) Terminal(minSupport int) bool {
	return e.Support < minSupport
}

// Extent 逐行检查所有维度, 返回落在 p 内的行号以及其中属于 label 的行数.
// 区间个数与表的维度不一致时 extent 为空
func Extent(p pattern.Pattern, t *table_data.Table, label string) (*roaring.Bitmap, int) {
	rows := roaring.New()
	if len(p) != t.Dims() {
		return rows, 0
	}
	mask := t.LabelMask(label)
	labelCount := 0
	rowSize := t.RowSize()
	for row := 0; row < rowSize; row++ {
		if !p.ContainsRow(t, row) {
			continue
		}
		rows.Add(uint32(row))
		if mask != nil && mask.Test(uint(row)) {
			labelCount++
		}
	}
	return rows, labelCount
}

func Support(p pattern.Pattern, t *table_data.Table, label string) int {
	_, support := Extent(p, t, label)
	return support
}

// MEstimateCounts (tp + m*prior) / (tp + fp + m), extent 为空时为 0
func MEstimateCounts(tp, fp int, prior, m float64) float64 {
	if tp+fp == 0 {
		return 0
	}
	return (float64(tp) + m*prior) / (float64(tp+fp) + m)
}

func MEstimate(p pattern.Pattern, t *table_data.Table, label string, m float64) float64 {
	rows, tp := Extent(p, t, label)
	fp := int(rows.GetCardinality()) - tp
	return MEstimateCounts(tp, fp, t.Prior(label), m)
}

func Evaluate(p pattern.Pattern, t *table_data.Table, label string, m float64) Evaluation {
	rows, tp := Extent(p, t, label)
	fp := int(rows.GetCardinality()) - tp
	return Evaluation{
		Extent:        rows,
		Support:       tp,
		FalsePositive: fp,
		Quality:       MEstimateCounts(tp, fp, t.Prior(label), m),
	}
}

// Jaccard |a∩b| / |a∪b|, 两个空集相似度为 1
func Jaccard(a, b *roaring.Bitmap) float64 {
	union := a.OrCardinality(b)
	if union == 0 {
		return 1
	}
	return float64(a.AndCardinality(b)) / float64(union)
}

// Closure 收缩到 extent 的包围盒; extent 为空时原样返回 p
func Closure(p pattern.Pattern, t *table_data.Table, rows *roaring.Bitmap) pattern.Pattern {
	if rows.IsEmpty() || len(p) != t.Dims() {
		return p
	}
	closed := make(pattern.Pattern, len(p))
	first := true
	it := rows.Iterator()
	for it.HasNext() {
		row := int(it.Next())
		for d := range closed {
			v := t.Columns[d][row]
			if first {
				closed[d] = pattern.Interval{Low: v, High: v}
				continue
			}
			if v < closed[d].Low {
				closed[d].Low = v
			}
			if v > closed[d].High {
				closed[d].High = v
			}
		}
		first = false
	}
	return closed
}

// ExtentValues extent 在维度 dim 上的有序去重值
func ExtentValues(t *table_data.Table, rows *roaring.Bitmap, dim int) []float64 {
	distinct := t.Distinct(dim)
	present := make([]bool, len(distinct))
	column := t.Columns[dim]
	it := rows.Iterator()
	for it.HasNext() {
		present[sort.SearchFloat64s(distinct, column[it.Next()])] = true
	}
	values := make([]float64, 0, len(distinct))
	for i, ok := range present {
		if ok {
			values = append(values, distinct[i])
		}
	}
	return values
}
