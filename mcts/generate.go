package mcts

import (
	"math/rand"

	"github.com/RoaringBitmap/roaring"
	"gitlab.grandhoo.com/rock/rock_pattern/calculate"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
	"gitlab.grandhoo.com/rock/rock_pattern/utils/set"
)

// expansionChildren 每个维度两个最小收缩: low 提到下一个值, 或 high 降到上一个值,
// 然后收缩到 extent 的包围盒. 只保留非终止的子 pattern, 去重
func expansionChildren(t *table_data.Table, label string, m float64, minSupport int, p pattern.Pattern, rows *roaring.Bitmap) []child {
	var children []child
	seen := set.New[string](2 * len(p))
	for d := range p {
		values := calculate.ExtentValues(t, rows, d)
		if len(values) < 2 {
			continue
		}
		cuts := []pattern.Interval{
			{Low: values[1], High: p[d].High},
			{Low: p[d].Low, High: values[len(values)-2]},
		}
		for _, cut := range cuts {
			narrowed := p.With(d, cut)
			eval := calculate.Evaluate(narrowed, t, label, m)
			if eval.Terminal(minSupport) {
				continue
			}
			closed := calculate.Closure(narrowed, t, eval.Extent)
			if !seen.Add(closed.Key()) {
				continue
			}
			children = append(children, child{pattern: closed, eval: eval, node: -1})
		}
	}
	return children
}

// rolloutChildren 模拟用的粗粒度子 pattern: 每个维度随机选一侧, 切到 extent 中任意一个值.
// 只生成不计算, 调用方对选中的那个再求 extent
func rolloutChildren(t *table_data.Table, r *rand.Rand, p pattern.Pattern, rows *roaring.Bitmap) []pattern.Pattern {
	var children []pattern.Pattern
	for d := range p {
		values := calculate.ExtentValues(t, rows, d)
		k := len(values)
		if k < 2 {
			continue
		}
		var cut pattern.Interval
		if r.Intn(2) == 0 {
			cut = pattern.Interval{Low: values[1+r.Intn(k-1)], High: p[d].High}
		} else {
			cut = pattern.Interval{Low: p[d].Low, High: values[r.Intn(k-1)]}
		}
		children = append(children, p.With(d, cut))
	}
	return children
}
