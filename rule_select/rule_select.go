package rule_select

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/calculate"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/mcts"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
	"gitlab.grandhoo.com/rock/rock_pattern/utils/set"
	"golang.org/x/exp/slices"
)

type Params struct {
	Sita       float64 // 与上一条规则的 jaccard 必须小于 Sita
	MinCovered int
	M          float64
}

func DefaultParams() Params {
	return Params{Sita: rds_config.Sita, MinCovered: rds_config.MinCovered, M: rds_config.M}
}

// Rule 选中的 pattern. TruePositives/FalsePositives 只包含它新覆盖/新计入的行
type Rule struct {
	Pattern        pattern.Pattern
	Quality        float64
	Extent         *roaring.Bitmap
	TruePositives  *roaring.Bitmap
	FalsePositives *roaring.Bitmap
}

func (r Rule) TP() int {
	return int(r.TruePositives.GetCardinality())
}

func (r Rule) FP() int {
	return int(r.FalsePositives.GetCardinality())
}

type RuleSet struct {
	Label     string
	Rules     []Rule
	LabelSize int
	Covered   int // 保留下来的规则覆盖的 label 行数
	Complete  bool
	// 覆盖没有完成的原因: common.ErrEmptyCandidatePool 或 common.ErrNoDissimilarCandidate
	StopReason error
}

// SelectRuleSet 按 m-estimate 排序后贪心覆盖 label 的行, 相邻两条规则的 jaccard 小于 sita,
// 最后去掉覆盖不足或 tp <= fp 的规则. 相同输入的输出相同
func SelectRuleSet(table *table_data.Table, label string, pool *mcts.CandidatePool, params Params) (*RuleSet, error) {
	if table == nil || table.RowSize() == 0 {
		return nil, common.ErrEmptyDataset
	}
	if params.Sita <= 0 || params.Sita >= 1 {
		return nil, errors.Errorf("sita must be in (0,1), got %v", params.Sita)
	}
	if params.M < 0 {
		return nil, errors.Errorf("m must be >= 0, got %v", params.M)
	}

	labelRows := table.LabelRows(label)
	ruleSet := &RuleSet{Label: label, LabelSize: int(labelRows.GetCardinality())}
	if pool == nil || pool.Len() == 0 {
		ruleSet.StopReason = common.ErrEmptyCandidatePool
		return ruleSet, nil
	}

	rs := rank(pool.Candidates, table.Prior(label), params.M)
	selected, stopReason := cover(rs, labelRows, params.Sita)
	ruleSet.StopReason = stopReason
	ruleSet.Rules = filter(selected, params.MinCovered)

	covered := roaring.New()
	for _, rule := range ruleSet.Rules {
		covered.Or(rule.TruePositives)
	}
	ruleSet.Covered = int(covered.GetCardinality())
	ruleSet.Complete = ruleSet.Covered == ruleSet.LabelSize
	return ruleSet, nil
}

type ranked struct {
	candidate mcts.Candidate
	quality   float64
}

// rank m-estimate 降序, 相同时保持候选集合的顺序, 排序后去重
func rank(candidates []mcts.Candidate, prior, m float64) []ranked {
	rs := make([]ranked, len(candidates))
	for i, c := range candidates {
		rs[i] = ranked{candidate: c, quality: calculate.MEstimateCounts(c.Support, c.FalsePositive, prior, m)}
	}
	slices.SortStableFunc(rs, func(a, b ranked) int {
		switch {
		case a.quality > b.quality:
			return -1
		case a.quality < b.quality:
			return 1
		}
		return 0
	})
	return set.Dedup(rs, func(r ranked) string { return r.candidate.Pattern.Key() })
}

func cover(rs []ranked, labelRows *roaring.Bitmap, sita float64) ([]Rule, error) {
	labelSize := labelRows.GetCardinality()
	first := rs[0].candidate
	tp := roaring.And(first.Extent, labelRows)
	fp := roaring.AndNot(first.Extent, labelRows)
	covered := tp.Clone()
	charged := fp.Clone()
	selected := []Rule{newRule(rs[0], tp, fp)}

	last := 0
	for covered.GetCardinality() < labelSize {
		uncovered := roaring.AndNot(labelRows, covered)
		next := -1
		for i := last + 1; i < len(rs); i++ {
			extent := rs[i].candidate.Extent
			if calculate.Jaccard(extent, rs[last].candidate.Extent) >= sita {
				continue
			}
			if extent.Intersects(uncovered) {
				next = i
				break
			}
		}
		if next < 0 {
			return selected, common.ErrNoDissimilarCandidate
		}
		extent := rs[next].candidate.Extent
		tp := roaring.And(extent, uncovered)
		fp := roaring.AndNot(roaring.AndNot(extent, labelRows), charged)
		covered.Or(tp)
		charged.Or(fp)
		selected = append(selected, newRule(rs[next], tp, fp))
		last = next
	}
	return selected, nil
}

func filter(selected []Rule, minCovered int) []Rule {
	rules := make([]Rule, 0, len(selected))
	for _, rule := range selected {
		if rule.TP() < minCovered || rule.TP() <= rule.FP() {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

func newRule(r ranked, tp, fp *roaring.Bitmap) Rule {
	return Rule{
		Pattern:        r.candidate.Pattern,
		Quality:        r.quality,
		Extent:         r.candidate.Extent,
		TruePositives:  tp,
		FalsePositives: fp,
	}
}
