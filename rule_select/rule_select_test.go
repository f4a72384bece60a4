package rule_select

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/RoaringBitmap/roaring"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.grandhoo.com/rock/rock_pattern/calculate"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/mcts"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
)

// lineTable x = 0..9, 前 5 行是 p, 后 5 行是 n
func lineTable(t *testing.T) *table_data.Table {
	rows := make([][]float64, 10)
	labels := make([]string, 10)
	for i := range rows {
		rows[i] = []float64{float64(i)}
		labels[i] = "n"
		if i < 5 {
			labels[i] = "p"
		}
	}
	table, err := table_data.NewFromRows([]string{"x"}, rows, labels)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func candidate(table *table_data.Table, low, high float64) mcts.Candidate {
	p := pattern.Pattern{{Low: low, High: high}}
	eval := calculate.Evaluate(p, table, "p", 1)
	return mcts.Candidate{
		Pattern:       p,
		Extent:        eval.Extent,
		Support:       eval.Support,
		FalsePositive: eval.FalsePositive,
		Quality:       eval.Quality,
	}
}

func poolOf(cs ...mcts.Candidate) *mcts.CandidatePool {
	return &mcts.CandidatePool{Label: "p", Candidates: cs}
}

func TestSelectRuleSet(t *testing.T) {
	table := lineTable(t)
	a := candidate(table, 0, 2)
	b := candidate(table, 0, 3)
	c := candidate(table, 3, 5)
	d := candidate(table, 4, 7)
	e := candidate(table, 3, 4)
	params := Params{Sita: 0.7, MinCovered: 2, M: 1}

	Convey("ranking and covering", t, func() {
		rs := rank([]mcts.Candidate{d, a, c, b, a}, table.Prior("p"), 1)
		So(len(rs), ShouldEqual, 4)
		So(rs[0].candidate.Pattern, ShouldResemble, b.Pattern)
		So(rs[1].candidate.Pattern, ShouldResemble, a.Pattern)
		So(rs[2].candidate.Pattern, ShouldResemble, c.Pattern)
		So(rs[3].candidate.Pattern, ShouldResemble, d.Pattern)

		selected, stop := cover(rs, table.LabelRows("p"), 0.7)
		So(stop, ShouldBeNil)
		So(len(selected), ShouldEqual, 2)
		So(selected[0].TruePositives.ToArray(), ShouldResemble, []uint32{0, 1, 2, 3})
		So(selected[0].FP(), ShouldEqual, 0)
		// a 与 b 太相似被跳过, c 只贡献新的行
		So(selected[1].Pattern, ShouldResemble, c.Pattern)
		So(selected[1].TruePositives.ToArray(), ShouldResemble, []uint32{4})
		So(selected[1].FalsePositives.ToArray(), ShouldResemble, []uint32{5})
	})

	Convey("post filter drops weak rules", t, func() {
		ruleSet, err := SelectRuleSet(table, "p", poolOf(d, a, c, b), params)
		So(err, ShouldBeNil)
		So(len(ruleSet.Rules), ShouldEqual, 1)
		So(ruleSet.Rules[0].Pattern, ShouldResemble, b.Pattern)
		So(ruleSet.LabelSize, ShouldEqual, 5)
		So(ruleSet.Covered, ShouldEqual, 4)
		So(ruleSet.Complete, ShouldBeFalse)
		So(ruleSet.StopReason, ShouldBeNil)
	})

	Convey("complete coverage", t, func() {
		ruleSet, err := SelectRuleSet(table, "p", poolOf(b, e), Params{Sita: 0.7, MinCovered: 1, M: 1})
		So(err, ShouldBeNil)
		So(len(ruleSet.Rules), ShouldEqual, 2)
		So(ruleSet.Covered, ShouldEqual, 5)
		So(ruleSet.Complete, ShouldBeTrue)
	})

	Convey("no dissimilar candidate left", t, func() {
		ruleSet, err := SelectRuleSet(table, "p", poolOf(a, b), params)
		So(err, ShouldBeNil)
		So(errors.Is(ruleSet.StopReason, common.ErrNoDissimilarCandidate), ShouldBeTrue)
		So(len(ruleSet.Rules), ShouldEqual, 1)
		So(ruleSet.Complete, ShouldBeFalse)
	})

	Convey("ties keep the pool order", t, func() {
		left := candidate(table, 0, 1)
		right := candidate(table, 1, 2)
		So(left.Quality, ShouldEqual, right.Quality)
		rs := rank([]mcts.Candidate{right, left}, table.Prior("p"), 1)
		So(rs[0].candidate.Pattern, ShouldResemble, right.Pattern)
	})

	Convey("empty pool is not an error", t, func() {
		ruleSet, err := SelectRuleSet(table, "p", poolOf(), params)
		So(err, ShouldBeNil)
		So(ruleSet.Rules, ShouldBeEmpty)
		So(errors.Is(ruleSet.StopReason, common.ErrEmptyCandidatePool), ShouldBeTrue)

		ruleSet, err = SelectRuleSet(table, "p", nil, params)
		So(err, ShouldBeNil)
		So(ruleSet.StopReason, ShouldEqual, common.ErrEmptyCandidatePool)
	})

	Convey("invalid parameters", t, func() {
		_, err := SelectRuleSet(table, "p", poolOf(a), Params{Sita: 1, MinCovered: 2, M: 1})
		So(err, ShouldNotBeNil)
		_, err = SelectRuleSet(table, "p", poolOf(a), Params{Sita: 0.5, MinCovered: 2, M: -1})
		So(err, ShouldNotBeNil)
		_, err = SelectRuleSet(nil, "p", poolOf(a), params)
		So(errors.Is(err, common.ErrEmptyDataset), ShouldBeTrue)
	})
}

func scenarioTable(t *testing.T) *table_data.Table {
	rows := [][]float64{
		{1, 1}, {1, 2}, {2, 1}, {2, 2}, {3, 1}, {1, 3}, {2, 3}, {3, 2}, {3, 3}, {4, 1},
		{6, 6}, {6, 7}, {7, 6}, {7, 7}, {8, 8}, {5, 6}, {6, 5}, {8, 6}, {4, 4}, {2, 6},
	}
	labels := make([]string, len(rows))
	for i := range labels {
		labels[i] = "a"
		if i >= 10 {
			labels[i] = "b"
		}
	}
	table, err := table_data.NewFromRows([]string{"x", "y"}, rows, labels)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestScenario(t *testing.T) {
	table := scenarioTable(t)
	params := Params{Sita: 0.7, MinCovered: 2, M: 1}

	Convey("rules from a real search", t, func() {
		for _, label := range table.LabelValues() {
			pool, err := mcts.DiscoverCandidates(context.Background(), table, label, mcts.Options{
				MinSupport: 3, NumIterations: 50, M: 1, Rand: rand.New(rand.NewSource(1)),
			})
			So(err, ShouldBeNil)

			ruleSet, err := SelectRuleSet(table, label, pool, params)
			So(err, ShouldBeNil)
			So(len(ruleSet.Rules), ShouldBeGreaterThan, 0)

			covered := roaring.New()
			for _, rule := range ruleSet.Rules {
				So(rule.TP(), ShouldBeGreaterThan, rule.FP())
				So(rule.TP(), ShouldBeGreaterThanOrEqualTo, params.MinCovered)
				So(covered.Intersects(rule.TruePositives), ShouldBeFalse)
				covered.Or(rule.TruePositives)
			}
			So(ruleSet.Covered, ShouldEqual, int(covered.GetCardinality()))
			if !ruleSet.Complete {
				So(ruleSet.Covered, ShouldBeLessThan, ruleSet.LabelSize)
			}

			// 过滤前相邻规则的 jaccard 都小于 sita
			selected, _ := cover(rank(pool.Candidates, table.Prior(label), params.M), table.LabelRows(label), params.Sita)
			for i := 1; i < len(selected); i++ {
				So(calculate.Jaccard(selected[i-1].Extent, selected[i].Extent), ShouldBeLessThan, params.Sita)
			}

			again, err := SelectRuleSet(table, label, pool, params)
			So(err, ShouldBeNil)
			So(len(again.Rules), ShouldEqual, len(ruleSet.Rules))
			for i := range again.Rules {
				So(again.Rules[i].Pattern, ShouldResemble, ruleSet.Rules[i].Pattern)
				So(again.Rules[i].TruePositives.ToArray(), ShouldResemble, ruleSet.Rules[i].TruePositives.ToArray())
				So(again.Rules[i].FalsePositives.ToArray(), ShouldResemble, ruleSet.Rules[i].FalsePositives.ToArray())
			}
		}
	})
}
