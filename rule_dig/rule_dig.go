package rule_dig

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime/debug"
	"time"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/zeromicro/go-zero/core/hash"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/config"
	"gitlab.grandhoo.com/rock/rock_pattern/logger"
	"gitlab.grandhoo.com/rock/rock_pattern/mcts"
	"gitlab.grandhoo.com/rock/rock_pattern/rule_select"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
	"gitlab.grandhoo.com/rock/rock_pattern/utils/duration"
	"gitlab.grandhoo.com/rock/rock_pattern/utils/set"
	"golang.org/x/sync/errgroup"
)

type Option struct {
	config.Mining
	Labels    []string // 为空时挖掘所有 label
	KeepGraph bool
}

func DefaultOption() Option {
	return Option{Mining: config.Default().Mining}
}

// LabelResult 单个 label 的搜索统计和规则
type LabelResult struct {
	Label      string
	RuleSet    *rule_select.RuleSet
	Iterations int
	Candidates int
	Nodes      int
	StopReason string
	Graph      *mcts.GraphSnapshot
	SearchTime time.Duration
	SelectTime time.Duration
	Err        error
}

type Result struct {
	Labels   []string
	RuleSets []*rule_select.RuleSet // 与 Labels 同序, 不包含失败的 label
	Details  []*LabelResult
	Failed   map[string]error
	Duration time.Duration

	SearchTime string
	SelectTime string
}

func (r *Result) RuleCount() int {
	count := 0
	for _, ruleSet := range r.RuleSets {
		count += len(ruleSet.Rules)
	}
	return count
}

// LabelSeed 每个 label 独立的随机种子, 结果与调度顺序无关
func LabelSeed(seed int64, label string) int64 {
	return seed ^ int64(hash.Hash([]byte(label)))
}

// DigRules 对每个 label 搜索候选并选出规则. label 之间并行, 单个 label 失败不影响其他 label
func DigRules(ctx context.Context, table *table_data.Table, option Option) (*Result, error) {
	if table == nil || table.RowSize() == 0 || table.Dims() == 0 {
		return nil, common.ErrEmptyDataset
	}
	if err := option.Mining.Validate(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	labels := set.Dedup(option.Labels, func(label string) string { return label })
	if len(labels) == 0 {
		labels = table.LabelValues()
	}
	logger.Infof("[DigRules] start, rows: %d, dims: %d, labels: %v, minSupport: %d, iterations: %d, sita: %v, m: %v, minCovered: %d",
		table.RowSize(), table.Dims(), labels, option.MinSupport, option.NumIterations, option.Sita, option.M, option.MinCovered)

	var searchTime, selectTime duration.Duration
	results := cmap.New()
	var g errgroup.Group
	g.SetLimit(option.Workers)
	for _, label := range labels {
		label := label
		g.Go(func() error {
			result := digLabel(ctx, table, label, option, &searchTime, &selectTime)
			results.Set(label, result)
			logMemory(label)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Labels: labels, Failed: map[string]error{}}
	for _, label := range labels {
		value, ok := results.Get(label)
		if !ok {
			continue
		}
		result := value.(*LabelResult)
		res.Details = append(res.Details, result)
		if result.Err != nil {
			res.Failed[label] = result.Err
			continue
		}
		res.RuleSets = append(res.RuleSets, result.RuleSet)
	}
	res.Duration = time.Since(startTime)
	res.SearchTime = searchTime.AccumulationString()
	res.SelectTime = selectTime.AccumulationString()
	logger.Infof("[DigRules] finish, labels: %d, failed: %d, rules: %d, search: %s, select: %s, total: %s",
		len(labels), len(res.Failed), res.RuleCount(), res.SearchTime, res.SelectTime, duration.PeriodString(res.Duration))
	return res, nil
}

func digLabel(ctx context.Context, table *table_data.Table, label string, option Option, searchTime, selectTime *duration.Duration) (result *LabelResult) {
	result = &LabelResult{Label: label}
	defer func() {
		if err := recover(); err != nil {
			s := string(debug.Stack())
			logger.Errorf("label %s recover.err:%v, stack:\n%v", label, err, s)
			result.Err = errors.Errorf("label %s panic: %v", label, err)
		}
	}()

	if !table.HasLabel(label) {
		result.Err = errors.Errorf("label %s not in table", label)
		logger.Errorf("label %s skipped: %v", label, result.Err)
		return result
	}

	searchCtx := ctx
	if option.LabelTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, option.LabelTimeout)
		defer cancel()
	}

	start := time.Now()
	searchTime.Enter()
	pool, err := mcts.DiscoverCandidates(searchCtx, table, label, mcts.Options{
		MinSupport:    option.MinSupport,
		NumIterations: option.NumIterations,
		M:             option.M,
		Rand:          rand.New(rand.NewSource(LabelSeed(option.Seed, label))),
		KeepGraph:     option.KeepGraph,
	})
	searchTime.Exit()
	result.SearchTime = time.Since(start)
	if err != nil {
		result.Err = err
		logger.Errorf("label %s skipped, search failed: %v", label, err)
		return result
	}
	result.Iterations = pool.Iterations
	result.Candidates = pool.Len()
	result.Nodes = pool.Nodes
	result.StopReason = pool.StopReason
	result.Graph = pool.Graph

	start = time.Now()
	selectTime.Enter()
	ruleSet, err := rule_select.SelectRuleSet(table, label, pool, rule_select.Params{
		Sita:       option.Sita,
		MinCovered: option.MinCovered,
		M:          option.M,
	})
	selectTime.Exit()
	result.SelectTime = time.Since(start)
	if err != nil {
		result.Err = err
		logger.Errorf("label %s skipped, select failed: %v", label, err)
		return result
	}
	result.RuleSet = ruleSet

	logger.Info(labelLine(result))
	return result
}

func labelLine(result *LabelResult) string {
	ruleSet := result.RuleSet
	line := fmt.Sprintf("label %s: iterations %d (%s), candidates %d, ", result.Label, result.Iterations, result.StopReason, result.Candidates)
	if len(ruleSet.Rules) == 0 {
		return line + "no rules found"
	}
	line += fmt.Sprintf("rules %d, covered %d/%d", len(ruleSet.Rules), ruleSet.Covered, ruleSet.LabelSize)
	if ruleSet.StopReason != nil {
		line += ", partial coverage: " + ruleSet.StopReason.Error()
	}
	return line
}

func logMemory(label string) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return
	}
	logger.Debugf("label %s done, rss: %dMB", label, info.RSS/1024/1024)
}

