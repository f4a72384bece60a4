package mcts

import (
	"context"
	"math/rand"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set"
	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/calculate"
	"gitlab.grandhoo.com/rock/rock_pattern/common"
	"gitlab.grandhoo.com/rock/rock_pattern/logger"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
	"gitlab.grandhoo.com/rock/rock_pattern/utils/set"
)

// 搜索结束的原因
const (
	StopBudget       = "budget"        // 跑满迭代次数
	StopRootTerminal = "root_terminal" // root 的 support 已低于 minSupport
	StopExhausted    = "exhausted"     // 可达的 pattern 都已扩展完
	StopTimeout      = "timeout"
	StopCanceled     = "canceled"
)

type Options struct {
	MinSupport    int
	NumIterations int
	M             float64
	Timeout       time.Duration // 0 表示不限时
	Rand          *rand.Rand    // nil 时使用 rds_config.Seed
	KeepGraph     bool          // 保留搜索图快照, 用于导出 dot
}

func DefaultOptions() Options {
	return Options{
		MinSupport:    rds_config.MinSupport,
		NumIterations: rds_config.NumIterations,
		M:             rds_config.M,
		Timeout:       rds_config.LabelTimeout,
	}
}

// Candidate 候选 pattern 及其 extent, 供规则选择使用
type Candidate struct {
	Pattern       pattern.Pattern
	Extent        *roaring.Bitmap
	Support       int
	FalsePositive int
	Quality       float64
}

type CandidatePool struct {
	Label      string
	Candidates []Candidate // 去重, 保持首次出现的顺序

	Iterations int
	Expanded   int // 扩展过的 pattern 数
	Rollouts   int
	Nodes      int
	StopReason string

	Graph *GraphSnapshot
}

func (pool *CandidatePool) Len() int {
	return len(pool.Candidates)
}

// GraphSnapshot 搜索图, 节点下标与搜索时一致
type GraphSnapshot struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

type GraphNode struct {
	Pattern pattern.Pattern
	Support int
	Quality float64
	Visits  int
	Mean    float64
}

type GraphEdge struct {
	Parent int32
	Child  int32
}

// accumulator 一个 label 的扩展集合与每次 rollout 的 top-1
type accumulator struct {
	expanded     mapset.Set // pattern key
	expandedList []Candidate
	memory       []Candidate
}

func newAccumulator() *accumulator {
	return &accumulator{expanded: mapset.NewSet()}
}

func (acc *accumulator) addExpanded(n *Node) {
	if acc.expanded.Add(n.Pattern.Key()) {
		acc.expandedList = append(acc.expandedList, candidateOf(n.Pattern, n.Eval))
	}
}

func (acc *accumulator) pool() []Candidate {
	all := make([]Candidate, 0, len(acc.expandedList)+len(acc.memory))
	all = append(all, acc.expandedList...)
	all = append(all, acc.memory...)
	return set.Dedup(all, func(c Candidate) string { return c.Pattern.Key() })
}

func candidateOf(p pattern.Pattern, eval calculate.Evaluation) Candidate {
	return Candidate{
		Pattern:       p,
		Extent:        eval.Extent,
		Support:       eval.Support,
		FalsePositive: eval.FalsePositive,
		Quality:       eval.Quality,
	}
}

// Searcher 单个 label 的 MCTS, 单线程
type Searcher struct {
	table    *table_data.Table
	label    string
	opt      Options
	rand     *rand.Rand
	registry *Registry
	acc      *accumulator
	root     int32

	iterations int
	rollouts   int
}

func NewSearcher(table *table_data.Table, label string, opt Options) (*Searcher, error) {
	if table == nil || table.RowSize() == 0 || table.Dims() == 0 {
		return nil, common.ErrEmptyDataset
	}
	if opt.MinSupport < 1 {
		return nil, errors.Errorf("minSupport must be >= 1, got %d", opt.MinSupport)
	}
	if opt.NumIterations < 0 {
		return nil, errors.Errorf("numIterations must be >= 0, got %d", opt.NumIterations)
	}
	if opt.M < 0 {
		return nil, errors.Errorf("m must be >= 0, got %v", opt.M)
	}
	r := opt.Rand
	if r == nil {
		r = rand.New(rand.NewSource(rds_config.Seed))
	}
	s := &Searcher{
		table:    table,
		label:    label,
		opt:      opt,
		rand:     r,
		registry: NewRegistry(table, label, opt.M),
		acc:      newAccumulator(),
	}
	s.root, _ = s.registry.GetOrCreate(pattern.Root(table))
	return s, nil
}

func (s *Searcher) Registry() *Registry {
	return s.registry
}

func (s *Searcher) Root() int32 {
	return s.root
}

// Run 跑满 NumIterations 次迭代, 或提前结束. 超时和取消只在两次迭代之间检查,
// 所以反向传播不会做一半
func (s *Searcher) Run(ctx context.Context) (string, error) {
	if s.registry.Node(s.root).Eval.Terminal(s.opt.MinSupport) {
		return StopRootTerminal, nil
	}
	var deadline time.Time
	if s.opt.Timeout > 0 {
		deadline = time.Now().Add(s.opt.Timeout)
	}
	for s.iterations < s.opt.NumIterations {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return StopTimeout, nil
			}
			return StopCanceled, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return StopTimeout, nil
		}
		done, err := s.Iterate()
		if err != nil {
			return "", err
		}
		if done {
			return StopExhausted, nil
		}
	}
	return StopBudget, nil
}

// Iterate 一次 选择 -> 扩展 -> 模拟 -> 反向传播. 整个图都扩展完时返回 true
func (s *Searcher) Iterate() (bool, error) {
	selected, ok := s.selectNode()
	if !ok {
		return true, nil
	}
	expanded, err := s.expand(selected)
	if err != nil {
		return false, err
	}
	reward := s.rollout(expanded)
	s.backpropagate(expanded, reward)
	s.iterations++
	return false, nil
}

// selectNode 从 root 向下, 遇到还有未扩展子节点的节点就停.
// 子节点全部扩展且都已穷尽的节点标记为穷尽, 然后从 root 重新选择
func (s *Searcher) selectNode() (int32, bool) {
	cur := s.root
	for {
		n := s.registry.Node(cur)
		if n.exhausted {
			return -1, false
		}
		if !n.generated {
			n.setChildren(expansionChildren(s.table, s.label, s.opt.M, s.opt.MinSupport, n.Pattern, n.Eval.Extent))
		}
		if n.unexpanded > 0 {
			return cur, true
		}
		next := s.bestChild(n)
		if next < 0 {
			n.exhausted = true
			cur = s.root
			continue
		}
		cur = next
	}
}

// bestChild UCB1-Tuned 最大的未穷尽子节点, 分数相同取先生成的
func (s *Searcher) bestChild(n *Node) int32 {
	best := int32(-1)
	bestScore := 0.0
	for _, c := range n.children {
		if c.node < 0 {
			continue
		}
		cn := s.registry.Node(c.node)
		if cn.exhausted {
			continue
		}
		score := ucbTuned(cn, n.Visits)
		if best < 0 || score > bestScore {
			best, bestScore = c.node, score
		}
	}
	return best
}

func (s *Searcher) expand(parent int32) (int32, error) {
	n := s.registry.Node(parent)
	candidates := make([]int, 0, n.unexpanded)
	for i, c := range n.children {
		if c.node < 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1, errors.Wrapf(common.ErrNoExpandableChild, "node %s", n.Pattern.Key())
	}
	pos := candidates[s.rand.Intn(len(candidates))]
	c := &n.children[pos]
	idx, _ := s.registry.getOrCreateEvaluated(c.pattern, c.eval)
	// 已有节点只增加父节点, 不重新扩展
	cn := s.registry.Node(idx)
	cn.addParent(parent)
	c.node = idx
	n.unexpanded--
	s.acc.addExpanded(cn)
	return idx, nil
}

// rollout 随机向下收缩直到终止, 返回路径上非终止 pattern 的最大 m-estimate
func (s *Searcher) rollout(from int32) float64 {
	n := s.registry.Node(from)
	best := candidateOf(n.Pattern, n.Eval)
	p, rows := n.Pattern, n.Eval.Extent
	for {
		children := rolloutChildren(s.table, s.rand, p, rows)
		if len(children) == 0 {
			break
		}
		picked := children[s.rand.Intn(len(children))]
		eval := calculate.Evaluate(picked, s.table, s.label, s.opt.M)
		if eval.Terminal(s.opt.MinSupport) {
			break
		}
		picked = calculate.Closure(picked, s.table, eval.Extent)
		if eval.Quality > best.Quality {
			best = candidateOf(picked, eval)
		}
		p, rows = picked, eval.Extent
	}
	s.acc.memory = append(s.acc.memory, best)
	s.rollouts++
	return best.Quality
}

// backpropagate 沿所有父链 BFS, 每个可达节点恰好更新一次
func (s *Searcher) backpropagate(from int32, reward float64) {
	visited := bitset.New(uint(s.registry.Len()))
	queue := []int32{from}
	visited.Set(uint(from))
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		n := s.registry.Node(idx)
		n.Visits++
		n.Rewards.Add(reward)
		for _, parent := range n.parents {
			if !visited.Test(uint(parent)) {
				visited.Set(uint(parent))
				queue = append(queue, parent)
			}
		}
	}
}

// Pool 当前的候选集合: 扩展过的 pattern 加每次 rollout 的 top-1
func (s *Searcher) Pool(stopReason string) *CandidatePool {
	pool := &CandidatePool{
		Label:      s.label,
		Candidates: s.acc.pool(),
		Iterations: s.iterations,
		Expanded:   s.acc.expanded.Cardinality(),
		Rollouts:   s.rollouts,
		Nodes:      s.registry.Len(),
		StopReason: stopReason,
	}
	if s.opt.KeepGraph {
		pool.Graph = s.snapshot()
	}
	return pool
}

func (s *Searcher) snapshot() *GraphSnapshot {
	g := &GraphSnapshot{Nodes: make([]GraphNode, s.registry.Len())}
	for i := range g.Nodes {
		n := s.registry.Node(int32(i))
		g.Nodes[i] = GraphNode{
			Pattern: n.Pattern,
			Support: n.Eval.Support,
			Quality: n.Eval.Quality,
			Visits:  n.Visits,
			Mean:    n.Rewards.Mean,
		}
		for _, parent := range n.parents {
			g.Edges = append(g.Edges, GraphEdge{Parent: parent, Child: int32(i)})
		}
	}
	return g
}

// DiscoverCandidates 对一个 label 跑完整的搜索并返回候选集合, 结束后释放搜索图
func DiscoverCandidates(ctx context.Context, table *table_data.Table, label string, opt Options) (*CandidatePool, error) {
	s, err := NewSearcher(table, label, opt)
	if err != nil {
		return nil, err
	}
	defer s.registry.Clear()

	stopReason, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}
	pool := s.Pool(stopReason)
	logger.Debugf("label %s search stop: %s, iterations: %d, nodes: %d, candidates: %d",
		label, stopReason, pool.Iterations, pool.Nodes, pool.Len())
	return pool, nil
}
