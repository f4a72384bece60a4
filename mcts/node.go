package mcts

import (
	"math"

	"github.com/kelindar/intmap"
	"gitlab.grandhoo.com/rock/rock_pattern/calculate"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
)

// RewardStats 奖励的流式均值/方差 (Welford), Count 即奖励序列的长度
type RewardStats struct {
	Count int
	Mean  float64
	m2    float64
}

func (s *RewardStats) Add(reward float64) {
	s.Count++
	delta := reward - s.Mean
	s.Mean += delta / float64(s.Count)
	s.m2 += delta * (reward - s.Mean)
}

// Variance 总体方差
func (s RewardStats) Variance() float64 {
	if s.Count < 2 {
		return 0
	}
	return s.m2 / float64(s.Count)
}

type child struct {
	pattern pattern.Pattern
	eval    calculate.Evaluation
	node    int32 // 在当前节点下扩展后的下标, 未扩展为 -1
}

type Node struct {
	Pattern pattern.Pattern
	Eval    calculate.Evaluation

	children   []child
	generated  bool
	unexpanded int

	parents   []int32
	parentSet *intmap.Map

	Visits  int
	Rewards RewardStats

	// 子图已经没有可扩展的节点
	exhausted bool
}

func newNode(p pattern.Pattern, eval calculate.Evaluation) *Node {
	return &Node{
		Pattern:   p,
		Eval:      eval,
		parentSet: intmap.New(4, .9),
	}
}

// addParent 返回 parent 是否是新加入的
func (n *Node) addParent(parent int32) bool {
	if _, ok := n.parentSet.Load(uint32(parent)); ok {
		return false
	}
	n.parentSet.Store(uint32(parent), 0)
	n.parents = append(n.parents, parent)
	return true
}

func (n *Node) Parents() []int32 {
	return n.parents
}

func (n *Node) Exhausted() bool {
	return n.exhausted
}

func (n *Node) setChildren(children []child) {
	n.children = children
	n.unexpanded = len(children)
	n.generated = true
}

// ucbTuned UCB1-Tuned 分数, parentVisits 为父节点访问次数
func ucbTuned(c *Node, parentVisits int) float64 {
	if c.Visits == 0 {
		return math.Inf(1)
	}
	logN := math.Log(float64(max(parentVisits, 1)))
	nc := float64(c.Visits)
	v := c.Rewards.Variance() + math.Sqrt(2*logN/nc)
	return c.Rewards.Mean + math.Sqrt(logN/nc*math.Min(0.25, v))
}
