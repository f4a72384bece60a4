package mcts

import (
	"gitlab.grandhoo.com/rock/rock_pattern/calculate"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
)

// Registry 一个 label 搜索期间 pattern -> 节点的唯一映射.
// 节点放在数组里用 int32 下标引用, 父子关系都是下标
type Registry struct {
	table *table_data.Table
	label string
	m     float64

	nodes []*Node
	index map[uint64][]int32 // pattern hash -> 下标, 冲突时比较结构
}

func NewRegistry(table *table_data.Table, label string, m float64) *Registry {
	return &Registry{
		table: table,
		label: label,
		m:     m,
		index: map[uint64][]int32{},
	}
}

// GetOrCreate 已存在时原样返回, 否则用 extent 计算新建节点
func (r *Registry) GetOrCreate(p pattern.Pattern) (int32, bool) {
	if idx, ok := r.Lookup(p); ok {
		return idx, false
	}
	return r.add(p, calculate.Evaluate(p, r.table, r.label, r.m)), true
}

// getOrCreateEvaluated 同 GetOrCreate, 复用生成子节点时已经算好的统计
func (r *Registry) getOrCreateEvaluated(p pattern.Pattern, eval calculate.Evaluation) (int32, bool) {
	if idx, ok := r.Lookup(p); ok {
		return idx, false
	}
	return r.add(p, eval), true
}

func (r *Registry) add(p pattern.Pattern, eval calculate.Evaluation) int32 {
	idx := int32(len(r.nodes))
	r.nodes = append(r.nodes, newNode(p, eval))
	h := p.Hash()
	r.index[h] = append(r.index[h], idx)
	return idx
}

func (r *Registry) Lookup(p pattern.Pattern) (int32, bool) {
	for _, idx := range r.index[p.Hash()] {
		if r.nodes[idx].Pattern.Equal(p) {
			return idx, true
		}
	}
	return -1, false
}

func (r *Registry) Node(idx int32) *Node {
	return r.nodes[idx]
}

func (r *Registry) Len() int {
	return len(r.nodes)
}

// Clear 释放所有节点, label 搜索结束后调用
func (r *Registry) Clear() {
	r.nodes = nil
	r.index = map[uint64][]int32{}
}
