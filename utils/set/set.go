package set

// Set 无序集合, 零值不可用, 用 New 创建
type Set[E comparable] map[E]struct{}

func New[E comparable](capacity int) Set[E] {
	return make(map[E]struct{}, capacity)
}

func Of[E comparable](es ...E) Set[E] {
	s := New[E](len(es))
	for _, e := range es {
		s.Put(e)
	}
	return s
}

func (s Set[E]) Put(e E) {
	s[e] = struct{}{}
}

// Add 与 Put 相同, 返回 e 是否为新元素
func (s Set[E]) Add(e E) bool {
	if _, ok := s[e]; ok {
		return false
	}
	s[e] = struct{}{}
	return true
}

func (s Set[E]) Exist(e E) bool {
	_, ok := s[e]
	return ok
}

// Dedup 保持首次出现的顺序去重
func Dedup[T any, K comparable](items []T, key func(T) K) []T {
	seen := New[K](len(items))
	result := make([]T, 0, len(items))
	for _, item := range items {
		if seen.Add(key(item)) {
			result = append(result, item)
		}
	}
	return result
}
