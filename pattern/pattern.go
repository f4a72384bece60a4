package pattern

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/yourbasic/bit"
	"github.com/zeromicro/go-zero/core/hash"
	"gitlab.grandhoo.com/rock/rock_pattern/table_data"
)

// Interval 闭区间 [Low, High]
type Interval struct {
	Low  float64 `json:"low" msgpack:"low"`
	High float64 `json:"high" msgpack:"high"`
}

func (i Interval) Contains(v float64) bool {
	return i.Low <= v && v <= i.High
}

// Pattern 每个维度一个闭区间, 即特征空间里的一个超矩形. 创建后不再修改
type Pattern []Interval

// Root 每个维度取表中的最小/最大值
func Root(t *table_data.Table) Pattern {
	p := make(Pattern, t.Dims())
	for d := range p {
		p[d] = Interval{Low: t.Min(d), High: t.Max(d)}
	}
	return p
}

func (p Pattern) Clone() Pattern {
	c := make(Pattern, len(p))
	copy(c, p)
	return c
}

// With 返回把维度 d 换成 interval 的新 Pattern
func (p Pattern) With(d int, interval Interval) Pattern {
	c := p.Clone()
	c[d] = interval
	return c
}

func (p Pattern) Equal(o Pattern) bool {
	if len(p) != len(o) {
		return false
	}
	for d := range p {
		if p[d] != o[d] {
			return false
		}
	}
	return true
}

// ContainsRow row 的每个维度值都落在对应区间内, 区间个数与维度不一致时为 false
func (p Pattern) ContainsRow(t *table_data.Table, row int) bool {
	if len(p) != t.Dims() {
		return false
	}
	for d, interval := range p {
		if !interval.Contains(t.Columns[d][row]) {
			return false
		}
	}
	return true
}

// Narrower p 在每个维度上都不比 o 宽, 即 p ⊆ o
func (p Pattern) Narrower(o Pattern) bool {
	if len(p) != len(o) {
		return false
	}
	for d := range p {
		if p[d].Low < o[d].Low || p[d].High > o[d].High {
			return false
		}
	}
	return true
}

func (p Pattern) Hash() uint64 {
	buf := make([]byte, 0, 16*len(p))
	for _, interval := range p {
		buf = binary.LittleEndian.AppendUint64(buf, valueBits(interval.Low))
		buf = binary.LittleEndian.AppendUint64(buf, valueBits(interval.High))
	}
	return hash.Hash(buf)
}

// Key 规范的字符串形式, 结构相同的 Pattern 得到相同的 Key
func (p Pattern) Key() string {
	var sb strings.Builder
	for d, interval := range p {
		if d > 0 {
			sb.WriteByte(';')
		}
		sb.WriteByte('[')
		sb.WriteString(formatValue(interval.Low))
		sb.WriteByte(',')
		sb.WriteString(formatValue(interval.High))
		sb.WriteByte(']')
	}
	return sb.String()
}

func (p Pattern) String() string {
	return p.Key()
}

// Describe 用列名输出, 例如 "1 <= x <= 3 ^ 2 <= y <= 5"
func (p Pattern) Describe(header []string) string {
	parts := make([]string, 0, len(p))
	for d, interval := range p {
		name := "d" + strconv.Itoa(d)
		if d < len(header) {
			name = header[d]
		}
		parts = append(parts, formatValue(interval.Low)+" <= "+name+" <= "+formatValue(interval.High))
	}
	return strings.Join(parts, " ^ ")
}

// DiffDims 两个 Pattern 区间不同的维度
func DiffDims(a, b Pattern) *bit.Set {
	dims := bit.New()
	for d := 0; d < len(a) && d < len(b); d++ {
		if a[d] != b[d] {
			dims.Add(d)
		}
	}
	return dims
}

// valueBits -0 与 0 相等, 哈希也必须相同
func valueBits(v float64) uint64 {
	if v == 0 {
		return 0
	}
	return math.Float64bits(v)
}

func formatValue(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
