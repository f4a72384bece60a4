package rule_export

import (
	"encoding/json"

	"github.com/RoaringBitmap/roaring"
	"github.com/vmihailenco/msgpack/v5"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/rule_select"
)

// RowSet 行号集合, msgpack 中存 roaring 的序列化结果, json 中为行号数组
type RowSet struct {
	bitmap *roaring.Bitmap
}

func NewRowSet(bitmap *roaring.Bitmap) RowSet {
	return RowSet{bitmap: bitmap}
}

func (rs RowSet) EncodeMsgpack(e *msgpack.Encoder) error {
	if rs.bitmap == nil {
		return e.EncodeBytes(nil)
	}
	buf, err := rs.bitmap.ToBytes()
	if err != nil {
		return err
	}
	return e.EncodeBytes(buf)
}

func (rs *RowSet) DecodeMsgpack(d *msgpack.Decoder) error {
	buf, err := d.DecodeBytes()
	if err != nil {
		return err
	}
	rs.bitmap = roaring.New()
	if len(buf) == 0 {
		return nil
	}
	return rs.bitmap.UnmarshalBinary(buf)
}

func (rs RowSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Rows())
}

func (rs *RowSet) UnmarshalJSON(data []byte) error {
	var rows []uint32
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	rs.bitmap = roaring.BitmapOf(rows...)
	return nil
}

func (rs RowSet) Rows() []uint32 {
	if rs.bitmap == nil {
		return []uint32{}
	}
	return rs.bitmap.ToArray()
}

func (rs RowSet) Len() int {
	if rs.bitmap == nil {
		return 0
	}
	return int(rs.bitmap.GetCardinality())
}

type RuleView struct {
	Rank           int             `json:"rank" msgpack:"rank"`
	Ree            string          `json:"ree" msgpack:"ree"`
	Pattern        pattern.Pattern `json:"pattern" msgpack:"pattern"`
	Quality        float64         `json:"quality" msgpack:"quality"`
	TruePositive   int             `json:"truePositive" msgpack:"truePositive"`
	FalsePositive  int             `json:"falsePositive" msgpack:"falsePositive"`
	TruePositives  RowSet          `json:"truePositives" msgpack:"truePositives"`
	FalsePositives RowSet          `json:"falsePositives" msgpack:"falsePositives"`
}

type RuleSetView struct {
	Label      string     `json:"label" msgpack:"label"`
	LabelSize  int        `json:"labelSize" msgpack:"labelSize"`
	Covered    int        `json:"covered" msgpack:"covered"`
	Complete   bool       `json:"complete" msgpack:"complete"`
	StopReason string     `json:"stopReason,omitempty" msgpack:"stopReason"`
	Rules      []RuleView `json:"rules" msgpack:"rules"`
}

// Views 用列名描述每条规则
func Views(header []string, ruleSets []*rule_select.RuleSet) []RuleSetView {
	views := make([]RuleSetView, 0, len(ruleSets))
	for _, ruleSet := range ruleSets {
		view := RuleSetView{
			Label:     ruleSet.Label,
			LabelSize: ruleSet.LabelSize,
			Covered:   ruleSet.Covered,
			Complete:  ruleSet.Complete,
			Rules:     make([]RuleView, 0, len(ruleSet.Rules)),
		}
		if ruleSet.StopReason != nil {
			view.StopReason = ruleSet.StopReason.Error()
		}
		for i, rule := range ruleSet.Rules {
			view.Rules = append(view.Rules, RuleView{
				Rank:           i,
				Ree:            rule.Pattern.Describe(header),
				Pattern:        rule.Pattern,
				Quality:        rule.Quality,
				TruePositive:   rule.TP(),
				FalsePositive:  rule.FP(),
				TruePositives:  NewRowSet(rule.TruePositives),
				FalsePositives: NewRowSet(rule.FalsePositives),
			})
		}
		views = append(views, view)
	}
	return views
}
