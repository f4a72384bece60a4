package rule_export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/awalterschulze/gographviz"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"gitlab.grandhoo.com/rock/rock_pattern/dao"
	"gitlab.grandhoo.com/rock/rock_pattern/mcts"
	"gitlab.grandhoo.com/rock/rock_pattern/pattern"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
	"gitlab.grandhoo.com/rock/rock_pattern/utils"
)

// RenderTable 每个 label 一张表
func RenderTable(views []RuleSetView) string {
	var buf bytes.Buffer
	for _, view := range views {
		t := table.NewWriter()
		t.SetOutputMirror(&buf)
		title := fmt.Sprintf("label %s  covered %d/%d", view.Label, view.Covered, view.LabelSize)
		if view.LabelSize <= 0 {
			// 行数未知
			title = fmt.Sprintf("label %s  covered %d", view.Label, view.Covered)
		}
		t.SetTitle(title)
		t.AppendHeader(table.Row{"#", "rule", "quality", "tp", "fp"})
		for _, rule := range view.Rules {
			t.AppendRow(table.Row{rule.Rank, rule.Ree, strconv.FormatFloat(rule.Quality, 'f', 4, 64), rule.TruePositive, rule.FalsePositive})
		}
		if len(view.Rules) == 0 {
			t.AppendRow(table.Row{"-", "no rules found", "", "", ""})
		}
		if view.StopReason != "" {
			t.AppendFooter(table.Row{"", view.StopReason, "", "", ""})
		}
		t.Render()
	}
	return buf.String()
}

// ToJson 不转义 html 字符, 规则里的 <= 原样输出
func ToJson(v interface{}) (string, error) {
	byteBuf := bytes.NewBuffer([]byte{})
	encoder := json.NewEncoder(byteBuf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	return byteBuf.String(), nil
}

func MarshalSnapshot(views []RuleSetView) ([]byte, error) {
	return msgpack.Marshal(views)
}

func UnmarshalSnapshot(data []byte) ([]RuleSetView, error) {
	var views []RuleSetView
	if err := msgpack.Unmarshal(data, &views); err != nil {
		return nil, errors.Wrap(err, "decode rule snapshot")
	}
	return views, nil
}

// WriteSnapshot 写到 outDir/name.msgpack
func WriteSnapshot(outDir, name string, views []RuleSetView) (string, error) {
	data, err := MarshalSnapshot(views)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(outDir, 0777); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, name+rds_config.MsgSuffix)
	if err = os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

func ReadSnapshot(path string) ([]RuleSetView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalSnapshot(data)
}

// WriteCsv 所有规则写到一个 csv
func WriteCsv(outDir, name string, views []RuleSetView) (string, error) {
	data := [][]string{{"label", "rank", "rule", "quality", "true_positive", "false_positive"}}
	for _, view := range views {
		for _, rule := range view.Rules {
			data = append(data, []string{
				view.Label,
				strconv.Itoa(rule.Rank),
				rule.Ree,
				strconv.FormatFloat(rule.Quality, 'f', -1, 64),
				strconv.Itoa(rule.TruePositive),
				strconv.Itoa(rule.FalsePositive),
			})
		}
	}
	return utils.CreateCsv(outDir, name+rds_config.CsvSuffix, data)
}

// ToDbRules 转成 dao 的行
func ToDbRules(taskId int64, views []RuleSetView) []dao.PatternRule {
	now := time.Now().UnixMilli()
	var rules []dao.PatternRule
	for _, view := range views {
		for _, rule := range view.Rules {
			patternJson, _ := json.Marshal(rule.Pattern)
			rules = append(rules, dao.PatternRule{
				TaskId:        taskId,
				Label:         view.Label,
				Rank:          rule.Rank,
				Ree:           rule.Ree,
				PatternJson:   string(patternJson),
				Quality:       rule.Quality,
				TruePositive:  rule.TruePositive,
				FalsePositive: rule.FalsePositive,
				LabelSize:     view.LabelSize,
				CreateTime:    now,
			})
		}
	}
	return rules
}

// FromDbRules 库里的规则按 label 分组还原成视图, 不含行集合
func FromDbRules(rules []dao.PatternRule) ([]RuleSetView, error) {
	var views []RuleSetView
	index := map[string]int{}
	for _, rule := range rules {
		var p pattern.Pattern
		if err := json.Unmarshal([]byte(rule.PatternJson), &p); err != nil {
			return nil, errors.Wrapf(err, "rule %d pattern", rule.Id)
		}
		i, ok := index[rule.Label]
		if !ok {
			i = len(views)
			index[rule.Label] = i
			views = append(views, RuleSetView{Label: rule.Label, LabelSize: rule.LabelSize})
		}
		views[i].Rules = append(views[i].Rules, RuleView{
			Rank:          rule.Rank,
			Ree:           rule.Ree,
			Pattern:       p,
			Quality:       rule.Quality,
			TruePositive:  rule.TruePositive,
			FalsePositive: rule.FalsePositive,
		})
		views[i].Covered += rule.TruePositive
	}
	return views, nil
}

// RenderDot 搜索图的 dot, 边上标出收缩的维度
func RenderDot(header []string, label string, g *mcts.GraphSnapshot) (string, error) {
	if g == nil {
		return "", errors.New("no search graph kept")
	}
	graph := gographviz.NewEscape()
	name := "search_" + label
	if err := graph.SetName(name); err != nil {
		return "", err
	}
	if err := graph.SetDir(true); err != nil {
		return "", err
	}
	for i, node := range g.Nodes {
		attrs := map[string]string{
			"label": fmt.Sprintf("%s\nsupport=%d quality=%.3f\nvisits=%d mean=%.3f",
				node.Pattern.Describe(header), node.Support, node.Quality, node.Visits, node.Mean),
			"shape": "box",
		}
		if err := graph.AddNode(name, nodeName(i), attrs); err != nil {
			return "", err
		}
	}
	for _, edge := range g.Edges {
		parent, child := g.Nodes[edge.Parent].Pattern, g.Nodes[edge.Child].Pattern
		attrs := map[string]string{"label": diffLabel(header, parent, child)}
		if err := graph.AddEdge(nodeName(int(edge.Parent)), nodeName(int(edge.Child)), true, attrs); err != nil {
			return "", err
		}
	}
	return graph.String(), nil
}

// DotFileName label 转义后作为文件名, 不会跳出输出目录
func DotFileName(label string) string {
	return "search_" + url.PathEscape(label) + rds_config.DotSuffix
}

// WriteDot 写到 outDir/DotFileName(label)
func WriteDot(outDir string, header []string, label string, g *mcts.GraphSnapshot) (string, error) {
	dot, err := RenderDot(header, label, g)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(outDir, 0777); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, DotFileName(label))
	if err = os.WriteFile(path, []byte(dot), 0644); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

func nodeName(i int) string {
	return "n" + strconv.Itoa(i)
}

func diffLabel(header []string, parent, child pattern.Pattern) string {
	label := ""
	pattern.DiffDims(parent, child).Visit(func(d int) bool {
		if label != "" {
			label += ","
		}
		if d < len(header) {
			label += header[d]
		} else {
			label += "d" + strconv.Itoa(d)
		}
		return false
	})
	return label
}
