package dao

type PatternRule struct {
	Id            int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TaskId        int64   `gorm:"column:task_id;index" json:"taskId"`
	Label         string  `gorm:"column:label" json:"label"`
	Rank          int     `gorm:"column:rule_rank" json:"rank"` // label 内的顺序
	Ree           string  `gorm:"column:ree" json:"ree"`   // 可读形式
	PatternJson   string  `gorm:"column:pattern_json" json:"patternJson"`
	Quality       float64 `gorm:"column:quality" json:"quality"`
	TruePositive  int     `gorm:"column:true_positive" json:"truePositive"`
	FalsePositive int     `gorm:"column:false_positive" json:"falsePositive"`
	LabelSize     int     `gorm:"column:label_size" json:"labelSize"` // 该 label 的行数
	CreateTime    int64   `gorm:"column:create_time" json:"createTime"`
}

func (PatternRule) TableName() string {
	return "pattern_rule"
}

func CreatePatternRules(rules []PatternRule) (err error) {
	if len(rules) == 0 {
		return nil
	}
	err = DB.CreateInBatches(rules, 200).Error
	return
}

func GetPatternRulesByTaskId(taskId int64) (rules []PatternRule, err error) {
	err = DB.Where("task_id=?", taskId).Order("label, rule_rank").Find(&rules).Error
	return
}

func GetPatternRulesByLabel(taskId int64, label string) (rules []PatternRule, err error) {
	err = DB.Where("task_id=? and label=?", taskId, label).Order("rule_rank").Find(&rules).Error
	return
}

func DeletePatternRulesByTaskId(taskId int64) (err error) {
	err = DB.Where("task_id=?", taskId).Delete(&PatternRule{}).Error
	return
}
