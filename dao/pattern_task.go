package dao

import "time"

const (
	TaskRunning = 0
	TaskDone    = 1
	TaskFailed  = 2
)

type PatternTask struct {
	Id         int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CsvPath    string `gorm:"column:csv_path" json:"csvPath"`
	Labels     string `gorm:"column:labels" json:"labels"` // json 数组
	Params     string `gorm:"column:params" json:"params"` // json, 本次挖掘的参数
	Status     int    `gorm:"column:status" json:"status"`
	RuleCount  int    `gorm:"column:rule_count" json:"ruleCount"`
	TotalTime  int64  `gorm:"column:total_time" json:"totalTime"` // ms
	ErrMsg     string `gorm:"column:err_msg" json:"errMsg"`
	IsDeleted  int    `gorm:"column:is_deleted" json:"-"` // 0:正常 1:删除
	CreateTime int64  `gorm:"column:create_time" json:"createTime"`
	UpdateTime int64  `gorm:"column:update_time" json:"updateTime"`
}

func (PatternTask) TableName() string {
	return "pattern_task"
}

func CreatePatternTask(task *PatternTask) (taskId int64, err error) {
	now := time.Now().UnixMilli()
	task.CreateTime, task.UpdateTime = now, now
	err = DB.Create(task).Error
	if err != nil {
		return 0, err
	}
	return task.Id, nil
}

func GetPatternTaskById(taskId int64) (task PatternTask, err error) {
	err = DB.Where("id=? and is_deleted=0", taskId).First(&task).Error
	return
}

func FinishPatternTask(taskId int64, status int, ruleCount int, totalTime int64, errMsg string) (err error) {
	err = DB.Model(&PatternTask{}).Where("id = ?", taskId).Updates(map[string]interface{}{
		"status":      status,
		"rule_count":  ruleCount,
		"total_time":  totalTime,
		"err_msg":     errMsg,
		"update_time": time.Now().UnixMilli(),
	}).Error
	return
}

func ListPatternTasks(limit int) (tasks []PatternTask, err error) {
	err = DB.Where("is_deleted=0").Order("id desc").Limit(limit).Find(&tasks).Error
	return
}

// DeletePatternTask 软删除, 任务不存在或已删除时 deleted 为 false
func DeletePatternTask(taskId int64) (deleted bool, err error) {
	db := DB.Model(&PatternTask{}).Where("id = ? and is_deleted=0", taskId).Update("is_deleted", 1)
	if db.Error != nil {
		return false, db.Error
	}
	return db.RowsAffected > 0, nil
}
