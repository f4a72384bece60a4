package global_variables

import (
	"sync"
	"sync/atomic"
	"time"
)

// 同一时刻只允许一个挖掘任务
var isJobRunning atomic.Bool

var jobLock sync.RWMutex
var currentJob JobInfo

type JobInfo struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
}

// TryStartJob 没有任务在执行时占用执行标志并返回 true
func TryStartJob(name string) bool {
	if !isJobRunning.CompareAndSwap(false, true) {
		return false
	}
	jobLock.Lock()
	currentJob = JobInfo{Name: name, StartTime: time.Now()}
	jobLock.Unlock()
	return true
}

func FinishJob() {
	jobLock.Lock()
	currentJob = JobInfo{}
	jobLock.Unlock()
	isJobRunning.Store(false)
}

func IsJobRunning() bool {
	return isJobRunning.Load()
}

// CurrentJob 当前任务信息, 没有任务时返回 false
func CurrentJob() (JobInfo, bool) {
	if !isJobRunning.Load() {
		return JobInfo{}, false
	}
	jobLock.RLock()
	defer jobLock.RUnlock()
	return currentJob, true
}
