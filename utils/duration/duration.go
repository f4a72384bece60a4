package duration

import (
	"fmt"
	"sync"
	"time"
)

// Duration 可重入的累计计时器, 用于统计搜索/选择阶段的耗时
type Duration struct {
	initTime   time.Time
	tick       time.Time
	accumulate time.Duration
	reentrant  int
	mu         sync.RWMutex
}

func (d *Duration) Enter() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reentrant == 0 {
		d.tick = time.Now()
		if d.initTime.IsZero() {
			d.initTime = d.tick
		}
	}
	d.reentrant++
}

func (d *Duration) Exit() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reentrant == 0 {
		return
	}
	d.reentrant--
	if d.reentrant == 0 {
		d.accumulate += time.Since(d.tick)
	}
}

// Accumulated 已累计的时间, 包括尚未 Exit 的部分
func (d *Duration) Accumulated() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.reentrant == 0 {
		return d.accumulate
	}
	return d.accumulate + time.Since(d.tick)
}

func (d *Duration) DurationString() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.initTime.IsZero() {
		return PeriodString(0)
	}
	return PeriodString(time.Since(d.initTime))
}

func (d *Duration) AccumulationString() string {
	return PeriodString(d.Accumulated())
}

func PeriodString(p time.Duration) string {
	switch {
	case p < time.Millisecond:
		return fmt.Sprintf("%dus", p.Microseconds())
	case p < time.Second:
		return fmt.Sprintf("%dms", p.Milliseconds())
	case p < time.Minute:
		return fmt.Sprintf("%.2fs", p.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(p.Minutes()), int(p.Seconds())%60)
	}
}
