package cert

import (
	"fmt"
	"time"
)

// Clock 时间源，返回自 Unix 纪元起的秒数
type Clock interface {
	Now() (uint64, error)
}

// ClockFunc 函数适配为 Clock
type ClockFunc func() (uint64, error)

// Now 实现 Clock 接口
func (f ClockFunc) Now() (uint64, error) {
	return f()
}

// SystemClock 读取系统墙上时钟
type SystemClock struct{}

// Now 系统时间早于纪元时返回错误
func (SystemClock) Now() (uint64, error) {
	sec := time.Now().Unix()
	if sec < 0 {
		return 0, fmt.Errorf("system time %d is before unix epoch", sec)
	}
	return uint64(sec), nil
}

// FixedClock 固定时间点（测试或按历史时间校验时使用）
type FixedClock uint64

// Now 实现 Clock 接口
func (c FixedClock) Now() (uint64, error) {
	return uint64(c), nil
}

// lazyClock 单次校验内最多读取一次时钟，保证整条链使用同一参考时间
type lazyClock struct {
	clock Clock
	read  bool
	now   uint64
	err   error
}

func (l *lazyClock) Now() (uint64, error) {
	if !l.read {
		l.read = true
		if l.clock == nil {
			l.now, l.err = SystemClock{}.Now()
		} else {
			l.now, l.err = l.clock.Now()
		}
	}
	return l.now, l.err
}
