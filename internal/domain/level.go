package domain

import (
	"fmt"
	"strings"
)

// Level 表示日志记录的严重级别。
type Level string

// 日志级别常量
const (
	LevelDebug Level = "debug" // 调试
	LevelInfo  Level = "info"  // 信息
	LevelWarn  Level = "warn"  // 警告
	LevelError Level = "error" // 错误
)

// PeriodicLevels 是定时发射器可选的级别集合，定时记录从中均匀随机选取。
var PeriodicLevels = []Level{LevelInfo, LevelDebug, LevelWarn}

// IsValid 检查级别是否为四种已定义级别之一。
func (l Level) IsValid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel 将字符串解析为 Level，大小写不敏感，前后空白会被忽略。
// 只接受 debug、info、warn、error 四种取值。
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}
