package domain

import "errors"

// 领域错误定义
var (
	// ErrInvalidLevel 日志级别不在 info/warn/error/debug 之内
	ErrInvalidLevel = errors.New("invalid log level")
	// ErrInvalidRecord 日志记录不满足结构约束（缺少时间戳、不是 JSON 对象等）
	ErrInvalidRecord = errors.New("invalid log record")
)
