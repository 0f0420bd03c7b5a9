// Package domain 定义了示例日志服务的核心领域模型。
// 服务对外唯一可观察的行为就是结构化日志记录：每条记录是一个单行 JSON 对象，
// 包含 timestamp、level、可选的 message 以及按记录种类固定的附加字段。
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// TimestampLayout 是记录时间戳的输出格式（UTC，毫秒精度，ISO-8601）。
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ServiceName 是定时记录和启动记录携带的服务标识。
const ServiceName = "example-app"

// 固定的记录内容
const (
	MessageSimulatedError = "This is a simulated error"
	ErrorCodeSimulated    = "ERR_SIMULATED"
	MessageWarning        = "This is a warning message"
	WarningContext        = "performance degradation detected"

	periodicMessagePrefix = "Periodic log message - "
	startupMessagePrefix  = "Example app listening on port "
)

// 保留字段，由 Record 本身输出，附加字段不能覆盖
const (
	FieldTimestamp = "timestamp"
	FieldLevel     = "level"
	FieldMessage   = "message"
)

// Kind 标识记录的种类，决定记录的字段结构和输出流。
type Kind string

// 记录种类
const (
	KindRequest        Kind = "request"  // 请求拦截器记录
	KindSimulatedError Kind = "error"    // /error 路由的模拟错误
	KindWarning        Kind = "warn"     // /warn 路由的警告
	KindPeriodic       Kind = "periodic" // 定时发射器记录
	KindStartup        Kind = "startup"  // 服务启动记录
	KindUnknown        Kind = "unknown"  // 解码得到、无法识别种类的记录
)

// Stream 表示记录写入的输出流。
type Stream int

const (
	// StreamStdout 信息流
	StreamStdout Stream = iota
	// StreamStderr 诊断流，错误和警告记录写入这里
	StreamStderr
)

// Field 是记录中的一个附加字段，按声明顺序输出。
type Field struct {
	Key   string
	Value interface{}
}

// Record 表示一条结构化日志记录。
// 记录在发射时创建，写出后不再修改，也不被保留。
type Record struct {
	Timestamp time.Time
	Level     Level
	// Message 为空时输出中省略 message 字段（请求记录没有 message）
	Message string
	Kind    Kind
	Fields  []Field
}

// NewRequestRecord 创建请求拦截器记录。
func NewRequestRecord(now time.Time, method, path, ip, userAgent string) *Record {
	return &Record{
		Timestamp: now,
		Level:     LevelInfo,
		Kind:      KindRequest,
		Fields: []Field{
			{Key: "method", Value: method},
			{Key: "path", Value: path},
			{Key: "ip", Value: ip},
			{Key: "userAgent", Value: userAgent},
		},
	}
}

// NewSimulatedErrorRecord 创建 /error 路由的模拟错误记录。
func NewSimulatedErrorRecord(now time.Time) *Record {
	return &Record{
		Timestamp: now,
		Level:     LevelError,
		Message:   MessageSimulatedError,
		Kind:      KindSimulatedError,
		Fields:    []Field{{Key: "errorCode", Value: ErrorCodeSimulated}},
	}
}

// NewWarningRecord 创建 /warn 路由的警告记录。
func NewWarningRecord(now time.Time) *Record {
	return &Record{
		Timestamp: now,
		Level:     LevelWarn,
		Message:   MessageWarning,
		Kind:      KindWarning,
		Fields:    []Field{{Key: "context", Value: WarningContext}},
	}
}

// NewPeriodicRecord 创建定时发射器记录，metric 应位于 [0, 100)。
func NewPeriodicRecord(now time.Time, level Level, metric float64, service string) *Record {
	return &Record{
		Timestamp: now,
		Level:     level,
		Message:   periodicMessagePrefix + level.String(),
		Kind:      KindPeriodic,
		Fields: []Field{
			{Key: "metric", Value: metric},
			{Key: "service", Value: service},
		},
	}
}

// NewStartupRecord 创建服务开始监听时的启动记录。
func NewStartupRecord(now time.Time, port int, service string) *Record {
	return &Record{
		Timestamp: now,
		Level:     LevelInfo,
		Message:   fmt.Sprintf("%s%d", startupMessagePrefix, port),
		Kind:      KindStartup,
		Fields:    []Field{{Key: "service", Value: service}},
	}
}

// Field 按键查找附加字段。
func (r *Record) Field(key string) (interface{}, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Stream 返回记录应写入的输出流。
func (r *Record) Stream() Stream {
	switch r.Kind {
	case KindSimulatedError, KindWarning:
		return StreamStderr
	case KindUnknown, "":
		if r.Level == LevelError || r.Level == LevelWarn {
			return StreamStderr
		}
	}
	return StreamStdout
}

// Validate 检查记录能否被发射。
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	}
	if !r.Level.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, r.Level)
	}
	return nil
}

// MarshalJSON 将记录编码为单个 JSON 对象。
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.AppendJSON(nil, nil)
}

// AppendJSON 将记录编码后追加到 dst。
// 字段顺序：timestamp、level、message（非空时）、记录自身字段，
// 最后是 extra 中的字段（按键排序，与已有键冲突的会被跳过）。
func (r *Record) AppendJSON(dst []byte, extra map[string]interface{}) ([]byte, error) {
	seen := make(map[string]struct{}, len(r.Fields)+3)
	first := true

	appendField := func(key string, value interface{}) error {
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}

		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode field %q: %w", key, err)
		}
		if !first {
			dst = append(dst, ',')
		}
		first = false
		dst = append(dst, k...)
		dst = append(dst, ':')
		dst = append(dst, v...)
		return nil
	}

	dst = append(dst, '{')
	if err := appendField(FieldTimestamp, r.Timestamp.UTC().Format(TimestampLayout)); err != nil {
		return nil, err
	}
	if err := appendField(FieldLevel, r.Level.String()); err != nil {
		return nil, err
	}
	if r.Message != "" {
		if err := appendField(FieldMessage, r.Message); err != nil {
			return nil, err
		}
	}
	for _, f := range r.Fields {
		if err := appendField(f.Key, f.Value); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := appendField(k, extra[k]); err != nil {
			return nil, err
		}
	}

	return append(dst, '}'), nil
}

// DecodeRecord 解析一行 JSON 日志并检查记录约束：
// 必须是单个 JSON 对象，timestamp 为合法的 ISO-8601 时间，level 为四种级别之一。
// 其余字段按键排序后放入 Fields，数值统一转换为 float64。
func DecodeRecord(line []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidRecord)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidRecord)
	}

	ts, ok := raw[FieldTimestamp].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-string timestamp", ErrInvalidRecord)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp %q is not ISO-8601", ErrInvalidRecord, ts)
	}

	lv, ok := raw[FieldLevel].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-string level", ErrInvalidRecord)
	}
	level, err := ParseLevel(lv)
	if err != nil {
		return nil, err
	}

	rec := &Record{Timestamp: t, Level: level}
	if m, present := raw[FieldMessage]; present {
		msg, ok := m.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string message", ErrInvalidRecord)
		}
		rec.Message = msg
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		switch k {
		case FieldTimestamp, FieldLevel, FieldMessage:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := raw[k]
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		rec.Fields = append(rec.Fields, Field{Key: k, Value: v})
	}

	rec.Kind = inferKind(rec)
	return rec, nil
}

// inferKind 根据字段推断解码记录的种类
func inferKind(r *Record) Kind {
	has := func(key string) bool {
		_, ok := r.Field(key)
		return ok
	}
	switch {
	case has("errorCode"):
		return KindSimulatedError
	case has("context") && r.Level == LevelWarn:
		return KindWarning
	case has("method") && has("path"):
		return KindRequest
	case has("metric"):
		return KindPeriodic
	case strings.HasPrefix(r.Message, startupMessagePrefix):
		return KindStartup
	}
	return KindUnknown
}
