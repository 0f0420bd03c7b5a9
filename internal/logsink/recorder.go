package logsink

import (
	"context"
	"sync"

	"github.com/oriys/logdemo/internal/domain"
)

// Recorder 是一个在内存中保存记录的 Sink，用于测试。
type Recorder struct {
	mu      sync.Mutex
	records []*domain.Record
	err     error
}

// NewRecorder 创建一个空的 Recorder。
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit 实现 Sink 接口。设置了 FailWith 时返回该错误且不保存记录。
func (r *Recorder) Emit(_ context.Context, rec *domain.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

// FailWith 让后续的 Emit 返回 err，传入 nil 恢复正常。
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Records 返回已捕获记录的副本。
func (r *Recorder) Records() []*domain.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len 返回已捕获的记录数。
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset 清空已捕获的记录。
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}
