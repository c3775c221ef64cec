package logging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultAuditRetention 内存中保留用于查询的审计记录条数
const DefaultAuditRetention = 10000

// AuditLogger 审计日志记录器接口
type AuditLogger interface {
	LogValidation(ctx context.Context, event *ValidationEvent) error
	LogSecurity(ctx context.Context, event *SecurityEvent) error
	Query(ctx context.Context, filter *AuditFilter) ([]*AuditLog, error)
}

// AuditOption 审计日志记录器选项
type AuditOption func(*FileAuditLogger)

// WithRetention 设置内存保留条数，n <= 0 时使用默认值
func WithRetention(n int) AuditOption {
	return func(a *FileAuditLogger) {
		if n > 0 {
			a.retention = n
		}
	}
}

// FileAuditLogger 以 JSON Lines 写出审计记录，并在内存保留最近的记录供查询
type FileAuditLogger struct {
	logger    Logger
	mu        sync.Mutex
	enc       *json.Encoder
	closer    io.Closer
	seq       uint64
	retention int
	recent    []*AuditLog // 按写入顺序，超出 retention 时丢弃最旧的
}

// NewFileAuditLogger 以追加方式打开审计文件
func NewFileAuditLogger(outputPath string, logger Logger, opts ...AuditOption) (*FileAuditLogger, error) {
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}
	a := NewWriterAuditLogger(f, logger, opts...)
	a.closer = f
	return a, nil
}

// NewWriterAuditLogger 写入任意 io.Writer 的审计日志记录器
func NewWriterAuditLogger(w io.Writer, logger Logger, opts ...AuditOption) *FileAuditLogger {
	if logger == nil {
		logger = NopLogger{}
	}
	a := &FileAuditLogger{
		logger:    logger,
		enc:       json.NewEncoder(w),
		retention: DefaultAuditRetention,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LogValidation 记录一次校验调用的结果
func (a *FileAuditLogger) LogValidation(ctx context.Context, event *ValidationEvent) error {
	if event == nil {
		return errors.New("validation event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return a.append("val", &AuditLog{
		Timestamp: event.Timestamp,
		EventType: "validation",
		Data:      event,
		index: auditIndex{
			subject: event.Subject,
			result:  event.Result,
			kind:    event.Kind,
		},
	})
}

// LogSecurity 记录安全事件，同时输出一条 WARN 日志
func (a *FileAuditLogger) LogSecurity(ctx context.Context, event *SecurityEvent) error {
	if event == nil {
		return errors.New("security event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	a.logger.Warn("Security Event",
		"event_type", event.EventType,
		"severity", event.Severity,
		"subject", event.Subject,
		"message", event.Message)

	return a.append("sec", &AuditLog{
		Timestamp: event.Timestamp,
		EventType: "security",
		Data:      event,
		index: auditIndex{
			subject:   event.Subject,
			eventType: event.EventType,
			severity:  event.Severity,
		},
	})
}

// Query 在内存保留的记录中查询，按写入顺序返回
func (a *FileAuditLogger) Query(ctx context.Context, filter *AuditFilter) ([]*AuditLog, error) {
	if filter == nil {
		filter = &AuditFilter{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		results []*AuditLog
		skipped int
	)
	for _, rec := range a.recent {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filter.matches(rec) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		results = append(results, rec)
		if filter.Limit > 0 && len(results) == filter.Limit {
			break
		}
	}
	return results, nil
}

func (f *AuditFilter) matches(rec *AuditLog) bool {
	if !f.StartTime.IsZero() && rec.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && rec.Timestamp.After(f.EndTime) {
		return false
	}
	idx := rec.index
	return (f.Subject == "" || f.Subject == idx.subject) &&
		(f.Result == "" || f.Result == idx.result) &&
		(f.Kind == "" || f.Kind == idx.kind) &&
		(f.EventType == "" || f.EventType == idx.eventType) &&
		(f.Severity == "" || f.Severity == idx.severity)
}

func (a *FileAuditLogger) append(prefix string, rec *AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	rec.ID = fmt.Sprintf("%s_%d_%d", prefix, rec.Timestamp.UnixNano(), a.seq)

	if err := a.enc.Encode(rec); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}

	if len(a.recent) >= a.retention {
		n := copy(a.recent, a.recent[len(a.recent)-a.retention+1:])
		a.recent = a.recent[:n]
	}
	a.recent = append(a.recent, rec)
	return nil
}

// Close 关闭审计文件，可重复调用
func (a *FileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
