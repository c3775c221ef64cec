package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Logger 定义日志记录器接口
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// Level 日志级别
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "LEVEL(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

// Format 日志格式
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// badKey 奇数个字段时最后一个值的键名
const badKey = "!BADKEY"

// LogEntry JSON 格式下的一行日志
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Config 日志配置
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text", "json"
	Output string // "stdout", "stderr", or file path
}

// sink 多个 DefaultLogger 共享的输出端
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// DefaultLogger 默认日志记录器实现
type DefaultLogger struct {
	level  Level
	format Format
	out    *sink
	now    func() time.Time
	fields []interface{} // With 附加的上下文字段
}

// NewLogger 按配置创建日志记录器，输出到文件时需调用 Close
func NewLogger(cfg *Config) (*DefaultLogger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	out := &sink{}
	switch cfg.Output {
	case "", "stdout":
		out.w = os.Stdout
	case "stderr":
		out.w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out.w, out.closer = f, f
	}
	return &DefaultLogger{level: level, format: format, out: out, now: time.Now}, nil
}

// NewWriterLogger 创建写入任意 io.Writer 的日志记录器
func NewWriterLogger(w io.Writer, level Level, format Format) *DefaultLogger {
	return &DefaultLogger{level: level, format: format, out: &sink{w: w}, now: time.Now}
}

// ParseLevel 解析日志级别字符串，空串为 info
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelInfo, nil
	}
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// ParseFormat 解析日志格式字符串，空串为 text
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

// With 返回附带固定字段的子记录器，与父记录器共享输出
func (l *DefaultLogger) With(fields ...interface{}) *DefaultLogger {
	child := *l
	child.fields = append(append([]interface{}{}, l.fields...), fields...)
	return &child
}

// Enabled 报告该级别日志是否会被输出
func (l *DefaultLogger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) { l.log(LevelDebug, msg, fields) }
func (l *DefaultLogger) Info(msg string, fields ...interface{})  { l.log(LevelInfo, msg, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...interface{})  { l.log(LevelWarn, msg, fields) }
func (l *DefaultLogger) Error(msg string, fields ...interface{}) { l.log(LevelError, msg, fields) }

func (l *DefaultLogger) log(level Level, msg string, fields []interface{}) {
	if !l.Enabled(level) {
		return
	}
	ts := l.now().UTC().Format(time.RFC3339)
	pairs := appendPairs(nil, l.fields)
	pairs = appendPairs(pairs, fields)

	var buf bytes.Buffer
	if l.format == FormatJSON {
		entry := LogEntry{Timestamp: ts, Level: level.String(), Message: msg}
		if len(pairs) > 0 {
			entry.Fields = make(map[string]interface{}, len(pairs))
			for _, p := range pairs {
				entry.Fields[p.key] = jsonValue(p.value)
			}
		}
		if err := json.NewEncoder(&buf).Encode(entry); err != nil {
			buf.Reset()
			fmt.Fprintf(&buf, `{"timestamp":%q,"level":"ERROR","message":"log encode failed: %s"}`+"\n", ts, err)
		}
	} else {
		fmt.Fprintf(&buf, "%s %-5s %s", ts, level, msg)
		for _, p := range pairs {
			buf.WriteByte(' ')
			buf.WriteString(p.key)
			buf.WriteByte('=')
			buf.WriteString(textValue(p.value))
		}
		buf.WriteByte('\n')
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = l.out.w.Write(buf.Bytes())
}

// Close 关闭日志文件（输出到 stdout/stderr 时无操作）
func (l *DefaultLogger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.closer == nil {
		return nil
	}
	err := l.out.closer.Close()
	l.out.closer = nil
	return err
}

type pair struct {
	key   string
	value interface{}
}

// appendPairs 按出现顺序展开 key-value 列表，重复的键以后出现者为准
func appendPairs(dst []pair, fields []interface{}) []pair {
	for i := 0; i < len(fields); i += 2 {
		p := pair{key: badKey, value: fields[i]}
		if i+1 < len(fields) {
			p = pair{key: fmt.Sprint(fields[i]), value: fields[i+1]}
		}
		replaced := false
		for j := range dst {
			if dst[j].key == p.key {
				dst[j].value = p.value
				replaced = true
				break
			}
		}
		if !replaced {
			dst = append(dst, p)
		}
	}
	return dst
}

// jsonValue error 类型按其消息文本序列化
func jsonValue(v interface{}) interface{} {
	switch x := v.(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}

func textValue(v interface{}) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case error:
		s = x.Error()
	case time.Duration:
		s = x.String()
	default:
		s = fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// With 为任意 Logger 附加固定字段
func With(l Logger, fields ...interface{}) Logger {
	switch x := l.(type) {
	case *DefaultLogger:
		return x.With(fields...)
	case NopLogger, *NopLogger:
		return l
	case nil:
		return NopLogger{}
	}
	return &fieldLogger{next: l, fields: fields}
}

type fieldLogger struct {
	next   Logger
	fields []interface{}
}

func (f *fieldLogger) merge(fields []interface{}) []interface{} {
	return append(append([]interface{}{}, f.fields...), fields...)
}

func (f *fieldLogger) Debug(msg string, fields ...interface{}) { f.next.Debug(msg, f.merge(fields)...) }
func (f *fieldLogger) Info(msg string, fields ...interface{})  { f.next.Info(msg, f.merge(fields)...) }
func (f *fieldLogger) Warn(msg string, fields ...interface{})  { f.next.Warn(msg, f.merge(fields)...) }
func (f *fieldLogger) Error(msg string, fields ...interface{}) { f.next.Error(msg, f.merge(fields)...) }

// NopLogger 丢弃所有日志
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...interface{})  {}
func (NopLogger) Warn(msg string, fields ...interface{})  {}
func (NopLogger) Error(msg string, fields ...interface{}) {}
func (NopLogger) Debug(msg string, fields ...interface{}) {}
