package logging

import "time"

// ValidationEvent 证书链校验事件
// 每次校验调用记录一条，无论结果如何
type ValidationEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	Subject     string                 `json:"subject"`     // 叶子证书主题
	Issuer      string                 `json:"issuer"`      // 叶子证书签发者
	Fingerprint string                 `json:"fingerprint"` // 叶子证书指纹
	ChainLength int                    `json:"chain_length"`
	Result      string                 `json:"result"`         // "trusted", "rejected"
	Kind        string                 `json:"kind,omitempty"` // 失败类别
	Position    int                    `json:"position"`
	Reason      string                 `json:"reason,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// SecurityEvent 安全事件
// 用于记录被拒绝的证书，便于对重复出现的 untrusted 告警
type SecurityEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Subject   string                 `json:"subject"`
	EventType SecurityEventType      `json:"event_type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// SecurityEventType 安全事件类型
type SecurityEventType string

const (
	EventCertMalformed        SecurityEventType = "cert_malformed"
	EventCertSignatureInvalid SecurityEventType = "cert_signature_invalid"
	EventCertExpired          SecurityEventType = "cert_expired"
	EventCertNotYetValid      SecurityEventType = "cert_not_yet_valid"
	EventCertUntrusted        SecurityEventType = "cert_untrusted"
	EventClockFailure         SecurityEventType = "clock_failure"
)

// Severity 严重程度
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AuditFilter 审计日志查询过滤器
type AuditFilter struct {
	Subject   string            `json:"subject,omitempty"`
	Result    string            `json:"result,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	EventType SecurityEventType `json:"event_type,omitempty"`
	Severity  Severity          `json:"severity,omitempty"`
	StartTime time.Time         `json:"start_time,omitempty"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// AuditLog 审计日志记录
type AuditLog struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType string      `json:"event_type"` // "validation", "security"
	Data      interface{} `json:"data"`

	index auditIndex
}

// auditIndex 查询时比对的字段
type auditIndex struct {
	subject   string
	result    string
	kind      string
	eventType SecurityEventType
	severity  Severity
}
