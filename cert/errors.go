package cert

import (
	"errors"
	"fmt"
)

// ErrorKind 校验失败类别
type ErrorKind int

const (
	KindSerialization ErrorKind = iota + 1 // 编解码失败
	KindSignature                          // 签名校验失败
	KindValidity                           // 不在有效期内
	KindTime                               // 时钟读取失败（可重试）
	KindUntrusted                          // 证书链未终止于信任锚
)

// String 返回类别名称（用于日志、指标标签和 HTTP 响应）
func (k ErrorKind) String() string {
	switch k {
	case KindSerialization:
		return "serialization"
	case KindSignature:
		return "signature"
	case KindValidity:
		return "validity"
	case KindTime:
		return "time"
	case KindUntrusted:
		return "untrusted"
	default:
		return "unknown"
	}
}

// 各类别的哨兵错误，配合 errors.Is 使用
var (
	ErrSerialization = errors.New("certificate serialization failed")
	ErrSignature     = errors.New("certificate signature invalid")
	ErrValidity      = errors.New("certificate outside validity window")
	ErrTime          = errors.New("clock unavailable")
	ErrUntrusted     = errors.New("certificate chain untrusted")
)

func sentinelFor(k ErrorKind) error {
	switch k {
	case KindSerialization:
		return ErrSerialization
	case KindSignature:
		return ErrSignature
	case KindValidity:
		return ErrValidity
	case KindTime:
		return ErrTime
	case KindUntrusted:
		return ErrUntrusted
	}
	return nil
}

// Error 证书校验错误
// Position 为证书在链中的下标（-1 表示与具体位置无关）
// NotBefore/NotAfter 仅在 KindValidity 时有意义
type Error struct {
	Kind      ErrorKind
	Position  int
	NotBefore uint64
	NotAfter  uint64
	Err       error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindValidity:
		msg = fmt.Sprintf("%s: window [%d, %d)", ErrValidity, e.NotBefore, e.NotAfter)
	default:
		if s := sentinelFor(e.Kind); s != nil {
			msg = s.Error()
		} else {
			msg = "certificate validation failed"
		}
	}
	if e.Position >= 0 {
		msg = fmt.Sprintf("%s (position %d)", msg, e.Position)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 返回底层原因
func (e *Error) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrSignature) 等按类别匹配
func (e *Error) Is(target error) bool {
	if s := sentinelFor(e.Kind); s != nil && target == s {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind
	}
	return false
}

// Retryable 只有时钟故障可能是暂时性的
func (e *Error) Retryable() bool {
	return e.Kind == KindTime
}

// KindOf 提取错误类别，非 *Error 返回 0
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// at 设置链中位置
func (e *Error) at(pos int) *Error {
	e.Position = pos
	return e
}

// serializationError 编解码器故障映射
func serializationError(err error) *Error {
	return &Error{Kind: KindSerialization, Position: -1, Err: err}
}

// signatureError 签名原语故障映射
func signatureError(err error) *Error {
	return &Error{Kind: KindSignature, Position: -1, Err: err}
}

// timeError 时钟故障映射
func timeError(err error) *Error {
	return &Error{Kind: KindTime, Position: -1, Err: err}
}

func validityError(notBefore, notAfter uint64) *Error {
	return &Error{Kind: KindValidity, Position: -1, NotBefore: notBefore, NotAfter: notAfter}
}

func untrustedError(err error) *Error {
	return &Error{Kind: KindUntrusted, Position: -1, Err: err}
}
