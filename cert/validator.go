package cert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/houzhh15/smolcert/logging"
)

// Validator 证书链验证器
// 无内部可变状态，可被多个 goroutine 共享
type Validator struct {
	store  *TrustStore
	clock  Clock
	policy AnchorPolicy
	logger logging.Logger
	audit  logging.AuditLogger
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	TrustStore   *TrustStore         // 信任锚
	Clock        Clock               // 时间源，nil 使用系统时钟
	AnchorPolicy AnchorPolicy        // 信任锚策略
	Logger       logging.Logger      // 可选
	AuditLogger  logging.AuditLogger // 可选
}

// NewValidator 创建证书验证器
func NewValidator(config *ValidatorConfig) *Validator {
	if config == nil {
		config = &ValidatorConfig{}
	}

	v := &Validator{
		store:  config.TrustStore,
		clock:  config.Clock,
		policy: config.AnchorPolicy,
		logger: config.Logger,
		audit:  config.AuditLogger,
	}
	if v.store == nil {
		v.store = NewTrustStore()
	}
	if v.clock == nil {
		v.clock = SystemClock{}
	}
	if v.logger == nil {
		v.logger = logging.NopLogger{}
	}
	return v
}

// TrustStore 返回验证器使用的信任库
func (v *Validator) TrustStore() *TrustStore {
	return v.store
}

// ValidateChain 校验叶子在前的证书链
func (v *Validator) ValidateChain(ctx context.Context, chain []*Certificate) error {
	start := time.Now()
	err := ValidateChain(chain, v.store, v.clock, WithAnchorPolicy(v.policy))
	recordValidation(err, len(chain), time.Since(start))
	v.report(ctx, chain, err)
	return err
}

// ValidateBytes 解码并校验叶子在前的证书链
// 解码失败的 Position 为其在输入中的下标
func (v *Validator) ValidateBytes(ctx context.Context, raw [][]byte) error {
	chain, err := decodeAll(raw)
	if err != nil {
		recordValidation(err, len(raw), 0)
		v.report(ctx, nil, err)
		return err
	}
	return v.ValidateChain(ctx, chain)
}

// ValidateBundle 整理无序证书包后校验，返回叶子证书
func (v *Validator) ValidateBundle(ctx context.Context, bundle []*Certificate) (*Certificate, error) {
	chain, err := OrderBundle(bundle)
	if err != nil {
		recordValidation(err, len(bundle), 0)
		v.report(ctx, nil, err)
		return nil, err
	}
	if err := v.ValidateChain(ctx, chain); err != nil {
		return nil, err
	}
	return chain[0], nil
}

// ValidateBundleBytes 解码无序证书包后校验，返回叶子证书
func (v *Validator) ValidateBundleBytes(ctx context.Context, raw [][]byte) (*Certificate, error) {
	bundle, err := decodeAll(raw)
	if err != nil {
		recordValidation(err, len(raw), 0)
		v.report(ctx, nil, err)
		return nil, err
	}
	return v.ValidateBundle(ctx, bundle)
}

func decodeAll(raw [][]byte) ([]*Certificate, error) {
	if len(raw) == 0 {
		return nil, untrustedError(errors.New("certificate chain is empty"))
	}
	chain := make([]*Certificate, len(raw))
	for i, b := range raw {
		c, err := DecodeCertificate(b)
		if err != nil {
			var ce *Error
			if errors.As(err, &ce) {
				return nil, ce.at(i)
			}
			return nil, serializationError(err).at(i)
		}
		chain[i] = c
	}
	return chain, nil
}

// report 记录日志与审计事件
func (v *Validator) report(ctx context.Context, chain []*Certificate, err error) {
	var leaf *Certificate
	if len(chain) > 0 {
		leaf = chain[0]
	}

	outcome := OutcomeOf(err)
	if err == nil {
		v.logger.Debug("Certificate chain trusted", "subject", leaf.Subject, "chain_length", len(chain))
	} else {
		fields := []interface{}{"kind", outcome.Kind, "position", outcome.Position, "error", err}
		if leaf != nil {
			fields = append(fields, "subject", leaf.Subject)
		}
		v.logger.Warn("Certificate chain rejected", fields...)
	}

	if v.audit == nil {
		return
	}

	event := &logging.ValidationEvent{
		ChainLength: len(chain),
		Result:      "trusted",
		Position:    outcome.Position,
	}
	if leaf != nil {
		event.Subject = leaf.Subject
		event.Issuer = leaf.Issuer
		if fp, ferr := Fingerprint(leaf); ferr == nil {
			event.Fingerprint = fp
		}
	}
	if err != nil {
		event.Result = "rejected"
		event.Kind = outcome.Kind
		event.Reason = outcome.Reason
		if outcome.Kind == KindValidity.String() {
			event.Details = map[string]interface{}{
				"not_before": outcome.NotBefore,
				"not_after":  outcome.NotAfter,
			}
		}
	}
	if aerr := v.audit.LogValidation(ctx, event); aerr != nil {
		v.logger.Error("Failed to write validation audit event", "error", aerr)
	}

	if err != nil {
		sec := securityEvent(err, event.Subject, v.now())
		if aerr := v.audit.LogSecurity(ctx, sec); aerr != nil {
			v.logger.Error("Failed to write security audit event", "error", aerr)
		}
	}
}

// now 审计用的当前时间，时钟故障时为 0
func (v *Validator) now() uint64 {
	t, err := v.clock.Now()
	if err != nil {
		return 0
	}
	return t
}

// securityEvent 将校验失败映射为安全事件
func securityEvent(err error, subject string, now uint64) *logging.SecurityEvent {
	event := &logging.SecurityEvent{
		Subject:  subject,
		Severity: logging.SeverityMedium,
		Message:  err.Error(),
	}

	var ce *Error
	if !errors.As(err, &ce) {
		event.EventType = logging.EventCertMalformed
		return event
	}

	switch ce.Kind {
	case KindSerialization:
		event.EventType = logging.EventCertMalformed
		event.Severity = logging.SeverityLow
	case KindSignature:
		event.EventType = logging.EventCertSignatureInvalid
		event.Severity = logging.SeverityHigh
	case KindValidity:
		event.EventType = logging.EventCertExpired
		if now < ce.NotBefore {
			event.EventType = logging.EventCertNotYetValid
		}
		event.Details = map[string]interface{}{
			"not_before": ce.NotBefore,
			"not_after":  ce.NotAfter,
		}
	case KindTime:
		event.EventType = logging.EventClockFailure
		event.Severity = logging.SeverityCritical
	case KindUntrusted:
		event.EventType = logging.EventCertUntrusted
		event.Severity = logging.SeverityHigh
	default:
		event.EventType = logging.EventCertMalformed
		event.Message = fmt.Sprintf("unexpected validation error: %v", err)
	}
	return event
}
