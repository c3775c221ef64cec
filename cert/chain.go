package cert

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// AnchorPolicy 自签名信任锚出现在链中时的处理策略
type AnchorPolicy int

const (
	// VerifyAnchors 信任锚证书同样校验自身签名与有效期（默认）
	VerifyAnchors AnchorPolicy = iota
	// TrustAnchors 自签名且与信任库公钥一致的证书直接视为受信任
	TrustAnchors
)

// String 返回策略名称
func (p AnchorPolicy) String() string {
	switch p {
	case VerifyAnchors:
		return "verify"
	case TrustAnchors:
		return "trust"
	default:
		return "unknown"
	}
}

// ParseAnchorPolicy 解析策略名称，空串为 verify
func ParseAnchorPolicy(s string) (AnchorPolicy, error) {
	switch s {
	case "", "verify":
		return VerifyAnchors, nil
	case "trust":
		return TrustAnchors, nil
	default:
		return 0, fmt.Errorf("unknown anchor policy: %s", s)
	}
}

// Option 校验选项
type Option func(*chainOptions)

type chainOptions struct {
	policy AnchorPolicy
}

// WithAnchorPolicy 设置信任锚策略
func WithAnchorPolicy(p AnchorPolicy) Option {
	return func(o *chainOptions) {
		o.policy = p
	}
}

// ValidateChain 校验证书链（叶子在前），nil 表示受信任
//
// 对每个位置 i 依次：确定签发者公钥（chain[i+1] 或信任库）、校验签名、
// 读取时钟、检查 [NotBefore, NotAfter)。遇到第一个失败即返回，不继续扫描。
// 时钟在一次调用内最多读取一次，且仅在首个签名校验成功之后读取。
// 校验期间持有信任库读锁。
func ValidateChain(chain []*Certificate, store *TrustStore, clock Clock, opts ...Option) error {
	o := chainOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if len(chain) == 0 {
		return untrustedError(errors.New("certificate chain is empty"))
	}
	if store == nil {
		store = NewTrustStore()
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	now := &lazyClock{clock: clock}
	for i, c := range chain {
		if c == nil {
			return serializationError(errors.New("certificate is nil")).at(i)
		}

		if o.policy == TrustAnchors && store.isAnchorLocked(c) {
			return nil
		}

		// 1. 签发者公钥
		var issuerKey ed25519.PublicKey
		last := i+1 == len(chain)
		if !last {
			next := chain[i+1]
			if next == nil {
				return serializationError(errors.New("certificate is nil")).at(i + 1)
			}
			if next.Subject != c.Issuer {
				return untrustedError(fmt.Errorf("issuer %q does not match next subject %q", c.Issuer, next.Subject)).at(i)
			}
			issuerKey = next.PubKey
		} else {
			pub, ok := store.lookupLocked(c.Issuer)
			if !ok {
				return untrustedError(fmt.Errorf("issuer %q is not a trust anchor", c.Issuer)).at(i)
			}
			issuerKey = pub
		}

		// 2. 签名
		tbs, err := c.TBSBytes()
		if err != nil {
			var ce *Error
			if errors.As(err, &ce) {
				return ce.at(i)
			}
			return serializationError(err).at(i)
		}
		if serr := verifySignature(issuerKey, tbs, c.Signature); serr != nil {
			return serr.at(i)
		}

		// 3. 时钟
		t, err := now.Now()
		if err != nil {
			return timeError(err).at(i)
		}

		// 4. 有效期（半开区间）
		if !c.ValidAt(t) {
			return validityError(c.NotBefore, c.NotAfter).at(i)
		}

		// 5. 链尾已由信任库中的锚点签发
		if last {
			return nil
		}
	}
	return nil
}

// isAnchorLocked 自签名且公钥与信任库中同名锚点一致
func (s *TrustStore) isAnchorLocked(c *Certificate) bool {
	if !c.IsSelfSigned() {
		return false
	}
	pub, ok := s.lookupLocked(c.Subject)
	return ok && bytes.Equal(pub, c.PubKey)
}
