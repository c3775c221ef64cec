package cert

import (
	"bytes"
	"errors"

	"golang.org/x/crypto/ed25519"
)

// Certificate 基于 CBOR 的紧凑证书
// 编码为定长数组：subject, issuer, public_key, not_before, not_after, extensions, signature
// 签名覆盖除 signature 之外全部字段的规范编码（见 TBSBytes）
// 签名字段写入后证书不可再修改，任何变更都需要签发新证书
type Certificate struct {
	_struct interface{} `codec:"-,toarray"`

	Subject    string            `codec:"subject"`
	Issuer     string            `codec:"issuer"`
	PubKey     ed25519.PublicKey `codec:"public_key"`
	NotBefore  uint64            `codec:"not_before"` // 含
	NotAfter   uint64            `codec:"not_after"`  // 不含
	Extensions []Extension       `codec:"extensions"`
	Signature  []byte            `codec:"signature"`
}

// tbsCertificate 待签名部分
type tbsCertificate struct {
	_struct interface{} `codec:"-,toarray"`

	Subject    string            `codec:"subject"`
	Issuer     string            `codec:"issuer"`
	PubKey     ed25519.PublicKey `codec:"public_key"`
	NotBefore  uint64            `codec:"not_before"`
	NotAfter   uint64            `codec:"not_after"`
	Extensions []Extension       `codec:"extensions"`
}

// Extension 扩展项，保持顺序，不去重
type Extension struct {
	_struct interface{} `codec:"-,toarray"`

	Key   []byte `codec:"key"`
	Value []byte `codec:"value"`
}

// PublicKeyBytes 返回证书公钥的字节切片
func (c *Certificate) PublicKeyBytes() []byte {
	return c.PubKey
}

// IsSelfSigned 主题与签发者相同
func (c *Certificate) IsSelfSigned() bool {
	return c.Subject == c.Issuer
}

// IsSigned 是否已附带签名
func (c *Certificate) IsSigned() bool {
	return len(c.Signature) > 0
}

// ValidAt 判断时间点是否落在 [NotBefore, NotAfter) 内
func (c *Certificate) ValidAt(now uint64) bool {
	return now >= c.NotBefore && now < c.NotAfter
}

// Extension 按 key 查找第一个匹配的扩展
func (c *Certificate) Extension(key []byte) ([]byte, bool) {
	for _, ext := range c.Extensions {
		if bytes.Equal(ext.Key, key) {
			return ext.Value, true
		}
	}
	return nil, false
}

// Copy 深拷贝证书
func (c *Certificate) Copy() *Certificate {
	c2 := &Certificate{
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		NotBefore: c.NotBefore,
		NotAfter:  c.NotAfter,
	}
	if c.PubKey != nil {
		c2.PubKey = ed25519.PublicKey(append([]byte{}, c.PubKey...))
	}
	if c.Extensions != nil {
		c2.Extensions = make([]Extension, len(c.Extensions))
		for i, ext := range c.Extensions {
			c2.Extensions[i] = Extension{
				Key:   append([]byte{}, ext.Key...),
				Value: append([]byte{}, ext.Value...),
			}
		}
	}
	if c.Signature != nil {
		c2.Signature = append([]byte{}, c.Signature...)
	}
	return c2
}

func (c *Certificate) tbs() *tbsCertificate {
	return &tbsCertificate{
		Subject:    c.Subject,
		Issuer:     c.Issuer,
		PubKey:     c.PubKey,
		NotBefore:  c.NotBefore,
		NotAfter:   c.NotAfter,
		Extensions: c.Extensions,
	}
}

// Outcome 单次校验结果（可序列化，供审计与 HTTP 响应使用）
type Outcome struct {
	Trusted   bool   `json:"trusted"`
	Kind      string `json:"kind,omitempty"`
	Position  int    `json:"position"`
	NotBefore uint64 `json:"not_before,omitempty"`
	NotAfter  uint64 `json:"not_after,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// OutcomeOf 将校验错误转换为 Outcome，nil 表示受信任
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Trusted: true, Position: -1}
	}
	out := Outcome{Position: -1, Reason: err.Error(), Kind: "unknown"}
	var ce *Error
	if errors.As(err, &ce) {
		out.Kind = ce.Kind.String()
		out.Position = ce.Position
		out.Retryable = ce.Retryable()
		if ce.Kind == KindValidity {
			out.NotBefore = ce.NotBefore
			out.NotAfter = ce.NotAfter
		}
	}
	return out
}
