package cert

import (
	"errors"
	"fmt"
	"io"

	"github.com/ugorji/go/codec"
	"golang.org/x/crypto/ed25519"
)

// 证书编码为 7 元素定长 CBOR 数组（major type 4）
const (
	certificateFields = 7
	cborArrayHeader   = 0x80 | certificateFields
)

var ch = &codec.CborHandle{}

func init() {
	ch.EncodeOptions.Canonical = true
}

// Serialize 将证书编码写入 w
func Serialize(cert *Certificate, w io.Writer) error {
	if cert == nil {
		return serializationError(errors.New("certificate is nil"))
	}
	enc := codec.NewEncoder(w, ch)
	if err := enc.Encode(cert); err != nil {
		return serializationError(err)
	}
	return nil
}

// Bytes 返回证书完整编码（含签名）
func (c *Certificate) Bytes() ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, ch)
	if err := enc.Encode(c); err != nil {
		return nil, serializationError(err)
	}
	return out, nil
}

// TBSBytes 返回签名覆盖的规范编码（不含 signature 字段）
// 相同的逻辑证书总是得到相同的字节序列
func (c *Certificate) TBSBytes() ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, ch)
	if err := enc.Encode(c.tbs()); err != nil {
		return nil, serializationError(err)
	}
	return out, nil
}

// Parse 从 io.Reader 读取并解析证书
func Parse(r io.Reader) (*Certificate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, serializationError(fmt.Errorf("read certificate: %w", err))
	}
	return DecodeCertificate(data)
}

// DecodeCertificate 解析证书字节并做结构检查
// 截断、尾随数据、字段缺失或长度不一致都返回 KindSerialization
func DecodeCertificate(data []byte) (*Certificate, error) {
	if len(data) == 0 {
		return nil, serializationError(io.ErrUnexpectedEOF)
	}
	if data[0] != cborArrayHeader {
		return nil, serializationError(fmt.Errorf("expected %d-element array, got header 0x%02x", certificateFields, data[0]))
	}

	dec := codec.NewDecoderBytes(data, ch)
	cert := &Certificate{}
	if err := dec.Decode(cert); err != nil {
		return nil, serializationError(err)
	}
	if n := dec.NumBytesRead(); n != len(data) {
		return nil, serializationError(fmt.Errorf("%d trailing bytes after certificate", len(data)-n))
	}

	normalize(cert)
	if err := checkStructure(cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// normalize 空切片统一为 nil，保证编解码往返后相等
func normalize(c *Certificate) {
	if len(c.Extensions) == 0 {
		c.Extensions = nil
	}
	if len(c.Signature) == 0 {
		c.Signature = nil
	}
	for i := range c.Extensions {
		if len(c.Extensions[i].Key) == 0 {
			c.Extensions[i].Key = nil
		}
		if len(c.Extensions[i].Value) == 0 {
			c.Extensions[i].Value = nil
		}
	}
}

// checkStructure 校验解码结果的结构约束
func checkStructure(c *Certificate) *Error {
	if c.Subject == "" {
		return serializationError(errors.New("subject is empty"))
	}
	if c.Issuer == "" {
		return serializationError(errors.New("issuer is empty"))
	}
	if len(c.PubKey) != ed25519.PublicKeySize {
		return serializationError(fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(c.PubKey)))
	}
	if c.NotBefore >= c.NotAfter {
		return serializationError(fmt.Errorf("not_before %d must be before not_after %d", c.NotBefore, c.NotAfter))
	}
	return nil
}
