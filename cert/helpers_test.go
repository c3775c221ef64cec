package cert

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"
)

// testKey 由单字节种子生成确定性密钥
func testKey(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
}

func pubOf(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

// issue 由 issuerKey 为 subjectKey 签发证书
func issue(t testing.TB, subject, issuer string, subjectKey, issuerKey ed25519.PrivateKey, notBefore, notAfter uint64) *Certificate {
	t.Helper()
	c, err := SignCertificate(&Certificate{
		Subject:   subject,
		Issuer:    issuer,
		PubKey:    pubOf(subjectKey),
		NotBefore: notBefore,
		NotAfter:  notAfter,
	}, issuerKey)
	require.NoError(t, err)
	return c
}

// corrupt 返回签名被篡改的副本
func corrupt(c *Certificate) *Certificate {
	bad := c.Copy()
	bad.Signature[0] ^= 0xff
	return bad
}

// countingClock 记录读取次数
type countingClock struct {
	now   uint64
	err   error
	reads int
}

func (c *countingClock) Now() (uint64, error) {
	c.reads++
	return c.now, c.err
}
