package cert

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// SignCertificate 以签发者私钥对未签名证书签名，返回新证书
// 输入证书不会被修改
func SignCertificate(unsigned *Certificate, priv ed25519.PrivateKey) (*Certificate, error) {
	if unsigned == nil {
		return nil, errors.New("certificate is nil")
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	if unsigned.IsSigned() {
		return nil, errors.New("certificate is already signed")
	}

	signed := unsigned.Copy()
	normalize(signed)
	if err := checkStructure(signed); err != nil {
		return nil, err
	}

	tbs, err := signed.TBSBytes()
	if err != nil {
		return nil, err
	}
	signed.Signature = ed25519.Sign(priv, tbs)
	return signed, nil
}

// NewSelfSigned 创建自签名根证书（subject == issuer）
func NewSelfSigned(subject string, priv ed25519.PrivateKey, notBefore, notAfter uint64, exts ...Extension) (*Certificate, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return SignCertificate(&Certificate{
		Subject:    subject,
		Issuer:     subject,
		PubKey:     priv.Public().(ed25519.PublicKey),
		NotBefore:  notBefore,
		NotAfter:   notAfter,
		Extensions: exts,
	}, priv)
}
