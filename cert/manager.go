package cert

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ed25519"
)

// PEM 块类型
const (
	PEMCertificate = "SMOLCERT CERTIFICATE"
	PEMPrivateKey  = "PRIVATE KEY"
)

// Fingerprint 证书指纹（SHA256，覆盖完整编码）
func Fingerprint(c *Certificate) (string, error) {
	data, err := c.Bytes()
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:]), nil
}

// EncodePEM 证书编码为 PEM
func EncodePEM(c *Certificate) ([]byte, error) {
	data, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMCertificate, Bytes: data}), nil
}

// DecodeBundle 解析证书数据：单个原始 CBOR 证书，或一个/多个 PEM 块
func DecodeBundle(data []byte) ([]*Certificate, error) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("-----BEGIN")) {
		c, err := DecodeCertificate(data)
		if err != nil {
			return nil, err
		}
		return []*Certificate{c}, nil
	}

	var certs []*Certificate
	rest := trimmed
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != PEMCertificate {
			continue
		}
		c, err := DecodeCertificate(block.Bytes)
		if err != nil {
			var ce *Error
			if errors.As(err, &ce) {
				return nil, ce.at(len(certs))
			}
			return nil, err
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, serializationError(errors.New("no certificate PEM blocks found"))
	}
	return certs, nil
}

// LoadCertificateFile 加载单张证书
func LoadCertificateFile(path string) (*Certificate, error) {
	certs, err := LoadBundleFile(path)
	if err != nil {
		return nil, err
	}
	if len(certs) != 1 {
		return nil, fmt.Errorf("%s: expected 1 certificate, found %d", path, len(certs))
	}
	return certs[0], nil
}

// LoadBundleFile 加载证书文件（可含多张 PEM 证书）
func LoadBundleFile(path string) ([]*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate file: %w", err)
	}
	certs, err := DecodeBundle(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return certs, nil
}

// WriteCertificateFile 写入证书（pemEncode 为 false 时写原始 CBOR）
func WriteCertificateFile(path string, c *Certificate, pemEncode bool) error {
	var (
		data []byte
		err  error
	)
	if pemEncode {
		data, err = EncodePEM(c)
	} else {
		data, err = c.Bytes()
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write certificate file: %w", err)
	}
	return nil
}

// LoadPrivateKeyFile 加载 PKCS#8 PEM 格式的 ed25519 私钥
func LoadPrivateKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != PEMPrivateKey {
		return nil, fmt.Errorf("%s: no %s PEM block", path, PEMPrivateKey)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an ed25519 private key (%T)", path, key)
	}
	return priv, nil
}

// WritePrivateKeyFile 以 PKCS#8 PEM 写入私钥（权限 0600）
func WritePrivateKeyFile(path string, priv ed25519.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: PEMPrivateKey, Bytes: der})
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// LoadTrustStore 以证书文件中的 subject/公钥构建信任库
func LoadTrustStore(paths ...string) (*TrustStore, error) {
	store := NewTrustStore()
	for _, p := range paths {
		certs, err := LoadBundleFile(p)
		if err != nil {
			return nil, err
		}
		for _, c := range certs {
			if err := store.Add(c.Subject, c.PubKey); err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
	}
	return store, nil
}
