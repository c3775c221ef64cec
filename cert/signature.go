package cert

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

var errSignatureMismatch = errors.New("ed25519 verification failed")

// VerifySignature 使用 ed25519 校验签名
// 公钥或签名长度错误与签名不匹配一样返回 KindSignature
func VerifySignature(pub, msg, sig []byte) error {
	if err := verifySignature(pub, msg, sig); err != nil {
		return err
	}
	return nil
}

func verifySignature(pub, msg, sig []byte) *Error {
	if len(pub) != ed25519.PublicKeySize {
		return signatureError(fmt.Errorf("malformed public key: %d bytes", len(pub)))
	}
	if len(sig) != ed25519.SignatureSize {
		return signatureError(fmt.Errorf("malformed signature: %d bytes", len(sig)))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		return signatureError(errSignatureMismatch)
	}
	return nil
}
