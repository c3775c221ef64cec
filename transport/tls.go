package transport

import (
	"crypto/tls"
	"fmt"
)

// LoadTLSConfig 加载服务端证书并创建 tls.Config
// 校验服务的调用方在请求体中提交证书，不要求客户端证书
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" && keyFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load cert/key: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
