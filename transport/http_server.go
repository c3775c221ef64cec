package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Timeouts HTTP 超时设置
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// DefaultTimeouts 默认超时
var DefaultTimeouts = Timeouts{
	Read:     15 * time.Second,
	Write:    15 * time.Second,
	Idle:     60 * time.Second,
	Shutdown: 5 * time.Second,
}

// httpServer HTTP 服务器实现
// 支持 TLS、中间件链、优雅关闭
type httpServer struct {
	server      *http.Server
	tlsConfig   *tls.Config
	timeouts    Timeouts
	middlewares []func(http.Handler) http.Handler
	stopped     bool // Stop 先于 Start 调用
	mu          sync.RWMutex
}

// NewHTTPServer 创建 HTTP 服务器
// tlsConfig 为 nil 则使用普通 HTTP（不推荐生产环境）
func NewHTTPServer(tlsConfig *tls.Config) HTTPServer {
	return NewHTTPServerWithTimeouts(tlsConfig, DefaultTimeouts)
}

// NewHTTPServerWithTimeouts 创建带自定义超时的 HTTP 服务器，零值项使用默认值
func NewHTTPServerWithTimeouts(tlsConfig *tls.Config, timeouts Timeouts) HTTPServer {
	if timeouts.Read == 0 {
		timeouts.Read = DefaultTimeouts.Read
	}
	if timeouts.Write == 0 {
		timeouts.Write = DefaultTimeouts.Write
	}
	if timeouts.Idle == 0 {
		timeouts.Idle = DefaultTimeouts.Idle
	}
	if timeouts.Shutdown == 0 {
		timeouts.Shutdown = DefaultTimeouts.Shutdown
	}
	return &httpServer{
		tlsConfig:   tlsConfig,
		timeouts:    timeouts,
		middlewares: make([]func(http.Handler) http.Handler, 0),
	}
}

// RegisterMiddleware 注册中间件（先注册的在外层）
func (s *httpServer) RegisterMiddleware(mw func(http.Handler) http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

// build 应用中间件链并创建 http.Server，已停止时返回 nil
func (s *httpServer) build(addr string, handler http.Handler) *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	finalHandler := handler
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		finalHandler = s.middlewares[i](finalHandler)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      finalHandler,
		TLSConfig:    s.tlsConfig,
		ReadTimeout:  s.timeouts.Read,
		WriteTimeout: s.timeouts.Write,
		IdleTimeout:  s.timeouts.Idle,
	}
	return s.server
}

// Start 启动 HTTP 服务器
func (s *httpServer) Start(addr string, handler http.Handler) error {
	server := s.build(addr, handler)
	if server == nil {
		return nil
	}

	var err error
	if s.tlsConfig != nil {
		err = server.ListenAndServeTLS("", "") // 证书已在 tlsConfig 中配置
	} else {
		err = server.ListenAndServe()
	}

	// ErrServerClosed 不是错误（正常关闭）
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Serve 在给定 Listener 上服务（测试或 systemd socket 激活）
func (s *httpServer) Serve(l net.Listener, handler http.Handler) error {
	server := s.build(l.Addr().String(), handler)
	if server == nil {
		return l.Close()
	}

	var err error
	if s.tlsConfig != nil {
		err = server.ServeTLS(l, "", "")
	} else {
		err = server.Serve(l)
	}

	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop 优雅关闭服务器（等待现有连接完成）
func (s *httpServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		s.stopped = true
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.Shutdown)
	defer cancel()

	return s.server.Shutdown(ctx)
}
