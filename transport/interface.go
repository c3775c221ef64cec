package transport

import (
	"net"
	"net/http"
)

// HTTPServer HTTP 校验服务
type HTTPServer interface {
	// Start 监听 addr 并阻塞服务
	Start(addr string, handler http.Handler) error
	// Serve 在已有 Listener 上阻塞服务
	Serve(l net.Listener, handler http.Handler) error
	// Stop 优雅停止服务器
	Stop() error
	// RegisterMiddleware 注册中间件
	RegisterMiddleware(mw func(http.Handler) http.Handler)
}
