package transport

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveLocal 在随机端口启动服务器并等待就绪
func serveLocal(t *testing.T, server HTTPServer, handler http.Handler) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		if err := server.Serve(l, handler); err != nil {
			t.Logf("Server stopped: %v", err)
		}
	}()

	url := "http://" + l.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return url
}

func TestNewHTTPServer(t *testing.T) {
	server := NewHTTPServer(nil)
	require.NotNil(t, server)

	s := server.(*httpServer)
	assert.Equal(t, DefaultTimeouts, s.timeouts)
}

func TestNewHTTPServerWithTimeouts_Defaults(t *testing.T) {
	s := NewHTTPServerWithTimeouts(nil, Timeouts{Read: time.Second}).(*httpServer)

	assert.Equal(t, time.Second, s.timeouts.Read)
	assert.Equal(t, DefaultTimeouts.Write, s.timeouts.Write)
	assert.Equal(t, DefaultTimeouts.Idle, s.timeouts.Idle)
	assert.Equal(t, DefaultTimeouts.Shutdown, s.timeouts.Shutdown)
}

func TestHTTPServer_RegisterMiddleware(t *testing.T) {
	server := NewHTTPServer(nil).(*httpServer)

	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		})
	}

	server.RegisterMiddleware(middleware)

	if len(server.middlewares) != 1 {
		t.Errorf("Expected 1 middleware, got %d", len(server.middlewares))
	}
}

func TestHTTPServer_Serve_Plain(t *testing.T) {
	server := NewHTTPServer(nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello"))
	})

	url := serveLocal(t, server, handler)

	resp, err := http.Get(url + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Hello", string(body))

	assert.NoError(t, server.Stop())
}

func TestHTTPServer_Middleware(t *testing.T) {
	server := NewHTTPServer(nil)

	var order []string

	middleware1 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "mw1-before")
			next.ServeHTTP(w, r)
			order = append(order, "mw1-after")
		})
	}

	middleware2 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "mw2-before")
			next.ServeHTTP(w, r)
			order = append(order, "mw2-after")
		})
	}

	server.RegisterMiddleware(middleware1)
	server.RegisterMiddleware(middleware2)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.Write([]byte("OK"))
	})

	// 通过 build 应用中间件链
	s := server.(*httpServer)
	built := s.build("", handler)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	built.Handler.ServeHTTP(rec, req)

	// 先注册的在外层
	expectedOrder := []string{
		"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after",
	}
	assert.Equal(t, expectedOrder, order)
	assert.Equal(t, DefaultTimeouts.Read, built.ReadTimeout)
}

func TestHTTPServer_Stop(t *testing.T) {
	server := NewHTTPServer(nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Done"))
	})

	serveLocal(t, server, handler)

	stopChan := make(chan error)
	go func() {
		stopChan <- server.Stop()
	}()

	select {
	case err := <-stopChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Error("Server stop timeout")
	}
}

func TestHTTPServer_StopBeforeStart(t *testing.T) {
	server := NewHTTPServer(nil)
	assert.NoError(t, server.Stop())
}

func TestLoadTLSConfig(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg, err := LoadTLSConfig("", "")
		assert.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("missing files", func(t *testing.T) {
		dir := t.TempDir()
		_, err := LoadTLSConfig(filepath.Join(dir, "server.pem"), filepath.Join(dir, "server.key"))
		assert.Error(t, err)
	})

	t.Run("invalid pem", func(t *testing.T) {
		dir := t.TempDir()
		certFile := filepath.Join(dir, "server.pem")
		keyFile := filepath.Join(dir, "server.key")
		require.NoError(t, os.WriteFile(certFile, []byte("not a cert"), 0644))
		require.NoError(t, os.WriteFile(keyFile, []byte("not a key"), 0600))

		_, err := LoadTLSConfig(certFile, keyFile)
		assert.ErrorContains(t, err, "failed to load cert/key")
	})
}
