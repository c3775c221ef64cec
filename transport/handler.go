package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/houzhh15/smolcert/cert"
	"github.com/houzhh15/smolcert/logging"
)

const (
	pathValidate = "/v1/validate"
	pathHealth   = "/healthz"
	pathMetrics  = "/metrics"
)

// DefaultMaxBodyBytes 请求体默认上限
const DefaultMaxBodyBytes int64 = 1 << 20

// ValidateRequest 校验请求，证书为 base64 编码的 CBOR
type ValidateRequest struct {
	Chain  [][]byte `json:"chain"`
	Bundle bool     `json:"bundle,omitempty"` // 为 true 时证书无序
}

// ValidateResponse 校验响应
type ValidateResponse struct {
	cert.Outcome
	Subject string `json:"subject,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandlerOption 配置校验处理器
type HandlerOption func(*validationHandler)

// WithMaxBodyBytes 设置请求体上限
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *validationHandler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

type validationHandler struct {
	validator *cert.Validator
	logger    logging.Logger
	maxBody   int64
}

// NewValidationHandler 创建校验 API 路由
func NewValidationHandler(v *cert.Validator, logger logging.Logger, opts ...HandlerOption) http.Handler {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	h := &validationHandler{
		validator: v,
		logger:    logger,
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pathValidate, h.handleValidate)
	mux.HandleFunc(pathHealth, h.handleHealth)
	mux.Handle(pathMetrics, promhttp.Handler())
	return mux
}

func (h *validationHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req ValidateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		h.logger.Debug("Malformed validation request", "error", err, "remote", r.RemoteAddr)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request: " + err.Error()})
		return
	}

	var (
		leaf *cert.Certificate
		err  error
	)
	if req.Bundle {
		leaf, err = h.validator.ValidateBundleBytes(r.Context(), req.Chain)
	} else {
		err = h.validator.ValidateBytes(r.Context(), req.Chain)
	}

	resp := ValidateResponse{Outcome: cert.OutcomeOf(err)}
	if err != nil {
		writeJSON(w, statusFor(err), resp)
		return
	}
	if leaf != nil {
		resp.Subject = leaf.Subject
	} else if c, derr := cert.DecodeCertificate(req.Chain[0]); derr == nil {
		resp.Subject = c.Subject
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *validationHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"anchors": h.validator.TrustStore().Len(),
	})
}

// statusFor 将校验错误映射为 HTTP 状态码
// 时钟故障属于服务端问题，可重试
func statusFor(err error) int {
	if cert.KindOf(err) == cert.KindTime {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
