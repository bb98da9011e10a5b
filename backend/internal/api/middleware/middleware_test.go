package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"scsc-homepage/backend/config"
	"scsc-homepage/backend/internal/model"
	"scsc-homepage/backend/pkg/jwt"
	applogger "scsc-homepage/backend/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "middleware-test-secret",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetInt("role")})
}

// ── JWTAuth ──

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWT()
	token, err := mgr.GenerateAccessToken("user-1", model.RoleExecutive)
	if err != nil {
		t.Fatalf("签发 token 失败: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", JWTAuth(mgr), okHandler)

			req := httptest.NewRequest("GET", "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestJWTAuth_SetsRole(t *testing.T) {
	mgr := newTestJWT()
	token, _ := mgr.GenerateAccessToken("user-1", model.RoleExecutive)

	r := gin.New()
	r.GET("/x", JWTAuth(mgr), okHandler)
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"role":500`) || !strings.Contains(w.Body.String(), `"user_id":"user-1"`) {
		t.Errorf("上下文未注入身份: %s", w.Body.String())
	}
}

// ── RoleAtLeast ──

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		name       string
		role       any
		wantStatus int
	}{
		{"no role", nil, http.StatusUnauthorized},
		{"lower", model.RoleMember, http.StatusForbidden},
		{"equal", model.RoleExecutive, http.StatusOK},
		{"higher", model.RolePresident, http.StatusOK},
		{"wrong type", "admin", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) {
				if tt.role != nil {
					c.Set("role", tt.role)
				}
				c.Next()
			}, RoleAtLeast(model.RoleExecutive), okHandler)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

// ── RequestID ──

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var ctxLogger *zap.Logger
	fallback := zap.NewNop()

	r := gin.New()
	r.GET("/x", RequestID(zap.NewNop()), func(c *gin.Context) {
		ctxLogger = applogger.FromContext(c.Request.Context(), fallback)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("响应缺少 X-Request-ID")
	}
	if ctxLogger == nil || ctxLogger == fallback {
		t.Error("request context 中应有带 request_id 的 logger")
	}
}

func TestRequestID_RejectsOversized(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequestID(zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", requestIDMaxLen+1))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); len(got) > requestIDMaxLen {
		t.Errorf("超长 Request-ID 应被替换, got %d bytes", len(got))
	}

	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

// ── RateLimit ──

func TestRateLimit_NilClientPassesThrough(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("第 %d 次请求 expected 200, got %d", i+1, w.Code)
		}
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", BodyLimit(8), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/x", bytes.NewReader([]byte("0123456789")))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", bytes.NewReader([]byte("0123"))))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ── SecurityHeaders ──

func TestSecurityHeaders_NoStoreOnAPI(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/x", nil))
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got %q", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("缺少 X-Content-Type-Options")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Errorf("非 API 路径不应设置 Cache-Control, got %q", got)
	}
}

// ── CORS ──

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://scsc.example.org/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("OPTIONS", "/x", nil)
	req.Header.Set("Origin", "https://scsc.example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://scsc.example.org" {
		t.Errorf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest("OPTIONS", "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("未登记来源不应返回 Allow-Origin")
	}
}

// ── Logger ──

func TestLogger_UsesRequestScopedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	r := gin.New()
	r.Use(RequestID(base), Logger(base))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	if logs.Len() != 0 {
		t.Fatalf("探活请求不应记录日志, got %d", logs.Len())
	}

	req := httptest.NewRequest("GET", "/api/v1/x", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zap.WarnLevel {
		t.Errorf("4xx 应记为 warn, got %s", e.Level)
	}
	if got := e.ContextMap()["request_id"]; got != "rid-1" {
		t.Errorf("expected request_id rid-1, got %v", got)
	}
}
