package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestLoggerClassifiesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/_gateway/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.NoRoute(func(c *gin.Context) {
		c.Set(BackendKey, "app")
		c.Status(http.StatusBadGateway)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/_gateway/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/items", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	admin, forward := lines[0], lines[1]
	for _, want := range []string{`"route":"admin"`, `"path":"/_gateway/health"`, `"level":"info"`} {
		if !strings.Contains(admin, want) {
			t.Fatalf("admin line %s missing %s", admin, want)
		}
	}
	if strings.Contains(admin, `"backend"`) {
		t.Fatalf("admin line must not name a backend: %s", admin)
	}
	for _, want := range []string{`"route":"forward"`, `"path":"/api/items"`, `"backend":"app"`, `"status":502`, `"level":"error"`, `"message":"gateway_request"`} {
		if !strings.Contains(forward, want) {
			t.Fatalf("forward line %s missing %s", forward, want)
		}
	}
}
