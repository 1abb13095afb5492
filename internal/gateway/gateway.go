package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/uwsgictl/internal/client"
	"github.com/danmuck/uwsgictl/internal/observability"
	"github.com/danmuck/uwsgictl/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	adminPrefix = "/_gateway"

	DefaultMaxBodyBytes = 32 << 20
)

// hopHeaders are dropped when copying the application server's reply.
var hopHeaders = map[string]struct{}{
	"content-length":    {},
	"content-encoding":  {},
	"transfer-encoding": {},
	"connection":        {},
	"keep-alive":        {},
}

// Gateway serves HTTP and forwards every unrouted request to a uwsgi backend.
type Gateway struct {
	Name    string
	Addr    string
	Started time.Time
	// MaxBodyBytes bounds inbound request bodies; larger bodies get 413.
	MaxBodyBytes int64

	backend Backend
	router  *gin.Engine
}

// Backend is the uwsgi client the gateway forwards to.
type Backend interface {
	Do(ctx context.Context, opts client.Options) (*client.Response, error)
	Config() client.Config
}

func New(name, addr string, corsOrigins []string, backend Backend) *Gateway {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Gateway{
		Name:         name,
		Addr:         addr,
		Started:      time.Now(),
		MaxBodyBytes: DefaultMaxBodyBytes,
		backend:      backend,
		router:       r,
	}
}

func (g *Gateway) HTTPRouter() *gin.Engine {
	return g.router
}

func (g *Gateway) RegisterRoutes() {
	admin := g.router.Group(adminPrefix)
	admin.GET("/health", func(c *gin.Context) {
		cfg := g.backend.Config()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(g.Started).String(),
			"service":   g.Name,
			"backend":   cfg.Name,
			"modifier1": cfg.Modifier1,
			"modifier2": cfg.Modifier2,
		})
	})
	admin.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g.router.NoRoute(g.forward)
}

// Serve runs until ctx is done, then shuts the listener down.
func (g *Gateway) Serve(ctx context.Context) error {
	g.RegisterRoutes()
	srv := &http.Server{Addr: g.Addr, Handler: g.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("service", g.Name).Str("addr", g.Addr).Msg("gateway started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (g *Gateway) forward(c *gin.Context) {
	c.Set(observability.BackendKey, g.backend.Config().Name)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, g.MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(payload) == 0 {
		payload = nil
	}

	resp, err := g.backend.Do(c.Request.Context(), client.Options{
		Method:  c.Request.Method,
		Path:    c.Request.URL.RequestURI(),
		Headers: requestHeaders(c),
		RawBody: payload,
	})
	if err != nil {
		var se *client.StatusError
		if !errors.As(err, &se) {
			_ = c.Error(err)
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		resp = se.Response
	}

	copyHeaders(c.Writer.Header(), resp)
	c.Data(resp.Status, resp.Headers["content-type"], []byte(resp.Raw))
}

// copyHeaders keeps repeated values such as set-cookie as separate header lines.
func copyHeaders(dst http.Header, resp *client.Response) {
	for k, v := range resp.Headers {
		if _, hop := hopHeaders[k]; hop {
			continue
		}
		if values := resp.Values[k]; len(values) > 0 {
			dst.Del(k)
			for _, value := range values {
				dst.Add(k, value)
			}
			continue
		}
		dst.Set(k, v)
	}
}

func requestHeaders(c *gin.Context) map[string]string {
	out := make(map[string]string, len(c.Request.Header)+2)
	for k, v := range c.Request.Header {
		out[k] = strings.Join(v, ", ")
	}
	out["Host"] = c.Request.Host
	if c.GetHeader("X-Real-IP") == "" {
		out["X-Real-IP"] = c.ClientIP()
	}
	return out
}

func errorStatus(err error) int {
	var te *client.TransportError
	switch {
	case errors.Is(err, client.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &te):
		return http.StatusBadGateway
	case errors.Is(err, protocol.ErrCapacity), errors.Is(err, protocol.ErrPayloadTooLarge):
		return http.StatusRequestHeaderFieldsTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
