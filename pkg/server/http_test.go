package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/stretchr/testify/assert"
	"github.com/waconnect/pkg/config"
	"github.com/waconnect/pkg/domains/connection"
)

var gatewayUp atomic.Bool

// ginprom registers on the default registry, so the router is built once.
var router = func() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(config.App{Name: "waconnect-test"}, config.Allows{}, Deps{
		Lifecycle: connection.DefaultOptions(),
		Ready: map[string]healthcheck.Check{
			"gateway": func() error {
				if !gatewayUp.Load() {
					return errors.New("gateway unreachable")
				}
				return nil
			},
		},
	})
}()

func get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthEndpoints(t *testing.T) {
	assert.Equal(t, http.StatusOK, get("/live").Code)

	gatewayUp.Store(false)
	assert.Equal(t, http.StatusServiceUnavailable, get("/ready").Code)

	gatewayUp.Store(true)
	assert.Equal(t, http.StatusOK, get("/ready").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresAuth(t *testing.T) {
	w := get("/api/v1/connections")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCorsConfig(t *testing.T) {
	c := corsConfig(config.Allows{})
	assert.Equal(t, []string{"*"}, c.AllowOrigins)

	c = corsConfig(config.Allows{Methods: []string{"get", "post"}, Origins: []string{"https://app.test"}})
	assert.Equal(t, []string{"GET", "POST"}, c.AllowMethods)
	assert.Equal(t, []string{"https://app.test"}, c.AllowOrigins)
}
