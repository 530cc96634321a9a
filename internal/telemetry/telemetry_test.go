package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/metrics"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TracingMiddleware())
	r.GET("/obligations/:id", func(c *gin.Context) {
		if c.Param("id") == "nope" {
			c.JSON(http.StatusNotFound, gin.H{"error": "obligation not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestTracingMiddlewareCountsByRouteAndStatusClass(t *testing.T) {
	r := newEngine()
	ok := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/obligations/:id", "2xx")
	missing := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/obligations/:id", "4xx")
	failed := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/boom", "5xx")
	okBefore, missingBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(missing), testutil.ToFloat64(failed)

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/obligations/ord-1").Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/obligations/ord-2").Code)
	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/obligations/nope").Code)
	require.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/boom").Code)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok), "ids collapse into the route template")
	assert.Equal(t, missingBefore+1, testutil.ToFloat64(missing))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestTracingMiddlewareUnmatchedRoute(t *testing.T) {
	r := newEngine()
	unmatched := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "4xx")
	before := testutil.ToFloat64(unmatched)

	for _, path := range []string{"/a", "/b/c", "/reports/missing"} {
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, path).Code)
	}

	assert.Equal(t, before+3, testutil.ToFloat64(unmatched))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		202: "2xx",
		304: "3xx",
		409: "4xx",
		422: "4xx",
		503: "5xx",
		0:   "other",
		600: "other",
	}
	for status, want := range tests {
		assert.Equal(t, want, statusClass(status), "status %d", status)
	}
}
