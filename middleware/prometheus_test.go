package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"news-stream-service/metrics"
)

func TestPrometheusLabelsUseRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Prometheus())
	router.GET("/widgets/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/widgets/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(metrics.HttpRequestsTotal.WithLabelValues(
		"GET", "/widgets/:id", "200", serviceName))
	if got != 1 {
		t.Fatalf("expected one request counted under the route template, got %v", got)
	}

	// Unmatched requests collapse into a single label value.
	req = httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	got = testutil.ToFloat64(metrics.HttpRequestsTotal.WithLabelValues(
		"GET", "unmatched", "404", serviceName))
	if got != 1 {
		t.Fatalf("expected unmatched requests counted once, got %v", got)
	}
}
