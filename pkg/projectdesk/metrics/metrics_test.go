package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler()))

	req, _ := http.NewRequest("GET", "/things/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	req, _ = http.NewRequest("GET", "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `projectdesk_http_request_duration_seconds_count{method="GET",path="/things/:id",status="200"}`) {
		t.Errorf("Expected templated path in metrics output")
	}
	if strings.Contains(body, `path="/things/42"`) {
		t.Error("Raw paths must not be used as labels")
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "ok" || Outcome(errors.New("x")) != "error" {
		t.Error("Unexpected outcome labels")
	}
}
