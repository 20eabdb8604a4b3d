package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestAllowBurstThenBlock(t *testing.T) {
	l := New(3)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("Fourth request should be blocked")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("Other clients have their own bucket")
	}
}

func TestDisabled(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatal("Disabled limiter should allow everything")
		}
	}
	if l.Size() != 0 {
		t.Error("Disabled limiter should not track clients")
	}
}

func TestIdleClientsEvicted(t *testing.T) {
	l := New(10)
	base := time.Now()
	l.now = func() time.Time { return base }
	l.Allow("a")
	l.Allow("b")

	l.now = func() time.Time { return base.Add(2 * idleTTL) }
	l.Allow("c")
	if l.Size() != 1 {
		t.Errorf("Expected idle clients to be evicted, %d tracked", l.Size())
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", New(1).Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		req, _ := http.NewRequest("POST", "/login", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		codes[i] = resp.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected 200 then 429, got %v", codes)
	}
}
