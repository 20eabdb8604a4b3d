package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectdesk_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	SignupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectdesk_signups_total",
			Help: "Student signups by outcome",
		},
		[]string{"outcome"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectdesk_emails_sent_total",
			Help: "Outgoing emails by template and outcome",
		},
		[]string{"template", "outcome"},
	)

	TransactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projectdesk_transactions_total",
			Help: "Deliverable purchases recorded at fairs",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectdesk_uploads_total",
			Help: "Stored student uploads by storage backend",
		},
		[]string{"backend"},
	)
)

// Outcome turns an error into a label value
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware observes request durations. Paths are route templates so ids
// don't blow up label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		APIRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
