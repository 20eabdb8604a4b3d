// Package logging records one entry per HTTP request and ties error replies
// to those entries through a log id.
package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/shrimpsizemoose/trekker/logger"
)

const (
	// ContextKeyLogID is the key for the request's log id in gin context
	ContextKeyLogID = "log_id"
	// HeaderLogID carries the log id back to the client
	HeaderLogID = "X-Log-Id"
)

// Record is what gets stored about a request
type Record struct {
	LogID     string    `bson:"log_id" json:"log_id"`
	Time      time.Time `bson:"time" json:"time"`
	Method    string    `bson:"method" json:"method"`
	Path      string    `bson:"path" json:"path"`
	Route     string    `bson:"route,omitempty" json:"route,omitempty"`
	Status    int       `bson:"status" json:"status"`
	LatencyMS float64   `bson:"latency_ms" json:"latency_ms"`
	ClientIP  string    `bson:"client_ip" json:"client_ip"`
	UserID    uint      `bson:"user_id,omitempty" json:"user_id,omitempty"`
	IsAdmin   bool      `bson:"is_admin" json:"is_admin"`
	Error     string    `bson:"error,omitempty" json:"error,omitempty"`
}

// Sink stores request records
type Sink interface {
	Write(ctx context.Context, r Record) error
	Close() error
}

// LoggerSink writes records to the application log
type LoggerSink struct {
	Verbose bool
}

func (s LoggerSink) Write(_ context.Context, r Record) error {
	switch {
	case r.Error != "":
		logger.Error.Printf("[%s] %s %s %d %.1fms: %s", r.LogID, r.Method, r.Path, r.Status, r.LatencyMS, r.Error)
	case s.Verbose:
		logger.Info.Printf("[%s] %s %s %d %.1fms", r.LogID, r.Method, r.Path, r.Status, r.LatencyMS)
	default:
		logger.Debug.Printf("[%s] %s %s %d %.1fms", r.LogID, r.Method, r.Path, r.Status, r.LatencyMS)
	}
	return nil
}

func (LoggerSink) Close() error { return nil }

// Middleware assigns a log id to every request and hands a record to sink
// once the handler chain finishes
func Middleware(sink Sink) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(ContextKeyLogID, id)
		c.Header(HeaderLogID, id)
		start := time.Now()

		c.Next()

		r := Record{
			LogID:     id,
			Time:      start.UTC(),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Route:     c.FullPath(),
			Status:    c.Writer.Status(),
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			ClientIP:  c.ClientIP(),
			IsAdmin:   auth.IsAdmin(c),
		}
		if userID, ok := auth.GetUserID(c); ok {
			r.UserID = userID
		}
		if len(c.Errors) > 0 {
			r.Error = c.Errors.String()
		}
		if err := sink.Write(c.Request.Context(), r); err != nil {
			logger.Error.Printf("[%s] failed to store request log: %v", id, err)
		}
	}
}

// LogID returns the current request's log id
func LogID(c *gin.Context) string {
	return c.GetString(ContextKeyLogID)
}

// Fail attaches err to the request log and replies with the public message
// and the log id, so support can find the detail later
func Fail(c *gin.Context, status int, public string, err error) {
	id := LogID(c)
	if err != nil {
		_ = c.Error(err)
		if status >= http.StatusInternalServerError {
			logger.Error.Printf("[%s] %s: %v", id, public, err)
		}
	}
	body := gin.H{"error": public}
	if id != "" {
		body["log_id"] = id
	}
	c.JSON(status, body)
}
