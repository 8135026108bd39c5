package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Data       any       `json:"data,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	StatusCode int       `json:"status_code"`
	RetryAfter int       `json:"retry_after,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	})
}

func failure(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{
		Success:    false,
		Message:    message,
		ErrorCode:  fmt.Sprintf("ERROR_%d", status),
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	})
}

func tooManyRequests(c *gin.Context, retryAfter int) {
	c.Header("Retry-After", fmt.Sprint(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, envelope{
		Success:    false,
		Message:    "rate limit exceeded",
		ErrorCode:  "RATE_LIMITED",
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Timestamp:  time.Now().UTC(),
	})
}
