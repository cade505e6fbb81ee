package response

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform response body every endpoint returns.
type Envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	RequestID  string      `json:"request_id,omitempty"`
}

// ErrorBody carries the classified failure.
type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
}

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination derives the page metadata from a total row count.
func NewPagination(page, limit int, total int64) *Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Success writes a success envelope.
func Success[T any](c *gin.Context, status int, data T, message string) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, Envelope[T]{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString("request_id"),
	})
}

// pagedEnvelope keeps the data key even for an empty page, so list
// consumers always see "data": [] rather than a missing field.
type pagedEnvelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	RequestID  string      `json:"request_id,omitempty"`
}

// Paginated writes a success envelope with page metadata.
func Paginated[T any](c *gin.Context, data T, p *Pagination) {
	c.JSON(http.StatusOK, pagedEnvelope[T]{
		Success:    true,
		Data:       data,
		Pagination: p,
		Timestamp:  time.Now().UTC(),
		RequestID:  c.GetString("request_id"),
	})
}

// Error writes an error envelope.
func Error(c *gin.Context, status int, code, message string, details any) {
	if status == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, Envelope[any]{
		Success: false,
		Error: &ErrorBody{
			Message:    message,
			Code:       code,
			StatusCode: status,
			Details:    details,
		},
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString("request_id"),
	})
}
