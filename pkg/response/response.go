package response

import "github.com/gin-gonic/gin"

// Messages shared by every handler so failures look the same across routes.
const (
	MsgNotFound       = "Not found"
	MsgUnauthorized   = "Authentication required"
	MsgInvalidPayload = "Invalid request payload"
	MsgInternal       = "Something went wrong, please try again"
)

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success wraps data in a success envelope
func Success(statusCode int, data interface{}) Response {
	return Response{Status: "success", StatusCode: statusCode, Data: data}
}

// Error wraps a message in an error envelope
func Error(statusCode int, msg string) Response {
	return Response{Status: "error", StatusCode: statusCode, Error: msg}
}

// OK writes a success envelope with the given status.
func OK(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Success(statusCode, data))
}

// Fail writes an error envelope without aborting the chain.
func Fail(c *gin.Context, statusCode int, msg string) {
	c.JSON(statusCode, Error(statusCode, msg))
}

// Abort writes an error envelope and stops the remaining handlers.
func Abort(c *gin.Context, statusCode int, msg string) {
	c.AbortWithStatusJSON(statusCode, Error(statusCode, msg))
}
