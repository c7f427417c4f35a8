package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data interface{}, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	response := response{
		Data:   data,
		Errors: errors,
	}

	c.JSON(statusCode, response)
}

// writeError aborts the request with a single error message.
func writeError(c *gin.Context, statusCode int, message string) {
	c.Abort()
	writeResponse(c, nil, statusCode, []string{message})
}
