package common

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loomlabs/chatloom/internal/apperr"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// FailErr renders a structured condition. Anything that is not an
// apperr becomes an opaque internal error.
func FailErr(c *gin.Context, err error) {
	if e := apperr.From(err); e != nil {
		c.JSON(e.HTTPStatus(), gin.H{
			"code":    e.Code(),
			"message": e.Message(),
			"data":    nil,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal",
		"message": "internal error",
		"data":    nil,
	})
}
