package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/uniai/errors"
)

// DataResponse is the success envelope for every JSON endpoint.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError derives the HTTP status and body from an *AppError;
// anything else becomes a generic 500.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, apperrors.Internal(err).ToResponse())
}

// RespondOK sends a 200 wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondNoContent sends an empty 204.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
