package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lunchbreak/internal/errs"
	"lunchbreak/internal/gateway/middleware"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    int         `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type PageMeta struct {
	Total         int64  `json:"total"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// writeError renders err with its code. Errors outside the taxonomy are
// logged and hidden behind a generic 500.
func writeError(c *gin.Context, err error) {
	e, ok := errs.As(err)
	if !ok || e.Kind == errs.KindInternal {
		logrus.WithError(err).
			WithField("request_id", middleware.RequestIDOf(c)).
			Error("Request failed")
		c.JSON(http.StatusInternalServerError, APIResponse{Message: "Internal server error", Code: errs.Internal.Code})
		return
	}
	c.JSON(statusOf(e.Kind), APIResponse{Message: e.Message, Code: e.Code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, APIResponse{Message: "Invalid request format: " + err.Error(), Code: errs.InvalidRequest.Code})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, APIResponse{Message: "Invalid " + name, Code: errs.InvalidRequest.Code})
		return 0, false
	}
	return id, true
}
