package server

import (
	"net/http"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
)

// Envelope statuses.
const (
	StatusOK    = "ok"
	StatusFail  = "fail"
	StatusError = "error"
)

// Response is the envelope every operation replies with, on both transports.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data"`
}

// negative is returned by operations that completed but whose result the
// caller must see as an error, such as a delete that matched nothing.
type negative struct {
	message string
	data    any
}

func success(data any) *Response {
	if n, ok := data.(negative); ok {
		return &Response{Status: StatusError, Message: n.message, Data: n.data}
	}
	return &Response{Status: StatusOK, Data: data}
}

func failure(err error) *Response {
	return &Response{
		Status:  StatusFail,
		Message: err.Error(),
		Code:    apperr.KindOf(err).String(),
	}
}

// HTTPStatus maps an envelope to the status code used by the REST routes.
func (r *Response) HTTPStatus() int {
	if r.Status != StatusFail {
		return http.StatusOK
	}
	switch apperr.ParseKind(r.Code) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInvalidReference:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
