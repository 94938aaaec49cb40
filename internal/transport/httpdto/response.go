package httpdto

import (
	"errors"
	"net/http"

	shopdesk_errors "shopdesk-realtime/pkg/errors"
)

// Response is the body of every REST reply except /broadcasting/auth,
// whose shape the socket client libraries fix.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func NewErrorResponse(message, code string) Response[any] {
	return Response[any]{Error: message, Code: code}
}

// ErrorFrom classifies a service error into a status and body. Server
// faults other than an unconfigured collaborator are reported as
// "internal error" so driver messages never reach clients.
func ErrorFrom(err error) (int, Response[any]) {
	status := shopdesk_errors.HTTPStatus(err)
	code := shopdesk_errors.Code(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, shopdesk_errors.ErrUnavailable) {
		return status, NewErrorResponse("internal error", code)
	}
	return status, NewErrorResponse(err.Error(), code)
}
