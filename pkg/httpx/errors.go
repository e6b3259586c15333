package httpx

import "net/http"

// HTTPError is an error with an HTTP status and a stable machine-readable
// code. Clients branch on Code, humans read Message.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewError creates an HTTPError.
func NewError(status int, code, message string) HTTPError {
	return HTTPError{Status: status, Code: code, Message: message}
}

var (
	ErrBadRequest     = HTTPError{Status: http.StatusBadRequest, Code: "bad_request"}
	ErrUnauthorized   = HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized"}
	ErrForbidden      = HTTPError{Status: http.StatusForbidden, Code: "forbidden"}
	ErrNotFound       = HTTPError{Status: http.StatusNotFound, Code: "not_found"}
	ErrConflict       = HTTPError{Status: http.StatusConflict, Code: "conflict"}
	ErrUnprocessable  = HTTPError{Status: http.StatusUnprocessableEntity, Code: "unprocessable_entity"}
	ErrInternalServer = HTTPError{Status: http.StatusInternalServerError, Code: "internal_server_error"}
)
