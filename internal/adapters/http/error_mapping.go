package httpadapter

import (
	"net/http"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage hides internal error details behind a generic message
// for 5xx responses.
func publicErrorMessage(err error, status int) string {
	switch {
	case domain.IsKind(err, domain.ErrContentMissing):
		return domain.ErrContentMissing.Error()
	case status >= http.StatusInternalServerError:
		return http.StatusText(status)
	default:
		return err.Error()
	}
}
