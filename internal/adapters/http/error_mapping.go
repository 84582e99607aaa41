package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation), domain.IsKind(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrBusy), domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrGated):
		return http.StatusPreconditionFailed
	case domain.IsKind(err, domain.ErrServer), domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrPoll):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
