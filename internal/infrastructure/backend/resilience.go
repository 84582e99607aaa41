package backend

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/docqa-client/internal/core/domain"
	"github.com/kirillkom/docqa-client/internal/infrastructure/resilience"
)

// classifyBackendError feeds the breaker. A 4xx answer means the backend is
// up, so it is not recorded as a failure.
func classifyBackendError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return resilience.Ignored
	case errors.As(err, &statusErr):
		if transientStatus(statusErr.StatusCode) {
			return resilience.Transient
		}
		return resilience.Ignored
	case domain.IsKind(err, domain.ErrProtocol):
		return resilience.Permanent
	case isNetworkError(err):
		return resilience.Transient
	default:
		return resilience.Permanent
	}
}

// wrapServerIfNeeded marks transport-level failures as ErrServer, leaving
// backend-reported and protocol failures with their own kind.
func wrapServerIfNeeded(operation string, err error) error {
	var remote *domain.RemoteError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &remote), domain.IsKind(err, domain.ErrProtocol), domain.IsKind(err, domain.ErrServer):
		return err
	default:
		return domain.WrapError(domain.ErrServer, operation, err)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

func transientStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
