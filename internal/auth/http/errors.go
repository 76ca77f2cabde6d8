package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/pkg/httpx"
	"github.com/bonkmc/modernauth/pkg/linksdk"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// writeServiceError answers a session-authenticated request that failed in
// the service layer. Tenant endpoints do not use it: they never explain a
// failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	log := slogx.FromContext(r.Context())

	var apiErr *linksdk.APIError
	switch {
	case errors.Is(err, service.ErrStorageUnavailable):
		log.Error(op+" failed", "err", err)
		apiErr = linksdk.ErrUnavailable
	case errors.Is(err, service.ErrAuthentication):
		apiErr = linksdk.ErrInvalidToken
	case errors.Is(err, service.ErrPermissionDenied):
		apiErr = linksdk.ErrAccessDenied
	case errors.Is(err, service.ErrIdentityMismatch):
		apiErr = linksdk.ErrIdentityMismatch
	case errors.Is(err, service.ErrNotFound):
		apiErr = linksdk.ErrNotFound
	case errors.Is(err, service.ErrConflict):
		apiErr = linksdk.ErrConflict
	case errors.Is(err, service.ErrInvalidRequest):
		apiErr = linksdk.ErrInvalidRequest
	default:
		log.Error(op+" failed", "err", err)
		apiErr = linksdk.ErrServerError
	}
	if apiErr.StatusCode < http.StatusInternalServerError {
		log.Info(op+" rejected", "error", apiErr.Code)
	}
	apiErr.WriteError(w)
}

// caller returns the signed-in identity attached by SessionMiddleware. The
// session token only carries an email the provider verified.
func caller(r *http.Request) (domain.ExternalIdentity, bool) {
	s, ok := httpx.SessionFromContext(r.Context())
	if !ok || s.Subject == "" {
		return domain.ExternalIdentity{}, false
	}
	return domain.ExternalIdentity{
		Subject:       s.Subject,
		Name:          s.Name,
		Email:         s.Email,
		EmailVerified: s.Email != "",
	}, true
}

// requireCaller writes 401 and returns false when no session is attached.
func requireCaller(w http.ResponseWriter, r *http.Request) (domain.ExternalIdentity, bool) {
	who, ok := caller(r)
	if !ok {
		linksdk.ErrInvalidToken.WriteError(w)
	}
	return who, ok
}

// decodeOptionalJSON is DecodeJSON for endpoints whose body may be omitted.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := httpx.DecodeJSON(w, r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeInvalidBody(w http.ResponseWriter) {
	linksdk.ErrInvalidRequest.WithDescription("request body must be valid JSON").WriteError(w)
}
