package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

// statusFor maps a service error to its response status and body.
func statusFor(err error) (int, api.ErrorBody) {
	var (
		stale     *common.StaleError
		forbidden *common.ForbiddenError
		missing   *common.MissingError
		tooLarge  *http.MaxBytesError
	)

	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, api.ErrorBody{Error: "unauthorized"}
	case errors.As(err, &forbidden):
		return http.StatusForbidden, api.ErrorBody{ObjectID: forbidden.ObjectID}
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, api.ErrorBody{Error: err.Error()}
	case errors.As(err, &stale):
		return http.StatusPreconditionFailed, api.ErrorBody{ObjectID: stale.ObjectID, Version: stale.Version}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, api.ErrorBody{Error: "request body too large"}
	case errors.Is(err, common.ErrMalformed):
		return http.StatusBadRequest, api.ErrorBody{Error: err.Error()}
	case errors.As(err, &missing):
		return http.StatusNotFound, api.ErrorBody{Error: missing.Error()}
	case errors.Is(err, common.ErrorInternal):
		return http.StatusInternalServerError, api.ErrorBody{Error: "internal error"}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, api.ErrorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, api.ErrorBody{Error: "internal error"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	s.writeCBOR(w, r, status, body)
}

func (s *Server) writeCBOR(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := codec.Marshal(v)
	if err != nil {
		s.logger.Error(r.Context(), "encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", common.ContentTypeCBOR)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
