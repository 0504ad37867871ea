package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/field-reports/gate"
	"github.com/diewo77/field-reports/httpx"
	"github.com/diewo77/field-reports/internal/store"
	log "github.com/sirupsen/logrus"
)

// writeError maps lookup and authorization failures to their status codes;
// anything else is logged and answered with 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, gate.ErrUnauthorized):
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
	default:
		log.WithFields(log.Fields{"path": r.URL.Path, "err": err}).Error(fallback)
		httpx.JSONError(w, http.StatusInternalServerError, fallback, nil)
	}
}
