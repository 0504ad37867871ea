package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/httpx"
	"github.com/diewo77/field-reports/internal/models"
	"github.com/diewo77/field-reports/internal/submission"
	"github.com/diewo77/field-reports/validation"
	log "github.com/sirupsen/logrus"
)

type SubmissionHandler struct {
	svc *submission.Service
}

func NewSubmissionHandler(svc *submission.Service) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

// createdIntervention is the 201 body: the record's fields plus the outcome.
type createdIntervention struct {
	*models.Intervention
	Message    string `json:"message"`
	ReportSent bool   `json:"reportSent"`
}

type createdReclamation struct {
	*models.Reclamation
	Message    string `json:"message"`
	ReportSent bool   `json:"reportSent"`
}

func (h *SubmissionHandler) CreateIntervention(w http.ResponseWriter, r *http.Request) {
	var in submission.InterventionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	out, err := h.svc.SubmitIntervention(r.Context(), p, in)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createdIntervention{Intervention: out.Record, Message: out.Message, ReportSent: out.ReportSent})
}

func (h *SubmissionHandler) CreateReclamation(w http.ResponseWriter, r *http.Request) {
	var in submission.ReclamationInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	out, err := h.svc.SubmitReclamation(r.Context(), p, in)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createdReclamation{Reclamation: out.Record, Message: out.Message, ReportSent: out.ReportSent})
}

func (h *SubmissionHandler) writeSubmitError(w http.ResponseWriter, err error) {
	var ve *validation.Error
	switch {
	case errors.Is(err, submission.ErrUnauthorized):
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, submission.ErrRateLimited):
		msg := fmt.Sprintf("Daily limit of %d submissions reached. Try again tomorrow.", h.svc.Limit())
		httpx.JSONError(w, http.StatusTooManyRequests, "rate_limited", msg)
	case errors.As(err, &ve):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", ve.Violations)
	default:
		// already logged by the service
		log.WithError(err).Debug("submission rejected with 500")
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
