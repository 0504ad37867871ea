package handlers

import (
	"net/http"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/gate"
	"github.com/diewo77/field-reports/httpx"
	"github.com/diewo77/field-reports/internal/models"
	"github.com/diewo77/field-reports/internal/store"
	log "github.com/sirupsen/logrus"
)

type RecordsHandler struct {
	store store.Store
	gate  *gate.Gate[auth.Principal]
}

func NewRecordsHandler(st store.Store, g *gate.Gate[auth.Principal]) *RecordsHandler {
	return &RecordsHandler{store: st, gate: g}
}

// GetIntervention serves GET /interventions/{id} to the owner or an admin.
func (h *RecordsHandler) GetIntervention(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	rec, err := h.store.FindIntervention(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "failed_to_load_record")
		return
	}
	if err := h.gate.Authorize(r.Context(), p, gate.ActionView, models.ResourceIntervention, rec); err != nil {
		writeError(w, r, err, "failed_to_load_record")
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// GetReclamation serves GET /reclamations/{id} to the owner or an admin.
func (h *RecordsHandler) GetReclamation(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	rec, err := h.store.FindReclamation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "failed_to_load_record")
		return
	}
	if err := h.gate.Authorize(r.Context(), p, gate.ActionView, models.ResourceReclamation, rec); err != nil {
		writeError(w, r, err, "failed_to_load_record")
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// List returns the caller's records, newest first.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	recs, err := h.store.ListRecords(r.Context(), store.Filter{UserID: p.ID})
	if err != nil {
		writeError(w, r, err, "failed_to_list_records")
		return
	}
	httpx.JSON(w, http.StatusOK, recs)
}

// DeleteMine removes every record the caller owns.
func (h *RecordsHandler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	n, err := h.store.DeleteUserRecords(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err, "failed_to_delete_records")
		return
	}
	log.WithFields(log.Fields{"user_id": p.ID, "deleted": n}).Info("user records deleted")
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": n, "message": "All your records have been deleted."})
}

// AdminList returns every user's records.
func (h *RecordsHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := h.gate.Authorize(r.Context(), p, gate.ActionList, models.ResourceRecords, nil); err != nil {
		writeError(w, r, err, "failed_to_list_records")
		return
	}
	recs, err := h.store.ListRecords(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, r, err, "failed_to_list_records")
		return
	}
	httpx.JSON(w, http.StatusOK, recs)
}

func (h *RecordsHandler) AdminDeleteIntervention(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	rec, err := h.store.FindIntervention(r.Context(), r.PathValue("id"))
	if err == nil {
		err = h.gate.Authorize(r.Context(), p, gate.ActionDelete, models.ResourceIntervention, rec)
	}
	if err == nil {
		err = h.store.DeleteIntervention(r.Context(), rec.ID)
	}
	if err != nil {
		writeError(w, r, err, "failed_to_delete_record")
		return
	}
	log.WithFields(log.Fields{"user_id": p.ID, "record_id": rec.ID, "kind": rec.Type}).Info("record deleted by admin")
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordsHandler) AdminDeleteReclamation(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	rec, err := h.store.FindReclamation(r.Context(), r.PathValue("id"))
	if err == nil {
		err = h.gate.Authorize(r.Context(), p, gate.ActionDelete, models.ResourceReclamation, rec)
	}
	if err == nil {
		err = h.store.DeleteReclamation(r.Context(), rec.ID)
	}
	if err != nil {
		writeError(w, r, err, "failed_to_delete_record")
		return
	}
	log.WithFields(log.Fields{"user_id": p.ID, "record_id": rec.ID, "kind": rec.Type}).Info("record deleted by admin")
	w.WriteHeader(http.StatusNoContent)
}
