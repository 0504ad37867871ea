package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/gate"
	"github.com/diewo77/field-reports/httpx"
	"github.com/diewo77/field-reports/internal/export"
	"github.com/diewo77/field-reports/internal/models"
	"github.com/diewo77/field-reports/internal/store"
	log "github.com/sirupsen/logrus"
)

type ExportHandler struct {
	store store.Store
	gate  *gate.Gate[auth.Principal]
	now   func() time.Time
}

func NewExportHandler(st store.Store, g *gate.Gate[auth.Principal]) *ExportHandler {
	return &ExportHandler{store: st, gate: g, now: time.Now}
}

// Export serves GET /export. With ?admin=true it covers every user and
// includes owner columns; that scope needs admin.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	all := r.URL.Query().Get("admin") == "true"

	scope, filter := p.ID, store.Filter{UserID: p.ID}
	if all {
		scope, filter = models.ExportAllUsers, store.Filter{}
	}
	if err := h.gate.Authorize(r.Context(), p, gate.ActionExport, models.ResourceExport, scope); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "Access denied. Admin privileges required.", nil)
		return
	}

	interventions, err := h.store.ListInterventions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "failed_to_export_records")
		return
	}
	reclamations, err := h.store.ListReclamations(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "failed_to_export_records")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, interventions, reclamations, export.Options{IncludeOwner: all}); err != nil {
		writeError(w, r, err, "failed_to_export_records")
		return
	}
	log.WithFields(log.Fields{
		"user_id":       p.ID,
		"all_users":     all,
		"interventions": len(interventions),
		"reclamations":  len(reclamations),
	}).Info("records exported")

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
