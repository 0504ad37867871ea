package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/internal/config"
	"github.com/diewo77/field-reports/internal/export"
	"github.com/diewo77/field-reports/internal/mailer"
	"github.com/diewo77/field-reports/internal/models"
	"github.com/diewo77/field-reports/internal/policy"
	"github.com/diewo77/field-reports/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (t *recordingTransport) Name() string { return "recording" }

func (t *recordingTransport) Send(_ context.Context, m mailer.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, m)
	return nil
}

type testEnv struct {
	handler   http.Handler
	store     *store.GormStore
	transport *recordingTransport
	verifier  *auth.Verifier
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Intervention{}, &models.Reclamation{}))

	cfg := &config.Config{
		App:    config.AppConfig{AdminEmails: []string{"boss@x.com"}},
		Auth:   config.AuthConfig{SessionSecret: "test-secret"},
		Mail:   config.MailConfig{SendTimeout: time.Second},
		Limits: config.LimitsConfig{DailySubmissions: 15},
	}
	st := store.NewGormStore(db)
	tr := &recordingTransport{}
	rc := policy.NewRouterConfig(cfg, policy.Deps{Store: st, Transport: tr})

	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.Handler { return auth.RequireAuth(h) }
	admin := func(h http.HandlerFunc) http.Handler { return auth.RequireAuth(auth.RequireAdmin(h)) }
	mux.Handle("POST /interventions", authed(rc.Submissions.CreateIntervention))
	mux.Handle("POST /reclamations", authed(rc.Submissions.CreateReclamation))
	mux.Handle("GET /interventions/{id}", authed(rc.Records.GetIntervention))
	mux.Handle("GET /reclamations/{id}", authed(rc.Records.GetReclamation))
	mux.Handle("GET /records", authed(rc.Records.List))
	mux.Handle("DELETE /records", authed(rc.Records.DeleteMine))
	mux.Handle("GET /admin/records", admin(rc.Records.AdminList))
	mux.Handle("DELETE /admin/interventions/{id}", admin(rc.Records.AdminDeleteIntervention))
	mux.Handle("DELETE /admin/reclamations/{id}", admin(rc.Records.AdminDeleteReclamation))
	mux.Handle("GET /export", authed(rc.Export.Export))

	return &testEnv{handler: rc.Verifier.Middleware(mux), store: st, transport: tr, verifier: rc.Verifier}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, as *auth.Principal) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		tok, err := e.verifier.IssueToken(*as, time.Hour)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "session", Value: tok})
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

var (
	alice = &auth.Principal{ID: "user-alice", Email: "alice@x.com", Name: "Alice"}
	bob   = &auth.Principal{ID: "user-bob", Email: "bob@x.com"}
	boss  = &auth.Principal{ID: "user-boss", Email: "boss@x.com", Name: "Boss"}
)

func interventionBody() map[string]any {
	return map[string]any{
		"startDate":       "2024-01-01",
		"endDate":         "2024-01-03",
		"entrepriseName":  "Acme",
		"responsable":     "J. Doe",
		"teamMembers":     []string{"A", "B"},
		"siteName":        "Site1",
		"recipientEmails": []string{"a@x.com"},
	}
}

func reclamationBody() map[string]any {
	return map[string]any{
		"date":            "2024-02-01",
		"stationName":     "Station 7",
		"reclamationType": "hydraulic",
		"description":     "Leak near valve",
		"recipientEmails": []string{"ops@x.com"},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCreateIntervention_Created(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodPost, "/interventions", interventionBody(), alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Intervention submitted successfully.", body["message"])
	assert.Equal(t, true, body["reportSent"])
	assert.Equal(t, "intervention", body["type"])
	assert.Equal(t, "user-alice", body["userId"])
	assert.Equal(t, "Site1", body["siteName"])
	assert.NotEmpty(t, body["id"])

	require.Len(t, env.transport.sent, 1)
	msg := env.transport.sent[0]
	assert.Equal(t, "New Intervention Report - Site1", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.True(t, strings.HasPrefix(msg.Attachments[0].Filename, "Intervention_Report_"))
}

func TestCreateReclamation_Created(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodPost, "/reclamations", reclamationBody(), bob)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Reclamation submitted successfully.", body["message"])
	assert.Equal(t, "hydraulic", body["reclamationType"])
}

func TestCreate_ReportNotSent(t *testing.T) {
	env := setupEnv(t)
	env.transport.err = fmt.Errorf("smtp down")
	w := env.do(t, http.MethodPost, "/reclamations", reclamationBody(), bob)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, false, decode(t, w)["reportSent"])
}

func TestCreate_Unauthorized(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodPost, "/interventions", interventionBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
}

func TestCreate_InvalidJSON(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodPost, "/interventions", `{"siteName":`, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_json", decode(t, w)["error"])
}

func TestCreate_InvalidInput(t *testing.T) {
	env := setupEnv(t)
	body := reclamationBody()
	body["reclamationType"] = "plumbing"
	w := env.do(t, http.MethodPost, "/reclamations", body, alice)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid_input","details":{"reclamationType":"oneof"}}`, w.Body.String())

	body = interventionBody()
	body["teamMembers"] = []string{}
	w = env.do(t, http.MethodPost, "/interventions", body, alice)
	require.Equal(t, http.StatusBadRequest, w.Code)
	details := decode(t, w)["details"].(map[string]any)
	assert.Equal(t, "min", details["teamMembers"])
	assert.Empty(t, env.transport.sent)
}

func TestCreate_RateLimited(t *testing.T) {
	env := setupEnv(t)
	for i := 0; i < 15; i++ {
		w := env.do(t, http.MethodPost, "/reclamations", reclamationBody(), alice)
		require.Equal(t, http.StatusCreated, w.Code, "submission %d", i+1)
	}
	w := env.do(t, http.MethodPost, "/interventions", interventionBody(), alice)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate_limited","details":"Daily limit of 15 submissions reached. Try again tomorrow."}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/interventions", interventionBody(), bob)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestGetRecord_Authorization(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodPost, "/interventions", interventionBody(), alice)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/interventions/"+id, nil, alice).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/interventions/"+id, nil, bob).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/interventions/"+id, nil, boss).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/interventions/missing", nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/reclamations/"+id, nil, alice).Code)
}

func TestListAndDeleteMine(t *testing.T) {
	env := setupEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/interventions", interventionBody(), alice).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/reclamations", reclamationBody(), alice).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/reclamations", reclamationBody(), bob).Code)

	w := env.do(t, http.MethodGet, "/records", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "user-alice", r["userId"])
	}

	w = env.do(t, http.MethodDelete, "/records", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["deleted"])

	w = env.do(t, http.MethodGet, "/records", nil, alice)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAdminRoutes(t *testing.T) {
	env := setupEnv(t)
	w := env.do(t, http.MethodPost, "/reclamations", reclamationBody(), alice)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/interventions", interventionBody(), bob).Code)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/admin/records", nil, alice).Code)

	w = env.do(t, http.MethodGet, "/admin/records", nil, boss)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Len(t, recs, 2)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/admin/reclamations/"+id, nil, alice).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/admin/reclamations/"+id, nil, boss).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/admin/reclamations/"+id, nil, boss).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/admin/interventions/"+id, nil, boss).Code)
}

func TestExport(t *testing.T) {
	env := setupEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/interventions", interventionBody(), alice).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/reclamations", reclamationBody(), bob).Code)

	w := env.do(t, http.MethodGet, "/export", nil, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Records_Export_`)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetAll)
	require.NoError(t, err)
	require.Len(t, rows, 2, "alice sees only her own record")
	assert.Equal(t, "N/A", rows[1][2])

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/export?admin=true", nil, alice).Code)

	w = env.do(t, http.MethodGet, "/export?admin=true", nil, boss)
	require.Equal(t, http.StatusOK, w.Code)
	f2, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f2.Close()
	rows, err = f2.GetRows(export.SheetAll)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "alice@x.com", rows[1][2])
}
