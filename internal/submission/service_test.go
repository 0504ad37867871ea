package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/internal/docx"
	"github.com/diewo77/field-reports/internal/mailer"
	"github.com/diewo77/field-reports/internal/models"
	"github.com/diewo77/field-reports/internal/report"
	"github.com/diewo77/field-reports/internal/store"
	"github.com/diewo77/field-reports/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendReportEmail(ctx context.Context, job mailer.Job) bool {
	return m.Called(ctx, job).Bool(0)
}

type missingPhotos struct{ calls int }

func (f *missingPhotos) Fetch(context.Context, string) report.PhotoResult {
	f.calls++
	return report.PhotoResult{Err: errors.New("unexpected status 404")}
}

type failingBuilder struct{}

func (failingBuilder) Build(context.Context, report.Data) (*report.Document, error) {
	return nil, errors.New("renderer exploded")
}

type brokenStore struct {
	store.Store
}

func (brokenStore) CountToday(context.Context, string, time.Time) (int64, error) { return 0, nil }

func (brokenStore) CreateIntervention(context.Context, *models.Intervention) error {
	return &store.PersistenceError{Op: "create intervention", Err: errors.New("connection reset")}
}

var (
	alice = auth.Principal{ID: "user-alice", Email: "alice@x.com", Name: "Alice"}
	bob   = auth.Principal{ID: "user-bob", Email: "bob@x.com"}
	noon  = time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local)
)

type fixture struct {
	svc      *Service
	store    *store.GormStore
	notifier *MockNotifier
	photos   *missingPhotos
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Intervention{}, &models.Reclamation{}))

	f := &fixture{store: store.NewGormStore(db), notifier: new(MockNotifier), photos: &missingPhotos{}}
	f.svc = NewService(f.store, report.NewSynthesizer(f.photos), f.notifier, 15)
	f.svc.now = func() time.Time { return noon }
	return f
}

func validIntervention() InterventionInput {
	return InterventionInput{
		StartDate:       "2024-01-01",
		EndDate:         "2024-01-03",
		EntrepriseName:  "Acme",
		Responsable:     "J. Doe",
		TeamMembers:     []string{"A", "B"},
		SiteName:        "Site1",
		RecipientEmails: []string{"a@x.com"},
	}
}

func validReclamation() ReclamationInput {
	return ReclamationInput{
		Date:            "2024-02-01",
		StationName:     "Station 7",
		ReclamationType: "electric",
		Description:     "Pump tripped twice",
		RecipientEmails: []string{"ops@x.com", "lead@x.com"},
	}
}

func seed(t *testing.T, s *store.GormStore, userID string, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &models.Reclamation{
			Owner:           models.Owner{UserID: userID},
			Date:            at,
			StationName:     "S",
			ReclamationType: models.ReclamationHydraulic,
			Description:     "d",
			RecipientEmails: []string{"a@x.com"},
			CreatedAt:       at,
		}
		require.NoError(t, s.CreateReclamation(context.Background(), rec))
	}
}

func TestSubmitIntervention_Scenario(t *testing.T) {
	f := setup(t)
	var job mailer.Job
	f.notifier.On("SendReportEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { job = args.Get(1).(mailer.Job) }).
		Return(true).Once()

	out, err := f.svc.SubmitIntervention(context.Background(), alice, validIntervention())
	require.NoError(t, err)
	assert.Equal(t, "Intervention submitted successfully.", out.Message)
	assert.True(t, out.ReportSent)
	assert.NotEmpty(t, out.Record.ID)
	assert.Equal(t, "user-alice", out.Record.UserID)
	assert.Equal(t, models.KindIntervention, out.Record.Type)
	assert.Equal(t, noon, out.Record.CreatedAt)

	stored, err := f.store.FindIntervention(context.Background(), out.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, []string(stored.TeamMembers))
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), stored.EndDate.UTC())

	assert.Equal(t, []string{"a@x.com"}, job.Recipients)
	assert.Equal(t, "New Intervention Report - Site1", job.Subject)
	assert.Equal(t, ReportFilename(models.KindIntervention, noon), job.Filename)
	assert.Equal(t, models.KindIntervention, job.Kind)

	text, err := docx.PlainText(job.Document)
	require.NoError(t, err)
	assert.Contains(t, text, "Intervention Report")
	assert.Contains(t, text, "Site Name | Site1")
	assert.Contains(t, text, "Team Members: A, B")
	assert.NotContains(t, text, "Photo:")
	f.notifier.AssertExpectations(t)
}

func TestSubmitIntervention_TrimsInput(t *testing.T) {
	f := setup(t)
	f.notifier.On("SendReportEmail", mock.Anything, mock.Anything).Return(true)

	in := validIntervention()
	in.SiteName = "  Site1 "
	in.RecipientEmails = []string{" a@x.com "}
	out, err := f.svc.SubmitIntervention(context.Background(), alice, in)
	require.NoError(t, err)
	assert.Equal(t, "Site1", out.Record.SiteName)
	assert.Equal(t, []string{"a@x.com"}, []string(out.Record.RecipientEmails))
}

func TestSubmit_Unauthorized(t *testing.T) {
	f := setup(t)

	_, err := f.svc.SubmitIntervention(context.Background(), auth.Principal{}, validIntervention())
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.SubmitReclamation(context.Background(), auth.Principal{}, validReclamation())
	assert.ErrorIs(t, err, ErrUnauthorized)
	f.notifier.AssertNotCalled(t, "SendReportEmail", mock.Anything, mock.Anything)
}

func TestSubmit_RateLimited(t *testing.T) {
	f := setup(t)
	seed(t, f.store, alice.ID, 15, noon.Add(-time.Hour))

	_, err := f.svc.SubmitIntervention(context.Background(), alice, validIntervention())
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = f.svc.SubmitReclamation(context.Background(), alice, validReclamation())
	assert.ErrorIs(t, err, ErrRateLimited)

	count, err := f.store.CountToday(context.Background(), alice.ID, noon)
	require.NoError(t, err)
	assert.Equal(t, int64(15), count)
	f.notifier.AssertNotCalled(t, "SendReportEmail", mock.Anything, mock.Anything)
}

func TestSubmit_RateLimitPrecedesValidation(t *testing.T) {
	f := setup(t)
	seed(t, f.store, alice.ID, 15, noon)

	_, err := f.svc.SubmitIntervention(context.Background(), alice, InterventionInput{})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSubmit_RateLimitIsPerUserAndPerDay(t *testing.T) {
	f := setup(t)
	f.notifier.On("SendReportEmail", mock.Anything, mock.Anything).Return(true)
	seed(t, f.store, alice.ID, 14, noon)
	seed(t, f.store, alice.ID, 20, noon.Add(-24*time.Hour))
	seed(t, f.store, bob.ID, 15, noon)

	_, err := f.svc.SubmitReclamation(context.Background(), alice, validReclamation())
	require.NoError(t, err, "14 today plus yesterday's records leave one slot")

	_, err = f.svc.SubmitReclamation(context.Background(), alice, validReclamation())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSubmitIntervention_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InterventionInput)
		field  string
		code   string
	}{
		{"empty team", func(in *InterventionInput) { in.TeamMembers = []string{} }, "teamMembers", "min"},
		{"missing team", func(in *InterventionInput) { in.TeamMembers = nil }, "teamMembers", "required"},
		{"blank member", func(in *InterventionInput) { in.TeamMembers = []string{"A", "  "} }, "teamMembers[1]", "required"},
		{"no recipients", func(in *InterventionInput) { in.RecipientEmails = []string{} }, "recipientEmails", "min"},
		{"bad recipient", func(in *InterventionInput) { in.RecipientEmails = []string{"nope"} }, "recipientEmails[0]", "email"},
		{"blank site", func(in *InterventionInput) { in.SiteName = "   " }, "siteName", "required"},
		{"bad date", func(in *InterventionInput) { in.StartDate = "yesterday" }, "startDate", "date"},
		{"end before start", func(in *InterventionInput) { in.EndDate = "2023-12-31" }, "endDate", "gtefield"},
		{"bad photo url", func(in *InterventionInput) { in.PhotoURL = "not a url" }, "photoUrl", "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			in := validIntervention()
			tt.mutate(&in)

			_, err := f.svc.SubmitIntervention(context.Background(), alice, in)
			var ve *validation.Error
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.code, ve.Violations[tt.field], "violations: %v", ve.Violations)

			count, err := f.store.CountToday(context.Background(), alice.ID, noon)
			require.NoError(t, err)
			assert.Zero(t, count)
			f.notifier.AssertNotCalled(t, "SendReportEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitReclamation_CategoryFidelity(t *testing.T) {
	f := setup(t)
	f.notifier.On("SendReportEmail", mock.Anything, mock.MatchedBy(func(j mailer.Job) bool {
		return j.Subject == "New Reclamation Report - Station 7" && len(j.Recipients) == 2
	})).Return(true).Once()

	out, err := f.svc.SubmitReclamation(context.Background(), alice, validReclamation())
	require.NoError(t, err)
	assert.Equal(t, "Reclamation submitted successfully.", out.Message)

	stored, err := f.store.FindReclamation(context.Background(), out.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReclamationElectric, stored.ReclamationType)
	assert.Equal(t, "Alice", stored.UserName)
	f.notifier.AssertExpectations(t)

	for _, bad := range []string{"plumbing", "Electric"} {
		in := validReclamation()
		in.ReclamationType = bad
		_, err = f.svc.SubmitReclamation(context.Background(), alice, in)
		var ve *validation.Error
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "oneof", ve.Violations["reclamationType"])
	}
}

func TestSubmit_NotificationFailureStillSucceeds(t *testing.T) {
	f := setup(t)
	f.notifier.On("SendReportEmail", mock.Anything, mock.Anything).Return(false).Once()

	out, err := f.svc.SubmitReclamation(context.Background(), bob, validReclamation())
	require.NoError(t, err)
	assert.False(t, out.ReportSent)
	assert.Equal(t, "Reclamation submitted successfully.", out.Message)

	_, err = f.store.FindReclamation(context.Background(), out.Record.ID)
	assert.NoError(t, err)
}

func TestSubmit_PhotoFailureIsSoft(t *testing.T) {
	f := setup(t)
	var job mailer.Job
	f.notifier.On("SendReportEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { job = args.Get(1).(mailer.Job) }).
		Return(true).Once()

	in := validIntervention()
	in.PhotoURL = "https://photos.example.com/missing.jpg"
	out, err := f.svc.SubmitIntervention(context.Background(), alice, in)
	require.NoError(t, err)
	assert.True(t, out.ReportSent)
	assert.Equal(t, 1, f.photos.calls)

	text, err := docx.PlainText(job.Document)
	require.NoError(t, err)
	assert.NotContains(t, text, "Photo:")
	assert.Contains(t, text, "Report Recipients:")
}

func TestSubmit_PersistenceError(t *testing.T) {
	notifier := new(MockNotifier)
	svc := NewService(brokenStore{}, report.NewSynthesizer(nil), notifier, 15)

	_, err := svc.SubmitIntervention(context.Background(), alice, validIntervention())
	var pe *store.PersistenceError
	assert.True(t, errors.As(err, &pe))
	notifier.AssertNotCalled(t, "SendReportEmail", mock.Anything, mock.Anything)
}

func TestSubmit_SynthesisErrorKeepsRecord(t *testing.T) {
	f := setup(t)
	svc := NewService(f.store, failingBuilder{}, f.notifier, 15)
	svc.now = func() time.Time { return noon }

	_, err := svc.SubmitReclamation(context.Background(), alice, validReclamation())
	var se *report.SynthesisError
	require.True(t, errors.As(err, &se))

	recs, err := f.store.ListReclamations(context.Background(), store.Filter{UserID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	f.notifier.AssertNotCalled(t, "SendReportEmail", mock.Anything, mock.Anything)
}

func TestReportFilename(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "Intervention_Report_2024-01-02T02-04-05-678Z.docx", ReportFilename(models.KindIntervention, at))
	assert.Equal(t, "Reclamation_Report_2024-01-02T02-04-05-678Z.docx", ReportFilename(models.KindReclamation, at))
}
