// Package store persists intervention and reclamation records per owning user
// and answers the daily quota question.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/diewo77/field-reports/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned by Find and Delete operations for unknown ids.
var ErrNotFound = errors.New("record not found")

// PersistenceError wraps any storage-layer failure on a write or count.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Filter narrows listings. An empty UserID lists every user's records.
type Filter struct {
	UserID string
}

// Store is the record store consumed by the submission pipeline and handlers.
type Store interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int64, error)
	CountToday(ctx context.Context, userID string, now time.Time) (int64, error)
	CreateIntervention(ctx context.Context, rec *models.Intervention) error
	CreateReclamation(ctx context.Context, rec *models.Reclamation) error
	FindIntervention(ctx context.Context, id string) (*models.Intervention, error)
	FindReclamation(ctx context.Context, id string) (*models.Reclamation, error)
	ListInterventions(ctx context.Context, f Filter) ([]models.Intervention, error)
	ListReclamations(ctx context.Context, f Filter) ([]models.Reclamation, error)
	ListRecords(ctx context.Context, f Filter) ([]models.Record, error)
	DeleteIntervention(ctx context.Context, id string) error
	DeleteReclamation(ctx context.Context, id string) error
	DeleteUserRecords(ctx context.Context, userID string) (int64, error)
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a store using the wall clock for CreatedAt.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CountSince counts both record kinds created by userID at or after since.
func (s *GormStore) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var interventions, reclamations int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Intervention{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&interventions).Error; err != nil {
		return 0, &PersistenceError{Op: "count interventions", Err: err}
	}
	if err := db.Model(&models.Reclamation{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&reclamations).Error; err != nil {
		return 0, &PersistenceError{Op: "count reclamations", Err: err}
	}
	return interventions + reclamations, nil
}

// CountToday counts records created since server-local midnight of now.
func (s *GormStore) CountToday(ctx context.Context, userID string, now time.Time) (int64, error) {
	return s.CountSince(ctx, userID, StartOfDay(now))
}

// CreateIntervention assigns id, type and timestamp when unset, then inserts.
func (s *GormStore) CreateIntervention(ctx context.Context, rec *models.Intervention) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Type = models.KindIntervention
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return &PersistenceError{Op: "create intervention", Err: err}
	}
	return nil
}

// CreateReclamation assigns id, type and timestamp when unset, then inserts.
func (s *GormStore) CreateReclamation(ctx context.Context, rec *models.Reclamation) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Type = models.KindReclamation
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return &PersistenceError{Op: "create reclamation", Err: err}
	}
	return nil
}

// FindIntervention loads one intervention by id.
func (s *GormStore) FindIntervention(ctx context.Context, id string) (*models.Intervention, error) {
	var rec models.Intervention
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, mapFindErr("find intervention", err)
	}
	return &rec, nil
}

// FindReclamation loads one reclamation by id.
func (s *GormStore) FindReclamation(ctx context.Context, id string) (*models.Reclamation, error) {
	var rec models.Reclamation
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, mapFindErr("find reclamation", err)
	}
	return &rec, nil
}

// ListInterventions returns interventions newest first.
func (s *GormStore) ListInterventions(ctx context.Context, f Filter) ([]models.Intervention, error) {
	var out []models.Intervention
	if err := s.scoped(ctx, f).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, &PersistenceError{Op: "list interventions", Err: err}
	}
	return out, nil
}

// ListReclamations returns reclamations newest first.
func (s *GormStore) ListReclamations(ctx context.Context, f Filter) ([]models.Reclamation, error) {
	var out []models.Reclamation
	if err := s.scoped(ctx, f).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, &PersistenceError{Op: "list reclamations", Err: err}
	}
	return out, nil
}

// ListRecords merges both kinds, newest first.
func (s *GormStore) ListRecords(ctx context.Context, f Filter) ([]models.Record, error) {
	interventions, err := s.ListInterventions(ctx, f)
	if err != nil {
		return nil, err
	}
	reclamations, err := s.ListReclamations(ctx, f)
	if err != nil {
		return nil, err
	}
	return MergeRecords(interventions, reclamations), nil
}

// MergeRecords wraps both slices into records sorted by creation time, newest first.
func MergeRecords(interventions []models.Intervention, reclamations []models.Reclamation) []models.Record {
	out := make([]models.Record, 0, len(interventions)+len(reclamations))
	for i := range interventions {
		out = append(out, models.Record{Intervention: &interventions[i]})
	}
	for i := range reclamations {
		out = append(out, models.Record{Reclamation: &reclamations[i]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return out
}

// DeleteIntervention removes one intervention.
func (s *GormStore) DeleteIntervention(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &models.Intervention{}, id, "delete intervention")
}

// DeleteReclamation removes one reclamation.
func (s *GormStore) DeleteReclamation(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &models.Reclamation{}, id, "delete reclamation")
}

// DeleteUserRecords removes every record owned by userID in one transaction.
func (s *GormStore) DeleteUserRecords(ctx context.Context, userID string) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&models.Intervention{})
		if res.Error != nil {
			return res.Error
		}
		deleted += res.RowsAffected
		res = tx.Where("user_id = ?", userID).Delete(&models.Reclamation{})
		if res.Error != nil {
			return res.Error
		}
		deleted += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, &PersistenceError{Op: "delete user records", Err: err}
	}
	return deleted, nil
}

func (s *GormStore) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx)
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

func (s *GormStore) deleteByID(ctx context.Context, model any, id, op string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return &PersistenceError{Op: op, Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapFindErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}

// newID returns a time-ordered UUID, falling back to v4 if v7 generation fails.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
