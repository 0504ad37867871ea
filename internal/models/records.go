package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// RecordKind is the type discriminator stored on every record row.
type RecordKind string

const (
	KindIntervention RecordKind = "intervention"
	KindReclamation  RecordKind = "reclamation"
)

// ReclamationType is the subsystem a complaint is filed against.
type ReclamationType string

const (
	ReclamationHydraulic ReclamationType = "hydraulic"
	ReclamationElectric  ReclamationType = "electric"
	ReclamationMechanic  ReclamationType = "mechanic"
)

// ReclamationTypes lists the accepted categories in display order.
var ReclamationTypes = []ReclamationType{ReclamationHydraulic, ReclamationElectric, ReclamationMechanic}

// Valid reports whether t is one of the accepted categories.
func (t ReclamationType) Valid() bool {
	for _, v := range ReclamationTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Owner columns shared by both record kinds. UserEmail and UserName are
// captured from the session at creation so admin exports need no user table.
type Owner struct {
	UserID    string `gorm:"size:64;not null;index" json:"userId"`
	UserEmail string `gorm:"size:255" json:"userEmail,omitempty"`
	UserName  string `gorm:"size:255" json:"userName,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (o Owner) GetUserID() string {
	return o.UserID
}

// Intervention is a maintenance visit. Rows are never updated in place.
type Intervention struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
	Owner
	Type RecordKind `gorm:"size:20;not null;default:'intervention'" json:"type"`

	StartDate       time.Time                   `gorm:"not null" json:"startDate"`
	EndDate         time.Time                   `gorm:"not null" json:"endDate"`
	EntrepriseName  string                      `gorm:"size:255;not null" json:"entrepriseName"`
	Responsable     string                      `gorm:"size:255;not null" json:"responsable"`
	TeamMembers     datatypes.JSONSlice[string] `gorm:"not null" json:"teamMembers"`
	SiteName        string                      `gorm:"size:255;not null" json:"siteName"`
	PhotoURL        string                      `gorm:"size:2048" json:"photoUrl,omitempty"`
	RecipientEmails datatypes.JSONSlice[string] `gorm:"not null" json:"recipientEmails"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// Reclamation is a complaint against a station.
type Reclamation struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
	Owner
	Type RecordKind `gorm:"size:20;not null;default:'reclamation'" json:"type"`

	Date            time.Time                   `gorm:"not null" json:"date"`
	StationName     string                      `gorm:"size:255;not null" json:"stationName"`
	ReclamationType ReclamationType             `gorm:"size:20;not null" json:"reclamationType"`
	Description     string                      `gorm:"type:text;not null" json:"description"`
	PhotoURL        string                      `gorm:"size:2048" json:"photoUrl,omitempty"`
	RecipientEmails datatypes.JSONSlice[string] `gorm:"not null" json:"recipientEmails"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// Record is the read-side union used by listings and exports.
// Exactly one of Intervention and Reclamation is set.
type Record struct {
	Intervention *Intervention
	Reclamation  *Reclamation
}

// Kind returns the discriminator of the wrapped record.
func (r Record) Kind() RecordKind {
	if r.Intervention != nil {
		return KindIntervention
	}
	return KindReclamation
}

// CreatedAt returns the creation timestamp of the wrapped record.
func (r Record) CreatedAt() time.Time {
	if r.Intervention != nil {
		return r.Intervention.CreatedAt
	}
	if r.Reclamation != nil {
		return r.Reclamation.CreatedAt
	}
	return time.Time{}
}

// Value returns the wrapped record, for JSON encoding.
func (r Record) Value() any {
	if r.Intervention != nil {
		return r.Intervention
	}
	return r.Reclamation
}

// MarshalJSON encodes the wrapped record as-is; its "type" field tells the kinds apart.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

// Resource names under which records are authorized.
const (
	ResourceIntervention = string(KindIntervention)
	ResourceReclamation  = string(KindReclamation)
	ResourceRecords      = "records"
	ResourceExport       = "export"

	// ExportAllUsers is the export scope spanning every user's records.
	ExportAllUsers = "all"
)
