package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	StatusCompleted  = "Completado"
	StatusInProgress = "En proceso"

	// DurationInProgress is shown instead of a duration while the visitor is still attended.
	DurationInProgress = "En atención"

	MinNationalIDLength = 6
	MaxNationalIDLength = 20
)

// Audit actions recorded in a visit's history.
const (
	ActionCreated        = "created"
	ActionUpdated        = "updated"
	ActionExitRegistered = "exit_registered"
)

// Person is the registry entry for one national ID; all visits with that ID link to it.
type Person struct {
	ID         uint      `gorm:"primaryKey"`
	NationalID string    `gorm:"size:20;not null;uniqueIndex"`
	Name       string    `gorm:"size:100"`
	Phone      string    `gorm:"size:20"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (Person) TableName() string { return "personas" }

// Visit is one attendance of a person at the office.
type Visit struct {
	ID               uint      `gorm:"primaryKey"`
	Name             string    `gorm:"size:100;not null"`
	NationalID       string    `gorm:"size:20;not null;index"`
	PersonID         *uint     `gorm:"index"`
	Person           *Person   `gorm:"constraint:OnDelete:SET NULL"`
	Phone            string    `gorm:"size:20"`
	Region           string    `gorm:"size:100;index"`
	SubRegion        string    `gorm:"size:100"`
	Address          string    `gorm:"type:text"`
	Category         string    `gorm:"size:80;not null;default:ASESORIA;index"`
	ReferralTarget   string    `gorm:"size:50;not null;default:NO_REFERIDO;index"`
	OtherInstitution string    `gorm:"size:100"`
	EnteredAt        time.Time `gorm:"not null;index"`
	ExitedAt         *time.Time
	Completed        bool         `gorm:"not null;default:false;index"`
	Notes            string       `gorm:"type:text"`
	History          []AuditEntry `gorm:"foreignKey:VisitID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Visit) TableName() string { return "visitas" }

// AuditEntry is one append-only line of a visit's change history.
type AuditEntry struct {
	ID      uint      `gorm:"primaryKey"`
	VisitID uint      `gorm:"not null;index"`
	Actor   string    `gorm:"size:150"`
	Action  string    `gorm:"size:30;not null"`
	At      time.Time `gorm:"not null"`
}

func (AuditEntry) TableName() string { return "visita_historial" }

// Status is the human label of the completion flag.
func (v *Visit) Status() string {
	if v.Completed {
		return StatusCompleted
	}
	return StatusInProgress
}

// AttentionDuration formats exit minus entry as "1h 5min" or "25min".
func (v *Visit) AttentionDuration() string {
	if !v.Completed || v.ExitedAt == nil {
		return DurationInProgress
	}
	d := v.ExitedAt.Sub(v.EnteredAt)
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}

// ReferralDisplay returns the free-text institution for OTRA_INSTITUCION, else the label.
func (v *Visit) ReferralDisplay() string {
	if v.ReferralTarget == ReferralOther && v.OtherInstitution != "" {
		return v.OtherInstitution
	}
	return InstitutionLabel(v.ReferralTarget)
}

func (v *Visit) RequiresReferral() bool {
	return v.ReferralTarget != ReferralNone
}

// CreatedBy is the actor of the first creation entry, if any.
func (v *Visit) CreatedBy() string {
	for _, e := range v.History {
		if e.Action == ActionCreated {
			return e.Actor
		}
	}
	return ""
}

// UpdatedBy is the actor of the latest update entry, if any.
func (v *Visit) UpdatedBy() string {
	for i := len(v.History) - 1; i >= 0; i-- {
		if v.History[i].Action == ActionUpdated {
			return v.History[i].Actor
		}
	}
	return ""
}

// ValidationError reports the field that made a write invalid.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Normalize trims free-text fields and fills enumerated defaults.
func (v *Visit) Normalize() {
	v.Name = strings.TrimSpace(v.Name)
	v.NationalID = strings.TrimSpace(v.NationalID)
	v.Phone = strings.TrimSpace(v.Phone)
	v.Region = strings.TrimSpace(v.Region)
	v.SubRegion = strings.TrimSpace(v.SubRegion)
	v.OtherInstitution = strings.TrimSpace(v.OtherInstitution)
	if v.Category == "" {
		v.Category = CategoryAdvisory
	}
	if v.ReferralTarget == "" {
		v.ReferralTarget = ReferralNone
	}
}

// Validate checks the write-time invariants of a visit.
func (v *Visit) Validate() error {
	if v.Name == "" {
		return &ValidationError{Field: "nombre", Message: "Este campo es requerido"}
	}
	n := utf8.RuneCountInString(v.NationalID)
	if n < MinNationalIDLength || n > MaxNationalIDLength {
		return &ValidationError{Field: "cedula", Message: "La cédula debe tener entre 6 y 20 caracteres"}
	}
	if !IsCategory(v.Category) {
		return &ValidationError{Field: "tipo_visita", Message: fmt.Sprintf("%q no es una opción válida", v.Category)}
	}
	if !IsInstitution(v.ReferralTarget) {
		return &ValidationError{Field: "referir_a", Message: fmt.Sprintf("%q no es una opción válida", v.ReferralTarget)}
	}
	if v.ReferralTarget == ReferralOther && v.OtherInstitution == "" {
		return &ValidationError{Field: "otra_institucion", Message: "Debe especificar la otra institución"}
	}
	return nil
}
