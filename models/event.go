package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventVisitCreated = "visit_created"
	EventVisitUpdated = "visit_updated"
	EventVisitClosed  = "visit_closed"
)

// VisitDocument is the searchable projection of a visit. It is the payload of
// visit events and the document stored in the search index.
type VisitDocument struct {
	ID               uint       `json:"id"`
	Name             string     `json:"nombre"`
	NationalID       string     `json:"cedula"`
	Phone            string     `json:"telefono"`
	Region           string     `json:"municipio"`
	SubRegion        string     `json:"parroquia"`
	Category         string     `json:"tipo_visita"`
	ReferralTarget   string     `json:"referir_a"`
	OtherInstitution string     `json:"otra_institucion,omitempty"`
	EnteredAt        time.Time  `json:"fecha_hora_ingreso"`
	ExitedAt         *time.Time `json:"fecha_hora_salida,omitempty"`
	Completed        bool       `json:"atencion_completada"`
}

// VisitIndexSettings is the body used to create the visit search index.
// Free-text fields also get a keyword sub-field for exact filters.
func VisitIndexSettings() map[string]interface{} {
	text := map[string]interface{}{
		"type":   "text",
		"fields": map[string]interface{}{"raw": map[string]interface{}{"type": "keyword"}},
	}
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":                  map[string]interface{}{"type": "long"},
				"nombre":              text,
				"cedula":              text,
				"telefono":            text,
				"municipio":           text,
				"parroquia":           text,
				"tipo_visita":         keyword,
				"referir_a":           keyword,
				"otra_institucion":    text,
				"fecha_hora_ingreso":  map[string]interface{}{"type": "date"},
				"fecha_hora_salida":   map[string]interface{}{"type": "date"},
				"atencion_completada": map[string]interface{}{"type": "boolean"},
			},
		},
	}
}

type VisitEvent struct {
	ID         string        `json:"id"`
	Event      string        `json:"event"`
	OccurredAt time.Time     `json:"occurred_at"`
	Data       VisitDocument `json:"data"`
}

func (v *Visit) Document() VisitDocument {
	return VisitDocument{
		ID:               v.ID,
		Name:             v.Name,
		NationalID:       v.NationalID,
		Phone:            v.Phone,
		Region:           v.Region,
		SubRegion:        v.SubRegion,
		Category:         v.Category,
		ReferralTarget:   v.ReferralTarget,
		OtherInstitution: v.OtherInstitution,
		EnteredAt:        v.EnteredAt,
		ExitedAt:         v.ExitedAt,
		Completed:        v.Completed,
	}
}

func NewVisitEvent(event string, v *Visit, at time.Time) VisitEvent {
	return VisitEvent{
		ID:         uuid.NewString(),
		Event:      event,
		OccurredAt: at.UTC(),
		Data:       v.Document(),
	}
}
