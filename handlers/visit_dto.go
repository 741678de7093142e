package handlers

import (
	"time"

	"visitor-registry/models"
)

// VisitRequest is the body of create and full update. Entry, exit, completion and
// history are not writable.
type VisitRequest struct {
	Name             string `json:"nombre" binding:"required,max=100"`
	NationalID       string `json:"cedula" binding:"required"`
	Phone            string `json:"telefono" binding:"max=20"`
	Region           string `json:"municipio" binding:"max=100"`
	SubRegion        string `json:"parroquia" binding:"max=100"`
	Address          string `json:"direccion"`
	Category         string `json:"tipo_visita"`
	ReferralTarget   string `json:"referir_a"`
	OtherInstitution string `json:"otra_institucion" binding:"max=100"`
	Notes            string `json:"observaciones"`
}

func (r VisitRequest) apply(v *models.Visit) {
	v.Name = r.Name
	v.NationalID = r.NationalID
	v.Phone = r.Phone
	v.Region = r.Region
	v.SubRegion = r.SubRegion
	v.Address = r.Address
	v.Category = r.Category
	v.ReferralTarget = r.ReferralTarget
	v.OtherInstitution = r.OtherInstitution
	v.Notes = r.Notes
}

// VisitPatch is the body of a partial update; absent fields keep their value.
type VisitPatch struct {
	Name             *string `json:"nombre" binding:"omitempty,max=100"`
	NationalID       *string `json:"cedula"`
	Phone            *string `json:"telefono" binding:"omitempty,max=20"`
	Region           *string `json:"municipio" binding:"omitempty,max=100"`
	SubRegion        *string `json:"parroquia" binding:"omitempty,max=100"`
	Address          *string `json:"direccion"`
	Category         *string `json:"tipo_visita"`
	ReferralTarget   *string `json:"referir_a"`
	OtherInstitution *string `json:"otra_institucion" binding:"omitempty,max=100"`
	Notes            *string `json:"observaciones"`
}

func (p VisitPatch) apply(v *models.Visit) {
	assign(&v.Name, p.Name)
	assign(&v.NationalID, p.NationalID)
	assign(&v.Phone, p.Phone)
	assign(&v.Region, p.Region)
	assign(&v.SubRegion, p.SubRegion)
	assign(&v.Address, p.Address)
	assign(&v.Category, p.Category)
	assign(&v.ReferralTarget, p.ReferralTarget)
	assign(&v.OtherInstitution, p.OtherInstitution)
	assign(&v.Notes, p.Notes)
}

func assign(dst, src *string) {
	if src != nil {
		*dst = *src
	}
}

type PersonSummary struct {
	ID         uint      `json:"id"`
	NationalID string    `json:"cedula"`
	Name       string    `json:"nombre"`
	Phone      string    `json:"telefono"`
	CreatedAt  time.Time `json:"creado_en"`
	VisitCount int64     `json:"visit_count"`
}

type AuditEntryResponse struct {
	Action string    `json:"accion"`
	Actor  string    `json:"usuario"`
	At     time.Time `json:"fecha"`
}

type VisitResponse struct {
	ID                  uint                 `json:"id"`
	Name                string               `json:"nombre"`
	FullName            string               `json:"nombre_completo"`
	NationalID          string               `json:"cedula"`
	Phone               string               `json:"telefono"`
	Region              string               `json:"municipio"`
	SubRegion           string               `json:"parroquia"`
	Address             string               `json:"direccion"`
	Category            string               `json:"tipo_visita"`
	CategoryLabel       string               `json:"tipo_visita_display"`
	ReferralTarget      string               `json:"referir_a"`
	OtherInstitution    string               `json:"otra_institucion"`
	ReferredInstitution string               `json:"institucion_referida"`
	RequiresReferral    bool                 `json:"requiere_referir"`
	EnteredAt           time.Time            `json:"fecha_hora_ingreso"`
	ExitedAt            *time.Time           `json:"fecha_hora_salida"`
	Completed           bool                 `json:"atencion_completada"`
	Duration            string               `json:"duracion_atencion"`
	Status              string               `json:"estado"`
	Notes               string               `json:"observaciones"`
	History             []AuditEntryResponse `json:"historial"`
	VisitCount          int64                `json:"visit_count"`
	Person              *PersonSummary       `json:"persona"`
	CreatedBy           *string              `json:"creado_por"`
	UpdatedBy           *string              `json:"actualizado_por"`
	CreatedAt           time.Time            `json:"creado_en"`
	UpdatedAt           time.Time            `json:"actualizado_en"`
}

// toVisitResponse renders v with timestamps in loc. counts maps person IDs to
// their number of visits.
func toVisitResponse(v *models.Visit, counts map[uint]int64, loc *time.Location) VisitResponse {
	resp := VisitResponse{
		ID:                  v.ID,
		Name:                v.Name,
		FullName:            v.Name,
		NationalID:          v.NationalID,
		Phone:               v.Phone,
		Region:              v.Region,
		SubRegion:           v.SubRegion,
		Address:             v.Address,
		Category:            v.Category,
		CategoryLabel:       models.CategoryLabel(v.Category),
		ReferralTarget:      v.ReferralTarget,
		OtherInstitution:    v.OtherInstitution,
		ReferredInstitution: v.ReferralDisplay(),
		RequiresReferral:    v.RequiresReferral(),
		EnteredAt:           v.EnteredAt.In(loc),
		Completed:           v.Completed,
		Duration:            v.AttentionDuration(),
		Status:              v.Status(),
		Notes:               v.Notes,
		History:             make([]AuditEntryResponse, 0, len(v.History)),
		CreatedBy:           nonEmpty(v.CreatedBy()),
		UpdatedBy:           nonEmpty(v.UpdatedBy()),
		CreatedAt:           v.CreatedAt.In(loc),
		UpdatedAt:           v.UpdatedAt.In(loc),
	}
	if v.ExitedAt != nil {
		exited := v.ExitedAt.In(loc)
		resp.ExitedAt = &exited
	}
	for _, e := range v.History {
		resp.History = append(resp.History, AuditEntryResponse{Action: e.Action, Actor: e.Actor, At: e.At.In(loc)})
	}
	if v.PersonID != nil {
		resp.VisitCount = counts[*v.PersonID]
	}
	if v.Person != nil {
		resp.Person = &PersonSummary{
			ID:         v.Person.ID,
			NationalID: v.Person.NationalID,
			Name:       v.Person.Name,
			Phone:      v.Person.Phone,
			CreatedAt:  v.Person.CreatedAt.In(loc),
			VisitCount: counts[v.Person.ID],
		}
	}
	return resp
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func personIDs(visits []models.Visit) []uint {
	seen := make(map[uint]struct{}, len(visits))
	ids := make([]uint, 0, len(visits))
	for _, v := range visits {
		if v.PersonID == nil {
			continue
		}
		if _, ok := seen[*v.PersonID]; ok {
			continue
		}
		seen[*v.PersonID] = struct{}{}
		ids = append(ids, *v.PersonID)
	}
	return ids
}
