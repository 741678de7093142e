package models

import (
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
)

// VisitFilter is the conjunction of optional visit filters. Zero fields are no-ops.
type VisitFilter struct {
	Category       string
	Completed      *bool
	Search         string
	ReferralTarget string
	// Referred selects every visit with a referral; it wins over ReferralTarget.
	Referred bool
	Region   string
	Since    *time.Time
	Until    *time.Time
}

// ParseVisitFilter reads the list filters from query parameters.
func ParseVisitFilter(q url.Values) VisitFilter {
	f := VisitFilter{
		Category:       q.Get("tipo_visita"),
		ReferralTarget: q.Get("referir_a"),
		Region:         q.Get("municipio"),
	}
	if _, ok := q["atencion_completada"]; ok {
		done := strings.EqualFold(q.Get("atencion_completada"), "true")
		f.Completed = &done
	}
	f.Search = q.Get("search")
	if f.Search == "" {
		f.Search = q.Get("q")
	}
	if _, ok := q["referido"]; ok {
		f.Referred = true
	}
	return f
}

// ParseReportFilter reads the subset of filters that report endpoints accept.
func ParseReportFilter(q url.Values) VisitFilter {
	return VisitFilter{
		Category:       q.Get("tipo_visita"),
		ReferralTarget: q.Get("referir_a"),
		Region:         q.Get("municipio"),
	}
}

// Matches applies the filter to an in-memory visit with the same semantics as Scope.
func (f VisitFilter) Matches(v *Visit) bool {
	if f.Category != "" && v.Category != f.Category {
		return false
	}
	if f.Completed != nil && v.Completed != *f.Completed {
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		hit := false
		for _, field := range []string{v.Name, v.NationalID, v.Phone, v.Region, v.SubRegion} {
			if strings.Contains(strings.ToLower(field), s) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.Referred {
		if v.ReferralTarget == ReferralNone {
			return false
		}
	} else if f.ReferralTarget != "" && v.ReferralTarget != f.ReferralTarget {
		return false
	}
	if f.Region != "" && !strings.Contains(strings.ToLower(v.Region), strings.ToLower(f.Region)) {
		return false
	}
	if f.Since != nil && v.EnteredAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !v.EnteredAt.Before(*f.Until) {
		return false
	}
	return true
}

// Scope turns the filter into a gorm scope over the visitas table.
func (f VisitFilter) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Category != "" {
			db = db.Where("visitas.category = ?", f.Category)
		}
		if f.Completed != nil {
			db = db.Where("visitas.completed = ?", *f.Completed)
		}
		if f.Search != "" {
			like := containsPattern(f.Search)
			db = db.Where(
				`(LOWER(visitas.name) LIKE ? ESCAPE '\' OR LOWER(visitas.national_id) LIKE ? ESCAPE '\' OR `+
					`LOWER(visitas.phone) LIKE ? ESCAPE '\' OR LOWER(visitas.region) LIKE ? ESCAPE '\' OR `+
					`LOWER(visitas.sub_region) LIKE ? ESCAPE '\')`,
				like, like, like, like, like,
			)
		}
		if f.Referred {
			db = db.Where("visitas.referral_target <> ?", ReferralNone)
		} else if f.ReferralTarget != "" {
			db = db.Where("visitas.referral_target = ?", f.ReferralTarget)
		}
		if f.Region != "" {
			db = db.Where(`LOWER(visitas.region) LIKE ? ESCAPE '\'`, containsPattern(f.Region))
		}
		if f.Since != nil {
			db = db.Where("visitas.entered_at >= ?", f.Since.UTC())
		}
		if f.Until != nil {
			db = db.Where("visitas.entered_at < ?", f.Until.UTC())
		}
		return db
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern is a lower-cased LIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
