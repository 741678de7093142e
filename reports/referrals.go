package reports

import (
	"sort"
	"time"

	"visitor-registry/models"
)

type InstitutionRow struct {
	Label      string   `json:"institucion"`
	Code       string   `json:"codigo_institucion"`
	Referred   int      `json:"total_referidos"`
	Pct        float64  `json:"porcentaje"`
	TopMatters []string `json:"tramites_comunes"`
}

type ReferralMetadata struct {
	Start       string `json:"fecha_inicio"`
	End         string `json:"fecha_fin"`
	Period      Period `json:"periodo_seleccionado"`
	GeneratedAt string `json:"generado_en"`
}

type ReferralReport struct {
	Success      bool             `json:"success"`
	Period       Period           `json:"periodo"`
	Total        int              `json:"total_visitantes"`
	Referred     int              `json:"total_referidos"`
	ReferredPct  float64          `json:"porcentaje_referidos"`
	Institutions []InstitutionRow `json:"instituciones"`
	Metadata     ReferralMetadata `json:"metadata"`
}

// Referrals breaks down the referred visits of the period by target institution.
// Free-text institutions are grouped under one bucket listing their most common names.
func Referrals(visits []models.Visit, period Period, now time.Time) ReferralReport {
	start := period.Start(now)
	inPeriod := Since(visits, start)

	type group struct {
		count   int
		matters map[string]int
	}
	groups := make(map[string]*group)
	referred := 0
	for i := range inPeriod {
		v := &inPeriod[i]
		if !v.RequiresReferral() {
			continue
		}
		referred++
		g, ok := groups[v.ReferralTarget]
		if !ok {
			g = &group{matters: make(map[string]int)}
			groups[v.ReferralTarget] = g
		}
		g.count++
		if v.ReferralTarget == models.ReferralOther {
			g.matters[v.OtherInstitution]++
		} else {
			g.matters[v.Category]++
		}
	}

	rows := make([]InstitutionRow, 0, len(groups))
	for code, g := range groups {
		row := InstitutionRow{
			Label:      models.InstitutionLabel(code),
			Code:       code,
			Referred:   g.count,
			Pct:        percent(g.count, referred),
			TopMatters: []string{},
		}
		if code == models.ReferralOther {
			row.Label = models.OtherInstitutionsLabel
		}
		for i, kc := range ranked(g.matters) {
			if i == 3 {
				break
			}
			name := kc.Key
			if code != models.ReferralOther {
				name = models.CategoryLabel(kc.Key)
			}
			row.TopMatters = append(row.TopMatters, name)
		}
		rows = append(rows, row)
	}
	sortInstitutions(rows)

	return ReferralReport{
		Success:      true,
		Period:       period,
		Total:        len(inPeriod),
		Referred:     referred,
		ReferredPct:  percent(referred, len(inPeriod)),
		Institutions: rows,
		Metadata: ReferralMetadata{
			Start:       start.Format(timestampLayout),
			End:         now.Format(timestampLayout),
			Period:      period,
			GeneratedAt: now.Format(timestampLayout),
		},
	}
}

func sortInstitutions(rows []InstitutionRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Referred != rows[j].Referred {
			return rows[i].Referred > rows[j].Referred
		}
		return rows[i].Code < rows[j].Code
	})
}

type ReferralWindow struct {
	Referred int     `json:"referidos"`
	Total    int     `json:"total"`
	Pct      float64 `json:"porcentaje"`
}

type ReferralWindows struct {
	Today ReferralWindow `json:"hoy"`
	Week  ReferralWindow `json:"semana"`
	Month ReferralWindow `json:"mes"`
}

type TopInstitution struct {
	Label string `json:"institucion"`
	Total int    `json:"total"`
	Code  string `json:"codigo"`
}

// ReferralLifetime covers the whole history, regardless of any window.
type ReferralLifetime struct {
	Referred     int              `json:"total_referidos"`
	Institutions []TopInstitution `json:"instituciones_top"`
}

// ReferralSnapshot is the referral dashboard. Windows are relative to now;
// Lifetime is computed over every visit passed in.
type ReferralSnapshot struct {
	Success     bool             `json:"success"`
	Windows     ReferralWindows  `json:"periodos"`
	Lifetime    ReferralLifetime `json:"historico"`
	GeneratedAt string           `json:"periodo_actual"`
}

func Snapshot(visits []models.Visit, now time.Time) ReferralSnapshot {
	window := func(start time.Time) ReferralWindow {
		var w ReferralWindow
		for i := range visits {
			if visits[i].EnteredAt.Before(start) {
				continue
			}
			w.Total++
			if visits[i].RequiresReferral() {
				w.Referred++
			}
		}
		w.Pct = percent(w.Referred, w.Total)
		return w
	}

	targets := make(map[string]int)
	referred := 0
	for i := range visits {
		if visits[i].RequiresReferral() {
			referred++
			targets[visits[i].ReferralTarget]++
		}
	}
	top := make([]TopInstitution, 0, 5)
	for i, kc := range ranked(targets) {
		if i == 5 {
			break
		}
		top = append(top, TopInstitution{Label: models.InstitutionLabel(kc.Key), Total: kc.Count, Code: kc.Key})
	}

	return ReferralSnapshot{
		Success: true,
		Windows: ReferralWindows{
			Today: window(PeriodToday.Start(now)),
			Week:  window(PeriodWeek.Start(now)),
			Month: window(PeriodMonth.Start(now)),
		},
		Lifetime:    ReferralLifetime{Referred: referred, Institutions: top},
		GeneratedAt: now.Format(timestampLayout),
	}
}
