package reports

import (
	"encoding/json"
	"fmt"
	"time"

	"visitor-registry/models"
)

// Fact is a "most frequent" value that may be unavailable when nothing qualifies.
type Fact struct {
	Value string
	Count int
	ok    bool
}

func Known(value string, count int) Fact {
	return Fact{Value: value, Count: count, ok: true}
}

// UnknownFact is the explicit unavailable variant.
var UnknownFact = Fact{}

func (f Fact) Available() bool { return f.ok }

func (f Fact) String() string {
	if !f.ok {
		return Unavailable
	}
	return f.Value
}

func (f Fact) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func topFact(counts map[string]int) Fact {
	r := ranked(counts)
	if len(r) == 0 {
		return UnknownFact
	}
	return Known(r[0].Key, r[0].Count)
}

type CategorySample struct {
	Code  string `json:"tipo_visita"`
	Count int    `json:"count"`
}

// Summary is the statistics panel of the filtered set.
type Summary struct {
	Success        bool             `json:"success"`
	NoData         bool             `json:"sin_datos"`
	Message        string           `json:"mensaje,omitempty"`
	Total          int              `json:"total_visitas"`
	Completed      int              `json:"visitas_completadas"`
	Pending        int              `json:"visitas_pendientes"`
	Active         int              `json:"visitas_activas"`
	AvgPerDay      float64          `json:"promedio_diario"`
	TopCategory    Fact             `json:"tramite_mas_comun"`
	CompletionPct  float64          `json:"porcentaje_completados"`
	TopRegion      Fact             `json:"municipio_mas_visitado"`
	TopSubRegion   Fact             `json:"parroquia_mas_visitada"`
	CategoriesSeen int              `json:"tipos_tramite_diferentes"`
	ElapsedDays    int              `json:"dias_transcurridos"`
	FirstVisitDate string           `json:"primera_visita_fecha,omitempty"`
	Today          string           `json:"hoy"`
	Formula        string           `json:"_formula_promedio,omitempty"`
	CategorySample []CategorySample `json:"_muestra_tramites"`
}

const noDataMessage = "No hay visitas registradas en el periodo/filtro seleccionado"

// Summarize computes the statistics panel using the earliest entry as baseline.
// An empty set yields a zero summary with NoData set.
func Summarize(visits []models.Visit, now time.Time) Summary {
	today := startOfDay(now)
	s := Summary{
		Success:        true,
		Today:          today.Format(dateLayout),
		TopCategory:    UnknownFact,
		TopRegion:      UnknownFact,
		TopSubRegion:   UnknownFact,
		CategorySample: []CategorySample{},
	}
	if len(visits) == 0 {
		s.NoData = true
		s.Message = noDataMessage
		return s
	}

	first := visits[0].EnteredAt
	categories := make(map[string]int)
	regions := make(map[string]int)
	subRegions := make(map[string]int)
	for i := range visits {
		v := &visits[i]
		if v.EnteredAt.Before(first) {
			first = v.EnteredAt
		}
		if v.Completed {
			s.Completed++
		} else {
			s.Active++
		}
		categories[v.Category]++
		regions[v.Region]++
		subRegions[v.SubRegion]++
	}

	firstDay := startOfDay(first.In(now.Location()))
	s.ElapsedDays = daysBetween(firstDay, today) + 1
	if s.ElapsedDays < 1 {
		s.ElapsedDays = 1
	}

	s.Total = len(visits)
	s.Pending = s.Total - s.Completed
	s.AvgPerDay = round2(float64(s.Total) / float64(s.ElapsedDays))
	s.CompletionPct = percent(s.Completed, s.Total)
	s.TopCategory = topFact(categories)
	s.TopRegion = topFact(regions)
	s.TopSubRegion = topFact(subRegions)
	s.FirstVisitDate = firstDay.Format(dateLayout)
	s.Formula = fmt.Sprintf("%d visitas / %d días = %.2f", s.Total, s.ElapsedDays, s.AvgPerDay)

	rankedCategories := ranked(categories)
	s.CategoriesSeen = len(rankedCategories)
	for i, kc := range rankedCategories {
		if i == 5 {
			break
		}
		s.CategorySample = append(s.CategorySample, CategorySample{Code: kc.Key, Count: kc.Count})
	}
	return s
}

// daysBetween counts calendar days from a to b, both at midnight in the same location.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}
