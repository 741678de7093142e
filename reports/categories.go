package reports

import (
	"sort"
	"time"

	"visitor-registry/models"
)

type CategoryRow struct {
	Code          string  `json:"nombre"`
	Label         string  `json:"etiqueta"`
	Count         int     `json:"cantidad"`
	Completed     int     `json:"completados"`
	CompletionPct float64 `json:"porcentaje_completados"`
}

type CategoryBreakdown struct {
	Success       bool          `json:"success"`
	Period        Period        `json:"periodo"`
	Total         int           `json:"total_tramites"`
	CompletionPct float64       `json:"porcentaje_total_completados"`
	Rows          []CategoryRow `json:"datos"`
}

// Categories groups the visits of the period by category, busiest first.
func Categories(visits []models.Visit, period Period, now time.Time) CategoryBreakdown {
	byCode := make(map[string]*CategoryRow)
	completed := 0
	inPeriod := Since(visits, period.Start(now))
	for i := range inPeriod {
		v := &inPeriod[i]
		row, ok := byCode[v.Category]
		if !ok {
			row = &CategoryRow{Code: v.Category, Label: models.CategoryLabel(v.Category)}
			byCode[v.Category] = row
		}
		row.Count++
		if v.Completed {
			row.Completed++
			completed++
		}
	}

	rows := make([]CategoryRow, 0, len(byCode))
	for _, row := range byCode {
		row.CompletionPct = percent(row.Completed, row.Count)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Code < rows[j].Code
	})

	return CategoryBreakdown{
		Success:       true,
		Period:        period,
		Total:         len(inPeriod),
		CompletionPct: percent(completed, len(inPeriod)),
		Rows:          rows,
	}
}
