package reports

import (
	"fmt"
	"time"

	"visitor-registry/models"
)

var monthAbbrev = [...]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

type MonthRow struct {
	Label         string  `json:"mes"`
	Month         int     `json:"mes_numero"`
	Year          int     `json:"anio"`
	Total         int     `json:"total_visitas"`
	Completed     int     `json:"completados"`
	CompletionPct float64 `json:"porcentaje_completados"`
}

type MonthlyTrend struct {
	Success bool       `json:"success"`
	Rows    []MonthRow `json:"datos"`
}

// Monthly returns the trailing TrendLength calendar months, oldest first,
// the last one being the current month.
func Monthly(visits []models.Visit, now time.Time) MonthlyTrend {
	current := startOfMonth(now)
	rows := make([]MonthRow, 0, TrendLength)
	for i := TrendLength - 1; i >= 0; i-- {
		from := current.AddDate(0, -i, 0)
		to := from.AddDate(0, 1, 0)
		total, completed := countBetween(visits, from, to)
		rows = append(rows, MonthRow{
			Label:         monthAbbrev[from.Month()-1],
			Month:         int(from.Month()),
			Year:          from.Year(),
			Total:         total,
			Completed:     completed,
			CompletionPct: percent(completed, total),
		})
	}
	return MonthlyTrend{Success: true, Rows: rows}
}

type WeekRow struct {
	Label     string  `json:"semana"`
	Number    int     `json:"semana_numero"`
	Total     int     `json:"total_visitas"`
	AvgPerDay float64 `json:"promedio_diario"`
	Start     string  `json:"fecha_inicio"`
	End       string  `json:"fecha_fin"`
}

type WeeklyTrend struct {
	Success bool      `json:"success"`
	Rows    []WeekRow `json:"datos"`
}

// Weekly returns the trailing TrendLength Monday-start weeks, oldest first.
// End is the Sunday closing each week.
func Weekly(visits []models.Visit, now time.Time) WeeklyTrend {
	current := startOfWeek(now)
	rows := make([]WeekRow, 0, TrendLength)
	for i := TrendLength - 1; i >= 0; i-- {
		from := current.AddDate(0, 0, -7*i)
		to := from.AddDate(0, 0, 7)
		total, _ := countBetween(visits, from, to)
		n := TrendLength - i
		rows = append(rows, WeekRow{
			Label:     fmt.Sprintf("Sem %d", n),
			Number:    n,
			Total:     total,
			AvgPerDay: round2(float64(total) / 7),
			Start:     from.Format(shortDateLayout),
			End:       to.AddDate(0, 0, -1).Format(shortDateLayout),
		})
	}
	return WeeklyTrend{Success: true, Rows: rows}
}

type DayRow struct {
	Date   string `json:"fecha"`
	Label  string `json:"label"`
	Visits int    `json:"visitas"`
}

type DailySeries struct {
	Success bool     `json:"success"`
	Days    int      `json:"dias"`
	Rows    []DayRow `json:"datos"`
}

// Daily counts visits per calendar day for the trailing days, oldest first,
// ending today.
func Daily(visits []models.Visit, days int, now time.Time) DailySeries {
	if days <= 0 {
		days = DefaultDays
	}
	today := startOfDay(now)
	rows := make([]DayRow, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		total, _ := countBetween(visits, day, day.AddDate(0, 0, 1))
		rows = append(rows, DayRow{
			Date:   day.Format("2006-01-02"),
			Label:  day.Format(shortDateLayout),
			Visits: total,
		})
	}
	return DailySeries{Success: true, Days: days, Rows: rows}
}
