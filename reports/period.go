// Package reports computes dashboard counters and time-bucketed statistics from
// a filtered set of visits. Every function is pure: it takes the visits, the
// current instant and its parameters, and never touches the store.
package reports

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"visitor-registry/models"
)

const (
	DefaultDays = 14
	MaxDays     = 366

	TrendLength = 6

	// Unavailable is rendered in place of a "most frequent" fact with no data.
	Unavailable = "No disponible"

	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "02/01/2006"
	shortDateLayout = "02/01"
)

// Period selects the start of a report window relative to now.
type Period string

const (
	PeriodToday   Period = "hoy"
	PeriodWeek    Period = "semana"
	PeriodMonth   Period = "mes"
	PeriodQuarter Period = "trimestre"
	PeriodYear    Period = "anio"
)

var periodAliases = map[string]Period{
	"today":     PeriodToday,
	"hoy":       PeriodToday,
	"week":      PeriodWeek,
	"semana":    PeriodWeek,
	"month":     PeriodMonth,
	"mes":       PeriodMonth,
	"quarter":   PeriodQuarter,
	"trimestre": PeriodQuarter,
	"year":      PeriodYear,
	"anio":      PeriodYear,
	"año":       PeriodYear,
}

// ParsePeriod accepts English and Spanish selectors. Anything else is PeriodMonth.
func ParsePeriod(s string) Period {
	if p, ok := periodAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p
	}
	return PeriodMonth
}

// Start returns the first instant of the window. Calendar boundaries are taken
// in now's location.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodToday:
		return startOfDay(now)
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodQuarter:
		return now.AddDate(0, 0, -90)
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return startOfMonth(now)
	}
}

func (p Period) Label() string {
	switch p {
	case PeriodToday:
		return "Hoy"
	case PeriodWeek:
		return "Últimos 7 días"
	case PeriodQuarter:
		return "Últimos 90 días"
	case PeriodYear:
		return "Año en curso"
	default:
		return "Mes en curso"
	}
}

// ParseDays reads the daily-series length. Unparseable or non-positive input
// yields DefaultDays; large values are capped at MaxDays.
func ParseDays(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return DefaultDays
	}
	if n > MaxDays {
		return MaxDays
	}
	return n
}

// Since keeps the visits that entered at or after start.
func Since(visits []models.Visit, start time.Time) []models.Visit {
	out := make([]models.Visit, 0, len(visits))
	for _, v := range visits {
		if !v.EnteredAt.Before(start) {
			out = append(out, v)
		}
	}
	return out
}

func countBetween(visits []models.Visit, from, to time.Time) (total, completed int) {
	for i := range visits {
		at := visits[i].EnteredAt
		if at.Before(from) || !at.Before(to) {
			continue
		}
		total++
		if visits[i].Completed {
			completed++
		}
	}
	return total, completed
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns Monday 00:00 of t's week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// percent is part/whole*100 rounded to 2 decimals, and 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

type keyCount struct {
	Key   string
	Count int
}

// ranked orders counts by count descending, then key ascending. Empty keys are dropped.
func ranked(counts map[string]int) []keyCount {
	out := make([]keyCount, 0, len(counts))
	for k, n := range counts {
		if k == "" {
			continue
		}
		out = append(out, keyCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
