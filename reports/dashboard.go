package reports

import (
	"time"

	"visitor-registry/models"
)

// Counters is the dashboard header.
type Counters struct {
	Total     int `json:"total"`
	Today     int `json:"diario"`
	Week      int `json:"semanal"`
	Month     int `json:"mensual"`
	InSession int `json:"enSala"`
}

// Dashboard counts all visits, those entered today, since Monday and since the
// first of the month, and those still in session.
func Dashboard(visits []models.Visit, now time.Time) Counters {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	week := startOfWeek(now)
	month := startOfMonth(now)

	c := Counters{Total: len(visits)}
	for i := range visits {
		at := visits[i].EnteredAt
		if !at.Before(today) && at.Before(tomorrow) {
			c.Today++
		}
		if !at.Before(week) {
			c.Week++
		}
		if !at.Before(month) {
			c.Month++
		}
		if !visits[i].Completed {
			c.InSession++
		}
	}
	return c
}
