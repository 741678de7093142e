package reports

import (
	"time"

	"visitor-registry/models"
)

// Bundle gathers the aggregates rendered into exported documents.
type Bundle struct {
	Period      Period
	GeneratedAt time.Time
	GeneratedBy string
	Summary     Summary
	Categories  CategoryBreakdown
	Monthly     MonthlyTrend
	Referrals   ReferralReport
}

func Build(visits []models.Visit, period Period, now time.Time, generatedBy string) Bundle {
	return Bundle{
		Period:      period,
		GeneratedAt: now,
		GeneratedBy: generatedBy,
		Summary:     Summarize(visits, now),
		Categories:  Categories(visits, period, now),
		Monthly:     Monthly(visits, now),
		Referrals:   Referrals(visits, period, now),
	}
}
