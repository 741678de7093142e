package reports

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitor-registry/models"
)

var caracas = time.FixedZone("VET", -4*3600)

// Wednesday.
var now = time.Date(2024, 3, 13, 15, 0, 0, 0, caracas)

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, caracas).UTC()
}

func visit(entered time.Time, category string, completed bool) models.Visit {
	return models.Visit{
		Name:           "Visitante",
		NationalID:     "V1234567",
		Category:       category,
		ReferralTarget: models.ReferralNone,
		EnteredAt:      entered,
		Completed:      completed,
	}
}

func referred(entered time.Time, target, other string) models.Visit {
	v := visit(entered, models.CategoryAdvisory, false)
	v.ReferralTarget = target
	v.OtherInstitution = other
	return v
}

func TestParsePeriod(t *testing.T) {
	assert.Equal(t, PeriodToday, ParsePeriod("today"))
	assert.Equal(t, PeriodToday, ParsePeriod("hoy"))
	assert.Equal(t, PeriodWeek, ParsePeriod("Semana"))
	assert.Equal(t, PeriodQuarter, ParsePeriod("quarter"))
	assert.Equal(t, PeriodYear, ParsePeriod("año"))
	assert.Equal(t, PeriodMonth, ParsePeriod(""))
	assert.Equal(t, PeriodMonth, ParsePeriod("fortnight"))
}

func TestPeriodStart(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, caracas), PeriodToday.Start(now))
	assert.Equal(t, now.AddDate(0, 0, -7), PeriodWeek.Start(now))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, caracas), PeriodMonth.Start(now))
	assert.Equal(t, now.AddDate(0, 0, -90), PeriodQuarter.Start(now))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, caracas), PeriodYear.Start(now))
	assert.Equal(t, PeriodMonth.Start(now), Period("unknown").Start(now))
}

func TestParseDays(t *testing.T) {
	assert.Equal(t, 3, ParseDays("3"))
	assert.Equal(t, DefaultDays, ParseDays("abc"))
	assert.Equal(t, DefaultDays, ParseDays(""))
	assert.Equal(t, DefaultDays, ParseDays("-2"))
	assert.Equal(t, MaxDays, ParseDays("100000"))
}

func TestDashboard(t *testing.T) {
	visits := []models.Visit{
		visit(at(2024, 3, 13, 10), models.CategoryAdvisory, false),
		visit(at(2024, 3, 11, 9), models.CategoryAdvisory, true),
		visit(at(2024, 3, 2, 9), models.CategoryAdvisory, true),
		visit(at(2024, 2, 20, 9), models.CategoryAdvisory, false),
		// Late on the 12th local time is already the 13th in UTC.
		visit(at(2024, 3, 12, 22), models.CategoryAdvisory, true),
	}
	c := Dashboard(visits, now)
	assert.Equal(t, Counters{Total: 5, Today: 1, Week: 3, Month: 4, InSession: 2}, c)
}

func TestDailySeries(t *testing.T) {
	visits := []models.Visit{
		visit(at(2024, 3, 12, 11), models.CategoryAdvisory, false),
		visit(at(2024, 3, 13, 8), models.CategoryAdvisory, false),
		visit(at(2024, 3, 13, 14), models.CategoryAdvisory, false),
	}
	d := Daily(visits, 3, now)
	require.Len(t, d.Rows, 3)
	assert.Equal(t, 3, d.Days)
	assert.Equal(t, []int{0, 1, 2}, []int{d.Rows[0].Visits, d.Rows[1].Visits, d.Rows[2].Visits})
	assert.Equal(t, "2024-03-11", d.Rows[0].Date)
	assert.Equal(t, "13/03", d.Rows[2].Label)

	assert.Len(t, Daily(nil, 0, now).Rows, DefaultDays)
}

func TestTrendsAlwaysHaveSixEntries(t *testing.T) {
	for _, visits := range [][]models.Visit{nil, {visit(at(2023, 12, 5, 10), models.CategoryAdvisory, true)}} {
		monthly := Monthly(visits, now)
		require.Len(t, monthly.Rows, TrendLength)
		weekly := Weekly(visits, now)
		require.Len(t, weekly.Rows, TrendLength)
	}
}

func TestMonthly(t *testing.T) {
	visits := []models.Visit{
		visit(at(2023, 12, 5, 10), models.CategoryAdvisory, true),
		visit(at(2023, 12, 31, 10), models.CategoryAdvisory, false),
		visit(at(2024, 3, 1, 0), models.CategoryAdvisory, true),
		visit(at(2023, 9, 30, 10), models.CategoryAdvisory, true),
	}
	m := Monthly(visits, now)

	var labels []string
	for _, r := range m.Rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"Oct", "Nov", "Dic", "Ene", "Feb", "Mar"}, labels)

	dec := m.Rows[2]
	assert.Equal(t, 12, dec.Month)
	assert.Equal(t, 2023, dec.Year)
	assert.Equal(t, 2, dec.Total)
	assert.Equal(t, 1, dec.Completed)
	assert.Equal(t, 50.0, dec.CompletionPct)

	assert.Equal(t, 1, m.Rows[5].Total)
	assert.Equal(t, 0.0, m.Rows[0].CompletionPct)
}

func TestWeekly(t *testing.T) {
	visits := []models.Visit{
		visit(at(2024, 3, 11, 0), models.CategoryAdvisory, false),
		visit(at(2024, 3, 17, 23), models.CategoryAdvisory, false),
		visit(at(2024, 3, 10, 23), models.CategoryAdvisory, false),
	}
	w := Weekly(visits, now)

	last := w.Rows[5]
	assert.Equal(t, "Sem 6", last.Label)
	assert.Equal(t, "11/03", last.Start)
	assert.Equal(t, "17/03", last.End)
	assert.Equal(t, 2, last.Total)
	assert.Equal(t, 0.29, last.AvgPerDay)

	assert.Equal(t, 1, w.Rows[4].Total)
	assert.Equal(t, "Sem 1", w.Rows[0].Label)
	assert.Equal(t, "05/02", w.Rows[0].Start)
	assert.Equal(t, 0.0, w.Rows[0].AvgPerDay)
}

func TestCategories(t *testing.T) {
	visits := []models.Visit{
		visit(at(2024, 3, 2, 9), "CURATELA", true),
		visit(at(2024, 3, 3, 9), "CURATELA", false),
		visit(at(2024, 3, 4, 9), "CURATELA", false),
		visit(at(2024, 3, 5, 9), "TUTELA", true),
		visit(at(2024, 3, 6, 9), models.CategoryAdvisory, false),
		visit(at(2024, 2, 6, 9), models.CategoryAdvisory, false),
	}
	b := Categories(visits, PeriodMonth, now)
	assert.Equal(t, PeriodMonth, b.Period)
	assert.Equal(t, 5, b.Total)
	assert.Equal(t, 40.0, b.CompletionPct)
	require.Len(t, b.Rows, 3)

	assert.Equal(t, "CURATELA", b.Rows[0].Code)
	assert.Equal(t, 33.33, b.Rows[0].CompletionPct)
	assert.Equal(t, models.CategoryAdvisory, b.Rows[1].Code)
	assert.Equal(t, "Asesoría", b.Rows[1].Label)
	assert.Equal(t, "TUTELA", b.Rows[2].Code)

	for _, r := range b.Rows {
		assert.GreaterOrEqual(t, r.CompletionPct, 0.0)
		assert.LessOrEqual(t, r.CompletionPct, 100.0)
	}

	empty := Categories(nil, PeriodToday, now)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.CompletionPct)
	assert.Empty(t, empty.Rows)
}

func TestSummarize(t *testing.T) {
	visits := []models.Visit{
		visit(at(2024, 3, 4, 9), "CURATELA", true),
		visit(at(2024, 3, 10, 9), "CURATELA", false),
		visit(at(2024, 3, 12, 9), "TUTELA", true),
		visit(at(2024, 3, 13, 9), "TUTELA", true),
	}
	visits[0].Region = "Libertador"
	visits[1].Region = "Libertador"
	visits[2].Region = "Sucre"
	visits[3].SubRegion = "Catedral"

	s := Summarize(visits, now)
	assert.False(t, s.NoData)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 10, s.ElapsedDays)
	assert.Equal(t, 0.4, s.AvgPerDay)
	assert.Equal(t, 3, s.Completed)
	assert.Equal(t, 1, s.Active)
	assert.Equal(t, 75.0, s.CompletionPct)
	assert.Equal(t, "CURATELA", s.TopCategory.String())
	assert.Equal(t, "Libertador", s.TopRegion.String())
	assert.Equal(t, "Catedral", s.TopSubRegion.String())
	assert.Equal(t, 2, s.CategoriesSeen)
	assert.Equal(t, "04/03/2024", s.FirstVisitDate)
	assert.Equal(t, "13/03/2024", s.Today)
	assert.Len(t, s.CategorySample, 2)
}

func TestSummarizeElapsedDaysMinimumOne(t *testing.T) {
	s := Summarize([]models.Visit{visit(at(2024, 3, 13, 9), "TUTELA", false)}, now)
	assert.Equal(t, 1, s.ElapsedDays)
	assert.Equal(t, 1.0, s.AvgPerDay)

	future := Summarize([]models.Visit{visit(at(2024, 3, 20, 9), "TUTELA", false)}, now)
	assert.Equal(t, 1, future.ElapsedDays)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, now)
	assert.True(t, s.NoData)
	assert.NotEmpty(t, s.Message)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.CompletionPct)
	assert.False(t, s.TopCategory.Available())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, Unavailable, decoded["tramite_mas_comun"])
	assert.Equal(t, Unavailable, decoded["municipio_mas_visitado"])
	assert.Equal(t, true, decoded["sin_datos"])
}

func TestSummarizeIgnoresBlankRegions(t *testing.T) {
	s := Summarize([]models.Visit{
		visit(at(2024, 3, 13, 9), "TUTELA", false),
		visit(at(2024, 3, 13, 10), "TUTELA", false),
	}, now)
	assert.False(t, s.TopRegion.Available())
	assert.Equal(t, Unavailable, s.TopSubRegion.String())
}

func TestReferrals(t *testing.T) {
	visits := []models.Visit{
		referred(at(2024, 3, 2, 9), "PREFECTURA", ""),
		referred(at(2024, 3, 3, 9), "PREFECTURA", ""),
		referred(at(2024, 3, 4, 9), models.ReferralOther, "Consejo Comunal"),
		referred(at(2024, 3, 5, 9), models.ReferralOther, "Consejo Comunal"),
		referred(at(2024, 3, 6, 9), models.ReferralOther, "Fiscalía Local"),
		visit(at(2024, 3, 7, 9), models.CategoryAdvisory, false),
		visit(at(2024, 3, 8, 9), models.CategoryAdvisory, false),
		visit(at(2024, 3, 9, 9), models.CategoryAdvisory, false),
		visit(at(2024, 3, 10, 9), models.CategoryAdvisory, false),
		visit(at(2024, 3, 11, 9), models.CategoryAdvisory, false),
		referred(at(2024, 1, 11, 9), "ALCALDIA", ""),
	}
	visits[1].Category = "CURATELA"

	r := Referrals(visits, PeriodMonth, now)
	assert.Equal(t, 10, r.Total)
	assert.Equal(t, 5, r.Referred)
	assert.Equal(t, 50.0, r.ReferredPct)
	require.Len(t, r.Institutions, 2)

	other := r.Institutions[0]
	assert.Equal(t, models.ReferralOther, other.Code)
	assert.Equal(t, models.OtherInstitutionsLabel, other.Label)
	assert.Equal(t, 3, other.Referred)
	assert.Equal(t, 60.0, other.Pct)
	assert.Equal(t, []string{"Consejo Comunal", "Fiscalía Local"}, other.TopMatters)

	pref := r.Institutions[1]
	assert.Equal(t, "Prefectura", pref.Label)
	assert.Equal(t, 40.0, pref.Pct)
	assert.Equal(t, []string{"Asesoría", "Curatela"}, pref.TopMatters)

	assert.Equal(t, "2024-03-01 00:00:00", r.Metadata.Start)
	assert.Equal(t, PeriodMonth, r.Metadata.Period)

	none := Referrals(nil, PeriodYear, now)
	assert.Zero(t, none.ReferredPct)
	assert.Empty(t, none.Institutions)
}

func TestSnapshotSplitsWindowsAndLifetime(t *testing.T) {
	visits := []models.Visit{
		referred(at(2024, 3, 13, 9), "PREFECTURA", ""),
		visit(at(2024, 3, 13, 10), models.CategoryAdvisory, false),
		referred(at(2024, 3, 8, 9), "ALCALDIA", ""),
		referred(at(2024, 3, 2, 9), "ALCALDIA", ""),
		referred(at(2023, 5, 2, 9), "ALCALDIA", ""),
		referred(at(2022, 5, 2, 9), "SENIAT", ""),
	}
	s := Snapshot(visits, now)

	assert.Equal(t, ReferralWindow{Referred: 1, Total: 2, Pct: 50}, s.Windows.Today)
	assert.Equal(t, ReferralWindow{Referred: 2, Total: 3, Pct: 66.67}, s.Windows.Week)
	assert.Equal(t, ReferralWindow{Referred: 3, Total: 4, Pct: 75}, s.Windows.Month)

	assert.Equal(t, 5, s.Lifetime.Referred)
	require.Len(t, s.Lifetime.Institutions, 3)
	assert.Equal(t, TopInstitution{Label: "Alcaldía", Total: 3, Code: "ALCALDIA"}, s.Lifetime.Institutions[0])
	assert.Equal(t, "PREFECTURA", s.Lifetime.Institutions[1].Code)
}

func TestBuild(t *testing.T) {
	b := Build([]models.Visit{visit(at(2024, 3, 13, 9), "TUTELA", true)}, PeriodWeek, now, "ana")
	assert.Equal(t, PeriodWeek, b.Period)
	assert.Equal(t, "ana", b.GeneratedBy)
	assert.Equal(t, 1, b.Summary.Total)
	assert.Equal(t, 1, b.Categories.Total)
	assert.Len(t, b.Monthly.Rows, TrendLength)
	assert.Zero(t, b.Referrals.Referred)
}
