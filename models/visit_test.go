package models

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttentionDuration(t *testing.T) {
	entered := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := entered.Add(d)
		return &t
	}

	tests := []struct {
		name  string
		visit Visit
		want  string
	}{
		{"in progress", Visit{EnteredAt: entered}, DurationInProgress},
		{"completed without exit", Visit{EnteredAt: entered, Completed: true}, DurationInProgress},
		{"minutes only", Visit{EnteredAt: entered, Completed: true, ExitedAt: at(25 * time.Minute)}, "25min"},
		{"hours and minutes", Visit{EnteredAt: entered, Completed: true, ExitedAt: at(65 * time.Minute)}, "1h 5min"},
		{"exact hours", Visit{EnteredAt: entered, Completed: true, ExitedAt: at(2 * time.Hour)}, "2h 0min"},
		{"seconds truncate", Visit{EnteredAt: entered, Completed: true, ExitedAt: at(59 * time.Second)}, "0min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.visit.AttentionDuration())
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusInProgress, (&Visit{}).Status())
	assert.Equal(t, StatusCompleted, (&Visit{Completed: true}).Status())
}

func TestValidate(t *testing.T) {
	base := func() Visit {
		return Visit{Name: "Ana Pérez", NationalID: "V123456"}
	}

	tests := []struct {
		name  string
		edit  func(v *Visit)
		field string
	}{
		{"valid", func(v *Visit) {}, ""},
		{"missing name", func(v *Visit) { v.Name = "   " }, "nombre"},
		{"short national id", func(v *Visit) { v.NationalID = "12345" }, "cedula"},
		{"long national id", func(v *Visit) { v.NationalID = "123456789012345678901" }, "cedula"},
		{"unknown category", func(v *Visit) { v.Category = "FOO" }, "tipo_visita"},
		{"unknown institution", func(v *Visit) { v.ReferralTarget = "FOO" }, "referir_a"},
		{"other institution without name", func(v *Visit) { v.ReferralTarget = ReferralOther }, "otra_institucion"},
		{"other institution with name", func(v *Visit) {
			v.ReferralTarget = ReferralOther
			v.OtherInstitution = "Consejo Comunal"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base()
			tt.edit(&v)
			v.Normalize()
			err := v.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestValidateCountsRunes(t *testing.T) {
	v := Visit{Name: "José", NationalID: "ñññññ"}
	v.Normalize()
	assert.Error(t, v.Validate())

	v.NationalID = "ññññññ"
	assert.NoError(t, v.Validate())
}

func TestNormalizeFillsDefaults(t *testing.T) {
	v := Visit{Name: "  Ana ", NationalID: " 1234567 "}
	v.Normalize()
	assert.Equal(t, "Ana", v.Name)
	assert.Equal(t, "1234567", v.NationalID)
	assert.Equal(t, CategoryAdvisory, v.Category)
	assert.Equal(t, ReferralNone, v.ReferralTarget)
	assert.False(t, v.RequiresReferral())
}

func TestReferralDisplay(t *testing.T) {
	assert.Equal(t, "Prefectura", (&Visit{ReferralTarget: "PREFECTURA"}).ReferralDisplay())
	assert.Equal(t, "Consejo Comunal", (&Visit{ReferralTarget: ReferralOther, OtherInstitution: "Consejo Comunal"}).ReferralDisplay())
	assert.Equal(t, "Otra Institución", (&Visit{ReferralTarget: ReferralOther}).ReferralDisplay())
}

func TestHistoryActors(t *testing.T) {
	v := Visit{History: []AuditEntry{
		{Actor: "ana", Action: ActionCreated},
		{Actor: "luis", Action: ActionUpdated},
		{Actor: "ana", Action: ActionExitRegistered},
		{Actor: "marta", Action: ActionUpdated},
	}}
	assert.Equal(t, "ana", v.CreatedBy())
	assert.Equal(t, "marta", v.UpdatedBy())
	assert.Empty(t, (&Visit{}).CreatedBy())
}

func TestChoiceLabels(t *testing.T) {
	assert.Equal(t, "Asesoría", CategoryLabel(CategoryAdvisory))
	assert.Equal(t, "UNKNOWN", CategoryLabel("UNKNOWN"))
	assert.Equal(t, "No requiere referir", InstitutionLabel(ReferralNone))
	assert.Len(t, Pairs(Categories), len(Categories))
	assert.Equal(t, [2]string{"OTRO", "Otro"}, Pairs(Categories)[len(Categories)-1])
}

func TestParseVisitFilter(t *testing.T) {
	q := url.Values{
		"tipo_visita":         {"CURATELA"},
		"atencion_completada": {"True"},
		"q":                   {"ana"},
		"referido":            {""},
		"referir_a":           {"PREFECTURA"},
		"municipio":           {"Libertador"},
	}
	f := ParseVisitFilter(q)
	assert.Equal(t, "CURATELA", f.Category)
	require.NotNil(t, f.Completed)
	assert.True(t, *f.Completed)
	assert.Equal(t, "ana", f.Search)
	assert.True(t, f.Referred)
	assert.Equal(t, "PREFECTURA", f.ReferralTarget)
	assert.Equal(t, "Libertador", f.Region)

	f = ParseVisitFilter(url.Values{"atencion_completada": {"no"}})
	require.NotNil(t, f.Completed)
	assert.False(t, *f.Completed)
	assert.False(t, f.Referred)
}

func TestFilterMatches(t *testing.T) {
	v := &Visit{
		Name:           "Ana Pérez",
		NationalID:     "V1234567",
		Region:         "Libertador",
		Category:       "CURATELA",
		ReferralTarget: "PREFECTURA",
		EnteredAt:      time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	since := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)
	done := true

	assert.True(t, VisitFilter{}.Matches(v))
	assert.True(t, VisitFilter{Search: "pérez"}.Matches(v))
	assert.True(t, VisitFilter{Search: "1234"}.Matches(v))
	assert.False(t, VisitFilter{Search: "luis"}.Matches(v))
	assert.True(t, VisitFilter{Referred: true, ReferralTarget: "ALCALDIA"}.Matches(v))
	assert.False(t, VisitFilter{ReferralTarget: "ALCALDIA"}.Matches(v))
	assert.True(t, VisitFilter{Region: "liber"}.Matches(v))
	assert.False(t, VisitFilter{Completed: &done}.Matches(v))
	assert.True(t, VisitFilter{Since: &since, Until: &until}.Matches(v))
	assert.False(t, VisitFilter{Until: &since}.Matches(v))
}
