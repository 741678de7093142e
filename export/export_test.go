package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"visitor-registry/models"
	"visitor-registry/reports"
)

var now = time.Date(2024, 3, 13, 15, 0, 0, 0, time.FixedZone("VET", -4*3600))

func sampleBundle(visits []models.Visit, by string) reports.Bundle {
	return reports.Build(visits, reports.PeriodMonth, now, by)
}

func sampleVisits() []models.Visit {
	return []models.Visit{
		{Name: "Ana", NationalID: "V1234567", Category: "CURATELA", ReferralTarget: "PREFECTURA", Region: "Libertador", EnteredAt: now.Add(-2 * time.Hour), Completed: true},
		{Name: "Luis", NationalID: "V7654321", Category: models.CategoryAdvisory, ReferralTarget: models.ReferralOther, OtherInstitution: "Consejo Comunal de la Parroquia Catedral", EnteredAt: now.Add(-26 * time.Hour)},
		{Name: "Marta", NationalID: "V1111111", Category: models.CategoryAdvisory, ReferralTarget: models.ReferralNone, EnteredAt: now.Add(-time.Hour)},
	}
}

var opts = Options{
	Letterhead: []string{"REPÚBLICA", "TRIBUNAL"},
	Signatures: []string{"Coordinación", "Dirección"},
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "reporte_mes_20240313.pdf", Filename(reports.PeriodMonth, now, "pdf"))
	assert.Equal(t, "reporte_trimestre_20240313.xlsx", Filename(reports.PeriodQuarter, now, "xlsx"))
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, sampleBundle(sampleVisits(), "Ana Pérez"), opts))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestPDFWithoutData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, sampleBundle(nil, ""), Options{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Excel(&buf, sampleBundle(sampleVisits(), "Ana Pérez"), opts))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t,
		[]string{SheetSummary, SheetCategories, SheetMonthly, SheetReferrals, SheetMetadata, SheetSignatures},
		f.GetSheetList())

	total, err := f.GetCellValue(SheetSummary, "A2")
	require.NoError(t, err)
	assert.Equal(t, "3", total)

	top, err := f.GetCellValue(SheetSummary, "C2")
	require.NoError(t, err)
	assert.Equal(t, "Asesoría", top)

	header, err := f.GetCellValue(SheetCategories, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Trámite", header)

	author, err := f.GetCellValue(SheetMetadata, "C2")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", author)

	sig, err := f.GetCellValue(SheetSignatures, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Dirección", sig)

	rows, err := f.GetRows(SheetMonthly)
	require.NoError(t, err)
	assert.Len(t, rows, 1+reports.TrendLength)
}

func TestExcelSkipsEmptySheets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Excel(&buf, sampleBundle(nil, ""), Options{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetMonthly, SheetMetadata, SheetSignatures}, f.GetSheetList())

	top, err := f.GetCellValue(SheetSummary, "C2")
	require.NoError(t, err)
	assert.Equal(t, reports.Unavailable, top)

	author, err := f.GetCellValue(SheetMetadata, "C2")
	require.NoError(t, err)
	assert.Equal(t, anonymousAuthor, author)
}
