// Package export renders report bundles into downloadable PDF and Excel documents.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"visitor-registry/models"
	"visitor-registry/reports"
)

const (
	ContentTypePDF   = "application/pdf"
	ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	anonymousAuthor = "Usuario no identificado"
	signatureLine   = "_______________________________"
	generatedLayout = "02/01/2006 15:04"
)

// Options carries the institution-specific text printed on every document.
type Options struct {
	Letterhead []string
	Signatures []string
}

// Filename is reporte_<period>_<YYYYMMDD>.<ext>.
func Filename(period reports.Period, now time.Time, ext string) string {
	return fmt.Sprintf("reporte_%s_%s.%s", period, now.Format("20060102"), ext)
}

func author(b reports.Bundle) string {
	if b.GeneratedBy == "" {
		return anonymousAuthor
	}
	return b.GeneratedBy
}

func categoryFact(f reports.Fact) string {
	if !f.Available() {
		return f.String()
	}
	return models.CategoryLabel(f.Value)
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func formatPct(x float64) string {
	return formatFloat(x) + "%"
}

// keyFigures are the label/value pairs of the "main statistics" block.
func keyFigures(b reports.Bundle) [][2]string {
	s := b.Summary
	return [][2]string{
		{"Total visitas", strconv.Itoa(s.Total)},
		{"Promedio diario", formatFloat(s.AvgPerDay)},
		{"Trámite más común", categoryFact(s.TopCategory)},
		{"Porcentaje completados", formatPct(s.CompletionPct)},
		{"Municipio más visitado", s.TopRegion.String()},
		{"Parroquia más visitada", s.TopSubRegion.String()},
		{"Visitas activas", strconv.Itoa(s.Active)},
	}
}

func signatures(opts Options) []string {
	if len(opts.Signatures) == 0 {
		return []string{"Coordinación", "Dirección Administrativa"}
	}
	return opts.Signatures
}

func joinMatters(matters []string) string {
	return strings.Join(matters, ", ")
}
