package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"visitor-registry/reports"
)

const (
	pageMargin  = 40.0
	topMargin   = 60.0
	rowHeight   = 18.0
	bodyFont    = "Helvetica"
	contentWide = 532.0 // letter width (612pt) minus both margins
)

type rgb struct{ r, g, b int }

var (
	gridColor      = rgb{0xD6, 0xDC, 0xE6}
	keyColumnColor = rgb{0xF3, 0xF6, 0xFA}
	categoryHeader = rgb{0x2C, 0x78, 0x57}
	monthlyHeader  = rgb{0x2B, 0x6C, 0xE4}
	referralHeader = rgb{0x8E, 0x44, 0xAD}
)

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// PDF writes the letter-size report: a cover page followed by the statistics,
// category, monthly and referral tables and the signature blocks.
func PDF(w io.Writer, b reports.Bundle, opts Options) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pw := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetMargins(pageMargin, topMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-30)
		pdf.SetFont(bodyFont, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, pw.tr(fmt.Sprintf("Página %d de {nb}", pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pw.cover(b, opts)

	pdf.AddPage()
	pw.heading("Estadísticas Principales")
	pw.keyValueTable(keyFigures(b))

	pw.heading("Distribución por Trámite")
	categoryRows := make([][]string, 0, len(b.Categories.Rows))
	for _, r := range b.Categories.Rows {
		categoryRows = append(categoryRows, []string{r.Label, strconv.Itoa(r.Count), strconv.Itoa(r.Completed), formatPct(r.CompletionPct)})
	}
	pw.table([]string{"Trámite", "Cantidad", "Completados", "% Completados"}, []float64{292, 80, 80, 80}, categoryRows, categoryHeader)

	pw.heading("Visitas Mensuales")
	monthRows := make([][]string, 0, len(b.Monthly.Rows))
	for _, r := range b.Monthly.Rows {
		monthRows = append(monthRows, []string{fmt.Sprintf("%s %d", r.Label, r.Year), strconv.Itoa(r.Total), strconv.Itoa(r.Completed)})
	}
	pw.table([]string{"Mes", "Visitas", "Completados"}, []float64{212, 160, 160}, monthRows, monthlyHeader)

	pw.heading("Referidos por Institución")
	ref := b.Referrals
	pw.paragraph(fmt.Sprintf("Visitantes en el período: %d. Referidos: %d (%s).", ref.Total, ref.Referred, formatPct(ref.ReferredPct)))
	referralRows := make([][]string, 0, len(ref.Institutions))
	for _, r := range ref.Institutions {
		referralRows = append(referralRows, []string{r.Label, strconv.Itoa(r.Referred), formatPct(r.Pct), joinMatters(r.TopMatters)})
	}
	pw.table([]string{"Institución", "Referidos", "%", "Trámites comunes"}, []float64{172, 70, 60, 230}, referralRows, referralHeader)

	pw.signatures(signatures(opts))
	pdf.Ln(18)
	pdf.SetFont(bodyFont, "", 10)
	pdf.CellFormat(0, 14, "Fin del reporte", "", 1, "L", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func (pw *pdfWriter) cover(b reports.Bundle, opts Options) {
	pdf := pw.pdf
	pdf.AddPage()
	pdf.Ln(40)
	pdf.SetFont(bodyFont, "B", 14)
	pdf.SetTextColor(0, 0, 0)
	for _, line := range opts.Letterhead {
		pdf.CellFormat(0, 18, pw.tr(line), "", 1, "C", false, 0, "")
		pdf.Ln(6)
	}

	pdf.Ln(12)
	pdf.SetFont(bodyFont, "", 11)
	pdf.CellFormat(0, 14, pw.tr("Reporte de Visitas - Período: "+b.Period.Label()), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.SetFont(bodyFont, "", 9)
	pdf.CellFormat(0, 12, pw.tr("Generado: "+b.GeneratedAt.Format(generatedLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(0, 12, pw.tr("Generado por: "+author(b)), "", 1, "C", false, 0, "")
}

func (pw *pdfWriter) heading(text string) {
	pw.pdf.Ln(8)
	pw.pdf.SetFont(bodyFont, "B", 14)
	pw.pdf.SetTextColor(0, 0, 0)
	pw.pdf.CellFormat(0, 18, pw.tr(text), "", 1, "L", false, 0, "")
	pw.pdf.Ln(6)
}

func (pw *pdfWriter) paragraph(text string) {
	pw.pdf.SetFont(bodyFont, "", 10)
	pw.pdf.MultiCell(0, 14, pw.tr(text), "", "L", false)
	pw.pdf.Ln(4)
}

func (pw *pdfWriter) keyValueTable(rows [][2]string) {
	pdf := pw.pdf
	pdf.SetDrawColor(gridColor.r, gridColor.g, gridColor.b)
	for _, row := range rows {
		pdf.SetFillColor(keyColumnColor.r, keyColumnColor.g, keyColumnColor.b)
		pdf.SetFont(bodyFont, "B", 10)
		pdf.CellFormat(240, rowHeight+4, pw.tr(row[0]), "1", 0, "L", true, 0, "")
		pdf.SetFont(bodyFont, "", 10)
		pdf.CellFormat(contentWide-240, rowHeight+4, pw.tr(row[1]), "1", 1, "L", false, 0, "")
	}
}

// table draws a header row in the given color and one line per row; an empty
// table gets a single "No hay datos" line.
func (pw *pdfWriter) table(header []string, widths []float64, rows [][]string, color rgb) {
	pdf := pw.pdf
	pdf.SetDrawColor(gridColor.r, gridColor.g, gridColor.b)
	pdf.SetFillColor(color.r, color.g, color.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(bodyFont, "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], rowHeight, pw.tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(bodyFont, "", 9)
	if len(rows) == 0 {
		rows = [][]string{append([]string{"No hay datos"}, make([]string, len(header)-1)...)}
	}
	for _, row := range rows {
		for i, cell := range row {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], rowHeight, pw.tr(fit(pdf, cell, widths[i])), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(12)
}

func (pw *pdfWriter) signatures(titles []string) {
	pdf := pw.pdf
	pdf.Ln(36)
	width := contentWide / float64(len(titles))
	pdf.SetFont(bodyFont, "", 11)
	for range titles {
		pdf.CellFormat(width, 16, signatureLine, "", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(bodyFont, "B", 10)
	for _, title := range titles {
		pdf.CellFormat(width, 14, pw.tr(title), "", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}

// fit truncates text with an ellipsis so it stays inside a cell of the given width.
func fit(pdf *fpdf.Fpdf, text string, width float64) string {
	limit := width - 6
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
