package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"visitor-registry/reports"
)

const (
	SheetSummary    = "Resumen"
	SheetCategories = "Trámites"
	SheetMonthly    = "Visitas Mensuales"
	SheetReferrals  = "Referidos"
	SheetMetadata   = "Metadata"
	SheetSignatures = "Firmas"
)

type workbook struct {
	f           *excelize.File
	headerStyle int
}

// Excel writes the report workbook. The category and referral sheets are only
// present when they have rows.
func Excel(w io.Writer, b reports.Bundle, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	wb := &workbook{f: f, headerStyle: headerStyle}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}

	s := b.Summary
	err = wb.writeSheet(SheetSummary,
		[]string{"Total Visitas", "Promedio Diario", "Trámite más Común", "Porcentaje Completados", "Municipio más Visitado", "Período Reporte"},
		[][]interface{}{{s.Total, s.AvgPerDay, categoryFact(s.TopCategory), formatPct(s.CompletionPct), s.TopRegion.String(), b.Period.Label()}},
		15)
	if err != nil {
		return err
	}

	if rows := b.Categories.Rows; len(rows) > 0 {
		data := make([][]interface{}, 0, len(rows))
		for _, r := range rows {
			data = append(data, []interface{}{r.Code, r.Label, r.Count, r.Completed, r.CompletionPct})
		}
		if err := wb.writeSheet(SheetCategories, []string{"Código", "Trámite", "Cantidad", "Completados", "% Completados"}, data, 12); err != nil {
			return err
		}
	}

	months := make([][]interface{}, 0, len(b.Monthly.Rows))
	for _, r := range b.Monthly.Rows {
		months = append(months, []interface{}{r.Label, r.Year, r.Total, r.Completed, r.CompletionPct})
	}
	if err := wb.writeSheet(SheetMonthly, []string{"Mes", "Año", "Visitas", "Completados", "% Completados"}, months, 12); err != nil {
		return err
	}

	if inst := b.Referrals.Institutions; len(inst) > 0 {
		data := make([][]interface{}, 0, len(inst))
		for _, r := range inst {
			data = append(data, []interface{}{r.Label, r.Code, r.Referred, r.Pct, joinMatters(r.TopMatters)})
		}
		if err := wb.writeSheet(SheetReferrals, []string{"Institución", "Código", "Referidos", "%", "Trámites comunes"}, data, 14); err != nil {
			return err
		}
	}

	err = wb.writeSheet(SheetMetadata,
		[]string{"Período", "Fecha Generación", "Generado por", "Total Registros"},
		[][]interface{}{{b.Period.Label(), b.GeneratedAt.Format(generatedLayout), author(b), len(b.Categories.Rows) + len(b.Monthly.Rows)}},
		15)
	if err != nil {
		return err
	}

	if err := wb.writeSignatures(signatures(opts)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// writeSheet creates (or reuses) a sheet with a bold header row followed by data.
// Columns are at least minWidth wide and grow with their header.
func (wb *workbook) writeSheet(name string, header []string, rows [][]interface{}, minWidth float64) error {
	f := wb.f
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(name, "A1", last, wb.headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", name, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, name, err)
		}
	}

	for i, h := range header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		width := float64(len([]rune(h)) + 6)
		if width < minWidth {
			width = minWidth
		}
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func (wb *workbook) writeSignatures(titles []string) error {
	f := wb.f
	if _, err := f.NewSheet(SheetSignatures); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetSignatures, err)
	}
	lines := make([]interface{}, len(titles))
	names := make([]interface{}, len(titles))
	for i, t := range titles {
		lines[i] = signatureLine
		names[i] = t
	}
	if err := f.SetSheetRow(SheetSignatures, "A1", &lines); err != nil {
		return fmt.Errorf("failed to write signature lines: %w", err)
	}
	if err := f.SetSheetRow(SheetSignatures, "A2", &names); err != nil {
		return fmt.Errorf("failed to write signature titles: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(titles))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	return f.SetColWidth(SheetSignatures, "A", last, 40)
}
