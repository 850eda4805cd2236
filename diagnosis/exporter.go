package diagnosis

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"mesdiag/database"
)

// ExportFormat формат экспорта отчета
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatCSV      ExportFormat = "csv"
	FormatExcel    ExportFormat = "excel"
	FormatMarkdown ExportFormat = "markdown"
)

// Exporter экспортер диагностических отчетов
type Exporter struct{}

// NewExporter создает экспортер отчетов
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export записывает отчет в файл в указанном формате
func (e *Exporter) Export(report *Report, filename string, format ExportFormat) error {
	switch format {
	case FormatJSON:
		return e.exportJSON(report, filename)
	case FormatCSV:
		return e.exportCSV(report, filename)
	case FormatExcel:
		return e.exportExcel(report, filename)
	case FormatMarkdown:
		return os.WriteFile(filename, []byte(report.ToMarkdown()), 0o644)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func (e *Exporter) exportJSON(report *Report, filename string) error {
	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}

// exportCSV выгружает плоский список находок отчета
func (e *Exporter) exportCSV(report *Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{"Type", "Severity", "Node", "Parameter", "Batch", "Description"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	writeFinding := func(f Finding) error {
		return writer.Write([]string{
			f.Type, f.Severity, f.NodeCode, f.ParamCode, f.BatchID, f.Description,
		})
	}

	for _, group := range [][]Finding{report.CriticalIssues, report.Warnings, report.Observations} {
		for _, f := range group {
			if err := writeFinding(f); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	return nil
}

// exportExcel выгружает отчет в книгу с листами находок и рекомендаций
func (e *Exporter) exportExcel(report *Report, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sheetName := "Findings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"Type", "Severity", "Node", "Parameter", "Batch", "Description"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 2
	for _, group := range [][]Finding{report.CriticalIssues, report.Warnings, report.Observations} {
		for _, finding := range group {
			f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), finding.Type)
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), finding.Severity)
			f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), finding.NodeCode)
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), finding.ParamCode)
			f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), finding.BatchID)
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), finding.Description)
			row++
		}
	}

	recSheet := "Recommendations"
	if _, err := f.NewSheet(recSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	recHeaders := []string{"Priority", "Action", "Estimated Impact", "Effort", "Score"}
	for i, header := range recHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(recSheet, cell, header)
		f.SetCellStyle(recSheet, cell, cell, headerStyle)
	}

	for i, rec := range report.Recommendations {
		r := i + 2
		f.SetCellValue(recSheet, fmt.Sprintf("A%d", r), rec.Priority)
		f.SetCellValue(recSheet, fmt.Sprintf("B%d", r), rec.Action)
		f.SetCellValue(recSheet, fmt.Sprintf("C%d", r), rec.EstimatedImpact)
		f.SetCellValue(recSheet, fmt.Sprintf("D%d", r), rec.Effort)
		f.SetCellValue(recSheet, fmt.Sprintf("E%d", r), rec.PriorityScore)
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
		f.SetColWidth(recSheet, col, col, 22)
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	return nil
}

// ExportInstructions выгружает суточный журнал указаний в книгу Excel
func (e *Exporter) ExportInstructions(instructions []database.DailyInstruction, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sheetName := "Instructions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"Date", "Role", "Priority", "Status", "Node", "Batch", "Content"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, ins := range instructions {
		r := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", r), ins.TargetDate)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", r), ins.Role)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", r), ins.Priority)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", r), ins.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", r), ins.NodeCode)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", r), ins.BatchID)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", r), ins.Content)
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 20)
	}
	f.SetColWidth(sheetName, "G", "G", 60)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	return nil
}
