package diagnosis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"mesdiag/database"
	"mesdiag/decision"
)

func exportReport() *Report {
	return &Report{
		AnalysisID:    "batch_20260310T120000_ab12cd34",
		Dimension:     "batch",
		OverallStatus: decision.StatusCritical,
		Success:       true,
		CriticalIssues: []Finding{{
			Type: FindingParameterIssue, Severity: SeverityCritical,
			NodeCode: "E04", ParamCode: "temp", BatchID: "B001",
			Description: "Cpk ниже критического порога",
		}},
		Warnings: []Finding{{
			Type: FindingParameterIssue, Severity: SeverityWarning,
			NodeCode: "P01", ParamCode: "moisture", BatchID: "B001",
			Description: "влажность у верхней границы",
		}},
		Recommendations: []decision.Recommendation{{
			Action: "Откалибровать датчик температуры", Priority: "HIGH",
			EstimatedImpact: "Cpk +0.3", Effort: "LOW", PriorityScore: 140,
		}},
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")

	if err := NewExporter().Export(exportReport(), path, FormatCSV); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "Type,Severity,Node,Parameter,Batch,Description") {
		t.Errorf("header row missing: %q", content)
	}
	if !strings.Contains(content, "E04,temp,B001") {
		t.Errorf("critical finding missing: %q", content)
	}
	if !strings.Contains(content, "P01,moisture,B001") {
		t.Errorf("warning finding missing: %q", content)
	}
}

func TestExportJSONAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	report := exportReport()

	jsonPath := filepath.Join(dir, "report.json")
	if err := NewExporter().Export(report, jsonPath, FormatJSON); err != nil {
		t.Fatalf("Export json: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), report.AnalysisID) {
		t.Error("json export lacks analysis id")
	}

	mdPath := filepath.Join(dir, "report.md")
	if err := NewExporter().Export(report, mdPath, FormatMarkdown); err != nil {
		t.Fatalf("Export markdown: %v", err)
	}
	data, err = os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "# Отчет диагностики") {
		t.Error("markdown export lacks heading")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	err := NewExporter().Export(exportReport(), filepath.Join(t.TempDir(), "x"), ExportFormat("pdf"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExportExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	if err := NewExporter().Export(exportReport(), path, FormatExcel); err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	node, err := f.GetCellValue("Findings", "C2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if node != "E04" {
		t.Errorf("Findings!C2 = %q, want E04", node)
	}

	action, err := f.GetCellValue("Recommendations", "B2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if action != "Откалибровать датчик температуры" {
		t.Errorf("Recommendations!B2 = %q", action)
	}
}

func TestExportInstructions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instructions.xlsx")

	instructions := []database.DailyInstruction{
		{
			TargetDate: "2026-03-10", Role: "Operator", Priority: "CRITICAL",
			Status: database.InstructionPending, NodeCode: "E04", BatchID: "B001",
			Content: "Перевести клапан с 50 на 45",
		},
		{
			TargetDate: "2026-03-10", Role: "QA", Priority: "HIGH",
			Status: database.InstructionPending, NodeCode: "P01", BatchID: "B002",
			Content: "Проверить влагомер",
		},
	}

	if err := NewExporter().ExportInstructions(instructions, path); err != nil {
		t.Fatalf("ExportInstructions: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Instructions")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][1] != "Operator" || rows[2][1] != "QA" {
		t.Errorf("roles = %q/%q", rows[1][1], rows[2][1])
	}
	if !strings.Contains(rows[1][6], "клапан") {
		t.Errorf("content = %q", rows[1][6])
	}
}
