package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"mesdiag/database"
)

// ActionStore доступ импортера к библиотеке контрмер
type ActionStore interface {
	InsertActionDef(a database.ActionDef) (bool, error)
}

// ImportActionsCSV загружает библиотеку контрмер из CSV файла.
// Ожидаемые колонки: code, name, risk_code, target_role, priority, category,
// estimated_impact, active, template. Существующие коды пропускаются.
func ImportActionsCSV(store ActionStore, path string) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open actions file %s: %w", path, err)
	}
	defer file.Close()

	return ImportActions(store, file)
}

// ImportActions загружает контрмеры из потока CSV
func ImportActions(store ActionStore, r io.Reader) (*ImportResult, error) {
	result := &ImportResult{Started: time.Now()}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read actions header: %w", err)
	}
	columns := columnIndex(header)

	for _, required := range []string{"code", "risk_code", "target_role", "template"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("actions file lacks required column %q", required)
		}
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", line, err))
			continue
		}

		result.Total++

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		action := database.ActionDef{
			Code:                field("code"),
			Name:                field("name"),
			RiskCode:            field("risk_code"),
			TargetRole:          field("target_role"),
			InstructionTemplate: field("template"),
			Priority:            field("priority"),
			Category:            field("category"),
			EstimatedImpact:     field("estimated_impact"),
			Active:              parseActive(field("active")),
		}

		if action.Code == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: пустой код контрмеры", line))
			continue
		}

		inserted, err := store.InsertActionDef(action)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d (%s): %v", line, action.Code, err))
			continue
		}
		if inserted {
			result.Success++
		} else {
			result.Skipped++
		}
	}

	result.Completed = time.Now()
	result.Duration = result.Completed.Sub(result.Started)

	log.Printf("Actions import completed: %d/%d inserted, %d skipped, %d errors",
		result.Success, result.Total, result.Skipped, len(result.Errors))

	return result, nil
}

// columnIndex строит отображение имени колонки на позицию
func columnIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return columns
}

// parseActive трактует пустое значение как активную контрмеру
func parseActive(v string) bool {
	switch strings.ToLower(v) {
	case "", "1", "true", "yes", "да":
		return true
	default:
		return false
	}
}
