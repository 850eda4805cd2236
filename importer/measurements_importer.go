package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"mesdiag/database"
)

// MeasurementStore доступ импортера к таблице измерений
type MeasurementStore interface {
	InsertBatch(b database.Batch) error
	InsertMeasurements(measurements []database.Measurement) error
}

// Форматы времени унаследованной MES выгрузки
var legacyTimeLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ImportMeasurementsCSV загружает выгрузку измерений из унаследованной MES.
// Файл в кодировке Windows-1251, разделитель — точка с запятой, десятичная запятая.
// Ожидаемые колонки: batch_id, node_code, param_code, value, timestamp, source.
func ImportMeasurementsCSV(store MeasurementStore, path string) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open measurements file %s: %w", path, err)
	}
	defer file.Close()

	decoder := charmap.Windows1251.NewDecoder()
	return ImportMeasurements(store, decoder.Reader(file))
}

// ImportMeasurements загружает измерения из уже декодированного потока
func ImportMeasurements(store MeasurementStore, r io.Reader) (*ImportResult, error) {
	result := &ImportResult{Started: time.Now()}

	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read measurements header: %w", err)
	}
	columns := columnIndex(header)

	for _, required := range []string{"batch_id", "node_code", "param_code", "value", "timestamp"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("measurements file lacks required column %q", required)
		}
	}

	seenBatches := make(map[string]struct{})
	var pending []database.Measurement

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

		value, err := parseLegacyFloat(field("value"))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: значение: %v", line, err))
			continue
		}

		timestamp, err := parseLegacyTime(field("timestamp"))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: время: %v", line, err))
			continue
		}

		source := field("source")
		if source == "" {
			source = database.SourceHistory
		}

		batchID := field("batch_id")
		if _, ok := seenBatches[batchID]; !ok && batchID != "" {
			seenBatches[batchID] = struct{}{}
			// Партия из выгрузки считается завершенной
			if err := store.InsertBatch(database.Batch{
				ID: batchID, StartTime: timestamp, Status: database.BatchCompleted,
			}); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: партия %s: %v", line, batchID, err))
				continue
			}
		}

		pending = append(pending, database.Measurement{
			BatchID:    batchID,
			NodeCode:   field("node_code"),
			ParamCode:  field("param_code"),
			Value:      value,
			Timestamp:  timestamp,
			SourceType: source,
		})
		result.Success++
	}

	if len(pending) > 0 {
		if err := store.InsertMeasurements(pending); err != nil {
			return nil, fmt.Errorf("failed to insert measurements: %w", err)
		}
	}

	result.Completed = time.Now()
	result.Duration = result.Completed.Sub(result.Started)

	log.Printf("Measurements import completed: %d/%d inserted, %d errors",
		result.Success, result.Total, len(result.Errors))

	return result, nil
}

// parseLegacyFloat разбирает число с десятичной запятой
func parseLegacyFloat(v string) (float64, error) {
	if v == "" {
		return 0, fmt.Errorf("пустое значение")
	}
	return strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
}

// parseLegacyTime перебирает известные форматы времени выгрузки
func parseLegacyTime(v string) (time.Time, error) {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("нераспознанный формат времени %q", v)
}
