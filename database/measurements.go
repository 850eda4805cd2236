package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// InsertBatch добавляет партию. Повторная вставка той же партии игнорируется.
func (db *ProcessDB) InsertBatch(b Batch) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO data_batches (id, product_name, operator_id, start_time, status)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.ProductName, b.OperatorID, formatTimestamp(b.StartTime), b.Status)
	if err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", b.ID, err)
	}
	return nil
}

// GetBatch возвращает партию по номеру или nil, если партии нет
func (db *ProcessDB) GetBatch(batchID string) (*Batch, error) {
	row := db.conn.QueryRow(`
		SELECT id, product_name, operator_id, start_time, status
		FROM data_batches WHERE id = ?`, batchID)

	var b Batch
	var startTime string
	err := row.Scan(&b.ID, &b.ProductName, &b.OperatorID, &startTime, &b.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch %s: %w", batchID, err)
	}

	b.StartTime = parseTimestamp(startTime)
	return &b, nil
}

// BatchesByOperator возвращает партии оператора, опционально ограниченные
// полуоткрытым интервалом [from, to) по времени начала партии
func (db *ProcessDB) BatchesByOperator(operatorID string, from, to *time.Time) ([]Batch, error) {
	query := `
		SELECT id, product_name, operator_id, start_time, status
		FROM data_batches WHERE operator_id = ?`
	args := []any{operatorID}

	if from != nil {
		query += ` AND start_time >= ?`
		args = append(args, formatTimestamp(*from))
	}
	if to != nil {
		query += ` AND start_time < ?`
		args = append(args, formatTimestamp(*to))
	}
	query += ` ORDER BY start_time`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches by operator %s: %w", operatorID, err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var startTime string
		if err := rows.Scan(&b.ID, &b.ProductName, &b.OperatorID, &startTime, &b.Status); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		b.StartTime = parseTimestamp(startTime)
		batches = append(batches, b)
	}

	return batches, rows.Err()
}

// AllBatches возвращает все партии
func (db *ProcessDB) AllBatches() ([]Batch, error) {
	rows, err := db.conn.Query(`
		SELECT id, product_name, operator_id, start_time, status
		FROM data_batches ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var startTime string
		if err := rows.Scan(&b.ID, &b.ProductName, &b.OperatorID, &startTime, &b.Status); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		b.StartTime = parseTimestamp(startTime)
		batches = append(batches, b)
	}

	return batches, rows.Err()
}

// InsertMeasurement добавляет одно измерение
func (db *ProcessDB) InsertMeasurement(m Measurement) error {
	_, err := db.conn.Exec(`
		INSERT INTO data_measurements (batch_id, node_code, param_code, value, timestamp, source_type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.BatchID, m.NodeCode, m.ParamCode, m.Value, formatTimestamp(m.Timestamp), m.SourceType)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// InsertMeasurements добавляет пачку измерений в одной транзакции
func (db *ProcessDB) InsertMeasurements(measurements []Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO data_measurements (batch_id, node_code, param_code, value, timestamp, source_type)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range measurements {
		if _, err := stmt.Exec(m.BatchID, m.NodeCode, m.ParamCode, m.Value,
			formatTimestamp(m.Timestamp), m.SourceType); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert measurement: %w", err)
		}
	}

	return tx.Commit()
}

// MeasurementsByBatchIDs возвращает все измерения указанных партий
func (db *ProcessDB) MeasurementsByBatchIDs(batchIDs []string) ([]Measurement, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(batchIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(batchIDs))
	for i, id := range batchIDs {
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, batch_id, node_code, param_code, value, timestamp, source_type
		FROM data_measurements WHERE batch_id IN (%s)
		ORDER BY timestamp`, placeholders)

	return db.queryMeasurements(query, args...)
}

// MeasurementsByNode возвращает измерения узла начиная с момента cutoff,
// опционально ограниченные списком партий
func (db *ProcessDB) MeasurementsByNode(nodeCode string, cutoff time.Time, batchIDs []string) ([]Measurement, error) {
	query := `
		SELECT id, batch_id, node_code, param_code, value, timestamp, source_type
		FROM data_measurements WHERE node_code = ? AND timestamp >= ?`
	args := []any{nodeCode, formatTimestamp(cutoff)}

	if len(batchIDs) > 0 {
		placeholders := strings.Repeat("?,", len(batchIDs))
		query += fmt.Sprintf(` AND batch_id IN (%s)`, placeholders[:len(placeholders)-1])
		for _, id := range batchIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY timestamp`

	return db.queryMeasurements(query, args...)
}

// MeasurementsByNodesBetween возвращает измерения перечисленных узлов
// в полуоткрытом интервале [from, to)
func (db *ProcessDB) MeasurementsByNodesBetween(nodeCodes []string, from, to time.Time) ([]Measurement, error) {
	if len(nodeCodes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(nodeCodes))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(nodeCodes)+2)
	for _, code := range nodeCodes {
		args = append(args, code)
	}
	args = append(args, formatTimestamp(from), formatTimestamp(to))

	query := fmt.Sprintf(`
		SELECT id, batch_id, node_code, param_code, value, timestamp, source_type
		FROM data_measurements
		WHERE node_code IN (%s) AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`, placeholders)

	return db.queryMeasurements(query, args...)
}

// MeasurementsBetween возвращает все измерения в полуоткрытом интервале [from, to)
func (db *ProcessDB) MeasurementsBetween(from, to time.Time) ([]Measurement, error) {
	return db.queryMeasurements(`
		SELECT id, batch_id, node_code, param_code, value, timestamp, source_type
		FROM data_measurements WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`,
		formatTimestamp(from), formatTimestamp(to))
}

// BatchIDsByNodeSince возвращает номера партий, затронувших узел после cutoff
func (db *ProcessDB) BatchIDsByNodeSince(nodeCode string, cutoff time.Time) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT batch_id FROM data_measurements
		WHERE node_code = ? AND timestamp >= ?
		ORDER BY batch_id`,
		nodeCode, formatTimestamp(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query batch ids for node %s: %w", nodeCode, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan batch id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *ProcessDB) queryMeasurements(query string, args ...any) ([]Measurement, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var measurements []Measurement
	for rows.Next() {
		var m Measurement
		var ts string
		if err := rows.Scan(&m.ID, &m.BatchID, &m.NodeCode, &m.ParamCode, &m.Value, &ts, &m.SourceType); err != nil {
			return nil, fmt.Errorf("failed to scan measurement row: %w", err)
		}
		m.Timestamp = parseTimestamp(ts)
		measurements = append(measurements, m)
	}

	return measurements, rows.Err()
}
