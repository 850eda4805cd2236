package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SaveInstructions атомарно сохраняет пачку указаний.
// Любой сбой откатывает всю пачку целиком и возвращает PersistenceError.
func (db *ProcessDB) SaveInstructions(instructions []DailyInstruction) error {
	if len(instructions) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return &PersistenceError{Op: "begin", Err: err}
	}

	stmt, err := tx.Prepare(`
		INSERT INTO daily_instructions (target_date, role, content, priority, evidence,
			action_code, batch_id, node_code, param_code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	now := formatTimestamp(time.Now())

	for _, inst := range instructions {
		evidence, err := json.Marshal(inst.Evidence)
		if err != nil {
			tx.Rollback()
			return &PersistenceError{Op: "marshal evidence", Err: err}
		}

		status := inst.Status
		if status == "" {
			status = InstructionPending
		}

		if _, err := stmt.Exec(inst.TargetDate, inst.Role, inst.Content, inst.Priority,
			string(evidence), inst.ActionCode, inst.BatchID, inst.NodeCode, inst.ParamCode,
			status, now); err != nil {
			tx.Rollback()
			return &PersistenceError{Op: "insert", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	return nil
}

// InstructionsByRole возвращает указания роли за дату.
// status поддерживает список через запятую: "Pending,Read".
func (db *ProcessDB) InstructionsByRole(role, targetDate, status string) ([]DailyInstruction, error) {
	query := `
		SELECT id, target_date, role, content, priority, evidence, action_code,
			batch_id, node_code, param_code, status, created_at, read_at, done_at, feedback
		FROM daily_instructions WHERE role = ? AND target_date = ?`
	args := []any{role, targetDate}

	if status != "" {
		statuses := strings.Split(status, ",")
		placeholders := make([]string, 0, len(statuses))
		for _, s := range statuses {
			placeholders = append(placeholders, "?")
			args = append(args, strings.TrimSpace(s))
		}
		query += fmt.Sprintf(` AND status IN (%s)`, strings.Join(placeholders, ","))
	}

	query += `
		ORDER BY CASE priority
			WHEN 'CRITICAL' THEN 0
			WHEN 'HIGH' THEN 1
			WHEN 'MEDIUM' THEN 2
			ELSE 3
		END, created_at DESC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instructions for role %s: %w", role, err)
	}
	defer rows.Close()

	return scanInstructions(rows)
}

// GetInstruction возвращает указание по идентификатору или nil
func (db *ProcessDB) GetInstruction(id int) (*DailyInstruction, error) {
	rows, err := db.conn.Query(`
		SELECT id, target_date, role, content, priority, evidence, action_code,
			batch_id, node_code, param_code, status, created_at, read_at, done_at, feedback
		FROM daily_instructions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruction %d: %w", id, err)
	}
	defer rows.Close()

	instructions, err := scanInstructions(rows)
	if err != nil {
		return nil, err
	}
	if len(instructions) == 0 {
		return nil, nil
	}

	return &instructions[0], nil
}

// MarkInstructionRead переводит указание в статус Read
func (db *ProcessDB) MarkInstructionRead(id int) error {
	result, err := db.conn.Exec(`
		UPDATE daily_instructions SET status = ?, read_at = ?
		WHERE id = ?`,
		InstructionRead, formatTimestamp(time.Now()), id)
	if err != nil {
		return &PersistenceError{Op: "mark read", Err: err}
	}

	return checkInstructionUpdated(result, id)
}

// MarkInstructionDone переводит указание в статус Done с обратной связью исполнителя
func (db *ProcessDB) MarkInstructionDone(id int, feedback string) error {
	result, err := db.conn.Exec(`
		UPDATE daily_instructions SET status = ?, done_at = ?, feedback = ?
		WHERE id = ?`,
		InstructionDone, formatTimestamp(time.Now()), feedback, id)
	if err != nil {
		return &PersistenceError{Op: "mark done", Err: err}
	}

	return checkInstructionUpdated(result, id)
}

// ResetInstructions удаляет указания за дату. Единственный способ удаления — явный сброс.
func (db *ProcessDB) ResetInstructions(targetDate string) (int, error) {
	result, err := db.conn.Exec(`DELETE FROM daily_instructions WHERE target_date = ?`, targetDate)
	if err != nil {
		return 0, &PersistenceError{Op: "reset", Err: err}
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func checkInstructionUpdated(result sql.Result, id int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return &PersistenceError{Op: "rows affected", Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("указание %d не найдено", id)
	}
	return nil
}

func scanInstructions(rows *sql.Rows) ([]DailyInstruction, error) {
	var instructions []DailyInstruction
	for rows.Next() {
		var inst DailyInstruction
		var evidence, createdAt, readAt, doneAt string
		if err := rows.Scan(&inst.ID, &inst.TargetDate, &inst.Role, &inst.Content,
			&inst.Priority, &evidence, &inst.ActionCode, &inst.BatchID, &inst.NodeCode,
			&inst.ParamCode, &inst.Status, &createdAt, &readAt, &doneAt, &inst.Feedback); err != nil {
			return nil, fmt.Errorf("failed to scan instruction row: %w", err)
		}

		if evidence != "" {
			if err := json.Unmarshal([]byte(evidence), &inst.Evidence); err != nil {
				// Испорченный снимок доказательств не делает указание нечитаемым
				inst.Evidence = map[string]any{"_raw": evidence}
			}
		}

		inst.CreatedAt = parseTimestamp(createdAt)
		inst.ReadAt = parseTimestamp(readAt)
		inst.DoneAt = parseTimestamp(doneAt)
		instructions = append(instructions, inst)
	}

	return instructions, rows.Err()
}
