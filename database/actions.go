package database

import (
	"database/sql"
	"fmt"
)

// InsertActionDef добавляет контрмеру в библиотеку.
// Возвращает false, если контрмера с таким кодом уже существует.
func (db *ProcessDB) InsertActionDef(a ActionDef) (bool, error) {
	var exists int
	err := db.conn.QueryRow(`SELECT COUNT(1) FROM action_defs WHERE code = ?`, a.Code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check action %s: %w", a.Code, err)
	}
	if exists > 0 {
		return false, nil
	}

	_, err = db.conn.Exec(`
		INSERT INTO action_defs (code, name, risk_code, target_role, instruction_template,
			priority, category, estimated_impact, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Code, a.Name, a.RiskCode, a.TargetRole, a.InstructionTemplate,
		a.Priority, a.Category, a.EstimatedImpact, boolToInt(a.Active))
	if err != nil {
		return false, fmt.Errorf("failed to insert action %s: %w", a.Code, err)
	}

	return true, nil
}

// ActiveActionsByRisk возвращает активные контрмеры для кода риска
func (db *ProcessDB) ActiveActionsByRisk(riskCode string) ([]ActionDef, error) {
	rows, err := db.conn.Query(`
		SELECT id, code, name, risk_code, target_role, instruction_template,
			priority, category, estimated_impact, active
		FROM action_defs WHERE risk_code = ? AND active = 1
		ORDER BY code`, riskCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions for risk %s: %w", riskCode, err)
	}
	defer rows.Close()

	return scanActionDefs(rows)
}

// AllActionDefs возвращает всю библиотеку контрмер
func (db *ProcessDB) AllActionDefs() ([]ActionDef, error) {
	rows, err := db.conn.Query(`
		SELECT id, code, name, risk_code, target_role, instruction_template,
			priority, category, estimated_impact, active
		FROM action_defs ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	return scanActionDefs(rows)
}

func scanActionDefs(rows *sql.Rows) ([]ActionDef, error) {
	var actions []ActionDef
	for rows.Next() {
		var a ActionDef
		var active int
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.RiskCode, &a.TargetRole,
			&a.InstructionTemplate, &a.Priority, &a.Category, &a.EstimatedImpact, &active); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		a.Active = active != 0
		actions = append(actions, a)
	}

	return actions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
