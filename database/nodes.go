package database

import (
	"database/sql"
	"fmt"
)

// InsertProcessNode добавляет узел процесса. Повторная вставка по коду игнорируется.
func (db *ProcessDB) InsertProcessNode(n ProcessNode) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO meta_process_nodes (code, name, parent_code, node_type)
		VALUES (?, ?, ?, ?)`,
		n.Code, n.Name, n.ParentCode, n.NodeType)
	if err != nil {
		return fmt.Errorf("failed to insert process node %s: %w", n.Code, err)
	}
	return nil
}

// GetProcessNode возвращает узел по коду или nil, если узла нет
func (db *ProcessDB) GetProcessNode(code string) (*ProcessNode, error) {
	row := db.conn.QueryRow(`
		SELECT id, code, name, parent_code, node_type
		FROM meta_process_nodes WHERE code = ?`, code)

	var n ProcessNode
	err := row.Scan(&n.ID, &n.Code, &n.Name, &n.ParentCode, &n.NodeType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query process node %s: %w", code, err)
	}

	return &n, nil
}

// ChildNodeCodes возвращает коды дочерних узлов указанного блока
func (db *ProcessDB) ChildNodeCodes(parentCode string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT code FROM meta_process_nodes
		WHERE parent_code = ? ORDER BY code`, parentCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query child nodes of %s: %w", parentCode, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan node code: %w", err)
		}
		codes = append(codes, code)
	}

	return codes, rows.Err()
}

// NodesByType возвращает все узлы указанного типа (Block или Unit)
func (db *ProcessDB) NodesByType(nodeType string) ([]ProcessNode, error) {
	rows, err := db.conn.Query(`
		SELECT id, code, name, parent_code, node_type
		FROM meta_process_nodes WHERE node_type = ? ORDER BY code`, nodeType)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by type %s: %w", nodeType, err)
	}
	defer rows.Close()

	var nodes []ProcessNode
	for rows.Next() {
		var n ProcessNode
		if err := rows.Scan(&n.ID, &n.Code, &n.Name, &n.ParentCode, &n.NodeType); err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}

	return nodes, rows.Err()
}

// InsertParameterSpec добавляет определение параметра.
// Повторная вставка по паре (узел, код) игнорируется.
func (db *ProcessDB) InsertParameterSpec(p ParameterSpec) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO meta_parameters (node_code, code, name, unit, role, usl, lsl, target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.NodeCode, p.Code, p.Name, p.Unit, p.Role, p.USL, p.LSL, p.Target)
	if err != nil {
		return fmt.Errorf("failed to insert parameter %s.%s: %w", p.NodeCode, p.Code, err)
	}
	return nil
}

// GetParameterSpec возвращает спецификацию параметра или nil, если определения нет.
// Отсутствие спецификации — нормальная ситуация: такой параметр пропускается диагностикой.
func (db *ProcessDB) GetParameterSpec(nodeCode, paramCode string) (*ParameterSpec, error) {
	row := db.conn.QueryRow(`
		SELECT node_code, code, name, unit, role, usl, lsl, target
		FROM meta_parameters WHERE node_code = ? AND code = ?`,
		nodeCode, paramCode)

	var p ParameterSpec
	var usl, lsl, target sql.NullFloat64
	err := row.Scan(&p.NodeCode, &p.Code, &p.Name, &p.Unit, &p.Role, &usl, &lsl, &target)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter %s.%s: %w", nodeCode, paramCode, err)
	}

	p.USL = nullFloat(usl)
	p.LSL = nullFloat(lsl)
	p.Target = nullFloat(target)
	return &p, nil
}
