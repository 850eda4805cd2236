package database

import (
	"fmt"
	"strings"
)

// InsertRiskNode добавляет узел графа рисков. Повторная вставка по коду игнорируется.
func (db *ProcessDB) InsertRiskNode(r RiskNode) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO meta_risk_nodes (code, name, category, base_probability, match_keyword, weight)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Code, r.Name, r.Category, r.BaseProbability, strings.ToLower(r.MatchKeyword), r.Weight)
	if err != nil {
		return fmt.Errorf("failed to insert risk node %s: %w", r.Code, err)
	}
	return nil
}

// InsertRiskEdge добавляет причинную связь между рисками
func (db *ProcessDB) InsertRiskEdge(e RiskEdge) error {
	_, err := db.conn.Exec(`
		INSERT INTO meta_risk_edges (source_code, target_code, weight)
		VALUES (?, ?, ?)`,
		e.SourceCode, e.TargetCode, e.Weight)
	if err != nil {
		return fmt.Errorf("failed to insert risk edge %s->%s: %w", e.SourceCode, e.TargetCode, err)
	}
	return nil
}

// RelatedRisks возвращает риски, релевантные паре (узел, параметр).
// Сопоставление идет по подстроке match_keyword в коде параметра;
// правила сопоставления — данные графа, а не логика приложения.
func (db *ProcessDB) RelatedRisks(nodeCode, paramCode string) ([]RiskNode, error) {
	rows, err := db.conn.Query(`
		SELECT id, code, name, category, base_probability, match_keyword, weight
		FROM meta_risk_nodes
		ORDER BY base_probability * weight DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk nodes: %w", err)
	}
	defer rows.Close()

	param := strings.ToLower(paramCode)

	var risks []RiskNode
	for rows.Next() {
		var r RiskNode
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Category, &r.BaseProbability,
			&r.MatchKeyword, &r.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan risk node row: %w", err)
		}

		// Пустое ключевое слово означает общий риск узла: подходит любому параметру
		if r.MatchKeyword == "" || strings.Contains(param, r.MatchKeyword) {
			// Код риска в графе может быть шаблоном с местом для узла
			r.Code = strings.ReplaceAll(r.Code, "{node}", nodeCode)
			r.Name = strings.ReplaceAll(r.Name, "{node}", nodeCode)
			risks = append(risks, r)
		}
	}

	return risks, rows.Err()
}

// RiskGraphCounts возвращает размеры графа рисков (для health-эндпоинта и импортера)
func (db *ProcessDB) RiskGraphCounts() (nodes, edges int, err error) {
	if err = db.conn.QueryRow(`SELECT COUNT(1) FROM meta_risk_nodes`).Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("failed to count risk nodes: %w", err)
	}
	if err = db.conn.QueryRow(`SELECT COUNT(1) FROM meta_risk_edges`).Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("failed to count risk edges: %w", err)
	}
	return nodes, edges, nil
}
