package database

import (
	"fmt"
	"strings"
)

// InitSchema создает таблицы и индексы, если их еще нет.
// Все выражения идемпотентны, повторный запуск безопасен.
func (db *ProcessDB) InitSchema() error {
	db.tableCreateMutex.Lock()
	defer db.tableCreateMutex.Unlock()

	statements := []string{
		// Справочник узлов процесса: Block (цех) -> Unit (аппарат)
		`CREATE TABLE IF NOT EXISTS meta_process_nodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			parent_code TEXT NOT NULL DEFAULT '',
			node_type TEXT NOT NULL DEFAULT 'Unit'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_process_nodes_parent ON meta_process_nodes(parent_code)`,

		// Определения технологических параметров со спецификациями
		`CREATE TABLE IF NOT EXISTS meta_parameters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_code TEXT NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'Control',
			usl REAL,
			lsl REAL,
			target REAL,
			UNIQUE(node_code, code)
		)`,

		// Узлы графа рисков: ключевое слово сопоставления хранится как данные
		`CREATE TABLE IF NOT EXISTS meta_risk_nodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT 'Equipment',
			base_probability REAL NOT NULL DEFAULT 0.01,
			match_keyword TEXT NOT NULL DEFAULT '',
			weight REAL NOT NULL DEFAULT 1.0
		)`,

		// Причинные связи между рисками
		`CREATE TABLE IF NOT EXISTS meta_risk_edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_code TEXT NOT NULL,
			target_code TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0
		)`,

		// Партии производства
		`CREATE TABLE IF NOT EXISTS data_batches (
			id TEXT PRIMARY KEY,
			product_name TEXT NOT NULL DEFAULT '',
			operator_id TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Running'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_operator ON data_batches(operator_id)`,

		// Измерения: append-only, записи не изменяются
		`CREATE TABLE IF NOT EXISTS data_measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL,
			node_code TEXT NOT NULL,
			param_code TEXT NOT NULL,
			value REAL NOT NULL,
			timestamp TEXT NOT NULL,
			source_type TEXT NOT NULL DEFAULT 'SENSOR'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_batch ON data_measurements(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_node_ts ON data_measurements(node_code, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_ts ON data_measurements(timestamp)`,

		// Библиотека контрмер (ActionDef)
		`CREATE TABLE IF NOT EXISTS action_defs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			risk_code TEXT NOT NULL,
			target_role TEXT NOT NULL,
			instruction_template TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'MEDIUM',
			category TEXT NOT NULL DEFAULT '',
			estimated_impact TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_action_defs_risk ON action_defs(risk_code, active)`,

		// Журнал суточных указаний: удаление только явным сбросом
		`CREATE TABLE IF NOT EXISTS daily_instructions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_date TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'MEDIUM',
			evidence TEXT NOT NULL DEFAULT '{}',
			action_code TEXT NOT NULL DEFAULT '',
			batch_id TEXT NOT NULL DEFAULT '',
			node_code TEXT NOT NULL DEFAULT '',
			param_code TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Pending',
			created_at TEXT NOT NULL DEFAULT '',
			read_at TEXT NOT NULL DEFAULT '',
			done_at TEXT NOT NULL DEFAULT '',
			feedback TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instructions_role_date ON daily_instructions(role, target_date)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			errStr := strings.ToLower(err.Error())
			// Игнорируем ошибки, если объект уже существует
			if !strings.Contains(errStr, "already exists") &&
				!strings.Contains(errStr, "duplicate column") {
				return fmt.Errorf("schema statement failed: %s, error: %w", stmt, err)
			}
		}
	}

	return nil
}
