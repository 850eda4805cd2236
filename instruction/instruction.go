// Package instruction превращает диагностические находки в адресные рабочие
// указания: выводит код риска по параметру, подбирает активные контрмеры из
// библиотеки, подставляет факты в шаблон и раскладывает указания по ролям
// суточного журнала.
package instruction

import (
	"fmt"

	"mesdiag/database"
)

// Целевые роли указаний
const (
	RoleOperator   = "Operator"
	RoleQA         = "QA"
	RoleTeamLeader = "TeamLeader"
	RoleManager    = "Manager"
)

// MaxPerRole максимум указаний на роль в суточном журнале
const MaxPerRole = 10

// Базовое и предельное отклонение рекомендуемой позиции клапана
const (
	valveBaseline = 50
	valveStep     = 5
)

// TemplateError в шаблоне контрмеры осталась неразрешенная переменная.
// Отбрасывается только это указание, генерация продолжается.
type TemplateError struct {
	ActionCode string
	Variable   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("шаблон контрмеры %s: нет значения для переменной {%s}", e.ActionCode, e.Variable)
}

// priorityScore балл приоритета для сортировки внутри роли
func priorityScore(priority string) int {
	switch priority {
	case "CRITICAL":
		return 100
	case "HIGH":
		return 75
	case "MEDIUM":
		return 50
	default:
		return 25
	}
}

// candidate проблемный параметр, ожидающий подбора контрмер
type candidate struct {
	NodeCode  string
	ParamCode string
	ParamName string
	BatchID   string
	Severity  string
	Mean      float64
	Cpk       *float64
	Target    *float64
	Direction string // high | low
	RootCause string
	Prob      *float64
}

// GenerationResult итог генерации суточного журнала
type GenerationResult struct {
	Date    string         `json:"date"`
	Total   int            `json:"total"`
	ByRole  map[string]int `json:"by_role"`
	Skipped []string       `json:"skipped,omitempty"`
}

// Store доступ генератора к справочникам и журналу
type Store interface {
	AllBatches() ([]database.Batch, error)
	NodesByType(nodeType string) ([]database.ProcessNode, error)
	GetProcessNode(code string) (*database.ProcessNode, error)
	ActiveActionsByRisk(riskCode string) ([]database.ActionDef, error)
	SaveInstructions(instructions []database.DailyInstruction) error
}
