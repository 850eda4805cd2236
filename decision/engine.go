// Package decision реализует подключаемый решающий модуль диагностики:
// оценка здоровья параметра по SPC-результату, вывод вероятных корневых причин
// по графу рисков, генерация рекомендаций и их приоритизация.
//
// Поддерживаются варианты движка: rule_based (реализован), llm_based (заглушка)
// и hybrid (композит с явным предикатом делегирования).
package decision

import (
	"fmt"

	"mesdiag/database"
	"mesdiag/spc"
)

// Режимы решающего модуля
const (
	ModeRuleBased = "rule_based"
	ModeLLMBased  = "llm_based"
	ModeHybrid    = "hybrid"
)

// Статусы здоровья параметра
const (
	StatusNormal   = "NORMAL"
	StatusWarning  = "WARNING"
	StatusCritical = "CRITICAL"
	StatusUnknown  = "UNKNOWN"
)

// Приоритеты рекомендаций
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// ParamInfo сведения о параметре, передаваемые в оценку здоровья
type ParamInfo struct {
	NodeCode string
	Code     string
	Name     string
	Unit     string
}

// HealthAssessment вердикт по здоровью одного параметра
type HealthAssessment struct {
	Status     string   `json:"status"`
	Score      float64  `json:"score"`      // 0-100
	Issues     []string `json:"issues"`     // описания проблем
	Confidence float64  `json:"confidence"` // 0-1
	Method     string   `json:"method"`
}

// ParamIssue проблемный параметр, вход для диагностики корневых причин
type ParamIssue struct {
	Param  ParamInfo
	Health HealthAssessment
	SPC    *spc.Result
}

// RootCause предполагаемая корневая причина с вероятностью
type RootCause struct {
	Name        string   `json:"root_cause"`
	Probability float64  `json:"probability"` // 0-1
	Category    string   `json:"category"`
	Evidence    []string `json:"evidence"`
	RiskCode    string   `json:"risk_code,omitempty"`
}

// Recommendation рекомендация по устранению причины
type Recommendation struct {
	Action          string  `json:"action"`
	Priority        string  `json:"priority"`
	EstimatedImpact string  `json:"estimated_impact"`
	Effort          string  `json:"effort"`
	BasedOn         string  `json:"based_on"` // провенанс: из какой причины выведена
	PriorityScore   float64 `json:"priority_score,omitempty"`
}

// Diagnosis агрегированный вход для генерации рекомендаций
type Diagnosis struct {
	RootCauses  []RootCause
	ParamIssues []ParamIssue
}

// Graph интерфейс причинного графа знаний
type Graph interface {
	RelatedRisks(nodeCode, paramCode string) ([]database.RiskNode, error)
}

// Engine интерфейс решающего модуля. Каждая операция независимо заменяема.
type Engine interface {
	AssessHealth(param ParamInfo, result *spc.Result) (HealthAssessment, error)
	DiagnoseRootCauses(issues []ParamIssue, graph Graph) ([]RootCause, error)
	GenerateRecommendations(diagnosis Diagnosis, graph Graph) ([]Recommendation, error)
	PrioritizeActions(actions []Recommendation) ([]Recommendation, error)
}

// EngineUnavailableError операция решающего модуля не реализована.
// Фатальна для текущего анализа, повтор не выполняется.
type EngineUnavailableError struct {
	Mode string
	Op   string
}

func (e *EngineUnavailableError) Error() string {
	return fmt.Sprintf("решающий модуль %q не реализует операцию %s", e.Mode, e.Op)
}

// ConfigurationError ошибка конфигурации решающего модуля
type ConfigurationError struct {
	What string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ошибка конфигурации решающего модуля: %s", e.What)
}

// New создает решающий модуль указанного режима.
// Неизвестный режим — ошибка конфигурации.
func New(mode string, cfg Config) (Engine, error) {
	switch mode {
	case ModeRuleBased:
		return NewRuleEngine(cfg), nil
	case ModeLLMBased:
		return &LLMEngine{}, nil
	case ModeHybrid:
		return NewHybridEngine(cfg), nil
	default:
		return nil, &ConfigurationError{What: fmt.Sprintf("неизвестный режим %q", mode)}
	}
}
