package decision

import "mesdiag/spc"

// HybridEngine композит правилового и альтернативного движков.
// Делегирование описано явным предикатом по значению Cpk, а не наследованием:
// однозначные случаи (очень низкий или очень высокий Cpk) решают правила,
// неоднозначная середина уходит альтернативному движку.
type HybridEngine struct {
	cfg  Config
	rule Engine
	llm  Engine
}

// NewHybridEngine создает гибридный решающий модуль
func NewHybridEngine(cfg Config) *HybridEngine {
	return &HybridEngine{
		cfg:  cfg,
		rule: NewRuleEngine(cfg),
		llm:  &LLMEngine{},
	}
}

// delegateToRule предикат выбора движка: true — случай однозначный, решают правила
func (e *HybridEngine) delegateToRule(result *spc.Result) bool {
	if result == nil || result.Cpk == nil {
		// Отсутствующий Cpk идет в правила, а не в альтернативный движок:
		// правила выдают детерминированный UNKNOWN
		return true
	}
	cpk := *result.Cpk
	return cpk < e.cfg.HybridClearLow || cpk > e.cfg.HybridClearHigh
}

func (e *HybridEngine) AssessHealth(param ParamInfo, result *spc.Result) (HealthAssessment, error) {
	if e.delegateToRule(result) {
		return e.rule.AssessHealth(param, result)
	}
	return e.llm.AssessHealth(param, result)
}

func (e *HybridEngine) DiagnoseRootCauses(issues []ParamIssue, graph Graph) ([]RootCause, error) {
	return nil, &EngineUnavailableError{Mode: ModeHybrid, Op: "DiagnoseRootCauses"}
}

func (e *HybridEngine) GenerateRecommendations(diagnosis Diagnosis, graph Graph) ([]Recommendation, error) {
	return nil, &EngineUnavailableError{Mode: ModeHybrid, Op: "GenerateRecommendations"}
}

func (e *HybridEngine) PrioritizeActions(actions []Recommendation) ([]Recommendation, error) {
	return nil, &EngineUnavailableError{Mode: ModeHybrid, Op: "PrioritizeActions"}
}
