package decision

import (
	"fmt"
	"sort"
	"strings"

	"mesdiag/database"
	"mesdiag/spc"
)

// RuleEngine решающий модуль на пороговых правилах.
// Быстрый, объяснимый и стабильный; подходит для мониторинга в реальном времени.
type RuleEngine struct {
	cfg      Config
	ruleBook map[string][]ruleBookEntry
}

// ruleBookEntry правило "категория причины + ключевое слово -> рекомендация"
type ruleBookEntry struct {
	keyword string
	action  Recommendation
}

// NewRuleEngine создает правиловый решающий модуль со стандартной книгой правил
func NewRuleEngine(cfg Config) *RuleEngine {
	return &RuleEngine{
		cfg:      cfg,
		ruleBook: defaultRuleBook(),
	}
}

// defaultRuleBook книга правил "проблема -> мера".
// Ключевые слова сопоставляются подстрокой с названием корневой причины.
func defaultRuleBook() map[string][]ruleBookEntry {
	return map[string][]ruleBookEntry{
		"Equipment": {
			{keyword: "температур", action: Recommendation{
				Action: "Откалибровать датчик температуры", Priority: PriorityHigh,
				Effort: "1 час", EstimatedImpact: "Повышение Cpk выше 1.5",
			}},
			{keyword: "давлени", action: Recommendation{
				Action: "Проверить редуктор давления", Priority: PriorityHigh,
				Effort: "2 часа", EstimatedImpact: "Устранение выходов за спецификацию",
			}},
			{keyword: "оборудовани", action: Recommendation{
				Action: "Провести внеплановый осмотр оборудования", Priority: PriorityHigh,
				Effort: "2 часа", EstimatedImpact: "Восстановление стабильности процесса",
			}},
		},
		"Material": {
			{keyword: "сырь", action: Recommendation{
				Action: "Проверить качество входного сырья", Priority: PriorityHigh,
				Effort: "2 часа", EstimatedImpact: "Повышение выхода продукта",
			}},
		},
		"Method": {
			{keyword: "влажност", action: Recommendation{
				Action: "Скорректировать режим сушки", Priority: PriorityMedium,
				Effort: "30 минут", EstimatedImpact: "Повышение Cpk влажности",
			}},
			{keyword: "режим", action: Recommendation{
				Action: "Оптимизировать технологические параметры", Priority: PriorityMedium,
				Effort: "экспериментальная проверка", EstimatedImpact: "Повышение стабильности процесса",
			}},
		},
		"Man": {
			{keyword: "персонал", action: Recommendation{
				Action: "Провести дополнительный инструктаж персонала", Priority: PriorityMedium,
				Effort: "1 день", EstimatedImpact: "Снижение человеческого фактора",
			}},
		},
	}
}

// AssessHealth оценивает здоровье параметра по пороговым правилам:
// Cpk < CpkCritical => CRITICAL (база 20), Cpk < CpkWarning => WARNING (база 50),
// иначе NORMAL с баллом min(100, 60 + Cpk*13.3). Каждая точка за спецификацией
// снимает 10 баллов (суммарно не более 30) и поднимает статус минимум до WARNING.
func (e *RuleEngine) AssessHealth(param ParamInfo, result *spc.Result) (HealthAssessment, error) {
	if result == nil || result.Cpk == nil {
		return HealthAssessment{
			Status:     StatusUnknown,
			Score:      50,
			Confidence: 1.0,
			Method:     ModeRuleBased,
		}, nil
	}

	cpk := *result.Cpk
	var status string
	var score float64

	switch {
	case cpk < e.cfg.CpkCritical:
		status = StatusCritical
		score = 20
	case cpk < e.cfg.CpkWarning:
		status = StatusWarning
		score = 50
	default:
		status = StatusNormal
		score = 60 + cpk*13.3
		if score > 100 {
			score = 100
		}
	}

	violations := len(result.Violations)
	if violations > 0 {
		penalty := float64(violations) * 10
		if penalty > 30 {
			penalty = 30
		}
		score -= penalty
		if status == StatusNormal {
			status = StatusWarning
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var issues []string
	if cpk < e.cfg.CpkWarning {
		issues = append(issues, fmt.Sprintf("недостаточная воспроизводимость процесса (Cpk=%.2f)", cpk))
	}
	if violations > 0 {
		issues = append(issues, fmt.Sprintf("обнаружено %d точек за пределами спецификации", violations))
	}

	return HealthAssessment{
		Status:     status,
		Score:      score,
		Issues:     issues,
		Confidence: 1.0,
		Method:     ModeRuleBased,
	}, nil
}

// DiagnoseRootCauses выводит корневые причины по графу рисков:
// вероятность = базовая вероятность * вес; причины ниже порога RiskWarning
// отбрасываются, вероятность ограничена 1.0, результат — top-N по убыванию.
func (e *RuleEngine) DiagnoseRootCauses(issues []ParamIssue, graph Graph) ([]RootCause, error) {
	var causes []RootCause

	for _, issue := range issues {
		risks, err := e.relatedRisks(issue.Param, graph)
		if err != nil {
			return nil, err
		}

		evidence := issue.Health.Issues
		if len(evidence) == 0 {
			evidence = []string{"аномалия параметра " + issue.Param.Code}
		}

		for _, risk := range risks {
			probability := risk.BaseProbability * risk.Weight
			if probability <= e.cfg.RiskWarning {
				continue
			}
			if probability > 1.0 {
				probability = 1.0
			}

			causes = append(causes, RootCause{
				Name:        risk.Name,
				Probability: probability,
				Category:    risk.Category,
				Evidence:    append([]string(nil), evidence...),
				RiskCode:    risk.Code,
			})
		}
	}

	sort.SliceStable(causes, func(i, j int) bool {
		return causes[i].Probability > causes[j].Probability
	})

	top := e.cfg.TopRootCauses
	if top <= 0 {
		top = 5
	}
	if len(causes) > top {
		causes = causes[:top]
	}

	return causes, nil
}

// relatedRisks запрашивает граф знаний; при пустом графе используется
// встроенный минимальный набор эвристик, чтобы диагностика не молчала.
func (e *RuleEngine) relatedRisks(param ParamInfo, graph Graph) ([]database.RiskNode, error) {
	if graph != nil {
		risks, err := graph.RelatedRisks(param.NodeCode, param.Code)
		if err != nil {
			return nil, err
		}
		if len(risks) > 0 {
			return risks, nil
		}
	}

	return fallbackRisks(param.NodeCode, param.Code), nil
}

// fallbackRisks минимальные эвристики на случай незаполненного графа рисков
func fallbackRisks(nodeCode, paramCode string) []database.RiskNode {
	var risks []database.RiskNode
	param := strings.ToLower(paramCode)

	if strings.Contains(param, "temp") {
		risks = append(risks, database.RiskNode{
			Code: "TEMP_" + nodeCode, Name: "Нестабильность температуры на " + nodeCode,
			Category: "Equipment", BaseProbability: 0.05, Weight: 15.0,
		})
	}
	if strings.Contains(param, "pressure") {
		risks = append(risks, database.RiskNode{
			Code: "PRES_" + nodeCode, Name: "Отклонение давления на " + nodeCode,
			Category: "Equipment", BaseProbability: 0.03, Weight: 20.0,
		})
	}

	risks = append(risks, database.RiskNode{
		Code: "GENERIC_" + nodeCode, Name: "Неисправность оборудования " + nodeCode,
		Category: "Equipment", BaseProbability: 0.02, Weight: 10.0,
	})

	return risks
}

// GenerateRecommendations подбирает меры по книге правил "категория + ключевое слово".
// Каждая рекомендация несет провенанс: из какой причины и с какой вероятностью выведена.
func (e *RuleEngine) GenerateRecommendations(diagnosis Diagnosis, graph Graph) ([]Recommendation, error) {
	var recommendations []Recommendation

	for _, cause := range diagnosis.RootCauses {
		entries, ok := e.ruleBook[cause.Category]
		if !ok {
			continue
		}

		name := strings.ToLower(cause.Name)
		for _, entry := range entries {
			if !strings.Contains(name, entry.keyword) {
				continue
			}

			rec := entry.action
			rec.BasedOn = fmt.Sprintf("диагноз: %s (вероятность %.0f%%)", cause.Name, cause.Probability*100)
			recommendations = append(recommendations, rec)
		}
	}

	return recommendations, nil
}

// PrioritizeActions сортирует рекомендации по взвешенному баллу:
// база HIGH=100 / MEDIUM=50 / LOW=20, плюс Weights.Cpk*100 если ожидаемый
// эффект ссылается на воспроизводимость процесса. Сортировка стабильная.
func (e *RuleEngine) PrioritizeActions(actions []Recommendation) ([]Recommendation, error) {
	scored := make([]Recommendation, len(actions))
	copy(scored, actions)

	for i := range scored {
		score := 0.0

		switch scored[i].Priority {
		case PriorityHigh:
			score += 100
		case PriorityMedium:
			score += 50
		default:
			score += 20
		}

		if strings.Contains(scored[i].EstimatedImpact, "Cpk") {
			score += e.cfg.Weights.Cpk * 100
		}

		scored[i].PriorityScore = score
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PriorityScore > scored[j].PriorityScore
	})

	return scored, nil
}
