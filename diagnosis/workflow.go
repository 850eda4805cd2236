// Package diagnosis оркестрирует диагностический конвейер: перечисление
// параметров контекста, SPC-анализ каждого параметра, оценку здоровья решающим
// модулем, вывод корневых причин, генерацию и приоритизацию рекомендаций,
// а также сборку итогового отчета.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"mesdiag/database"
	"mesdiag/datacontext"
	"mesdiag/decision"
	"mesdiag/spc"
)

// Типы находок диагностики
const (
	FindingParameterIssue = "parameter_issue"
	FindingRootCause      = "root_cause"
	FindingRecommendation = "recommendation"
	FindingInfo           = "info"
)

// Уровни серьезности находок
const (
	SeverityCritical = "CRITICAL"
	SeverityWarning  = "WARNING"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityInfo     = "INFO"
)

// WorkflowName имя стандартного диагностического конвейера
const WorkflowName = "comprehensive_diagnosis"

// SpecStore доступ к справочнику спецификаций параметров
type SpecStore interface {
	GetParameterSpec(nodeCode, paramCode string) (*database.ParameterSpec, error)
}

// Finding типизированная находка диагностики
type Finding struct {
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	NodeCode    string         `json:"node_code,omitempty"`
	ParamCode   string         `json:"param_code,omitempty"`
	ParamName   string         `json:"param_name,omitempty"`
	BatchID     string         `json:"batch_id,omitempty"`
	Description string         `json:"description"`
	Probability float64        `json:"probability,omitempty"`
	Category    string         `json:"category,omitempty"`
	Evidence    []string       `json:"evidence,omitempty"`
	Action      string         `json:"action,omitempty"`
	Impact      string         `json:"estimated_impact,omitempty"`
	Effort      string         `json:"effort,omitempty"`
	BasedOn     string         `json:"based_on,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Metrics ключевые показатели прогона конвейера
type Metrics struct {
	TotalBatches      int `json:"total_batches"`
	TotalMeasurements int `json:"total_measurements"`
	TotalParameters   int `json:"total_parameters"`
	AnalyzedParams    int `json:"analyzed_parameters"`
	SkippedParams     int `json:"skipped_parameters"`
	ProblemParams     int `json:"problem_parameters"`
	RootCausesFound   int `json:"root_causes_found"`
	Recommendations   int `json:"recommendations"`
}

// WorkflowResult результат прогона конвейера.
// Success=false означает фатальный сбой: находки и метрики пусты,
// причина — в списке Errors.
type WorkflowResult struct {
	WorkflowName    string                 `json:"workflow_name"`
	Dimension       string                 `json:"dimension"`
	Success         bool                   `json:"success"`
	Findings        []Finding              `json:"findings"`
	Metrics         Metrics                `json:"metrics"`
	RawResults      map[string]*spc.Result `json:"raw_results"`
	PriorityActions []decision.Recommendation `json:"priority_actions"`
	RootCauses      []decision.RootCause   `json:"root_causes"`
	Errors          []string               `json:"errors,omitempty"`
}

// Workflow стандартный диагностический конвейер.
// Линейный, без возвратов; сбой одного параметра не прерывает прогон.
type Workflow struct {
	specs  SpecStore
	engine decision.Engine
	graph  decision.Graph
	cfg    decision.Config
}

// NewWorkflow создает конвейер с внедренными зависимостями
func NewWorkflow(specs SpecStore, engine decision.Engine, graph decision.Graph, cfg decision.Config) *Workflow {
	return &Workflow{specs: specs, engine: engine, graph: graph, cfg: cfg}
}

// parameterKey уникальная пара (узел, параметр) внутри контекста
type parameterKey struct {
	node  string
	param string
}

// Execute прогоняет полный конвейер над разрешенным контекстом.
// Этапы: обзор данных -> перечисление параметров -> анализ каждого параметра ->
// корневые причины -> рекомендации -> приоритизация -> сборка результата.
func (w *Workflow) Execute(ctx context.Context, dc *datacontext.DataContext) *WorkflowResult {
	result := &WorkflowResult{
		WorkflowName: WorkflowName,
		Dimension:    dc.Dimension,
		Success:      true,
		RawResults:   make(map[string]*spc.Result),
	}

	result.Metrics.TotalBatches = len(dc.Batches)
	result.Metrics.TotalMeasurements = len(dc.Measurements)

	parameters := parametersFromContext(dc)
	result.Metrics.TotalParameters = len(parameters)

	if len(parameters) == 0 {
		result.Findings = append(result.Findings, Finding{
			Type:        FindingInfo,
			Severity:    SeverityInfo,
			Description: "в контексте нет параметров для анализа",
		})
		return result
	}

	var issues []decision.ParamIssue

	for _, key := range parameters {
		select {
		case <-ctx.Done():
			return failedResult(result, ctx.Err())
		default:
		}

		values, batchID := seriesForParameter(dc, key)

		if len(values) < w.cfg.MinDataPoints {
			result.Metrics.SkippedParams++
			result.Findings = append(result.Findings, Finding{
				Type:      FindingInfo,
				Severity:  SeverityInfo,
				NodeCode:  key.node,
				ParamCode: key.param,
				Description: fmt.Sprintf("параметр %s.%s пропущен: %d точек при минимуме %d",
					key.node, key.param, len(values), w.cfg.MinDataPoints),
			})
			continue
		}

		paramSpec, err := w.specs.GetParameterSpec(key.node, key.param)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("справочник параметров %s.%s: %v", key.node, key.param, err))
			continue
		}
		if paramSpec == nil {
			// Нет спецификации — нечего контролировать
			result.Metrics.SkippedParams++
			continue
		}

		issue, spcResult, err := w.analyzeParameter(key, values, batchID, paramSpec, result)
		if err != nil {
			var unavailable *decision.EngineUnavailableError
			if errors.As(err, &unavailable) {
				// Нереализованный решающий модуль фатален для всего прогона:
				// молчаливый откат на другой движок недопустим
				return failedResult(result, err)
			}
			// Сбой одного параметра изолируется, диагностика продолжается
			result.Errors = append(result.Errors,
				fmt.Sprintf("параметр %s.%s не проанализирован: %v", key.node, key.param, err))
			continue
		}

		result.Metrics.AnalyzedParams++
		result.RawResults[key.node+"."+key.param] = spcResult

		if issue != nil {
			issues = append(issues, *issue)
		}
	}

	if result.Metrics.AnalyzedParams == 0 && len(issues) == 0 {
		result.Findings = append(result.Findings, Finding{
			Type:        FindingInfo,
			Severity:    SeverityInfo,
			Description: "ни один параметр контекста не пригоден для анализа",
		})
	}

	result.Metrics.ProblemParams = len(issues)

	// Причины и рекомендации выводятся только при наличии проблемных параметров
	if len(issues) == 0 {
		return result
	}

	rootCauses, err := w.engine.DiagnoseRootCauses(issues, w.graph)
	if err != nil {
		var unavailable *decision.EngineUnavailableError
		if errors.As(err, &unavailable) {
			return failedResult(result, err)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("диагностика корневых причин: %v", err))
	}

	result.RootCauses = rootCauses
	result.Metrics.RootCausesFound = len(rootCauses)

	for _, cause := range rootCauses {
		severity := SeverityMedium
		if cause.Probability > w.cfg.RiskCritical {
			severity = SeverityHigh
		}
		result.Findings = append(result.Findings, Finding{
			Type:        FindingRootCause,
			Severity:    severity,
			Description: cause.Name,
			Probability: cause.Probability,
			Category:    cause.Category,
			Evidence:    cause.Evidence,
		})
	}

	recommendations, err := w.engine.GenerateRecommendations(
		decision.Diagnosis{RootCauses: rootCauses, ParamIssues: issues}, w.graph)
	if err != nil {
		var unavailable *decision.EngineUnavailableError
		if errors.As(err, &unavailable) {
			return failedResult(result, err)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("генерация рекомендаций: %v", err))
	}

	result.Metrics.Recommendations = len(recommendations)

	for _, rec := range recommendations {
		result.Findings = append(result.Findings, Finding{
			Type:        FindingRecommendation,
			Severity:    rec.Priority,
			Description: rec.Action,
			Action:      rec.Action,
			Impact:      rec.EstimatedImpact,
			Effort:      rec.Effort,
			BasedOn:     rec.BasedOn,
		})
	}

	prioritized, err := w.engine.PrioritizeActions(recommendations)
	if err != nil {
		var unavailable *decision.EngineUnavailableError
		if errors.As(err, &unavailable) {
			return failedResult(result, err)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("приоритизация рекомендаций: %v", err))
		prioritized = recommendations
	}

	result.PriorityActions = prioritized

	return result
}

// analyzeParameter выполняет SPC и оценку здоровья одного параметра.
// Возвращает ненулевой issue, если параметр проблемный.
func (w *Workflow) analyzeParameter(key parameterKey, values []float64, batchID string,
	paramSpec *database.ParameterSpec, result *WorkflowResult) (*decision.ParamIssue, *spc.Result, error) {

	spcResult, err := spc.Analyze(values, spc.Spec{
		USL:    paramSpec.USL,
		LSL:    paramSpec.LSL,
		Target: paramSpec.Target,
	})
	if err != nil {
		return nil, nil, err
	}

	param := decision.ParamInfo{
		NodeCode: key.node,
		Code:     key.param,
		Name:     paramSpec.Name,
		Unit:     paramSpec.Unit,
	}

	health, err := w.engine.AssessHealth(param, spcResult)
	if err != nil {
		return nil, nil, err
	}

	if health.Status != decision.StatusWarning && health.Status != decision.StatusCritical {
		return nil, spcResult, nil
	}

	description := param.Name
	if description == "" {
		description = key.param
	}
	if len(health.Issues) > 0 {
		description = fmt.Sprintf("%s: %s", description, health.Issues[0])
	} else {
		description = fmt.Sprintf("%s: аномалия", description)
	}

	data := map[string]any{
		"mean":         spcResult.Mean,
		"health_score": health.Score,
	}
	if spcResult.Cpk != nil {
		data["cpk"] = *spcResult.Cpk
	}
	if paramSpec.Target != nil {
		data["target_value"] = *paramSpec.Target
	}

	result.Findings = append(result.Findings, Finding{
		Type:        FindingParameterIssue,
		Severity:    health.Status,
		NodeCode:    key.node,
		ParamCode:   key.param,
		ParamName:   paramSpec.Name,
		BatchID:     batchID,
		Description: description,
		Data:        data,
	})

	return &decision.ParamIssue{Param: param, Health: health, SPC: spcResult}, spcResult, nil
}

// parametersFromContext извлекает уникальные пары (узел, параметр)
// в детерминированном порядке
func parametersFromContext(dc *datacontext.DataContext) []parameterKey {
	seen := make(map[parameterKey]struct{})
	var keys []parameterKey

	for _, m := range dc.Measurements {
		key := parameterKey{node: m.NodeCode, param: m.ParamCode}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].node != keys[j].node {
			return keys[i].node < keys[j].node
		}
		return keys[i].param < keys[j].param
	})

	return keys
}

// seriesForParameter собирает временной ряд параметра и первую партию,
// к которой он относится (для привязки находки)
func seriesForParameter(dc *datacontext.DataContext, key parameterKey) ([]float64, string) {
	var values []float64
	var batchID string

	for _, m := range dc.Measurements {
		if m.NodeCode != key.node || m.ParamCode != key.param {
			continue
		}
		if batchID == "" {
			batchID = m.BatchID
		}
		values = append(values, m.Value)
	}

	return values, batchID
}

// failedResult переводит прогон в терминальное состояние Failed
func failedResult(result *WorkflowResult, err error) *WorkflowResult {
	return &WorkflowResult{
		WorkflowName: result.WorkflowName,
		Dimension:    result.Dimension,
		Success:      false,
		Errors:       append(result.Errors, err.Error()),
	}
}
