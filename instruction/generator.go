package instruction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"mesdiag/database"
	"mesdiag/datacontext"
	"mesdiag/diagnosis"
)

// Diagnoser источник диагностических отчетов по разрезам
type Diagnoser interface {
	AnalyzeByBatch(ctx context.Context, batchID string) (*diagnosis.Report, error)
	AnalyzeByProcess(ctx context.Context, nodeCode string, windowDays int) (*diagnosis.Report, error)
	AnalyzeByWorkshop(ctx context.Context, blockCode, date string) (*diagnosis.Report, error)
}

// Generator генератор суточного журнала указаний
type Generator struct {
	store Store
	diag  Diagnoser
	rules []DerivationRule
	log   *slog.Logger
}

// NewGenerator создает генератор со стандартными правилами вывода кодов риска
func NewGenerator(store Store, diag Diagnoser, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		store: store,
		diag:  diag,
		rules: defaultDerivationRules(),
		log:   log,
	}
}

// GenerateDaily формирует суточный журнал указаний на дату.
// Обход разрезов: партии дня, аппараты, цеха; сбой одного разреза изолируется.
// Журнал сохраняется атомарно одной транзакцией.
func (g *Generator) GenerateDaily(ctx context.Context, date string) (*GenerationResult, error) {
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	result := &GenerationResult{Date: date, ByRole: make(map[string]int)}

	candidates := g.collectCandidates(ctx, date, result)
	if len(candidates) == 0 {
		g.log.Info("генерация указаний: проблемных параметров нет", "date", date)
		return result, nil
	}

	instructions := g.buildInstructions(date, candidates, result)
	instructions = dedupeInstructions(instructions)
	instructions = groupAndCap(instructions)

	if len(instructions) > 0 {
		if err := g.store.SaveInstructions(instructions); err != nil {
			return nil, fmt.Errorf("сохранение суточного журнала: %w", err)
		}
	}

	result.Total = len(instructions)
	for _, ins := range instructions {
		result.ByRole[ins.Role]++
	}

	g.log.Info("суточный журнал сформирован",
		"date", date, "total", result.Total, "skipped", len(result.Skipped))

	return result, nil
}

// collectCandidates обходит разрезы и собирает проблемные параметры
func (g *Generator) collectCandidates(ctx context.Context, date string, result *GenerationResult) []candidate {
	var candidates []candidate

	appendReport := func(report *diagnosis.Report) {
		candidates = append(candidates, candidatesFromReport(report)...)
	}

	batches, err := g.store.AllBatches()
	if err != nil {
		result.Skipped = append(result.Skipped, fmt.Sprintf("список партий: %v", err))
	}
	for _, batch := range batches {
		if batch.Status != database.BatchRunning && batch.StartTime.UTC().Format("2006-01-02") != date {
			continue
		}
		report, err := g.diag.AnalyzeByBatch(ctx, batch.ID)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("партия %s: %v", batch.ID, err))
			continue
		}
		appendReport(report)
	}

	units, err := g.store.NodesByType(database.NodeTypeUnit)
	if err != nil {
		result.Skipped = append(result.Skipped, fmt.Sprintf("список аппаратов: %v", err))
	}
	for _, unit := range units {
		report, err := g.diag.AnalyzeByProcess(ctx, unit.Code, datacontext.DefaultProcessWindowDays)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("аппарат %s: %v", unit.Code, err))
			continue
		}
		appendReport(report)
	}

	blocks, err := g.store.NodesByType(database.NodeTypeBlock)
	if err != nil {
		result.Skipped = append(result.Skipped, fmt.Sprintf("список цехов: %v", err))
	}
	for _, block := range blocks {
		report, err := g.diag.AnalyzeByWorkshop(ctx, block.Code, date)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("цех %s: %v", block.Code, err))
			continue
		}
		appendReport(report)
	}

	return candidates
}

// candidatesFromReport извлекает проблемные параметры из находок отчета
func candidatesFromReport(report *diagnosis.Report) []candidate {
	var out []candidate

	// Ведущая причина отчета привязывается к каждому его кандидату
	var rootCause string
	var prob *float64
	if len(report.RootCauses) > 0 {
		rootCause = report.RootCauses[0].Name
		p := report.RootCauses[0].Probability
		prob = &p
	}

	extract := func(findings []diagnosis.Finding) {
		for _, f := range findings {
			if f.Type != diagnosis.FindingParameterIssue {
				continue
			}

			c := candidate{
				NodeCode:  f.NodeCode,
				ParamCode: f.ParamCode,
				ParamName: f.ParamName,
				BatchID:   f.BatchID,
				Severity:  f.Severity,
				Direction: "high",
				RootCause: rootCause,
				Prob:      prob,
			}

			if mean, ok := f.Data["mean"].(float64); ok {
				c.Mean = mean
			}
			if cpk, ok := f.Data["cpk"].(float64); ok {
				c.Cpk = &cpk
			}
			if target, ok := f.Data["target_value"].(float64); ok {
				c.Target = &target
				if c.Mean < target {
					c.Direction = "low"
				}
			}

			out = append(out, c)
		}
	}

	extract(report.CriticalIssues)
	extract(report.Warnings)

	return out
}

// buildInstructions подбирает контрмеры и рендерит указания для кандидатов
func (g *Generator) buildInstructions(date string, candidates []candidate, result *GenerationResult) []database.DailyInstruction {
	var out []database.DailyInstruction

	for _, c := range candidates {
		riskCode := deriveRiskCode(g.rules, c)
		if riskCode == "" {
			continue
		}

		actions, err := g.store.ActiveActionsByRisk(riskCode)
		if err != nil {
			result.Skipped = append(result.Skipped,
				fmt.Sprintf("контрмеры для %s: %v", riskCode, err))
			continue
		}

		for _, action := range actions {
			ins, err := g.renderInstruction(date, c, action)
			if err != nil {
				var templateErr *TemplateError
				if errors.As(err, &templateErr) {
					// Дырявый шаблон отбрасывает одно указание, не весь журнал
					result.Skipped = append(result.Skipped, templateErr.Error())
					g.log.Warn("указание пропущено", "action", action.Code, "error", err)
					continue
				}
				result.Skipped = append(result.Skipped, err.Error())
				continue
			}
			out = append(out, *ins)
		}
	}

	return out
}

// renderInstruction заполняет шаблон контрмеры фактами кандидата
func (g *Generator) renderInstruction(date string, c candidate, action database.ActionDef) (*database.DailyInstruction, error) {
	vars := g.templateVars(c)

	content, err := renderTemplate(action.Code, action.InstructionTemplate, vars)
	if err != nil {
		return nil, err
	}

	// В доказательную базу попадает каждая использованная переменная
	evidence := map[string]any{
		"severity": c.Severity,
		"mean":     c.Mean,
	}
	if c.Cpk != nil {
		evidence["cpk"] = *c.Cpk
	}
	if c.Target != nil {
		evidence["target_value"] = *c.Target
	}
	for _, name := range consumedVariables(action.InstructionTemplate) {
		evidence[name] = vars[name]
	}

	return &database.DailyInstruction{
		TargetDate: date,
		Role:       action.TargetRole,
		Content:    content,
		Priority:   action.Priority,
		Evidence:   evidence,
		ActionCode: action.Code,
		BatchID:    c.BatchID,
		NodeCode:   c.NodeCode,
		ParamCode:  c.ParamCode,
		Status:     database.InstructionPending,
	}, nil
}

// templateVars значения переменных шаблона для кандидата
func (g *Generator) templateVars(c candidate) map[string]string {
	nodeName := c.NodeCode
	if node, err := g.store.GetProcessNode(c.NodeCode); err == nil && node != nil {
		nodeName = node.Name
	}

	// Рекомендация по клапану: шаг от базовой позиции против направления отклонения
	suggestedValve := valveBaseline + valveStep
	if c.Direction == "high" {
		suggestedValve = valveBaseline - valveStep
	}

	vars := map[string]string{
		"node_name":       nodeName,
		"node_code":       c.NodeCode,
		"param_name":      c.ParamName,
		"param_code":      c.ParamCode,
		"current_value":   fmt.Sprintf("%.2f", c.Mean),
		"current_valve":   strconv.Itoa(valveBaseline),
		"suggested_valve": strconv.Itoa(suggestedValve),
	}
	if c.BatchID != "" {
		vars["batch_id"] = c.BatchID
	}
	if c.Target != nil {
		vars["target_value"] = fmt.Sprintf("%.2f", *c.Target)
	}
	if c.Cpk != nil {
		vars["cpk"] = fmt.Sprintf("%.2f", *c.Cpk)
	}
	if c.RootCause != "" {
		vars["root_cause"] = c.RootCause
	}
	if c.Prob != nil {
		vars["prob"] = fmt.Sprintf("%.0f%%", *c.Prob*100)
	}

	return vars
}

// dedupeInstructions устраняет дубли по паре (контрмера, партия), первый выигрывает
func dedupeInstructions(instructions []database.DailyInstruction) []database.DailyInstruction {
	type dedupeKey struct {
		action string
		batch  string
	}

	seen := make(map[dedupeKey]struct{})
	out := instructions[:0]

	for _, ins := range instructions {
		key := dedupeKey{action: ins.ActionCode, batch: ins.BatchID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ins)
	}

	return out
}

// groupAndCap сортирует указания по баллу приоритета и ограничивает
// каждую роль лимитом MaxPerRole
func groupAndCap(instructions []database.DailyInstruction) []database.DailyInstruction {
	sort.SliceStable(instructions, func(i, j int) bool {
		return priorityScore(instructions[i].Priority) > priorityScore(instructions[j].Priority)
	})

	counts := make(map[string]int)
	var out []database.DailyInstruction

	for _, ins := range instructions {
		if counts[ins.Role] >= MaxPerRole {
			continue
		}
		counts[ins.Role]++
		out = append(out, ins)
	}

	return out
}
