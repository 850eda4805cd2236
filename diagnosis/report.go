package diagnosis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mesdiag/decision"
)

// Лимиты объединенного отчета
const (
	mergeMaxCritical        = 10
	mergeMaxWarnings        = 20
	mergeMaxRecommendations = 10
)

// Report итоговый отчет одного диагностического прогона
type Report struct {
	AnalysisID      string                    `json:"analysis_id"`
	Dimension       string                    `json:"dimension"`
	GeneratedAt     time.Time                 `json:"generated_at"`
	OverallStatus   string                    `json:"overall_status"`
	Success         bool                      `json:"success"`
	Metrics         Metrics                   `json:"metrics"`
	CriticalIssues  []Finding                 `json:"critical_issues"`
	Warnings        []Finding                 `json:"warnings"`
	Observations    []Finding                 `json:"observations"`
	RootCauses      []decision.RootCause      `json:"root_causes"`
	Recommendations []decision.Recommendation `json:"recommendations"`
	Context         map[string]any            `json:"context,omitempty"`
	Errors          []string                  `json:"errors,omitempty"`
}

// MergedReport сводка по нескольким прогонам (например, по всем участкам цеха)
type MergedReport struct {
	AnalysisID      string                    `json:"analysis_id"`
	GeneratedAt     time.Time                 `json:"generated_at"`
	OverallStatus   string                    `json:"overall_status"`
	SourceReports   []string                  `json:"source_reports"`
	CriticalIssues  []Finding                 `json:"critical_issues"`
	Warnings        []Finding                 `json:"warnings"`
	Recommendations []decision.Recommendation `json:"recommendations"`
}

// Builder собирает отчет из результата конвейера
type Builder struct{}

// NewBuilder создает сборщик отчетов
func NewBuilder() *Builder {
	return &Builder{}
}

// newAnalysisID формирует идентификатор вида dimension_20060102T150405_ab12cd34.
// Суффикс uuid исключает коллизии при одновременных прогонах.
func newAnalysisID(dimension string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", dimension, at.UTC().Format("20060102T150405"),
		uuid.NewString()[:8])
}

// Build строит отчет: находки раскладываются по серьезности,
// общий статус выводится из худшей находки
func (b *Builder) Build(result *WorkflowResult, contextMeta map[string]any) *Report {
	now := time.Now().UTC()

	report := &Report{
		AnalysisID:      newAnalysisID(result.Dimension, now),
		Dimension:       result.Dimension,
		GeneratedAt:     now,
		Success:         result.Success,
		Metrics:         result.Metrics,
		RootCauses:      result.RootCauses,
		Recommendations: result.PriorityActions,
		Context:         contextMeta,
		Errors:          result.Errors,
	}

	if !result.Success {
		report.OverallStatus = decision.StatusUnknown
		return report
	}

	for _, f := range result.Findings {
		switch f.Severity {
		case SeverityCritical:
			report.CriticalIssues = append(report.CriticalIssues, f)
		case SeverityWarning, SeverityHigh:
			report.Warnings = append(report.Warnings, f)
		default:
			report.Observations = append(report.Observations, f)
		}
	}

	switch {
	case len(report.CriticalIssues) > 0:
		report.OverallStatus = decision.StatusCritical
	case len(report.Warnings) > 0:
		report.OverallStatus = decision.StatusWarning
	default:
		report.OverallStatus = decision.StatusNormal
	}

	return report
}

// statusRank худший статус побеждает при слиянии
func statusRank(status string) int {
	switch status {
	case decision.StatusCritical:
		return 3
	case decision.StatusWarning:
		return 2
	case decision.StatusNormal:
		return 1
	default:
		return 0
	}
}

// MergeReports сводит несколько отчетов в один: худший статус побеждает,
// находки и рекомендации усечены до лимитов
func MergeReports(reports []*Report) *MergedReport {
	now := time.Now().UTC()

	merged := &MergedReport{
		AnalysisID:    newAnalysisID("merged", now),
		GeneratedAt:   now,
		OverallStatus: decision.StatusNormal,
	}

	if len(reports) == 0 {
		merged.OverallStatus = decision.StatusUnknown
		return merged
	}

	for _, r := range reports {
		merged.SourceReports = append(merged.SourceReports, r.AnalysisID)
		if statusRank(r.OverallStatus) > statusRank(merged.OverallStatus) {
			merged.OverallStatus = r.OverallStatus
		}
		merged.CriticalIssues = append(merged.CriticalIssues, r.CriticalIssues...)
		merged.Warnings = append(merged.Warnings, r.Warnings...)
		merged.Recommendations = append(merged.Recommendations, r.Recommendations...)
	}

	// Рекомендации пересортировываются по приоритетному баллу перед усечением
	sort.SliceStable(merged.Recommendations, func(i, j int) bool {
		return merged.Recommendations[i].PriorityScore > merged.Recommendations[j].PriorityScore
	})

	if len(merged.CriticalIssues) > mergeMaxCritical {
		merged.CriticalIssues = merged.CriticalIssues[:mergeMaxCritical]
	}
	if len(merged.Warnings) > mergeMaxWarnings {
		merged.Warnings = merged.Warnings[:mergeMaxWarnings]
	}
	if len(merged.Recommendations) > mergeMaxRecommendations {
		merged.Recommendations = merged.Recommendations[:mergeMaxRecommendations]
	}

	return merged
}

// ToJSON сериализует отчет с отступами
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToMarkdown рендерит отчет в человекочитаемый markdown
func (r *Report) ToMarkdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Отчет диагностики %s\n\n", r.AnalysisID)
	fmt.Fprintf(&b, "- Разрез: %s\n", r.Dimension)
	fmt.Fprintf(&b, "- Сформирован: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Общий статус: **%s**\n\n", r.OverallStatus)

	fmt.Fprintf(&b, "## Показатели\n\n")
	fmt.Fprintf(&b, "| Показатель | Значение |\n|---|---|\n")
	fmt.Fprintf(&b, "| Партий | %d |\n", r.Metrics.TotalBatches)
	fmt.Fprintf(&b, "| Измерений | %d |\n", r.Metrics.TotalMeasurements)
	fmt.Fprintf(&b, "| Параметров проанализировано | %d |\n", r.Metrics.AnalyzedParams)
	fmt.Fprintf(&b, "| Проблемных параметров | %d |\n\n", r.Metrics.ProblemParams)

	if len(r.CriticalIssues) > 0 {
		fmt.Fprintf(&b, "## Критические проблемы\n\n")
		for _, f := range r.CriticalIssues {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Description)
		}
		b.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "## Предупреждения\n\n")
		for _, f := range r.Warnings {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Description)
		}
		b.WriteString("\n")
	}

	if len(r.RootCauses) > 0 {
		fmt.Fprintf(&b, "## Вероятные корневые причины\n\n")
		for _, c := range r.RootCauses {
			fmt.Fprintf(&b, "- %s (вероятность %.2f, категория %s)\n", c.Name, c.Probability, c.Category)
		}
		b.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintf(&b, "## Рекомендации\n\n")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i+1, rec.Priority, rec.Action, rec.EstimatedImpact)
		}
		b.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "## Ошибки прогона\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	return b.String()
}
