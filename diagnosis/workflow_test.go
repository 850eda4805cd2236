package diagnosis

import (
	"context"
	"testing"
	"time"

	"mesdiag/database"
	"mesdiag/datacontext"
	"mesdiag/decision"
)

// fakeSpecStore справочник спецификаций в памяти
type fakeSpecStore struct {
	specs map[string]*database.ParameterSpec
}

func (s *fakeSpecStore) GetParameterSpec(nodeCode, paramCode string) (*database.ParameterSpec, error) {
	return s.specs[nodeCode+"."+paramCode], nil
}

// fakeGraph тестовый граф рисков
type fakeGraph struct {
	risks []database.RiskNode
}

func (g *fakeGraph) RelatedRisks(nodeCode, paramCode string) ([]database.RiskNode, error) {
	return g.risks, nil
}

func floatPtr(v float64) *float64 { return &v }

func tempSpec() *database.ParameterSpec {
	return &database.ParameterSpec{
		NodeCode: "E04", Code: "temp", Name: "Температура реактора", Unit: "C",
		USL: floatPtr(90), LSL: floatPtr(75), Target: floatPtr(85),
	}
}

func measurementSeries(node, param, batch string, values []float64) []database.Measurement {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	out := make([]database.Measurement, 0, len(values))
	for i, v := range values {
		out = append(out, database.Measurement{
			BatchID: batch, NodeCode: node, ParamCode: param,
			Value: v, Timestamp: base.Add(time.Duration(i) * time.Minute),
			SourceType: database.SourceSensor,
		})
	}
	return out
}

func testWorkflow(t *testing.T, specs map[string]*database.ParameterSpec, graph decision.Graph) *Workflow {
	t.Helper()
	engine, err := decision.New(decision.ModeRuleBased, decision.DefaultConfig())
	if err != nil {
		t.Fatalf("decision.New: %v", err)
	}
	return NewWorkflow(&fakeSpecStore{specs: specs}, engine, graph, decision.DefaultConfig())
}

func TestWorkflowProblemParameter(t *testing.T) {
	graph := &fakeGraph{risks: []database.RiskNode{{
		Code: "R_E04_TEMP", Name: "Нестабильность температуры на E04",
		Category: "Equipment", BaseProbability: 0.05, Weight: 15.0,
	}}}
	w := testWorkflow(t, map[string]*database.ParameterSpec{"E04.temp": tempSpec()}, graph)

	// Прижатая к верхней границе серия с одним выходом за спецификацию
	dc := &datacontext.DataContext{
		Dimension: datacontext.DimensionBatch,
		Batches:   []string{"B001"},
		Measurements: measurementSeries("E04", "temp", "B001",
			[]float64{89, 89.5, 90.5, 88.5, 89.0}),
	}

	result := w.Execute(context.Background(), dc)
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.Metrics.AnalyzedParams != 1 || result.Metrics.ProblemParams != 1 {
		t.Fatalf("metrics = %+v", result.Metrics)
	}

	var issue *Finding
	for i := range result.Findings {
		if result.Findings[i].Type == FindingParameterIssue {
			issue = &result.Findings[i]
		}
	}
	if issue == nil {
		t.Fatal("no parameter_issue finding")
	}
	if issue.Severity != SeverityCritical {
		t.Errorf("severity = %q, want CRITICAL", issue.Severity)
	}
	if issue.BatchID != "B001" || issue.NodeCode != "E04" {
		t.Errorf("finding binding = %+v", issue)
	}
	if _, ok := issue.Data["cpk"]; !ok {
		t.Error("finding data lacks cpk")
	}

	if len(result.RootCauses) == 0 {
		t.Fatal("no root causes for problem parameter")
	}
	if result.RootCauses[0].RiskCode != "R_E04_TEMP" {
		t.Errorf("first cause = %q", result.RootCauses[0].RiskCode)
	}
	if len(result.PriorityActions) == 0 {
		t.Fatal("no prioritized recommendations")
	}
	if result.PriorityActions[0].PriorityScore == 0 {
		t.Error("priority score not assigned")
	}

	if _, ok := result.RawResults["E04.temp"]; !ok {
		t.Error("raw SPC result not recorded")
	}
}

func TestWorkflowHealthyParameterNoCauses(t *testing.T) {
	w := testWorkflow(t, map[string]*database.ParameterSpec{"E04.temp": tempSpec()}, &fakeGraph{})

	dc := &datacontext.DataContext{
		Dimension: datacontext.DimensionBatch,
		Batches:   []string{"B001"},
		Measurements: measurementSeries("E04", "temp", "B001",
			[]float64{85.0, 85.1, 84.9, 85.0, 85.05, 84.95}),
	}

	result := w.Execute(context.Background(), dc)
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.Metrics.ProblemParams != 0 {
		t.Errorf("problem params = %d, want 0", result.Metrics.ProblemParams)
	}
	if len(result.RootCauses) != 0 || len(result.PriorityActions) != 0 {
		t.Error("causes or recommendations for healthy parameter")
	}
}

func TestWorkflowSkipsShortSeries(t *testing.T) {
	w := testWorkflow(t, map[string]*database.ParameterSpec{"E04.temp": tempSpec()}, &fakeGraph{})

	dc := &datacontext.DataContext{
		Dimension:    datacontext.DimensionBatch,
		Batches:      []string{"B001"},
		Measurements: measurementSeries("E04", "temp", "B001", []float64{85, 86, 87}),
	}

	result := w.Execute(context.Background(), dc)
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.Metrics.SkippedParams != 1 || result.Metrics.AnalyzedParams != 0 {
		t.Fatalf("metrics = %+v", result.Metrics)
	}

	// Пропуск фиксируется информационной находкой, а не ошибкой
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	found := false
	for _, f := range result.Findings {
		if f.Type == FindingInfo && f.ParamCode == "temp" {
			found = true
		}
	}
	if !found {
		t.Error("no info finding for skipped parameter")
	}
}

func TestWorkflowSkipsParameterWithoutSpec(t *testing.T) {
	w := testWorkflow(t, map[string]*database.ParameterSpec{}, &fakeGraph{})

	dc := &datacontext.DataContext{
		Dimension:    datacontext.DimensionBatch,
		Measurements: measurementSeries("E04", "unknown", "B001", []float64{1, 2, 3, 4, 5, 6}),
	}

	result := w.Execute(context.Background(), dc)
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.Metrics.SkippedParams != 1 {
		t.Errorf("skipped = %d, want 1", result.Metrics.SkippedParams)
	}
}

func TestWorkflowEmptyContext(t *testing.T) {
	w := testWorkflow(t, map[string]*database.ParameterSpec{}, &fakeGraph{})

	result := w.Execute(context.Background(), &datacontext.DataContext{
		Dimension: datacontext.DimensionWorkshop,
	})
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if len(result.Findings) != 1 || result.Findings[0].Type != FindingInfo {
		t.Fatalf("findings = %+v, want single info", result.Findings)
	}
}

// Нереализованный решающий модуль фатален для прогона
func TestWorkflowEngineUnavailableFatal(t *testing.T) {
	engine, err := decision.New(decision.ModeLLMBased, decision.DefaultConfig())
	if err != nil {
		t.Fatalf("decision.New: %v", err)
	}
	w := NewWorkflow(&fakeSpecStore{specs: map[string]*database.ParameterSpec{"E04.temp": tempSpec()}},
		engine, &fakeGraph{}, decision.DefaultConfig())

	dc := &datacontext.DataContext{
		Dimension: datacontext.DimensionBatch,
		Measurements: measurementSeries("E04", "temp", "B001",
			[]float64{85, 86, 87, 85, 86, 84}),
	}

	result := w.Execute(context.Background(), dc)
	if result.Success {
		t.Fatal("expected failed run with unimplemented engine")
	}
	if len(result.Errors) == 0 {
		t.Fatal("failed run without captured error")
	}
	if len(result.Findings) != 0 {
		t.Errorf("failed run carries findings: %+v", result.Findings)
	}
}

// Сбой одного параметра не срывает анализ остальных
func TestWorkflowIsolatesParameterFailure(t *testing.T) {
	specs := map[string]*database.ParameterSpec{
		"E04.temp": tempSpec(),
		// Спецификация без границ: SPC вернет результат без Cpk, статус UNKNOWN
		"E04.pressure": {NodeCode: "E04", Code: "pressure", Name: "Давление"},
	}
	w := testWorkflow(t, specs, &fakeGraph{})

	measurements := measurementSeries("E04", "temp", "B001",
		[]float64{85.0, 85.1, 84.9, 85.0, 85.05})
	measurements = append(measurements,
		measurementSeries("E04", "pressure", "B001", []float64{2, 2.1, 2.05, 1.95, 2.0})...)

	dc := &datacontext.DataContext{Dimension: datacontext.DimensionBatch, Measurements: measurements}

	result := w.Execute(context.Background(), dc)
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.Metrics.AnalyzedParams != 2 {
		t.Errorf("analyzed = %d, want 2", result.Metrics.AnalyzedParams)
	}
}
