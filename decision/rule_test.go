package decision

import (
	"errors"
	"math"
	"strings"
	"testing"

	"mesdiag/database"
	"mesdiag/spc"
)

// fakeGraph тестовый граф рисков с фиксированным ответом
type fakeGraph struct {
	risks []database.RiskNode
	err   error
}

func (g *fakeGraph) RelatedRisks(nodeCode, paramCode string) ([]database.RiskNode, error) {
	return g.risks, g.err
}

func floatPtr(v float64) *float64 { return &v }

func spcResult(cpk float64, violations int) *spc.Result {
	r := &spc.Result{Cpk: floatPtr(cpk), N: 10}
	for i := 0; i < violations; i++ {
		r.Violations = append(r.Violations, spc.Violation{Index: i, Value: 99, Type: spc.ViolationHigh})
	}
	return r
}

func TestAssessHealthThresholds(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())
	param := ParamInfo{NodeCode: "E04", Code: "temp"}

	tests := []struct {
		name       string
		cpk        float64
		wantStatus string
		wantScore  float64
	}{
		{"critical below 0.8", 0.5, StatusCritical, 20},
		{"warning below 1.33", 1.0, StatusWarning, 50},
		{"boundary cpk exactly warning threshold", 1.33, StatusNormal, 60 + 1.33*13.3},
		{"normal capped at 100", 3.5, StatusNormal, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health, err := engine.AssessHealth(param, spcResult(tt.cpk, 0))
			if err != nil {
				t.Fatalf("AssessHealth: %v", err)
			}
			if health.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", health.Status, tt.wantStatus)
			}
			if math.Abs(health.Score-tt.wantScore) > 0.01 {
				t.Errorf("score = %.2f, want %.2f", health.Score, tt.wantScore)
			}
			if health.Method != ModeRuleBased {
				t.Errorf("method = %q, want %q", health.Method, ModeRuleBased)
			}
		})
	}
}

func TestAssessHealthMissingCpk(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())

	health, err := engine.AssessHealth(ParamInfo{Code: "temp"}, &spc.Result{N: 10})
	if err != nil {
		t.Fatalf("AssessHealth: %v", err)
	}
	if health.Status != StatusUnknown {
		t.Errorf("status = %q, want %q", health.Status, StatusUnknown)
	}
	if health.Score != 50 {
		t.Errorf("score = %.1f, want 50", health.Score)
	}
}

func TestAssessHealthViolations(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())
	param := ParamInfo{NodeCode: "E04", Code: "temp"}

	// Выход за спецификацию поднимает NORMAL до WARNING
	health, err := engine.AssessHealth(param, spcResult(2.0, 1))
	if err != nil {
		t.Fatalf("AssessHealth: %v", err)
	}
	if health.Status != StatusWarning {
		t.Errorf("status = %q, want %q", health.Status, StatusWarning)
	}
	if math.Abs(health.Score-76.6) > 0.01 {
		t.Errorf("score = %.2f, want 76.60", health.Score)
	}

	// Штраф ограничен 30 баллами
	capped, err := engine.AssessHealth(param, spcResult(2.0, 7))
	if err != nil {
		t.Fatalf("AssessHealth: %v", err)
	}
	if math.Abs(capped.Score-56.6) > 0.01 {
		t.Errorf("capped score = %.2f, want 56.60", capped.Score)
	}
}

// Балл здоровья не растет с числом нарушений
func TestAssessHealthScoreMonotonic(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())
	param := ParamInfo{NodeCode: "E04", Code: "temp"}

	prev := math.Inf(1)
	for violations := 0; violations <= 8; violations++ {
		health, err := engine.AssessHealth(param, spcResult(1.5, violations))
		if err != nil {
			t.Fatalf("AssessHealth(%d violations): %v", violations, err)
		}
		if health.Score > prev {
			t.Fatalf("score grew from %.2f to %.2f at %d violations", prev, health.Score, violations)
		}
		prev = health.Score
	}
}

func TestDiagnoseRootCauses(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())

	graph := &fakeGraph{risks: []database.RiskNode{
		{Code: "R1", Name: "Нестабильность температуры", Category: "Equipment", BaseProbability: 0.05, Weight: 15.0},
		{Code: "R2", Name: "Слабый риск", Category: "Method", BaseProbability: 0.005, Weight: 10.0},
		{Code: "R3", Name: "Переполненный риск", Category: "Material", BaseProbability: 0.2, Weight: 10.0},
	}}

	issues := []ParamIssue{{
		Param:  ParamInfo{NodeCode: "E04", Code: "temp"},
		Health: HealthAssessment{Status: StatusCritical, Issues: []string{"Cpk=0.5"}},
		SPC:    spcResult(0.5, 0),
	}}

	causes, err := engine.DiagnoseRootCauses(issues, graph)
	if err != nil {
		t.Fatalf("DiagnoseRootCauses: %v", err)
	}

	// R2 отброшен порогом 0.1, остальные отсортированы по убыванию
	if len(causes) != 2 {
		t.Fatalf("got %d causes, want 2", len(causes))
	}
	if causes[0].RiskCode != "R3" {
		t.Errorf("first cause = %q, want R3", causes[0].RiskCode)
	}
	if causes[0].Probability != 1.0 {
		t.Errorf("probability = %.2f, want capped 1.0", causes[0].Probability)
	}
	if causes[1].RiskCode != "R1" || math.Abs(causes[1].Probability-0.75) > 1e-9 {
		t.Errorf("second cause = %+v, want R1 with 0.75", causes[1])
	}
	if len(causes[0].Evidence) == 0 {
		t.Error("cause without evidence")
	}
}

func TestDiagnoseRootCausesTopN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopRootCauses = 2
	engine := NewRuleEngine(cfg)

	graph := &fakeGraph{risks: []database.RiskNode{
		{Code: "A", Name: "a", BaseProbability: 0.04, Weight: 10},
		{Code: "B", Name: "b", BaseProbability: 0.05, Weight: 10},
		{Code: "C", Name: "c", BaseProbability: 0.06, Weight: 10},
	}}

	causes, err := engine.DiagnoseRootCauses([]ParamIssue{{Param: ParamInfo{Code: "temp"}}}, graph)
	if err != nil {
		t.Fatalf("DiagnoseRootCauses: %v", err)
	}
	if len(causes) != 2 {
		t.Fatalf("got %d causes, want top-2", len(causes))
	}
	if causes[0].RiskCode != "C" || causes[1].RiskCode != "B" {
		t.Errorf("wrong top causes: %q, %q", causes[0].RiskCode, causes[1].RiskCode)
	}
}

// Пустой граф не оставляет диагностику без ответа
func TestDiagnoseRootCausesFallback(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())

	causes, err := engine.DiagnoseRootCauses([]ParamIssue{{
		Param: ParamInfo{NodeCode: "E04", Code: "temp"},
	}}, &fakeGraph{})
	if err != nil {
		t.Fatalf("DiagnoseRootCauses: %v", err)
	}
	if len(causes) == 0 {
		t.Fatal("expected fallback causes for temp parameter")
	}

	found := false
	for _, c := range causes {
		if strings.Contains(c.Name, "температур") {
			found = true
		}
	}
	if !found {
		t.Errorf("no temperature heuristic among causes: %+v", causes)
	}
}

func TestGenerateRecommendations(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())

	diagnosis := Diagnosis{RootCauses: []RootCause{
		{Name: "Нестабильность температуры на E04", Probability: 0.75, Category: "Equipment"},
		{Name: "Категория без правил", Probability: 0.5, Category: "Environment"},
	}}

	recs, err := engine.GenerateRecommendations(diagnosis, nil)
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
	if recs[0].Action != "Откалибровать датчик температуры" {
		t.Errorf("action = %q", recs[0].Action)
	}
	if !strings.Contains(recs[0].BasedOn, "75%") {
		t.Errorf("based_on lacks probability: %q", recs[0].BasedOn)
	}
}

func TestPrioritizeActions(t *testing.T) {
	engine := NewRuleEngine(DefaultConfig())

	actions := []Recommendation{
		{Action: "medium", Priority: PriorityMedium, EstimatedImpact: "Повышение стабильности"},
		{Action: "high-cpk", Priority: PriorityHigh, EstimatedImpact: "Повышение Cpk выше 1.5"},
		{Action: "high", Priority: PriorityHigh, EstimatedImpact: "Устранение выходов"},
		{Action: "low", Priority: PriorityLow, EstimatedImpact: ""},
	}

	scored, err := engine.PrioritizeActions(actions)
	if err != nil {
		t.Fatalf("PrioritizeActions: %v", err)
	}

	wantOrder := []string{"high-cpk", "high", "medium", "low"}
	for i, want := range wantOrder {
		if scored[i].Action != want {
			t.Fatalf("position %d = %q, want %q", i, scored[i].Action, want)
		}
	}

	// HIGH=100 + Weights.Cpk*100 за ссылку на Cpk
	if scored[0].PriorityScore != 140 {
		t.Errorf("high-cpk score = %.1f, want 140", scored[0].PriorityScore)
	}
	if scored[3].PriorityScore != 20 {
		t.Errorf("low score = %.1f, want 20", scored[3].PriorityScore)
	}

	// Балл не убывает с позицией
	for i := 1; i < len(scored); i++ {
		if scored[i].PriorityScore > scored[i-1].PriorityScore {
			t.Fatalf("score order broken at %d", i)
		}
	}

	// Вход не мутируется
	if actions[0].PriorityScore != 0 {
		t.Error("input slice mutated")
	}
}

func TestNewEngineFactory(t *testing.T) {
	cfg := DefaultConfig()

	for _, mode := range []string{ModeRuleBased, ModeLLMBased, ModeHybrid} {
		if _, err := New(mode, cfg); err != nil {
			t.Errorf("New(%q): %v", mode, err)
		}
	}

	_, err := New("neural", cfg)
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
