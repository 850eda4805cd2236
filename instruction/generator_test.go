package instruction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"mesdiag/database"
	"mesdiag/decision"
	"mesdiag/diagnosis"
)

// fakeStore справочники и журнал в памяти
type fakeStore struct {
	batches []database.Batch
	nodes   map[string]*database.ProcessNode
	actions map[string][]database.ActionDef
	saved   []database.DailyInstruction
	saveErr error
}

func (s *fakeStore) AllBatches() ([]database.Batch, error) { return s.batches, nil }

func (s *fakeStore) NodesByType(nodeType string) ([]database.ProcessNode, error) {
	var out []database.ProcessNode
	for _, n := range s.nodes {
		if n.NodeType == nodeType {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *fakeStore) GetProcessNode(code string) (*database.ProcessNode, error) {
	return s.nodes[code], nil
}

func (s *fakeStore) ActiveActionsByRisk(riskCode string) ([]database.ActionDef, error) {
	return s.actions[riskCode], nil
}

func (s *fakeStore) SaveInstructions(instructions []database.DailyInstruction) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, instructions...)
	return nil
}

// fakeDiagnoser отдает заранее подготовленные отчеты по партиям
type fakeDiagnoser struct {
	byBatch map[string]*diagnosis.Report
}

func (d *fakeDiagnoser) AnalyzeByBatch(ctx context.Context, batchID string) (*diagnosis.Report, error) {
	if r, ok := d.byBatch[batchID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("партия %s не найдена", batchID)
}

func (d *fakeDiagnoser) AnalyzeByProcess(ctx context.Context, nodeCode string, windowDays int) (*diagnosis.Report, error) {
	return &diagnosis.Report{OverallStatus: "NORMAL"}, nil
}

func (d *fakeDiagnoser) AnalyzeByWorkshop(ctx context.Context, blockCode, date string) (*diagnosis.Report, error) {
	return &diagnosis.Report{OverallStatus: "NORMAL"}, nil
}

func tempHighReport(batchID string) *diagnosis.Report {
	cpkData := map[string]any{"mean": 89.3, "cpk": 0.85, "target_value": 85.0}
	return &diagnosis.Report{
		OverallStatus: "CRITICAL",
		CriticalIssues: []diagnosis.Finding{{
			Type: diagnosis.FindingParameterIssue, Severity: "CRITICAL",
			NodeCode: "E04", ParamCode: "temp", ParamName: "Температура реактора",
			BatchID: batchID, Data: cpkData,
		}},
	}
}

func operatorTempAction() database.ActionDef {
	return database.ActionDef{
		Code: "ACT_TEMP_HIGH_OP", RiskCode: "R_E04_TEMP_HIGH", TargetRole: RoleOperator,
		Priority: "CRITICAL", Active: true,
		InstructionTemplate: "На {node_name} температура {current_value} выше цели {target_value}. " +
			"Партия {batch_id}: перевести клапан с {current_valve} на {suggested_valve}.",
	}
}

func runningBatch(id string) database.Batch {
	return database.Batch{ID: id, Status: database.BatchRunning, StartTime: time.Now().UTC()}
}

func TestGenerateDailyTempHigh(t *testing.T) {
	store := &fakeStore{
		batches: []database.Batch{runningBatch("B001")},
		nodes: map[string]*database.ProcessNode{
			"E04": {Code: "E04", Name: "Реактор Е-04", NodeType: database.NodeTypeUnit},
		},
		actions: map[string][]database.ActionDef{
			"R_E04_TEMP_HIGH": {operatorTempAction()},
		},
	}
	// Аппарат E04 в обходе по процессам вернет NORMAL, кандидат только из партии
	diag := &fakeDiagnoser{byBatch: map[string]*diagnosis.Report{"B001": tempHighReport("B001")}}

	gen := NewGenerator(store, diag, nil)
	result, err := gen.GenerateDaily(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}

	if result.Total != 1 {
		t.Fatalf("total = %d, want 1 (skipped: %v)", result.Total, result.Skipped)
	}
	if result.ByRole[RoleOperator] != 1 {
		t.Fatalf("by_role = %v", result.ByRole)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved = %d", len(store.saved))
	}

	ins := store.saved[0]
	if ins.Role != RoleOperator || ins.ActionCode != "ACT_TEMP_HIGH_OP" || ins.BatchID != "B001" {
		t.Errorf("instruction = %+v", ins)
	}
	if ins.Status != database.InstructionPending {
		t.Errorf("status = %q", ins.Status)
	}

	// Строгая подстановка: дыр в тексте не осталось
	for _, leftover := range []string{"{node_name}", "{current_value}", "{suggested_valve}"} {
		if strings.Contains(ins.Content, leftover) {
			t.Errorf("content carries unresolved %s: %q", leftover, ins.Content)
		}
	}
	if !strings.Contains(ins.Content, "Реактор Е-04") {
		t.Errorf("content lacks node name: %q", ins.Content)
	}
	// Отклонение вверх: клапан прикрывается на шаг от базы
	if !strings.Contains(ins.Content, "на 45") {
		t.Errorf("content lacks suggested valve 45: %q", ins.Content)
	}

	// Доказательная база содержит каждую использованную переменную и исходный Cpk
	if ins.Evidence["cpk"] != 0.85 {
		t.Errorf("evidence cpk = %v", ins.Evidence["cpk"])
	}
	for _, name := range []string{"node_name", "current_value", "target_value", "batch_id", "current_valve", "suggested_valve"} {
		if _, ok := ins.Evidence[name]; !ok {
			t.Errorf("evidence lacks %q", name)
		}
	}
}

func TestGenerateDailyDedupe(t *testing.T) {
	report := tempHighReport("B001")
	// Та же находка продублирована в предупреждениях
	report.Warnings = append(report.Warnings, report.CriticalIssues[0])

	store := &fakeStore{
		batches: []database.Batch{runningBatch("B001")},
		nodes:   map[string]*database.ProcessNode{},
		actions: map[string][]database.ActionDef{"R_E04_TEMP_HIGH": {operatorTempAction()}},
	}
	gen := NewGenerator(store, &fakeDiagnoser{byBatch: map[string]*diagnosis.Report{"B001": report}}, nil)

	result, err := gen.GenerateDaily(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1 after dedupe", result.Total)
	}
}

// Дырявый шаблон отбрасывает одно указание, не весь журнал
func TestGenerateDailyTemplateErrorIsolated(t *testing.T) {
	broken := operatorTempAction()
	broken.Code = "ACT_BROKEN"
	broken.TargetRole = RoleQA
	broken.InstructionTemplate = "Значение {no_such_variable} вне допуска"

	store := &fakeStore{
		batches: []database.Batch{runningBatch("B001")},
		nodes:   map[string]*database.ProcessNode{},
		actions: map[string][]database.ActionDef{
			"R_E04_TEMP_HIGH": {operatorTempAction(), broken},
		},
	}
	gen := NewGenerator(store, &fakeDiagnoser{byBatch: map[string]*diagnosis.Report{"B001": tempHighReport("B001")}}, nil)

	result, err := gen.GenerateDaily(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1", result.Total)
	}
	if len(result.Skipped) == 0 {
		t.Fatal("template failure not recorded")
	}
	if result.ByRole[RoleQA] != 0 {
		t.Error("broken instruction reached the journal")
	}
}

func TestGenerateDailyRoleCap(t *testing.T) {
	// 15 партий с одинаковой проблемой дают 15 кандидатов для одной роли
	store := &fakeStore{
		nodes:   map[string]*database.ProcessNode{},
		actions: map[string][]database.ActionDef{"R_E04_TEMP_HIGH": {operatorTempAction()}},
	}
	diag := &fakeDiagnoser{byBatch: map[string]*diagnosis.Report{}}
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("B%03d", i)
		store.batches = append(store.batches, runningBatch(id))
		diag.byBatch[id] = tempHighReport(id)
	}

	gen := NewGenerator(store, diag, nil)
	result, err := gen.GenerateDaily(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}
	if result.ByRole[RoleOperator] != MaxPerRole {
		t.Fatalf("operator instructions = %d, want cap %d", result.ByRole[RoleOperator], MaxPerRole)
	}
}

// Сбой диагностики одного разреза не срывает генерацию
func TestGenerateDailyDimensionFailureIsolated(t *testing.T) {
	store := &fakeStore{
		batches: []database.Batch{runningBatch("B001"), runningBatch("B404")},
		nodes:   map[string]*database.ProcessNode{},
		actions: map[string][]database.ActionDef{"R_E04_TEMP_HIGH": {operatorTempAction()}},
	}
	gen := NewGenerator(store, &fakeDiagnoser{byBatch: map[string]*diagnosis.Report{"B001": tempHighReport("B001")}}, nil)

	result, err := gen.GenerateDaily(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1", result.Total)
	}
	if len(result.Skipped) == 0 {
		t.Fatal("failed dimension not recorded")
	}
}

func TestDeriveRiskCode(t *testing.T) {
	rules := defaultDerivationRules()

	tests := []struct {
		param    string
		node     string
		severity string
		want     string
	}{
		// Температура делится по серьезности, остальные ключи — фиксированные коды
		{"temp", "E04", "CRITICAL", "R_E04_TEMP_HIGH"},
		{"temp", "E04", "HIGH", "R_E04_TEMP_HIGH"},
		{"temp", "E17", "WARNING", "R_E17_TEMP_LOW"},
		{"pressure", "E04", "CRITICAL", "R_E04_PRESSURE_HIGH"},
		{"pressure", "E04", "WARNING", "R_E04_PRESSURE_HIGH"},
		{"moisture", "P01", "CRITICAL", "R_P01_MOISTURE_HIGH"},
		{"moisture", "P01", "WARNING", "R_P01_MOISTURE_HIGH"},
		{"dry_time", "P01", "CRITICAL", "R_P01_TIME_SHORT"},
		{"dry_time", "P01", "WARNING", "R_P01_TIME_SHORT"},
		{"ph", "E04", "CRITICAL", ""},
	}

	for _, tt := range tests {
		got := deriveRiskCode(rules, candidate{
			NodeCode: tt.node, ParamCode: tt.param, Severity: tt.severity,
		})
		if got != tt.want {
			t.Errorf("deriveRiskCode(%s, %s, %s) = %q, want %q",
				tt.param, tt.node, tt.severity, got, tt.want)
		}
	}
}

func TestDeriveRiskCodeIgnoresDirection(t *testing.T) {
	// Направление отклонения влияет только на рекомендацию по клапану,
	// код риска выбирается серьезностью
	got := deriveRiskCode(defaultDerivationRules(), candidate{
		NodeCode: "E04", ParamCode: "temp", Severity: "CRITICAL", Direction: "low",
	})
	if got != "R_E04_TEMP_HIGH" {
		t.Errorf("deriveRiskCode = %q, want R_E04_TEMP_HIGH", got)
	}
}

func TestRenderTemplateStrict(t *testing.T) {
	vars := map[string]string{"node_name": "Е-04", "current_value": "89.30"}

	out, err := renderTemplate("ACT", "На {node_name}: {current_value}", vars)
	if err != nil {
		t.Fatalf("renderTemplate: %v", err)
	}
	if out != "На Е-04: 89.30" {
		t.Errorf("out = %q", out)
	}

	_, err = renderTemplate("ACT", "Нет значения {missing}", vars)
	var templateErr *TemplateError
	if !errors.As(err, &templateErr) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
	if templateErr.Variable != "missing" {
		t.Errorf("variable = %q", templateErr.Variable)
	}
}


func TestGenerateDailyRootCauseVars(t *testing.T) {
	report := tempHighReport("B001")
	report.RootCauses = []decision.RootCause{
		{Name: "Засорение теплообменника", Probability: 0.75, Category: "equipment"},
		{Name: "Дрейф датчика", Probability: 0.4, Category: "sensor"},
	}

	qaAction := operatorTempAction()
	qaAction.Code = "ACT_TEMP_HIGH_QA"
	qaAction.TargetRole = RoleQA
	qaAction.InstructionTemplate = "Проверить причину: {root_cause} (вероятность {prob})"

	store := &fakeStore{
		batches: []database.Batch{runningBatch("B001")},
		nodes: map[string]*database.ProcessNode{
			"E04": {Code: "E04", Name: "Реактор Е-04", NodeType: database.NodeTypeUnit},
		},
		actions: map[string][]database.ActionDef{
			"R_E04_TEMP_HIGH": {qaAction},
		},
	}
	gen := NewGenerator(store, &fakeDiagnoser{byBatch: map[string]*diagnosis.Report{"B001": report}}, nil)

	result, err := gen.GenerateDaily(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}
	if result.ByRole[RoleQA] != 1 {
		t.Fatalf("ByRole[QA] = %d, want 1", result.ByRole[RoleQA])
	}

	ins := store.saved[0]
	if !strings.Contains(ins.Content, "Засорение теплообменника") {
		t.Errorf("content lacks leading root cause: %q", ins.Content)
	}
	if !strings.Contains(ins.Content, "75%") {
		t.Errorf("content lacks probability: %q", ins.Content)
	}
	if ins.Evidence["root_cause"] != "Засорение теплообменника" {
		t.Errorf("evidence root_cause = %v", ins.Evidence["root_cause"])
	}
}
