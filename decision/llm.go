package decision

import "mesdiag/spc"

// LLMEngine решающий модуль на основе языковой модели.
// Зарезервированный вариант: интерфейс закреплен, реализация отсутствует,
// каждая операция возвращает EngineUnavailableError.
type LLMEngine struct{}

func (e *LLMEngine) AssessHealth(param ParamInfo, result *spc.Result) (HealthAssessment, error) {
	return HealthAssessment{}, &EngineUnavailableError{Mode: ModeLLMBased, Op: "AssessHealth"}
}

func (e *LLMEngine) DiagnoseRootCauses(issues []ParamIssue, graph Graph) ([]RootCause, error) {
	return nil, &EngineUnavailableError{Mode: ModeLLMBased, Op: "DiagnoseRootCauses"}
}

func (e *LLMEngine) GenerateRecommendations(diagnosis Diagnosis, graph Graph) ([]Recommendation, error) {
	return nil, &EngineUnavailableError{Mode: ModeLLMBased, Op: "GenerateRecommendations"}
}

func (e *LLMEngine) PrioritizeActions(actions []Recommendation) ([]Recommendation, error) {
	return nil, &EngineUnavailableError{Mode: ModeLLMBased, Op: "PrioritizeActions"}
}
