package database

import "time"

// Типы узлов процесса
const (
	NodeTypeBlock = "Block" // цех
	NodeTypeUnit  = "Unit"  // аппарат/единица оборудования
)

// Источники данных измерений
const (
	SourceHistory    = "HISTORY"
	SourceSimulation = "SIMULATION"
	SourceSensor     = "SENSOR"
)

// Статусы партии
const (
	BatchRunning   = "Running"
	BatchCompleted = "Completed"
	BatchArchived  = "Archived"
)

// Статусы жизненного цикла указания
const (
	InstructionPending = "Pending"
	InstructionRead    = "Read"
	InstructionDone    = "Done"
)

// ProcessNode узел технологического процесса (цех или аппарат)
type ProcessNode struct {
	ID         int    `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentCode string `json:"parent_code"`
	NodeType   string `json:"node_type"`
}

// ParameterSpec определение технологического параметра со спецификацией.
// Справочные данные, для ядра диагностики доступны только на чтение.
type ParameterSpec struct {
	NodeCode string   `json:"node_code"`
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Unit     string   `json:"unit"`
	Role     string   `json:"role"`
	USL      *float64 `json:"usl"`
	LSL      *float64 `json:"lsl"`
	Target   *float64 `json:"target"`
}

// Batch производственная партия
type Batch struct {
	ID          string    `json:"id"`
	ProductName string    `json:"product_name"`
	OperatorID  string    `json:"operator_id"`
	StartTime   time.Time `json:"start_time"`
	Status      string    `json:"status"`
}

// Measurement измерение технологического параметра.
// Запись неизменяема после вставки, таблица append-only.
type Measurement struct {
	ID         int       `json:"id"`
	BatchID    string    `json:"batch_id"`
	NodeCode   string    `json:"node_code"`
	ParamCode  string    `json:"param_code"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	SourceType string    `json:"source_type"`
}

// RiskNode узел графа рисков.
// MatchKeyword — подстрока кода параметра, по которой риск считается релевантным;
// правило сопоставления хранится как данные, а не зашито в код.
type RiskNode struct {
	ID              int     `json:"id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	BaseProbability float64 `json:"base_probability"`
	MatchKeyword    string  `json:"match_keyword"`
	Weight          float64 `json:"weight"`
}

// RiskEdge причинная связь между рисками
type RiskEdge struct {
	ID         int     `json:"id"`
	SourceCode string  `json:"source_code"`
	TargetCode string  `json:"target_code"`
	Weight     float64 `json:"weight"`
}

// ActionDef контрмера из библиотеки стандартных мер реагирования
type ActionDef struct {
	ID                  int    `json:"id"`
	Code                string `json:"code"`
	Name                string `json:"name"`
	RiskCode            string `json:"risk_code"`
	TargetRole          string `json:"target_role"`
	InstructionTemplate string `json:"instruction_template"`
	Priority            string `json:"priority"`
	Category            string `json:"category"`
	EstimatedImpact     string `json:"estimated_impact"`
	Active              bool   `json:"active"`
}

// DailyInstruction персистентная запись указания в суточном журнале
type DailyInstruction struct {
	ID         int            `json:"id"`
	TargetDate string         `json:"target_date"`
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Priority   string         `json:"priority"`
	Evidence   map[string]any `json:"evidence"`
	ActionCode string         `json:"action_code"`
	BatchID    string         `json:"batch_id"`
	NodeCode   string         `json:"node_code"`
	ParamCode  string         `json:"param_code"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ReadAt     time.Time      `json:"read_at,omitempty"`
	DoneAt     time.Time      `json:"done_at,omitempty"`
	Feedback   string         `json:"feedback,omitempty"`
}
