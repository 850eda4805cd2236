// Package datacontext разрешает именованное измерение анализа (партия, аппарат,
// цех, оператор, временной интервал) и параметры фильтра в единый набор данных
// для последующей диагностики.
package datacontext

import (
	"fmt"
	"time"

	"mesdiag/database"
)

// Имена измерений анализа
const (
	DimensionPerson   = "person"
	DimensionBatch    = "batch"
	DimensionProcess  = "process"
	DimensionWorkshop = "workshop"
	DimensionTime     = "time"
)

// DefaultProcessWindowDays окно по умолчанию для анализа по аппарату
const DefaultProcessWindowDays = 7

// Filters параметры фильтра запроса. Набор обязательных ключей зависит от измерения.
type Filters struct {
	OperatorID string // person
	BatchID    string // batch
	NodeCode   string // process
	BlockCode  string // workshop

	// Временные границы. Для process DateFrom имеет приоритет над WindowDays.
	DateFrom    *time.Time
	DateTo      *time.Time
	WindowDays  int
	Date        string // workshop: календарный день YYYY-MM-DD (по умолчанию сегодня)
	Granularity string // time: day/week/month, только метаданные
}

// DataContext единый результат разрешения измерения.
// Конструируется заново на каждый запрос, неизменяем, никогда не сохраняется.
type DataContext struct {
	Dimension    string                 `json:"dimension"`
	Filters      Filters                `json:"filters"`
	Batches      []string               `json:"batches"`
	Measurements []database.Measurement `json:"measurements"`
	Metadata     map[string]any         `json:"metadata"`
	QueryTime    time.Time              `json:"query_time"`
}

// ValidationError отсутствует или некорректен обязательный фильтр.
// Исправляется вызывающей стороной, анализ не запускается.
type ValidationError struct {
	Dimension string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("некорректный запрос измерения %q: %s (%s)", e.Dimension, e.Reason, e.Field)
}

// ConfigurationError неизвестное измерение или режим. Фатальна для вызова.
type ConfigurationError struct {
	What string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ошибка конфигурации: %s", e.What)
}
