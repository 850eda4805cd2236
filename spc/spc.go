// Package spc реализует статистический контроль процессов (SPC):
// расчет индексов воспроизводимости процесса (Cpk/Cpu/Cpl),
// определение выходов за пределы спецификации и контрольных границ.
package spc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinDataPoints минимальное число точек для расчета выборочной дисперсии
const MinDataPoints = 2

// Типы нарушений спецификации
const (
	ViolationHigh = "OOS_HIGH" // значение выше верхнего предела
	ViolationLow  = "OOS_LOW"  // значение ниже нижнего предела
	StatusNormal  = "NORMAL"   // значение в пределах спецификации
)

// Spec пределы спецификации параметра.
// Указатели, потому что каждый предел может отсутствовать (односторонняя спецификация).
type Spec struct {
	USL    *float64 // верхний предел спецификации
	LSL    *float64 // нижний предел спецификации
	Target *float64 // целевое значение (опционально)
}

// Violation точка данных за пределами спецификации
type Violation struct {
	Index int     `json:"index"` // позиция в исходном ряду
	Value float64 `json:"value"`
	Type  string  `json:"type"` // OOS_HIGH или OOS_LOW
}

// ControlLimits контрольные границы, выведенные из наблюдаемой вариации (mean ± 3σ).
// Не путать с пределами спецификации: спецификация задается извне,
// контрольные границы — статистикой самого процесса.
type ControlLimits struct {
	Center float64 `json:"center"` // средняя линия
	UCL    float64 `json:"ucl"`    // верхняя контрольная граница
	LCL    float64 `json:"lcl"`    // нижняя контрольная граница
}

// Result результат SPC-анализа одного параметра
type Result struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	N      int     `json:"n"`

	// Индексы воспроизводимости. nil означает "не определен"
	// (нет соответствующего предела спецификации).
	Cpk *float64 `json:"cpk"`
	Cpu *float64 `json:"cpu"`
	Cpl *float64 `json:"cpl"`

	Violations    []Violation   `json:"violations"`
	ControlLimits ControlLimits `json:"control_limits"`

	// Предупреждения в человекочитаемом виде (низкий Cpk, выходы за спецификацию)
	Warnings []string `json:"warnings,omitempty"`
}

// InsufficientDataError недостаточно точек данных для анализа.
// Вызывающая сторона должна пропустить параметр, а не прерывать диагностику.
type InsufficientDataError struct {
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("недостаточно данных для SPC-анализа: %d точек, требуется минимум %d", e.Got, e.Need)
}

// Analyze выполняет SPC-анализ временного ряда одного параметра.
// Возвращает InsufficientDataError, если точек меньше двух.
func Analyze(values []float64, spec Spec) (*Result, error) {
	if len(values) < MinDataPoints {
		return nil, &InsufficientDataError{Got: len(values), Need: MinDataPoints}
	}

	mean := stat.Mean(values, nil)
	// stat.StdDev использует несмещенную оценку (знаменатель n-1)
	std := stat.StdDev(values, nil)

	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	result := &Result{
		Mean:   mean,
		StdDev: std,
		Min:    minVal,
		Max:    maxVal,
		N:      len(values),
		ControlLimits: ControlLimits{
			Center: mean,
			UCL:    mean + 3*std,
			LCL:    mean - 3*std,
		},
		Violations: checkViolations(values, spec),
	}

	result.Cpk, result.Cpu, result.Cpl = capabilityIndices(mean, std, spec)

	if result.Cpk != nil && *result.Cpk < 1.33 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("недостаточная воспроизводимость процесса (Cpk=%.3f < 1.33)", *result.Cpk))
	}
	if len(result.Violations) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("обнаружено %d точек за пределами спецификации", len(result.Violations)))
	}

	return result, nil
}

// capabilityIndices рассчитывает Cpk/Cpu/Cpl.
// При нулевой дисперсии Cpk фиксируется в 0.0: процесс вырожден
// и не может считаться воспроизводимым, даже если все точки в допуске.
func capabilityIndices(mean, std float64, spec Spec) (cpk, cpu, cpl *float64) {
	if std == 0 {
		zero := 0.0
		return &zero, nil, nil
	}

	if spec.USL != nil {
		v := round3((*spec.USL - mean) / (3 * std))
		cpu = &v
	}
	if spec.LSL != nil {
		v := round3((mean - *spec.LSL) / (3 * std))
		cpl = &v
	}

	switch {
	case cpu != nil && cpl != nil:
		v := math.Min(*cpu, *cpl)
		cpk = &v
	case cpu != nil:
		v := *cpu
		cpk = &v
	case cpl != nil:
		v := *cpl
		cpk = &v
	}

	return cpk, cpu, cpl
}

// checkViolations находит точки строго за пределами спецификации
func checkViolations(values []float64, spec Spec) []Violation {
	var violations []Violation

	for i, v := range values {
		switch {
		case spec.USL != nil && v > *spec.USL:
			violations = append(violations, Violation{Index: i, Value: v, Type: ViolationHigh})
		case spec.LSL != nil && v < *spec.LSL:
			violations = append(violations, Violation{Index: i, Value: v, Type: ViolationLow})
		}
	}

	return violations
}

// CheckRule классифицирует одиночное значение относительно спецификации.
// Удобный метод для поточечной проверки без полного анализа.
func CheckRule(value float64, spec Spec) string {
	if spec.USL != nil && value > *spec.USL {
		return ViolationHigh
	}
	if spec.LSL != nil && value < *spec.LSL {
		return ViolationLow
	}
	return StatusNormal
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
