package decision

// PriorityWeights веса составляющих приоритетного балла.
// Это настраиваемые бизнес-параметры, а не алгоритмические инварианты.
type PriorityWeights struct {
	Cpk        float64
	Risk       float64
	Trend      float64
	Violations float64
}

// Config пороги и веса решающего модуля
type Config struct {
	// Пороги SPC
	CpkCritical float64 // Cpk ниже порога — CRITICAL
	CpkWarning  float64 // Cpk ниже порога — WARNING

	// Пороги вероятности риска
	RiskCritical float64
	RiskWarning  float64

	// Требования к данным
	MinDataPoints int

	// Веса приоритизации
	Weights PriorityWeights

	// Границы однозначной зоны для гибридного режима:
	// Cpk вне [HybridClearLow, HybridClearHigh] считается очевидным случаем
	// и обрабатывается правилами, середина делегируется альтернативному движку.
	HybridClearLow  float64
	HybridClearHigh float64

	// Сколько корневых причин сохранять после ранжирования
	TopRootCauses int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		CpkCritical:     0.8,
		CpkWarning:      1.33,
		RiskCritical:    0.3,
		RiskWarning:     0.1,
		MinDataPoints:   5,
		Weights:         PriorityWeights{Cpk: 0.4, Risk: 0.3, Trend: 0.2, Violations: 0.1},
		HybridClearLow:  0.5,
		HybridClearHigh: 2.0,
		TopRootCauses:   5,
	}
}
