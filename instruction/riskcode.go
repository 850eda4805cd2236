package instruction

import "strings"

// DerivationRule правило вывода кода риска по коду параметра и серьезности.
// Keyword сопоставляется подстрокой; в шаблонах кода {node} заменяется
// на код узла. SevereCode выбирается при серьезности CRITICAL/HIGH,
// OtherCode — при остальных; одинаковые коды дают фиксированное правило.
type DerivationRule struct {
	Keyword    string
	SevereCode string // CRITICAL и HIGH
	OtherCode  string // остальные серьезности (пусто — случай не покрыт)
}

// defaultDerivationRules стандартные правила вывода.
// Таблица, а не логика: новые параметры подключаются строкой, без кода.
func defaultDerivationRules() []DerivationRule {
	return []DerivationRule{
		// Только температура различает серьезность: сильное отклонение — перегрев
		{Keyword: "temp", SevereCode: "R_{node}_TEMP_HIGH", OtherCode: "R_{node}_TEMP_LOW"},
		{Keyword: "pressure", SevereCode: "R_{node}_PRESSURE_HIGH", OtherCode: "R_{node}_PRESSURE_HIGH"},
		// Влажность контролируется только сверху и привязана к сушилке P01
		{Keyword: "moisture", SevereCode: "R_P01_MOISTURE_HIGH", OtherCode: "R_P01_MOISTURE_HIGH"},
		{Keyword: "time", SevereCode: "R_{node}_TIME_SHORT", OtherCode: "R_{node}_TIME_SHORT"},
	}
}

// deriveRiskCode выводит код риска для проблемного параметра.
// Пустой результат — параметр не покрыт правилами, контрмеры не подбираются.
func deriveRiskCode(rules []DerivationRule, c candidate) string {
	param := strings.ToLower(c.ParamCode)

	for _, rule := range rules {
		if !strings.Contains(param, rule.Keyword) {
			continue
		}

		pattern := rule.OtherCode
		if c.Severity == "CRITICAL" || c.Severity == "HIGH" {
			pattern = rule.SevereCode
		}
		if pattern == "" {
			return ""
		}

		return strings.ReplaceAll(pattern, "{node}", c.NodeCode)
	}

	return ""
}
