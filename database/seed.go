package database

import "fmt"

// SeedDemo наполняет пустую базу минимальным справочником:
// дерево узлов, спецификации параметров, граф рисков и библиотека контрмер.
// Повторный запуск безопасен: все вставки идемпотентны.
func (db *ProcessDB) SeedDemo() error {
	nodes := []ProcessNode{
		{Code: "BLOCK_E", Name: "Цех экстракции", NodeType: NodeTypeBlock},
		{Code: "BLOCK_P", Name: "Цех сушки и грануляции", NodeType: NodeTypeBlock},
		{Code: "E04", Name: "Экстрактор спиртовой", ParentCode: "BLOCK_E", NodeType: NodeTypeUnit},
		{Code: "E17", Name: "Концентратор", ParentCode: "BLOCK_E", NodeType: NodeTypeUnit},
		{Code: "P01", Name: "Сушилка распылительная", ParentCode: "BLOCK_P", NodeType: NodeTypeUnit},
	}
	for _, n := range nodes {
		if err := db.InsertProcessNode(n); err != nil {
			return fmt.Errorf("seed nodes: %w", err)
		}
	}

	f := func(v float64) *float64 { return &v }
	params := []ParameterSpec{
		{NodeCode: "E04", Code: "temp", Name: "Температура экстракции", Unit: "°C", Role: "Control", USL: f(90), LSL: f(75), Target: f(85)},
		{NodeCode: "E04", Code: "pressure", Name: "Давление в аппарате", Unit: "бар", Role: "Control", USL: f(2.5), LSL: f(1.0), Target: f(1.8)},
		{NodeCode: "E17", Code: "temp", Name: "Температура концентрирования", Unit: "°C", Role: "Control", USL: f(70), LSL: f(55), Target: f(62)},
		{NodeCode: "P01", Code: "moisture", Name: "Влажность гранулята", Unit: "%", Role: "Output", USL: f(5.0), LSL: f(1.5), Target: f(3.0)},
		{NodeCode: "P01", Code: "dry_time", Name: "Время сушки", Unit: "мин", Role: "Control", USL: f(240), LSL: f(120), Target: f(180)},
	}
	for _, p := range params {
		if err := db.InsertParameterSpec(p); err != nil {
			return fmt.Errorf("seed params: %w", err)
		}
	}

	risks := []RiskNode{
		{Code: "R_{node}_TEMP", Name: "Нестабильность температуры на {node}", Category: "Equipment", BaseProbability: 0.05, MatchKeyword: "temp", Weight: 15.0},
		{Code: "R_{node}_PRESSURE", Name: "Отклонение давления на {node}", Category: "Equipment", BaseProbability: 0.03, MatchKeyword: "pressure", Weight: 20.0},
		{Code: "R_{node}_MOISTURE", Name: "Превышение влажности на {node}", Category: "Method", BaseProbability: 0.04, MatchKeyword: "moisture", Weight: 12.0},
		{Code: "R_{node}_GENERIC", Name: "Неисправность оборудования {node}", Category: "Equipment", BaseProbability: 0.02, MatchKeyword: "", Weight: 10.0},
	}
	for _, r := range risks {
		if err := db.InsertRiskNode(r); err != nil {
			return fmt.Errorf("seed risks: %w", err)
		}
	}

	actions := []ActionDef{
		{
			Code: "ACT_TEMP_HIGH_OP", Name: "Снизить подачу пара",
			RiskCode: "R_E04_TEMP_HIGH", TargetRole: "Operator",
			InstructionTemplate: "{node_name}: температура {current_value} выше цели {target_value}. Установите открытие парового клапана {suggested_valve}% (сейчас {current_valve}%). Партия {batch_id}.",
			Priority:            "CRITICAL", Category: "Equipment",
			EstimatedImpact: "Возврат Cpk выше 1.33", Active: true,
		},
		{
			Code: "ACT_TEMP_HIGH_QA", Name: "Внеплановый контроль партии",
			RiskCode: "R_E04_TEMP_HIGH", TargetRole: "QA",
			InstructionTemplate: "Партия {batch_id}: зафиксирован перегрев на {node_name} (Cpk={cpk}). Возьмите дополнительную пробу на анализ.",
			Priority:            "HIGH", Category: "Quality",
			EstimatedImpact: "Исключение брака", Active: true,
		},
		{
			Code: "ACT_TEMP_LOW_OP", Name: "Поднять температуру",
			RiskCode: "R_E04_TEMP_LOW", TargetRole: "Operator",
			InstructionTemplate: "{node_name}: температура {current_value} ниже цели {target_value}. Установите открытие парового клапана {suggested_valve}% (сейчас {current_valve}%). Партия {batch_id}.",
			Priority:            "HIGH", Category: "Equipment",
			EstimatedImpact: "Стабилизация экстракции", Active: true,
		},
		{
			Code: "ACT_MOISTURE_TL", Name: "Проверить режим сушки",
			RiskCode: "R_P01_MOISTURE_HIGH", TargetRole: "TeamLeader",
			InstructionTemplate: "{node_name}: влажность {current_value}% при цели {target_value}%. Проверьте режим сушки партии {batch_id} и подтвердите корректировку.",
			Priority:            "HIGH", Category: "Method",
			EstimatedImpact: "Повышение Cpk влажности", Active: true,
		},
		{
			Code: "ACT_PRESSURE_OP", Name: "Проверить давление",
			RiskCode: "R_E04_PRESSURE_HIGH", TargetRole: "Operator",
			InstructionTemplate: "{node_name}: давление {current_value} за пределами нормы. Проверьте редуктор, партия {batch_id}.",
			Priority:            "MEDIUM", Category: "Equipment",
			EstimatedImpact: "Снижение числа выходов за спецификацию", Active: true,
		},
		{
			Code: "ACT_SUMMARY_MGR", Name: "Сводка для руководителя",
			RiskCode: "R_E04_TEMP_HIGH", TargetRole: "Manager",
			InstructionTemplate: "Сводка: на {node_name} выявлено критическое отклонение (Cpk={cpk}), партия {batch_id}. Ознакомьтесь с отчетом диагностики.",
			Priority:            "MEDIUM", Category: "Report",
			EstimatedImpact: "Прозрачность процесса", Active: true,
		},
	}
	for _, a := range actions {
		if _, err := db.InsertActionDef(a); err != nil {
			return fmt.Errorf("seed actions: %w", err)
		}
	}

	return nil
}
