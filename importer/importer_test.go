package importer

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"mesdiag/database"
)

// fakeActionStore библиотека контрмер в памяти
type fakeActionStore struct {
	actions map[string]database.ActionDef
}

func (s *fakeActionStore) InsertActionDef(a database.ActionDef) (bool, error) {
	if _, ok := s.actions[a.Code]; ok {
		return false, nil
	}
	s.actions[a.Code] = a
	return true, nil
}

func TestImportActions(t *testing.T) {
	csvData := `code,name,risk_code,target_role,priority,category,estimated_impact,active,template
ACT_TEMP_HIGH_OP,Снизить температуру,R_E04_TEMP_HIGH,Operator,CRITICAL,Process,Стабилизация,1,Перевести клапан на {suggested_valve}
ACT_TEMP_HIGH_QA,Внеплановый контроль,R_E04_TEMP_HIGH,QA,HIGH,Quality,Контроль партии,true,Проверить партию {batch_id}
,Без кода,R_X,Operator,LOW,,,1,текст
ACT_OLD,Устаревшая мера,R_X,Operator,LOW,,,0,текст
`

	store := &fakeActionStore{actions: make(map[string]database.ActionDef)}
	result, err := ImportActions(store, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportActions: %v", err)
	}

	if result.Total != 4 || result.Success != 3 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v", result.Errors)
	}
	if store.actions["ACT_TEMP_HIGH_OP"].Priority != "CRITICAL" {
		t.Errorf("action = %+v", store.actions["ACT_TEMP_HIGH_OP"])
	}
	if store.actions["ACT_OLD"].Active {
		t.Error("active=0 parsed as active")
	}

	// Повторный импорт пропускает существующие коды
	again, err := ImportActions(store, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("second ImportActions: %v", err)
	}
	if again.Success != 0 || again.Skipped != 3 {
		t.Errorf("second import = %+v", again)
	}
}

func TestImportActionsMissingColumn(t *testing.T) {
	store := &fakeActionStore{actions: make(map[string]database.ActionDef)}
	_, err := ImportActions(store, strings.NewReader("code,name\nA,B\n"))
	if err == nil {
		t.Fatal("expected error for missing risk_code column")
	}
}

// fakeMeasurementStore измерения в памяти
type fakeMeasurementStore struct {
	batches      []database.Batch
	measurements []database.Measurement
}

func (s *fakeMeasurementStore) InsertBatch(b database.Batch) error {
	s.batches = append(s.batches, b)
	return nil
}

func (s *fakeMeasurementStore) InsertMeasurements(measurements []database.Measurement) error {
	s.measurements = append(s.measurements, measurements...)
	return nil
}

func TestImportMeasurements(t *testing.T) {
	csvData := "batch_id;node_code;param_code;value;timestamp;source\n" +
		"B001;E04;temp;85,4;10.03.2026 08:00:00;HISTORY\n" +
		"B001;E04;temp;86,1;10.03.2026 08:01:00;\n" +
		"B002;P01;moisture;1,2;2026-03-10 09:00:00;HISTORY\n" +
		"B003;E04;temp;not_a_number;10.03.2026 08:00:00;HISTORY\n"

	store := &fakeMeasurementStore{}
	result, err := ImportMeasurements(store, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportMeasurements: %v", err)
	}

	if result.Total != 4 || result.Success != 3 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v", result.Errors)
	}
	if len(store.measurements) != 3 {
		t.Fatalf("measurements = %d", len(store.measurements))
	}

	// Десятичная запятая разобрана
	if store.measurements[0].Value != 85.4 {
		t.Errorf("value = %v", store.measurements[0].Value)
	}
	// Пустой источник трактуется как историческая выгрузка
	if store.measurements[1].SourceType != database.SourceHistory {
		t.Errorf("source = %q", store.measurements[1].SourceType)
	}
	// Каждая новая партия заведена один раз
	if len(store.batches) != 2 {
		t.Errorf("batches = %+v", store.batches)
	}
}

// Файл в Windows-1251 декодируется без потерь
func TestImportMeasurementsWin1251(t *testing.T) {
	utf8Data := "batch_id;node_code;param_code;value;timestamp;source\n" +
		"Партия-1;E04;temp;85,4;10.03.2026 08:00:00;HISTORY\n"

	encoder := charmap.Windows1251.NewEncoder()
	encoded, err := encoder.String(utf8Data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoder := charmap.Windows1251.NewDecoder()
	store := &fakeMeasurementStore{}
	result, err := ImportMeasurements(store, decoder.Reader(strings.NewReader(encoded)))
	if err != nil {
		t.Fatalf("ImportMeasurements: %v", err)
	}
	if result.Success != 1 {
		t.Fatalf("result = %+v", result)
	}
	if store.measurements[0].BatchID != "Партия-1" {
		t.Errorf("batch id corrupted: %q", store.measurements[0].BatchID)
	}
}
