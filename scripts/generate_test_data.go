// Скрипт generate_test_data наполняет базу демонстрационными данными:
// справочники процесса, партии и измерения с внесенными аномалиями,
// чтобы диагностика выдавала осмысленные находки на свежей базе.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"mesdiag/database"
)

func main() {
	dbPath := flag.String("db", "mesdiag.db", "путь к базе данных")
	batches := flag.Int("batches", 20, "сколько партий сгенерировать")
	perBatch := flag.Int("points", 30, "измерений на параметр в партии")
	flag.Parse()

	gofakeit.Seed(0)

	db, err := database.NewProcessDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.SeedDemo(); err != nil {
		log.Fatalf("Failed to seed reference data: %v", err)
	}

	operators := []string{"OP-3", "OP-7", "OP-12"}
	start := time.Now().UTC().AddDate(0, 0, -6)

	total := 0
	for i := 0; i < *batches; i++ {
		batchID := gofakeit.Numerify("B####")
		startTime := start.Add(time.Duration(i*7) * time.Hour)

		status := database.BatchCompleted
		if i == *batches-1 {
			status = database.BatchRunning
		}

		if err := db.InsertBatch(database.Batch{
			ID:          batchID,
			ProductName: gofakeit.RandomString([]string{"Аммофос", "Суперфосфат", "NPK 16-16-16"}),
			OperatorID:  gofakeit.RandomString(operators),
			StartTime:   startTime,
			Status:      status,
		}); err != nil {
			log.Fatalf("Failed to insert batch %s: %v", batchID, err)
		}

		// Каждая третья партия получает дрейф температуры к верхней границе
		hotDrift := i%3 == 0

		measurements := make([]database.Measurement, 0, *perBatch*3)
		for p := 0; p < *perBatch; p++ {
			ts := startTime.Add(time.Duration(p) * time.Minute)

			temp := gofakeit.Float64Range(83.0, 87.0)
			if hotDrift {
				temp = gofakeit.Float64Range(88.0, 91.5)
			}

			measurements = append(measurements,
				database.Measurement{BatchID: batchID, NodeCode: "E04", ParamCode: "temp",
					Value: temp, Timestamp: ts, SourceType: database.SourceSimulation},
				database.Measurement{BatchID: batchID, NodeCode: "E04", ParamCode: "pressure",
					Value: gofakeit.Float64Range(1.8, 2.4), Timestamp: ts, SourceType: database.SourceSimulation},
				database.Measurement{BatchID: batchID, NodeCode: "P01", ParamCode: "moisture",
					Value: gofakeit.Float64Range(0.8, 1.4), Timestamp: ts, SourceType: database.SourceSimulation},
			)
		}

		if err := db.InsertMeasurements(measurements); err != nil {
			log.Fatalf("Failed to insert measurements for %s: %v", batchID, err)
		}
		total += len(measurements)
	}

	log.Printf("Generated %d batches, %d measurements (db: %s)", *batches, total, *dbPath)
}
