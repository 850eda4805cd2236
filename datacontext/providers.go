package datacontext

import (
	"context"
	"time"
)

// personProvider собирает все партии оператора и их измерения
type personProvider struct {
	store Store
}

func (p *personProvider) Query(ctx context.Context, filters Filters) (*DataContext, error) {
	if filters.OperatorID == "" {
		return nil, &ValidationError{
			Dimension: DimensionPerson,
			Field:     "operator_id",
			Reason:    "не указан оператор",
		}
	}

	batches, err := p.store.BatchesByOperator(filters.OperatorID, filters.DateFrom, filters.DateTo)
	if err != nil {
		return nil, err
	}

	batchIDs := make([]string, 0, len(batches))
	for _, b := range batches {
		batchIDs = append(batchIDs, b.ID)
	}

	measurements, err := p.store.MeasurementsByBatchIDs(batchIDs)
	if err != nil {
		return nil, err
	}

	return &DataContext{
		Dimension:    DimensionPerson,
		Filters:      filters,
		Batches:      batchIDs,
		Measurements: measurements,
		Metadata: map[string]any{
			"operator_id":   filters.OperatorID,
			"total_batches": len(batchIDs),
		},
		QueryTime: time.Now(),
	}, nil
}

// batchProvider возвращает полные данные одной партии
type batchProvider struct {
	store Store
}

func (p *batchProvider) Query(ctx context.Context, filters Filters) (*DataContext, error) {
	if filters.BatchID == "" {
		return nil, &ValidationError{
			Dimension: DimensionBatch,
			Field:     "batch_id",
			Reason:    "не указан номер партии",
		}
	}

	batch, err := p.store.GetBatch(filters.BatchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, &ValidationError{
			Dimension: DimensionBatch,
			Field:     "batch_id",
			Reason:    "партия не найдена: " + filters.BatchID,
		}
	}

	measurements, err := p.store.MeasurementsByBatchIDs([]string{filters.BatchID})
	if err != nil {
		return nil, err
	}

	return &DataContext{
		Dimension:    DimensionBatch,
		Filters:      filters,
		Batches:      []string{filters.BatchID},
		Measurements: measurements,
		Metadata: map[string]any{
			"batch_id":     batch.ID,
			"product_name": batch.ProductName,
			"operator_id":  batch.OperatorID,
			"status":       batch.Status,
			"start_time":   batch.StartTime.Format(time.RFC3339),
		},
		QueryTime: time.Now(),
	}, nil
}

// processProvider собирает историю одного аппарата за скользящее окно.
// Явная дата отсечки имеет приоритет над окном в днях.
type processProvider struct {
	store Store
}

func (p *processProvider) Query(ctx context.Context, filters Filters) (*DataContext, error) {
	if filters.NodeCode == "" {
		return nil, &ValidationError{
			Dimension: DimensionProcess,
			Field:     "node_code",
			Reason:    "не указан код аппарата",
		}
	}

	windowDays := filters.WindowDays
	if windowDays <= 0 {
		windowDays = DefaultProcessWindowDays
	}

	var cutoff time.Time
	if filters.DateFrom != nil {
		cutoff = *filters.DateFrom
	} else {
		cutoff = time.Now().AddDate(0, 0, -windowDays)
	}

	batchIDs, err := p.store.BatchIDsByNodeSince(filters.NodeCode, cutoff)
	if err != nil {
		return nil, err
	}

	// Измерения только этого аппарата, для найденных партий
	measurements, err := p.store.MeasurementsByNode(filters.NodeCode, cutoff, batchIDs)
	if err != nil {
		return nil, err
	}

	return &DataContext{
		Dimension:    DimensionProcess,
		Filters:      filters,
		Batches:      batchIDs,
		Measurements: measurements,
		Metadata: map[string]any{
			"node_code":     filters.NodeCode,
			"window_days":   windowDays,
			"cutoff":        cutoff.Format(time.RFC3339),
			"total_batches": len(batchIDs),
		},
		QueryTime: time.Now(),
	}, nil
}

// workshopProvider собирает данные всех аппаратов цеха за один календарный день
type workshopProvider struct {
	store Store
}

func (p *workshopProvider) Query(ctx context.Context, filters Filters) (*DataContext, error) {
	if filters.BlockCode == "" {
		return nil, &ValidationError{
			Dimension: DimensionWorkshop,
			Field:     "block_code",
			Reason:    "не указан код цеха",
		}
	}

	var day time.Time
	if filters.Date != "" {
		parsed, err := time.Parse("2006-01-02", filters.Date)
		if err != nil {
			return nil, &ValidationError{
				Dimension: DimensionWorkshop,
				Field:     "date",
				Reason:    "дата должна быть в формате YYYY-MM-DD",
			}
		}
		day = parsed
	} else {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	nodeCodes, err := p.store.ChildNodeCodes(filters.BlockCode)
	if err != nil {
		return nil, err
	}

	from := day
	to := day.AddDate(0, 0, 1)

	measurements, err := p.store.MeasurementsByNodesBetween(nodeCodes, from, to)
	if err != nil {
		return nil, err
	}

	return &DataContext{
		Dimension:    DimensionWorkshop,
		Filters:      filters,
		Batches:      uniqueBatchIDs(measurements),
		Measurements: measurements,
		Metadata: map[string]any{
			"block_code":  filters.BlockCode,
			"date":        day.Format("2006-01-02"),
			"node_codes":  nodeCodes,
			"total_nodes": len(nodeCodes),
		},
		QueryTime: time.Now(),
	}, nil
}

// timeProvider собирает все измерения в явном интервале дат.
// Гранулярность переносится в метаданные как есть: агрегации здесь нет.
type timeProvider struct {
	store Store
}

func (p *timeProvider) Query(ctx context.Context, filters Filters) (*DataContext, error) {
	if filters.DateFrom == nil || filters.DateTo == nil {
		return nil, &ValidationError{
			Dimension: DimensionTime,
			Field:     "date_from/date_to",
			Reason:    "требуются обе границы интервала",
		}
	}

	granularity := filters.Granularity
	if granularity == "" {
		granularity = "day"
	}

	from := *filters.DateFrom
	// Конечная дата включается целиком
	to := filters.DateTo.AddDate(0, 0, 1)

	measurements, err := p.store.MeasurementsBetween(from, to)
	if err != nil {
		return nil, err
	}

	return &DataContext{
		Dimension:    DimensionTime,
		Filters:      filters,
		Batches:      uniqueBatchIDs(measurements),
		Measurements: measurements,
		Metadata: map[string]any{
			"date_from":   from.Format("2006-01-02"),
			"date_to":     filters.DateTo.Format("2006-01-02"),
			"granularity": granularity,
			"total_days":  int(to.Sub(from).Hours() / 24),
		},
		QueryTime: time.Now(),
	}, nil
}
