package diagnosis

import (
	"context"
	"time"

	"mesdiag/datacontext"
)

// Analyzer фасад диагностики: разрешение контекста по разрезу,
// прогон конвейера, сборка отчета
type Analyzer struct {
	registry *datacontext.Registry
	workflow *Workflow
	builder  *Builder
}

// NewAnalyzer создает фасад диагностики
func NewAnalyzer(registry *datacontext.Registry, workflow *Workflow) *Analyzer {
	return &Analyzer{
		registry: registry,
		workflow: workflow,
		builder:  NewBuilder(),
	}
}

// Analyze общий путь всех разрезов: подходит для транспортного слоя,
// где измерение приходит строкой
func (a *Analyzer) Analyze(ctx context.Context, dimension string, filters datacontext.Filters) (*Report, error) {
	dc, err := a.registry.Query(ctx, dimension, filters)
	if err != nil {
		return nil, err
	}

	result := a.workflow.Execute(ctx, dc)

	return a.builder.Build(result, dc.Metadata), nil
}

// AnalyzeByPerson диагностика по оператору за период
func (a *Analyzer) AnalyzeByPerson(ctx context.Context, operatorID string, from, to *time.Time) (*Report, error) {
	return a.Analyze(ctx, datacontext.DimensionPerson, datacontext.Filters{
		OperatorID: operatorID,
		DateFrom:   from,
		DateTo:     to,
	})
}

// AnalyzeByBatch диагностика одной партии
func (a *Analyzer) AnalyzeByBatch(ctx context.Context, batchID string) (*Report, error) {
	return a.Analyze(ctx, datacontext.DimensionBatch, datacontext.Filters{BatchID: batchID})
}

// AnalyzeByProcess диагностика технологического узла за скользящее окно
func (a *Analyzer) AnalyzeByProcess(ctx context.Context, nodeCode string, windowDays int) (*Report, error) {
	return a.Analyze(ctx, datacontext.DimensionProcess, datacontext.Filters{
		NodeCode:   nodeCode,
		WindowDays: windowDays,
	})
}

// AnalyzeByWorkshop диагностика всех узлов блока за календарные сутки
func (a *Analyzer) AnalyzeByWorkshop(ctx context.Context, blockCode, date string) (*Report, error) {
	return a.Analyze(ctx, datacontext.DimensionWorkshop, datacontext.Filters{
		BlockCode: blockCode,
		Date:      date,
	})
}

// AnalyzeByTime диагностика произвольного интервала
func (a *Analyzer) AnalyzeByTime(ctx context.Context, from, to time.Time, granularity string) (*Report, error) {
	return a.Analyze(ctx, datacontext.DimensionTime, datacontext.Filters{
		DateFrom:    &from,
		DateTo:      &to,
		Granularity: granularity,
	})
}
