package datacontext

import (
	"context"
	"time"

	"mesdiag/database"
)

// Store узкий интерфейс хранилища, который нужен провайдерам.
// Реализуется database.ProcessDB; в тестах подменяется.
type Store interface {
	GetBatch(batchID string) (*database.Batch, error)
	BatchesByOperator(operatorID string, from, to *time.Time) ([]database.Batch, error)
	MeasurementsByBatchIDs(batchIDs []string) ([]database.Measurement, error)
	MeasurementsByNode(nodeCode string, cutoff time.Time, batchIDs []string) ([]database.Measurement, error)
	MeasurementsByNodesBetween(nodeCodes []string, from, to time.Time) ([]database.Measurement, error)
	MeasurementsBetween(from, to time.Time) ([]database.Measurement, error)
	BatchIDsByNodeSince(nodeCode string, cutoff time.Time) ([]string, error)
	ChildNodeCodes(parentCode string) ([]string, error)
}

// Provider разрешает одно измерение анализа в DataContext.
// Провайдеры только читают хранилище и не имеют побочных эффектов.
type Provider interface {
	Query(ctx context.Context, filters Filters) (*DataContext, error)
}

// Registry таблица провайдеров по имени измерения.
// Строится один раз при старте и передается по ссылке (без глобального состояния),
// чтобы тесты могли подставлять изолированные реестры.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry создает реестр со стандартным набором из пяти измерений
func NewRegistry(store Store) *Registry {
	return &Registry{
		providers: map[string]Provider{
			DimensionPerson:   &personProvider{store: store},
			DimensionBatch:    &batchProvider{store: store},
			DimensionProcess:  &processProvider{store: store},
			DimensionWorkshop: &workshopProvider{store: store},
			DimensionTime:     &timeProvider{store: store},
		},
	}
}

// Dimensions возвращает имена зарегистрированных измерений
func (r *Registry) Dimensions() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Query разрешает измерение по имени.
// Неизвестное измерение — ConfigurationError.
func (r *Registry) Query(ctx context.Context, dimension string, filters Filters) (*DataContext, error) {
	provider, ok := r.providers[dimension]
	if !ok {
		return nil, &ConfigurationError{What: "неизвестное измерение анализа: " + dimension}
	}

	return provider.Query(ctx, filters)
}

// uniqueBatchIDs собирает отсортированный по первому вхождению список партий из измерений
func uniqueBatchIDs(measurements []database.Measurement) []string {
	seen := make(map[string]struct{}, len(measurements))
	var ids []string
	for _, m := range measurements {
		if _, ok := seen[m.BatchID]; !ok {
			seen[m.BatchID] = struct{}{}
			ids = append(ids, m.BatchID)
		}
	}
	return ids
}
