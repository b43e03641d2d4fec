package service

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"calcus-analytics/internal/model"
)

const recordsCacheKey = "calculation_records"

// RecordFetcher - источник записей о расчетах (репозиторий PostgreSQL)
type RecordFetcher interface {
	FetchAll(ctx context.Context) ([]model.CalculationRecord, error)
}

// DataService отдаёт снимок записей о расчетах, кэшируя его в одном общем
// слоте. Одновременное обновление по истечении кэша не синхронизируется:
// параллельные вызовы просто перезапишут слот одинаковыми данными.
type DataService struct {
	fetcher  RecordFetcher
	cache    *cache.Cache
	cacheTTL time.Duration
	logger   *logrus.Logger
}

func NewDataService(fetcher RecordFetcher, cacheTTL time.Duration, logger *logrus.Logger) *DataService {
	return &DataService{
		fetcher:  fetcher,
		cache:    cache.New(cacheTTL, 2*cacheTTL),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Load возвращает снимок всех записей. В пределах времени жизни кэша
// повторные вызовы получают закэшированный снимок без обращения к БД.
// При ошибке загрузки прежний успешный снимок в кэше не затирается.
func (s *DataService) Load(ctx context.Context) ([]model.CalculationRecord, error) {
	if cached, ok := s.cache.Get(recordsCacheKey); ok {
		return cached.([]model.CalculationRecord), nil
	}

	records, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка загрузки данных")
		return nil, err
	}

	s.cache.Set(recordsCacheKey, records, s.cacheTTL)
	s.logger.WithField("count", len(records)).Info("Данные успешно загружены")
	return records, nil
}

// Invalidate сбрасывает кэш записей
func (s *DataService) Invalidate() {
	s.cache.Delete(recordsCacheKey)
}
