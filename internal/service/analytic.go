package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"calcus-analytics/internal/model"
)

// topClientsLimit - размер таблицы самых активных пользователей
const topClientsLimit = 10

// dayLabels - фиксированные подписи дней недели для тепловой карты,
// индексируются значением day_of_week (0-6)
var dayLabels = []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// binSet - набор границ гистограммы с подписями. Диапазоны полуоткрытые
// [границa, следующая граница), последний диапазон не ограничен сверху.
type binSet struct {
	bounds []float64
	labels []string
}

// Наборы диапазонов гистограмм. Для режима пересчета в рубли используются
// более крупные круглые границы, чем для смешанных валют. Оба набора заданы
// литерально как конфигурация и не выводятся из данных.
var (
	initialSumBinsConverted = binSet{
		bounds: []float64{0, 50000, 100000, 200000, 500000, 1000000, 2000000, 5000000, 10000000},
		labels: []string{"<50К₽", "50К-100К₽", "100К-200К₽", "200К-500К₽", "500К-1М₽", "1М-2М₽", "2М-5М₽", "5М-10М₽", ">10М₽"},
	}
	initialSumBinsMixed = binSet{
		bounds: []float64{0, 5000, 10000, 20000, 50000, 100000, 200000, 500000, 1000000, 5000000},
		labels: []string{"<5K", "5K-10K", "10K-20K", "20K-50K", "50K-100K", "100K-200K", "200K-500K", "500K-1M", "1M-5M", ">5M"},
	}
	finalAmountBinsConverted = binSet{
		bounds: []float64{0, 200000, 1000000, 2000000, 5000000, 10000000, 20000000, 50000000},
		labels: []string{"<200К₽", "200К-1М₽", "1М-2М₽", "2М-5М₽", "5М-10М₽", "10М-20М₽", "20М-50М₽", ">50М₽"},
	}
	finalAmountBinsMixed = binSet{
		bounds: []float64{0, 50000, 200000, 500000, 1000000, 2000000, 5000000, 10000000},
		labels: []string{"<50K", "50K-200K", "200K-500K", "500K-1M", "1M-2M", "2M-5M", "5M-10M", ">10M"},
	}
	profitBinsConverted = binSet{
		bounds: []float64{0, 50000, 200000, 500000, 1000000, 2000000, 5000000, 10000000},
		labels: []string{"<50К₽", "50К-200К₽", "200К-500К₽", "500К-1М₽", "1М-2М₽", "2М-5М₽", "5М-10М₽", ">10М₽"},
	}
	profitBinsMixed = binSet{
		bounds: []float64{0, 10000, 50000, 100000, 200000, 500000, 1000000, 2000000},
		labels: []string{"<10K", "10K-50K", "50K-100K", "100K-200K", "200K-500K", "500K-1M", "1M-2M", ">2M"},
	}
	timeToGoalBins = binSet{
		bounds: []float64{0, 12, 24, 36, 60, 120},
		labels: []string{"<1 года", "1-2 года", "2-3 года", "3-5 лет", "5-10 лет", ">10 лет"},
	}
	targetSumBins = binSet{
		bounds: []float64{0, 1000000, 5000000, 10000000, 50000000},
		labels: []string{"<1M", "1M-5M", "5M-10M", "10M-50M", ">50M"},
	}
)

// AnalyticService вычисляет сводные метрики, группировки, гистограммы и
// сводные таблицы по отфильтрованной (и, возможно, пересчитанной в рубли)
// выборке записей. Все методы чистые и не вызываются на пустой выборке:
// конвейер останавливается с ErrEmptyResult раньше.
type AnalyticService struct {
	logger *logrus.Logger
}

func NewAnalyticService(logger *logrus.Logger) *AnalyticService {
	return &AnalyticService{logger: logger}
}

// Summary возвращает основные метрики по выборке
func (s *AnalyticService) Summary(records []model.CalculationRecord) model.Summary {
	initialSums := collect(records, func(r *model.CalculationRecord) float64 { return r.InitialSum })
	rates := collect(records, func(r *model.CalculationRecord) float64 { return r.InterestRate })
	finalAmounts := collect(records, func(r *model.CalculationRecord) float64 { return r.FinalAmount })
	profits := collect(records, func(r *model.CalculationRecord) float64 { return r.TotalProfit })

	summary := model.Summary{
		TotalCalculations:  len(records),
		UniqueClients:      countUniqueClients(records),
		MedianInitialSum:   median(initialSums),
		MedianInterestRate: median(rates),
		MedianFinalAmount:  median(finalAmounts),
		MedianTotalProfit:  median(profits),
		TotalInvested:      sum(initialSums),
		TotalProfit:        sum(profits),
	}

	s.logger.WithFields(logrus.Fields{
		"calculations":   summary.TotalCalculations,
		"unique_clients": summary.UniqueClients,
		"total_invested": summary.TotalInvested,
	}).Debug("Основные метрики рассчитаны")

	return summary
}

// TypeStats возвращает количество расчетов и уникальных пользователей
// по каждому типу расчетов, по возрастанию номера типа
func (s *AnalyticService) TypeStats(records []model.CalculationRecord) []model.TypeStat {
	counts := make(map[int]int)
	clients := make(map[int]map[string]struct{})

	for _, record := range records {
		counts[record.CalculationType]++
		if clients[record.CalculationType] == nil {
			clients[record.CalculationType] = make(map[string]struct{})
		}
		clients[record.CalculationType][record.ClientID] = struct{}{}
	}

	types := make([]int, 0, len(counts))
	for calcType := range counts {
		types = append(types, calcType)
	}
	sort.Ints(types)

	stats := make([]model.TypeStat, 0, len(types))
	for _, calcType := range types {
		stats = append(stats, model.TypeStat{
			CalculationType: calcType,
			TypeName:        model.CalculationTypeName(calcType),
			Count:           counts[calcType],
			UniqueClients:   len(clients[calcType]),
		})
	}
	return stats
}

// TimeGoalStats возвращает статистику по подмножеству расчетов
// "срок достижения цели". Если таких записей нет, возвращается nil.
func (s *AnalyticService) TimeGoalStats(records []model.CalculationRecord) *model.TimeGoalStats {
	var (
		timeMonths []float64
		targetSums []float64
		count      int
	)
	for _, record := range records {
		if !record.IsTimeToGoal() {
			continue
		}
		count++
		if record.TimeMonths != nil {
			timeMonths = append(timeMonths, *record.TimeMonths)
		}
		if record.TargetSum != nil {
			targetSums = append(targetSums, *record.TargetSum)
		}
	}
	if count == 0 {
		return nil
	}

	return &model.TimeGoalStats{
		Count:              count,
		AvgTimeMonths:      mean(timeMonths),
		MedianTimeMonths:   median(timeMonths),
		AvgTargetSum:       mean(targetSums),
		TimeDistribution:   histogram(timeMonths, timeToGoalBins),
		TargetDistribution: histogram(targetSums, targetSumBins),
	}
}

// DailyActivity возвращает количество расчетов и уникальных пользователей
// по дням, по возрастанию даты
func (s *AnalyticService) DailyActivity(records []model.CalculationRecord) []model.DailyActivity {
	counts := make(map[time.Time]int)
	clients := make(map[time.Time]map[string]struct{})

	for _, record := range records {
		day := record.DateOnly
		counts[day]++
		if clients[day] == nil {
			clients[day] = make(map[string]struct{})
		}
		clients[day][record.ClientID] = struct{}{}
	}

	days := make([]time.Time, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	activity := make([]model.DailyActivity, 0, len(days))
	for _, day := range days {
		activity = append(activity, model.DailyActivity{
			Date:          day,
			Calculations:  counts[day],
			UniqueClients: len(clients[day]),
		})
	}
	return activity
}

// CurrencyStats возвращает количество расчетов и среднюю начальную сумму
// по каждой валюте, в алфавитном порядке валют
func (s *AnalyticService) CurrencyStats(records []model.CalculationRecord) []model.CurrencyStat {
	counts := make(map[string]int)
	sums := make(map[string]float64)

	for _, record := range records {
		counts[record.Currency]++
		sums[record.Currency] += record.InitialSum
	}

	currencies := make([]string, 0, len(counts))
	for currency := range counts {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	stats := make([]model.CurrencyStat, 0, len(currencies))
	for _, currency := range currencies {
		stats = append(stats, model.CurrencyStat{
			Currency:      currency,
			Count:         counts[currency],
			AvgInitialSum: sums[currency] / float64(counts[currency]),
		})
	}
	return stats
}

// InitialSumHistogram возвращает распределение начальных сумм.
// Выбор набора диапазонов определяется режимом пересчета в рубли.
func (s *AnalyticService) InitialSumHistogram(records []model.CalculationRecord, converted bool) []model.HistogramBin {
	bins := initialSumBinsMixed
	if converted {
		bins = initialSumBinsConverted
	}
	return histogram(collect(records, func(r *model.CalculationRecord) float64 { return r.InitialSum }), bins)
}

// FinalAmountHistogram возвращает распределение итоговых сумм
func (s *AnalyticService) FinalAmountHistogram(records []model.CalculationRecord, converted bool) []model.HistogramBin {
	bins := finalAmountBinsMixed
	if converted {
		bins = finalAmountBinsConverted
	}
	return histogram(collect(records, func(r *model.CalculationRecord) float64 { return r.FinalAmount }), bins)
}

// ProfitHistogram возвращает распределение прибыли
func (s *AnalyticService) ProfitHistogram(records []model.CalculationRecord, converted bool) []model.HistogramBin {
	bins := profitBinsMixed
	if converted {
		bins = profitBinsConverted
	}
	return histogram(collect(records, func(r *model.CalculationRecord) float64 { return r.TotalProfit }), bins)
}

// interestRateBinCount - число равных диапазонов гистограммы ставок
const interestRateBinCount = 15

// InterestRateHistogram возвращает частоту использования процентных ставок
// по равным диапазонам между минимальной и максимальной ставкой выборки
func (s *AnalyticService) InterestRateHistogram(records []model.CalculationRecord) []model.HistogramBin {
	rates := collect(records, func(r *model.CalculationRecord) float64 { return r.InterestRate })
	if len(rates) == 0 {
		return nil
	}

	minRate, maxRate := rates[0], rates[0]
	for _, rate := range rates[1:] {
		if rate < minRate {
			minRate = rate
		}
		if rate > maxRate {
			maxRate = rate
		}
	}

	if minRate == maxRate {
		return []model.HistogramBin{{
			Label: formatRateRange(minRate, maxRate),
			From:  minRate,
			To:    maxRate,
			Count: len(rates),
		}}
	}

	width := (maxRate - minRate) / interestRateBinCount
	result := make([]model.HistogramBin, interestRateBinCount)
	for i := range result {
		from := minRate + width*float64(i)
		result[i] = model.HistogramBin{
			Label: formatRateRange(from, from+width),
			From:  from,
			To:    from + width,
		}
	}
	for _, rate := range rates {
		idx := int((rate - minRate) / width)
		if idx >= interestRateBinCount {
			idx = interestRateBinCount - 1
		}
		result[idx].Count++
	}
	return result
}

// TopClients возвращает до 10 пользователей с наибольшим числом расчетов:
// количество, средняя начальная сумма, средний результат и последний расчет
func (s *AnalyticService) TopClients(records []model.CalculationRecord) []model.TopClient {
	type clientAgg struct {
		count       int
		initialSum  float64
		finalAmount float64
		last        time.Time
	}

	aggs := make(map[string]*clientAgg)
	for _, record := range records {
		agg := aggs[record.ClientID]
		if agg == nil {
			agg = &clientAgg{}
			aggs[record.ClientID] = agg
		}
		agg.count++
		agg.initialSum += record.InitialSum
		agg.finalAmount += record.FinalAmount
		if record.CreatedAt.After(agg.last) {
			agg.last = record.CreatedAt
		}
	}

	clients := make([]model.TopClient, 0, len(aggs))
	for clientID, agg := range aggs {
		clients = append(clients, model.TopClient{
			ClientID:        clientID,
			Calculations:    agg.count,
			AvgInitialSum:   agg.initialSum / float64(agg.count),
			AvgFinalAmount:  agg.finalAmount / float64(agg.count),
			LastCalculation: agg.last,
		})
	}

	sort.Slice(clients, func(i, j int) bool {
		if clients[i].Calculations != clients[j].Calculations {
			return clients[i].Calculations > clients[j].Calculations
		}
		return clients[i].ClientID < clients[j].ClientID
	})

	if len(clients) > topClientsLimit {
		clients = clients[:topClientsLimit]
	}
	return clients
}

// HeatmapActivity строит тепловую карту: количество расчетов по часам (0-23)
// и дням недели (0-6); отсутствующие комбинации остаются нулями
func (s *AnalyticService) HeatmapActivity(records []model.CalculationRecord) model.Heatmap {
	heatmap := model.Heatmap{DayLabels: dayLabels}

	for _, record := range records {
		hour := record.HourOnly
		day := record.DayOfWeek
		if hour < 0 || hour > 23 || day < 0 || day > 6 {
			s.logger.WithFields(logrus.Fields{
				"id":   record.ID,
				"hour": hour,
				"day":  day,
			}).Warn("Запись с некорректными производными колонками пропущена")
			continue
		}
		heatmap.Counts[hour][day]++
		heatmap.Total++
	}

	return heatmap
}

// Performance возвращает статистику времени ответа API калькулятора
func (s *AnalyticService) Performance(records []model.CalculationRecord) model.PerformanceStats {
	times := collect(records, func(r *model.CalculationRecord) float64 { return r.APIResponseTimeMs })
	return model.PerformanceStats{
		AvgResponseMs:    mean(times),
		MedianResponseMs: median(times),
		MaxResponseMs:    maxValue(times),
	}
}

// SummaryStats возвращает сводную таблицу: объемы, средний период в годах
// (только по записям с периодом в годах) и самая популярная валюта
func (s *AnalyticService) SummaryStats(records []model.CalculationRecord) model.SummaryTable {
	var (
		totalInvested float64
		totalProfit   float64
		yearPeriods   []float64
	)
	currencyCounts := make(map[string]int)

	for _, record := range records {
		totalInvested += record.InitialSum
		totalProfit += record.TotalProfit
		currencyCounts[record.Currency]++
		if record.PeriodUnit == "y" && record.Period != nil {
			yearPeriods = append(yearPeriods, float64(*record.Period))
		}
	}

	popular := ""
	popularCount := 0
	for currency, count := range currencyCounts {
		if count > popularCount || (count == popularCount && currency < popular) {
			popular = currency
			popularCount = count
		}
	}

	return model.SummaryTable{
		TotalInvested:   totalInvested,
		TotalProfit:     totalProfit,
		AvgPeriodYears:  mean(yearPeriods),
		PopularCurrency: popular,
	}
}

// histogram распределяет значения по полуоткрытым диапазонам набора;
// значения меньше первой границы не учитываются, последний диапазон
// не ограничен сверху
func histogram(values []float64, bins binSet) []model.HistogramBin {
	result := make([]model.HistogramBin, len(bins.labels))
	for i := range result {
		to := math.Inf(1)
		if i+1 < len(bins.bounds) {
			to = bins.bounds[i+1]
		}
		result[i] = model.HistogramBin{
			Label: bins.labels[i],
			From:  bins.bounds[i],
			To:    to,
		}
	}

	for _, v := range values {
		for i := range result {
			if v >= result[i].From && v < result[i].To {
				result[i].Count++
				break
			}
		}
	}
	return result
}

func countUniqueClients(records []model.CalculationRecord) int {
	clients := make(map[string]struct{}, len(records))
	for _, record := range records {
		clients[record.ClientID] = struct{}{}
	}
	return len(clients)
}

func collect(records []model.CalculationRecord, value func(*model.CalculationRecord) float64) []float64 {
	values := make([]float64, len(records))
	for i := range records {
		values[i] = value(&records[i])
	}
	return values
}

func formatRateRange(from, to float64) string {
	return fmt.Sprintf("%.1f-%.1f%%", from, to)
}
