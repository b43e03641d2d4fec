package service

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calcus-analytics/internal/model"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMedianEvenLength(t *testing.T) {
	assert.Equal(t, 25.0, median([]float64{10, 20, 30, 40}))
	assert.Equal(t, 25.0, median([]float64{40, 10, 30, 20}))
}

func TestMedianOddLength(t *testing.T) {
	assert.Equal(t, 30.0, median([]float64{50, 10, 30}))
}

func TestMedianEmpty(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
}

func TestSummary(t *testing.T) {
	r1 := makeRecord(1, "a", 1, "RUB")
	r1.InitialSum = 100000
	r1.TotalProfit = 10000
	r2 := makeRecord(2, "a", 1, "RUB")
	r2.InitialSum = 300000
	r2.TotalProfit = 30000

	summary := NewAnalyticService(testLogger()).Summary([]model.CalculationRecord{r1, r2})

	assert.Equal(t, 2, summary.TotalCalculations)
	assert.Equal(t, 1, summary.UniqueClients)
	assert.Equal(t, 200000.0, summary.MedianInitialSum)
	assert.Equal(t, 400000.0, summary.TotalInvested)
	assert.Equal(t, 40000.0, summary.TotalProfit)
}

func TestTypeStatsUniqueClients(t *testing.T) {
	records := []model.CalculationRecord{
		makeRecord(1, "a", 1, "RUB"),
		makeRecord(2, "a", 1, "RUB"),
		makeRecord(3, "b", 1, "RUB"),
		makeRecord(4, "a", 4, "RUB"),
	}

	stats := NewAnalyticService(testLogger()).TypeStats(records)
	require.Len(t, stats, 2)

	assert.Equal(t, "Итоговая сумма", stats[0].TypeName)
	assert.Equal(t, 3, stats[0].Count)
	assert.Equal(t, 2, stats[0].UniqueClients)

	assert.Equal(t, "Срок достижения цели", stats[1].TypeName)
	assert.Equal(t, 1, stats[1].Count)
	assert.Equal(t, 1, stats[1].UniqueClients)
}

func TestTypeStatsUnknownTypeName(t *testing.T) {
	stats := NewAnalyticService(testLogger()).TypeStats([]model.CalculationRecord{
		makeRecord(1, "a", 7, "RUB"),
	})
	require.Len(t, stats, 1)
	assert.Equal(t, "Тип 7", stats[0].TypeName)
}

func TestHeatmapCountsSumToTotal(t *testing.T) {
	var records []model.CalculationRecord
	for i := 0; i < 4; i++ {
		record := makeRecord(int64(i+1), "a", 1, "RUB")
		record.HourOnly = 9
		record.DayOfWeek = 1
		records = append(records, record)
	}
	outlier := makeRecord(5, "b", 1, "RUB")
	outlier.HourOnly = 14
	outlier.DayOfWeek = 3
	records = append(records, outlier)

	heatmap := NewAnalyticService(testLogger()).HeatmapActivity(records)

	assert.Equal(t, 4, heatmap.Counts[9][1])
	assert.Equal(t, 1, heatmap.Counts[14][3])
	assert.Equal(t, len(records), heatmap.Total)

	sum := 0
	for hour := 0; hour < 24; hour++ {
		for dow := 0; dow < 7; dow++ {
			sum += heatmap.Counts[hour][dow]
		}
	}
	assert.Equal(t, len(records), sum)
	assert.Len(t, heatmap.DayLabels, 7)
}

func TestTopClientsRankingAndLimit(t *testing.T) {
	var records []model.CalculationRecord
	id := int64(1)
	// 12 клиентов: client-00 с 13 расчетами, client-01 с 12 и так далее
	for c := 0; c < 12; c++ {
		for n := 0; n < 13-c; n++ {
			record := makeRecord(id, clientName(c), 1, "RUB")
			record.InitialSum = float64(100 * (c + 1))
			record.FinalAmount = float64(200 * (c + 1))
			record.CreatedAt = time.Date(2024, time.March, 1+n, 12, 0, 0, 0, time.UTC)
			records = append(records, record)
			id++
		}
	}

	top := NewAnalyticService(testLogger()).TopClients(records)
	require.Len(t, top, 10)

	assert.Equal(t, clientName(0), top[0].ClientID)
	assert.Equal(t, 13, top[0].Calculations)
	assert.Equal(t, 100.0, top[0].AvgInitialSum)
	assert.Equal(t, 200.0, top[0].AvgFinalAmount)
	assert.Equal(t, time.Date(2024, time.March, 13, 12, 0, 0, 0, time.UTC), top[0].LastCalculation)

	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Calculations, top[i].Calculations)
	}
}

func clientName(n int) string {
	return string([]byte{'c', 'l', 'i', 'e', 'n', 't', '-', byte('a' + n)})
}

func TestHistogramHalfOpenBins(t *testing.T) {
	bins := histogram([]float64{0, 4999, 5000, 9999.99, 10000, 99999999}, initialSumBinsMixed)

	assert.Equal(t, "<5K", bins[0].Label)
	assert.Equal(t, 2, bins[0].Count) // 0 и 4999
	assert.Equal(t, 2, bins[1].Count) // 5000 и 9999.99 попадают в [5000, 10000)
	assert.Equal(t, 1, bins[2].Count) // 10000
	assert.Equal(t, 1, bins[len(bins)-1].Count) // последний диапазон не ограничен
}

func TestInitialSumHistogramBinSetSelection(t *testing.T) {
	records := []model.CalculationRecord{makeRecord(1, "a", 1, "RUB")}
	svc := NewAnalyticService(testLogger())

	converted := svc.InitialSumHistogram(records, true)
	mixed := svc.InitialSumHistogram(records, false)

	assert.Equal(t, "<50К₽", converted[0].Label)
	assert.Equal(t, "<5K", mixed[0].Label)
	assert.NotEqual(t, len(converted), 0)
	assert.NotEqual(t, converted[0].To, mixed[0].To)
}

func TestTimeGoalStats(t *testing.T) {
	g1 := makeRecord(1, "a", 4, "RUB")
	g1.TimeMonths = fptr(12)
	g1.TargetSum = fptr(2000000)
	g2 := makeRecord(2, "b", 4, "RUB")
	g2.TimeMonths = fptr(36)
	g2.TargetSum = fptr(6000000)
	other := makeRecord(3, "c", 1, "RUB")

	stats := NewAnalyticService(testLogger()).TimeGoalStats([]model.CalculationRecord{g1, g2, other})
	require.NotNil(t, stats)

	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 24.0, stats.AvgTimeMonths)
	assert.Equal(t, 24.0, stats.MedianTimeMonths)
	assert.Equal(t, 4000000.0, stats.AvgTargetSum)

	// 12 месяцев попадает в "1-2 года" [12, 24), 36 - в "3-5 лет" [36, 60)
	assert.Equal(t, 1, stats.TimeDistribution[1].Count)
	assert.Equal(t, 1, stats.TimeDistribution[3].Count)
	// 2М в "1M-5M", 6М в "5M-10M"
	assert.Equal(t, 1, stats.TargetDistribution[1].Count)
	assert.Equal(t, 1, stats.TargetDistribution[2].Count)
}

func TestTimeGoalStatsNilWithoutGoalRecords(t *testing.T) {
	stats := NewAnalyticService(testLogger()).TimeGoalStats([]model.CalculationRecord{
		makeRecord(1, "a", 1, "RUB"),
	})
	assert.Nil(t, stats)
}

func TestDailyActivity(t *testing.T) {
	r1 := makeRecord(1, "a", 1, "RUB")
	r1.DateOnly = day(12)
	r2 := makeRecord(2, "b", 1, "RUB")
	r2.DateOnly = day(10)
	r3 := makeRecord(3, "a", 1, "RUB")
	r3.DateOnly = day(10)

	activity := NewAnalyticService(testLogger()).DailyActivity([]model.CalculationRecord{r1, r2, r3})
	require.Len(t, activity, 2)

	assert.Equal(t, day(10), activity[0].Date)
	assert.Equal(t, 2, activity[0].Calculations)
	assert.Equal(t, 2, activity[0].UniqueClients)
	assert.Equal(t, day(12), activity[1].Date)
	assert.Equal(t, 1, activity[1].Calculations)
}

func TestCurrencyStats(t *testing.T) {
	r1 := makeRecord(1, "a", 1, "USD")
	r1.InitialSum = 1000
	r2 := makeRecord(2, "b", 1, "USD")
	r2.InitialSum = 3000
	r3 := makeRecord(3, "c", 1, "EUR")
	r3.InitialSum = 500

	stats := NewAnalyticService(testLogger()).CurrencyStats([]model.CalculationRecord{r1, r2, r3})
	require.Len(t, stats, 2)

	assert.Equal(t, "EUR", stats[0].Currency)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, "USD", stats[1].Currency)
	assert.Equal(t, 2, stats[1].Count)
	assert.Equal(t, 2000.0, stats[1].AvgInitialSum)
}

func TestInterestRateHistogram(t *testing.T) {
	var records []model.CalculationRecord
	for i, rate := range []float64{5, 10, 15, 20, 20} {
		record := makeRecord(int64(i+1), "a", 1, "RUB")
		record.InterestRate = rate
		records = append(records, record)
	}

	bins := NewAnalyticService(testLogger()).InterestRateHistogram(records)
	require.Len(t, bins, 15)

	total := 0
	for _, bin := range bins {
		total += bin.Count
	}
	assert.Equal(t, len(records), total)
	// Максимальная ставка учитывается в последнем диапазоне
	assert.Equal(t, 2, bins[len(bins)-1].Count)
}

func TestInterestRateHistogramSingleValue(t *testing.T) {
	record := makeRecord(1, "a", 1, "RUB")
	record.InterestRate = 7.5

	bins := NewAnalyticService(testLogger()).InterestRateHistogram([]model.CalculationRecord{record})
	require.Len(t, bins, 1)
	assert.Equal(t, 1, bins[0].Count)
}

func TestPerformance(t *testing.T) {
	var records []model.CalculationRecord
	for i, ms := range []float64{10, 20, 30, 40} {
		record := makeRecord(int64(i+1), "a", 1, "RUB")
		record.APIResponseTimeMs = ms
		records = append(records, record)
	}

	perf := NewAnalyticService(testLogger()).Performance(records)
	assert.Equal(t, 25.0, perf.AvgResponseMs)
	assert.Equal(t, 25.0, perf.MedianResponseMs)
	assert.Equal(t, 40.0, perf.MaxResponseMs)
}

func TestSummaryStats(t *testing.T) {
	r1 := makeRecord(1, "a", 1, "RUB")
	r1.PeriodUnit = "y"
	r1.Period = iptr(5)
	r2 := makeRecord(2, "b", 1, "RUB")
	r2.PeriodUnit = "y"
	r2.Period = iptr(10)
	r3 := makeRecord(3, "c", 1, "USD")
	r3.PeriodUnit = "m"
	r3.Period = iptr(24)

	stats := NewAnalyticService(testLogger()).SummaryStats([]model.CalculationRecord{r1, r2, r3})

	assert.Equal(t, 300000.0, stats.TotalInvested)
	assert.Equal(t, 7.5, stats.AvgPeriodYears)
	assert.Equal(t, "RUB", stats.PopularCurrency)
}
