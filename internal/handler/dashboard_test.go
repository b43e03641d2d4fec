package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calcus-analytics/internal/model"
	"calcus-analytics/internal/service"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeFetcher подменяет репозиторий в тестах конвейера
type fakeFetcher struct {
	records []model.CalculationRecord
	err     error
}

func (f *fakeFetcher) FetchAll(ctx context.Context) ([]model.CalculationRecord, error) {
	return f.records, f.err
}

func makeRecord(id int64, clientID, currency string, calcType int, initialSum float64) model.CalculationRecord {
	created := time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)
	return model.CalculationRecord{
		ID:              id,
		ClientID:        clientID,
		CreatedAt:       created,
		CalculationType: calcType,
		InitialSum:      initialSum,
		InterestRate:    10,
		Currency:        currency,
		FinalAmount:     initialSum * 2,
		TotalProfit:     initialSum,
		DateOnly:        time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		HourOnly:        14,
		DayOfWeek:       1,
	}
}

// newTestRouter собирает роутер дашборда поверх подмененного репозитория.
// Адрес курсов заведомо недоступен, поэтому конвейер работает на
// примерных курсах.
func newTestRouter(fetcher *fakeFetcher) *mux.Router {
	logger := testLogger()
	dataService := service.NewDataService(fetcher, time.Minute, logger)
	cbrClient := service.NewCBRClient("http://127.0.0.1:1", time.Hour, logger)
	handler := NewDashboardHandler(
		dataService,
		cbrClient,
		service.NewAnalyticService(logger),
		service.NewExportService(logger),
		logger,
	)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func defaultRecords() []model.CalculationRecord {
	return []model.CalculationRecord{
		makeRecord(1, "client-a", model.CurrencyRUB, model.CalculationTypeFinalAmount, 100000),
		makeRecord(2, "client-b", model.CurrencyRUB, model.CalculationTypeFinalAmount, 200000),
		makeRecord(3, "client-c", model.CurrencyUSD, model.CalculationTypeFinalAmount, 100),
	}
}

func doRequest(t *testing.T, router *mux.Router, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestGetSummaryFiltered(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/summary?currencies=RUB")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var summary model.Summary
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalCalculations)
	assert.Equal(t, 2, summary.UniqueClients)
	assert.Equal(t, 300000.0, summary.TotalInvested)
}

// При convert=true долларовые суммы пересчитываются по примерному курсу,
// так как источник курсов недоступен
func TestGetSummaryConvertedWithFallbackRates(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/summary?currencies=USD&convert=true")
	require.Equal(t, http.StatusOK, recorder.Code)

	var summary model.Summary
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalCalculations)
	assert.Equal(t, 100*95.0, summary.TotalInvested)
}

func TestGetSummaryEmptyResult(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/summary?currencies=GBP")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Нет данных для выбранных фильтров")
}

func TestGetSummaryDataUnavailable(t *testing.T) {
	fetchErr := fmt.Errorf("%w после 3 попыток: обрыв", model.ErrDataUnavailable)
	router := newTestRouter(&fakeFetcher{err: fetchErr})

	recorder := doRequest(t, router, "/summary")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestGetSummaryBadFilterParam(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/summary?types=abc")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "types")
}

func TestGetMeta(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/meta?currencies=RUB")
	require.Equal(t, http.StatusOK, recorder.Code)

	var meta model.DashboardMeta
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &meta))
	assert.Equal(t, 3, meta.TotalRecords)
	assert.Equal(t, 2, meta.FilteredRecords)
	assert.False(t, meta.Converted)
}

func TestGetRatesAlwaysResponds(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/rates")
	require.Equal(t, http.StatusOK, recorder.Code)

	var rates model.RateTable
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &rates))
	assert.Equal(t, 1.0, rates["RUB"])
	assert.Equal(t, 95.0, rates["USD"])
	assert.Equal(t, 105.0, rates["EUR"])
}

func TestExportCSVHeaders(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/export/csv?currencies=RUB")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/csv; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=calcus_data_2_records.csv", recorder.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(recorder.Body.String(), "\uFEFF"))
}

func TestExportXLSXHeaders(t *testing.T) {
	router := newTestRouter(&fakeFetcher{records: defaultRecords()})

	recorder := doRequest(t, router, "/export/xlsx")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(
		t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		recorder.Header().Get("Content-Type"),
	)
	assert.Equal(t, "attachment; filename=calcus_data_3_records.xlsx", recorder.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, recorder.Body.Bytes())
}

func TestParseFilterSpecFull(t *testing.T) {
	req := httptest.NewRequest(
		http.MethodGet,
		"/summary?currencies=RUB,USD&types=1,4&reinvest=true"+
			"&date_from=2025-01-01&date_to=2025-03-31"+
			"&initial_min=1000&initial_max=500000&rate_min=5"+
			"&period_min=1&period_max=60&convert=true",
		nil,
	)

	spec, converted, err := parseFilterSpec(req)
	require.NoError(t, err)
	assert.True(t, converted)
	assert.Equal(t, []string{"RUB", "USD"}, spec.Currencies)
	assert.Equal(t, []int{1, 4}, spec.CalculationTypes)
	assert.Equal(t, []bool{true}, spec.ReinvestValues)

	require.NotNil(t, spec.Dates)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), spec.Dates.From)
	assert.Equal(t, time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), spec.Dates.To)

	require.NotNil(t, spec.InitialSumRange)
	assert.Equal(t, 1000.0, spec.InitialSumRange.Min)
	assert.Equal(t, 500000.0, spec.InitialSumRange.Max)

	// rate_max не задан, верхняя граница не ограничивает
	require.NotNil(t, spec.InterestRange)
	assert.Equal(t, 5.0, spec.InterestRange.Min)
	assert.True(t, spec.InterestRange.Contains(1e12))

	require.NotNil(t, spec.PeriodRange)
	assert.Equal(t, 1, spec.PeriodRange.Min)
	assert.Equal(t, 60, spec.PeriodRange.Max)
}

func TestParseFilterSpecEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/summary", nil)

	spec, converted, err := parseFilterSpec(req)
	require.NoError(t, err)
	assert.False(t, converted)
	assert.True(t, spec.IsEmpty())
}

func TestParseFilterSpecInvalidDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/summary?date_from=10.03.2025", nil)

	_, _, err := parseFilterSpec(req)
	require.Error(t, err)

	var parseErr *filterParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "date_from", parseErr.param)
}
