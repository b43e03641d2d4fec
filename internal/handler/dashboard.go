package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"calcus-analytics/internal/model"
	"calcus-analytics/internal/service"
)

// DashboardHandler отдает аналитику калькулятора: каждая ручка - один
// синхронный проход конвейера загрузка → фильтрация → (пересчет в рубли) →
// агрегация
type DashboardHandler struct {
	dataService     *service.DataService
	cbrClient       *service.CBRClient
	analyticService *service.AnalyticService
	exportService   *service.ExportService
	logger          *logrus.Logger
}

func NewDashboardHandler(
	dataService *service.DataService,
	cbrClient *service.CBRClient,
	analyticService *service.AnalyticService,
	exportService *service.ExportService,
	logger *logrus.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		dataService:     dataService,
		cbrClient:       cbrClient,
		analyticService: analyticService,
		exportService:   exportService,
		logger:          logger,
	}
}

func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/meta", h.GetMeta).Methods("GET")
	router.HandleFunc("/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/summary-table", h.GetSummaryTable).Methods("GET")
	router.HandleFunc("/types", h.GetTypeStats).Methods("GET")
	router.HandleFunc("/time-goal", h.GetTimeGoalStats).Methods("GET")
	router.HandleFunc("/daily", h.GetDailyActivity).Methods("GET")
	router.HandleFunc("/currencies", h.GetCurrencyStats).Methods("GET")
	router.HandleFunc("/histograms", h.GetHistograms).Methods("GET")
	router.HandleFunc("/top-clients", h.GetTopClients).Methods("GET")
	router.HandleFunc("/heatmap", h.GetHeatmap).Methods("GET")
	router.HandleFunc("/performance", h.GetPerformance).Methods("GET")
	router.HandleFunc("/rates", h.GetRates).Methods("GET")
	router.HandleFunc("/export/csv", h.ExportCSV).Methods("GET")
	router.HandleFunc("/export/xlsx", h.ExportXLSX).Methods("GET")
}

// filteredData - результат прохода конвейера до агрегации
type filteredData struct {
	all       []model.CalculationRecord
	filtered  []model.CalculationRecord
	spec      model.FilterSpec
	converted bool
}

// loadFiltered выполняет общую часть конвейера: загрузку снимка, фильтрацию
// и, при запросе convert=true, пересчет денежных полей в рубли.
// Пустой результат фильтрации останавливает конвейер с ErrEmptyResult.
func (h *DashboardHandler) loadFiltered(r *http.Request) (*filteredData, error) {
	spec, converted, err := parseFilterSpec(r)
	if err != nil {
		return nil, err
	}

	all, err := h.dataService.Load(r.Context())
	if err != nil {
		return nil, err
	}

	filtered := service.ApplyFilter(all, spec)
	if len(filtered) == 0 {
		return nil, model.ErrEmptyResult
	}

	if converted {
		filtered = service.ConvertToRub(filtered, h.cbrClient.FetchRates())
	}

	return &filteredData{
		all:       all,
		filtered:  filtered,
		spec:      spec,
		converted: converted,
	}, nil
}

// GetMeta возвращает сведения о выборке: сколько записей показано из скольких
func (h *DashboardHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	meta := model.DashboardMeta{
		TotalRecords:    len(data.all),
		FilteredRecords: len(data.filtered),
		FilterRatio:     float64(len(data.filtered)) / float64(len(data.all)) * 100,
		Converted:       data.converted,
	}
	for i := range data.all {
		day := data.all[i].DateOnly
		if meta.PeriodFrom.IsZero() || day.Before(meta.PeriodFrom) {
			meta.PeriodFrom = day
		}
		if day.After(meta.PeriodTo) {
			meta.PeriodTo = day
		}
	}

	h.writeJSON(w, meta)
}

// GetSummary возвращает основные метрики по отфильтрованной выборке
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.Summary(data.filtered))
}

// GetSummaryTable возвращает сводную статистику
func (h *DashboardHandler) GetSummaryTable(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.SummaryStats(data.filtered))
}

// GetTypeStats возвращает анализ типов расчетов
func (h *DashboardHandler) GetTypeStats(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.TypeStats(data.filtered))
}

// GetTimeGoalStats возвращает анализ расчетов "срок достижения цели"
func (h *DashboardHandler) GetTimeGoalStats(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	stats := h.analyticService.TimeGoalStats(data.filtered)
	if stats == nil {
		http.Error(w, "В выборке нет расчетов срока достижения цели", http.StatusNotFound)
		return
	}
	h.writeJSON(w, stats)
}

// GetDailyActivity возвращает активность по дням
func (h *DashboardHandler) GetDailyActivity(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.DailyActivity(data.filtered))
}

// GetCurrencyStats возвращает популярность валют
func (h *DashboardHandler) GetCurrencyStats(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.CurrencyStats(data.filtered))
}

type histogramsResponse struct {
	InitialSums   []model.HistogramBin `json:"initial_sums"`
	FinalAmounts  []model.HistogramBin `json:"final_amounts"`
	Profits       []model.HistogramBin `json:"profits"`
	InterestRates []model.HistogramBin `json:"interest_rates"`
}

// GetHistograms возвращает распределения сумм, прибыли и ставок.
// Наборы диапазонов зависят от режима пересчета в рубли.
func (h *DashboardHandler) GetHistograms(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, histogramsResponse{
		InitialSums:   h.analyticService.InitialSumHistogram(data.filtered, data.converted),
		FinalAmounts:  h.analyticService.FinalAmountHistogram(data.filtered, data.converted),
		Profits:       h.analyticService.ProfitHistogram(data.filtered, data.converted),
		InterestRates: h.analyticService.InterestRateHistogram(data.filtered),
	})
}

// GetTopClients возвращает самых активных пользователей
func (h *DashboardHandler) GetTopClients(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.TopClients(data.filtered))
}

// GetHeatmap возвращает тепловую карту активности (час/день недели)
func (h *DashboardHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.HeatmapActivity(data.filtered))
}

// GetPerformance возвращает статистику времени ответа API калькулятора
func (h *DashboardHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.analyticService.Performance(data.filtered))
}

// GetRates возвращает текущие курсы ЦБ РФ (или примерные при недоступности)
func (h *DashboardHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.cbrClient.FetchRates())
}

// ExportCSV выгружает отфильтрованную выборку в CSV
func (h *DashboardHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := h.exportService.CSV(data.filtered)
	if err != nil {
		h.logger.WithError(err).Error("Ошибка выгрузки CSV")
		http.Error(w, "Ошибка выгрузки", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("calcus_data_%d_records.csv", len(data.filtered))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(body)
}

// ExportXLSX выгружает отфильтрованную выборку в Excel
func (h *DashboardHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadFiltered(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := h.exportService.XLSX(data.filtered)
	if err != nil {
		h.logger.WithError(err).Error("Ошибка выгрузки Excel")
		http.Error(w, "Ошибка выгрузки", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("calcus_data_%d_records.xlsx", len(data.filtered))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(body)
}

func (h *DashboardHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Ошибка кодирования ответа")
	}
}

// writeError переводит ошибки конвейера в HTTP статусы
func (h *DashboardHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrDataUnavailable):
		h.logger.WithError(err).Error("База данных недоступна")
		http.Error(w, "База данных недоступна", http.StatusServiceUnavailable)
	case errors.Is(err, model.ErrEmptyResult):
		http.Error(w, "Нет данных для выбранных фильтров", http.StatusNotFound)
	case errors.As(err, new(*filterParseError)):
		h.logger.WithError(err).Warn("Неверные параметры фильтра")
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.WithError(err).Error("Ошибка загрузки данных")
		http.Error(w, "Ошибка загрузки данных", http.StatusInternalServerError)
	}
}

// filterParseError - ошибка разбора параметров фильтра из строки запроса
type filterParseError struct {
	param string
	cause error
}

func (e *filterParseError) Error() string {
	return fmt.Sprintf("неверный параметр %s: %v", e.param, e.cause)
}

func (e *filterParseError) Unwrap() error { return e.cause }

// parseFilterSpec собирает FilterSpec из параметров строки запроса.
// Отсутствующие параметры не ограничивают выборку.
func parseFilterSpec(r *http.Request) (model.FilterSpec, bool, error) {
	q := r.URL.Query()
	var spec model.FilterSpec

	if v := q.Get("currencies"); v != "" {
		spec.Currencies = strings.Split(v, ",")
	}

	if v := q.Get("types"); v != "" {
		for _, part := range strings.Split(v, ",") {
			calcType, err := strconv.Atoi(part)
			if err != nil {
				return spec, false, &filterParseError{param: "types", cause: err}
			}
			spec.CalculationTypes = append(spec.CalculationTypes, calcType)
		}
	}

	if v := q.Get("reinvest"); v != "" {
		for _, part := range strings.Split(v, ",") {
			enabled, err := strconv.ParseBool(part)
			if err != nil {
				return spec, false, &filterParseError{param: "reinvest", cause: err}
			}
			spec.ReinvestValues = append(spec.ReinvestValues, enabled)
		}
	}

	dates, err := parseDateRange(q.Get("date_from"), q.Get("date_to"))
	if err != nil {
		return spec, false, err
	}
	spec.Dates = dates

	if spec.InitialSumRange, err = parseFloatRange(q, "initial_min", "initial_max"); err != nil {
		return spec, false, err
	}
	if spec.InterestRange, err = parseFloatRange(q, "rate_min", "rate_max"); err != nil {
		return spec, false, err
	}
	if spec.FinalAmountRange, err = parseFloatRange(q, "final_min", "final_max"); err != nil {
		return spec, false, err
	}
	if spec.ProfitRange, err = parseFloatRange(q, "profit_min", "profit_max"); err != nil {
		return spec, false, err
	}
	if spec.TargetSumRange, err = parseFloatRange(q, "target_min", "target_max"); err != nil {
		return spec, false, err
	}
	if spec.PeriodRange, err = parseIntRange(q, "period_min", "period_max"); err != nil {
		return spec, false, err
	}

	converted := false
	if v := q.Get("convert"); v != "" {
		converted, err = strconv.ParseBool(v)
		if err != nil {
			return spec, false, &filterParseError{param: "convert", cause: err}
		}
	}

	return spec, converted, nil
}

func parseDateRange(fromStr, toStr string) (*model.DateRange, error) {
	if fromStr == "" && toStr == "" {
		return nil, nil
	}

	dates := &model.DateRange{
		From: time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	if fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return nil, &filterParseError{param: "date_from", cause: err}
		}
		dates.From = from
	}
	if toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return nil, &filterParseError{param: "date_to", cause: err}
		}
		dates.To = to
	}
	return dates, nil
}

func parseFloatRange(q map[string][]string, minParam, maxParam string) (*model.FloatRange, error) {
	minStr := firstValue(q, minParam)
	maxStr := firstValue(q, maxParam)
	if minStr == "" && maxStr == "" {
		return nil, nil
	}

	rng := &model.FloatRange{Min: math.Inf(-1), Max: math.Inf(1)}
	if minStr != "" {
		v, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return nil, &filterParseError{param: minParam, cause: err}
		}
		rng.Min = v
	}
	if maxStr != "" {
		v, err := strconv.ParseFloat(maxStr, 64)
		if err != nil {
			return nil, &filterParseError{param: maxParam, cause: err}
		}
		rng.Max = v
	}
	return rng, nil
}

func parseIntRange(q map[string][]string, minParam, maxParam string) (*model.IntRange, error) {
	minStr := firstValue(q, minParam)
	maxStr := firstValue(q, maxParam)
	if minStr == "" && maxStr == "" {
		return nil, nil
	}

	rng := &model.IntRange{Min: math.MinInt, Max: math.MaxInt}
	if minStr != "" {
		v, err := strconv.Atoi(minStr)
		if err != nil {
			return nil, &filterParseError{param: minParam, cause: err}
		}
		rng.Min = v
	}
	if maxStr != "" {
		v, err := strconv.Atoi(maxStr)
		if err != nil {
			return nil, &filterParseError{param: maxParam, cause: err}
		}
		rng.Max = v
	}
	return rng, nil
}

func firstValue(q map[string][]string, key string) string {
	if values, ok := q[key]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}
