package model

import "time"

// Summary - основные метрики по отфильтрованной выборке
type Summary struct {
	TotalCalculations  int     `json:"total_calculations"`
	UniqueClients      int     `json:"unique_clients"`
	MedianInitialSum   float64 `json:"median_initial_sum"`
	MedianInterestRate float64 `json:"median_interest_rate"`
	MedianFinalAmount  float64 `json:"median_final_amount"`
	MedianTotalProfit  float64 `json:"median_total_profit"`
	TotalInvested      float64 `json:"total_invested"`
	TotalProfit        float64 `json:"total_profit"`
}

// TypeStat - статистика по одному типу расчетов
type TypeStat struct {
	CalculationType int    `json:"calculation_type"`
	TypeName        string `json:"type_name"`
	Count           int    `json:"count"`
	UniqueClients   int    `json:"unique_clients"`
}

// HistogramBin - один диапазон гистограммы. Диапазоны полуоткрытые
// [From, To), последний не ограничен сверху.
type HistogramBin struct {
	Label string  `json:"label"`
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// TimeGoalStats - статистика по расчетам "срок достижения цели"
type TimeGoalStats struct {
	Count              int            `json:"count"`
	AvgTimeMonths      float64        `json:"avg_time_months"`
	MedianTimeMonths   float64        `json:"median_time_months"`
	AvgTargetSum       float64        `json:"avg_target_sum"`
	TimeDistribution   []HistogramBin `json:"time_distribution"`
	TargetDistribution []HistogramBin `json:"target_distribution"`
}

// DailyActivity - активность за один день
type DailyActivity struct {
	Date          time.Time `json:"date"`
	Calculations  int       `json:"calculations"`
	UniqueClients int       `json:"unique_clients"`
}

// CurrencyStat - статистика по одной валюте
type CurrencyStat struct {
	Currency      string  `json:"currency"`
	Count         int     `json:"count"`
	AvgInitialSum float64 `json:"avg_initial_sum"`
}

// TopClient - один из самых активных пользователей
type TopClient struct {
	ClientID        string    `json:"client_id"`
	Calculations    int       `json:"calculations"`
	AvgInitialSum   float64   `json:"avg_initial_sum"`
	AvgFinalAmount  float64   `json:"avg_final_amount"`
	LastCalculation time.Time `json:"last_calculation"`
}

// Heatmap - тепловая карта активности: количество расчетов по часам (0-23)
// и дням недели (0-6, 0 = воскресенье у PostgreSQL EXTRACT(dow)).
// Отсутствующие комбинации заполнены нулями.
type Heatmap struct {
	DayLabels []string   `json:"day_labels"`
	Counts    [24][7]int `json:"counts"`
	Total     int        `json:"total"`
}

// PerformanceStats - статистика времени ответа API калькулятора
type PerformanceStats struct {
	AvgResponseMs    float64 `json:"avg_response_ms"`
	MedianResponseMs float64 `json:"median_response_ms"`
	MaxResponseMs    float64 `json:"max_response_ms"`
}

// SummaryTable - сводная статистика для итоговой таблицы
type SummaryTable struct {
	TotalInvested   float64 `json:"total_invested"`
	TotalProfit     float64 `json:"total_profit"`
	AvgPeriodYears  float64 `json:"avg_period_years"`
	PopularCurrency string  `json:"popular_currency"`
}

// DashboardMeta - сведения об отфильтрованной выборке относительно всей БД
type DashboardMeta struct {
	TotalRecords    int       `json:"total_records"`
	FilteredRecords int       `json:"filtered_records"`
	FilterRatio     float64   `json:"filter_ratio"`
	PeriodFrom      time.Time `json:"period_from"`
	PeriodTo        time.Time `json:"period_to"`
	Converted       bool      `json:"converted"`
}
