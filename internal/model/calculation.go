package model

import (
	"fmt"
	"time"
)

// Типы расчетов калькулятора инвестиций
const (
	CalculationTypeFinalAmount = 1 // Итоговая сумма
	CalculationTypeTimeToGoal  = 4 // Срок достижения цели
)

// Поддерживаемые валюты
const (
	CurrencyRUB = "RUB"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

// CalculationTypeNames - отображаемые названия типов расчетов
var CalculationTypeNames = map[int]string{
	CalculationTypeFinalAmount: "Итоговая сумма",
	CalculationTypeTimeToGoal:  "Срок достижения цели",
}

// CalculationRecord - одна запись о расчете, выполненном пользователем калькулятора.
// Поля TargetSum и Period зависят от типа расчета: целевая сумма задана только
// для расчетов "срок достижения цели", период - только для "итоговая сумма".
// Записи других типов проходят через конвейер без изменений.
type CalculationRecord struct {
	ID                int64     `json:"id"`
	ClientID          string    `json:"client_id"`
	CreatedAt         time.Time `json:"created_at"`
	UserIP            string    `json:"user_ip"`
	UserAgent         string    `json:"user_agent"`
	CalculationType   int       `json:"calculation_type"`
	InitialSum        float64   `json:"initial_sum"`
	TargetSum         *float64  `json:"target_sum,omitempty"`
	Period            *int      `json:"period,omitempty"`
	PeriodUnit        string    `json:"period_unit"`
	InterestRate      float64   `json:"interest_rate"`
	ReinvestEnabled   bool      `json:"reinvest_enabled"`
	ReinvestPeriod    string    `json:"reinvest_period,omitempty"`
	AddPeriod         string    `json:"add_period,omitempty"`
	AddSum            *float64  `json:"add_sum,omitempty"`
	Currency          string    `json:"currency"`
	FinalAmount       float64   `json:"final_amount"`
	TotalProfit       float64   `json:"total_profit"`
	TotalContribution float64   `json:"total_contributions"`
	EffectiveRate     float64   `json:"effective_rate"`
	TimeMonths        *float64  `json:"time_months,omitempty"`
	TimeFormatted     string    `json:"time_formatted,omitempty"`
	APIResponseTimeMs float64   `json:"api_response_time_ms"`
	Version           string    `json:"calculation_version"`

	// Производные колонки, вычисляемые запросом из created_at
	DateOnly  time.Time `json:"date_only"`
	HourOnly  int       `json:"hour_only"`
	DayOfWeek int       `json:"day_of_week"`
}

// IsFinalAmount сообщает, является ли запись расчетом итоговой суммы
func (r *CalculationRecord) IsFinalAmount() bool {
	return r.CalculationType == CalculationTypeFinalAmount
}

// IsTimeToGoal сообщает, является ли запись расчетом срока достижения цели
func (r *CalculationRecord) IsTimeToGoal() bool {
	return r.CalculationType == CalculationTypeTimeToGoal
}

// TypeName возвращает отображаемое название типа расчета
func (r *CalculationRecord) TypeName() string {
	return CalculationTypeName(r.CalculationType)
}

// CalculationTypeName возвращает название типа или "Тип N" для неизвестных типов
func CalculationTypeName(calcType int) string {
	if name, ok := CalculationTypeNames[calcType]; ok {
		return name
	}
	return fmt.Sprintf("Тип %d", calcType)
}

// RateTable - курсы валют к рублю. Всегда содержит RUB со значением 1.0.
// Таблица перестраивается целиком при каждом обновлении.
type RateTable map[string]float64

// Rate возвращает курс валюты к рублю (1.0 для рубля и неизвестных валют)
func (t RateTable) Rate(currency string) float64 {
	if currency == CurrencyRUB {
		return 1.0
	}
	if rate, ok := t[currency]; ok {
		return rate
	}
	return 1.0
}
