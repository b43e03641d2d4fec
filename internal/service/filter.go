package service

import (
	"time"

	"calcus-analytics/internal/model"
)

// ApplyFilter применяет все условия спецификации к каждой записи и оставляет
// записи, удовлетворяющие каждому условию (логическое "И"). Функция чистая:
// входной срез не изменяется, порядок записей сохраняется. Все диапазоны
// включают границы; диапазон дат сравнивает только датовую часть created_at.
//
// Условия по периоду и целевой сумме зависят от типа расчета и записываются
// в форме "тип не совпадает ИЛИ значение в диапазоне", поэтому записи
// других типов они никогда не отбрасывают.
func ApplyFilter(records []model.CalculationRecord, spec model.FilterSpec) []model.CalculationRecord {
	if spec.IsEmpty() {
		return records
	}

	filtered := make([]model.CalculationRecord, 0, len(records))
	for _, record := range records {
		if matchesFilter(&record, &spec) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func matchesFilter(record *model.CalculationRecord, spec *model.FilterSpec) bool {
	if len(spec.Currencies) > 0 && !containsString(spec.Currencies, record.Currency) {
		return false
	}
	if len(spec.CalculationTypes) > 0 && !containsInt(spec.CalculationTypes, record.CalculationType) {
		return false
	}
	if len(spec.ReinvestValues) > 0 && !containsBool(spec.ReinvestValues, record.ReinvestEnabled) {
		return false
	}
	if spec.Dates != nil && !dateWithin(record.CreatedAt, spec.Dates) {
		return false
	}
	if spec.InitialSumRange != nil && !spec.InitialSumRange.Contains(record.InitialSum) {
		return false
	}
	if spec.InterestRange != nil && !spec.InterestRange.Contains(record.InterestRate) {
		return false
	}
	if spec.FinalAmountRange != nil && !spec.FinalAmountRange.Contains(record.FinalAmount) {
		return false
	}
	if spec.ProfitRange != nil && !spec.ProfitRange.Contains(record.TotalProfit) {
		return false
	}

	// Условие по периоду ограничивает только расчеты "итоговая сумма"
	if spec.PeriodRange != nil && record.IsFinalAmount() {
		if record.Period == nil || !spec.PeriodRange.Contains(*record.Period) {
			return false
		}
	}

	// Условие по целевой сумме ограничивает только расчеты "срок достижения цели"
	if spec.TargetSumRange != nil && record.IsTimeToGoal() {
		if record.TargetSum == nil || !spec.TargetSumRange.Contains(*record.TargetSum) {
			return false
		}
	}

	return true
}

// dateWithin сравнивает только датовую часть момента создания записи
func dateWithin(createdAt time.Time, dates *model.DateRange) bool {
	day := truncateToDay(createdAt)
	return !day.Before(truncateToDay(dates.From)) && !day.After(truncateToDay(dates.To))
}

// truncateToDay берет календарную дату момента в его собственном часовом
// поясе и приводит ее к UTC, поэтому запись и границы диапазона сравниваются
// по дате независимо от пояса, в котором драйвер вернул timestamp
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func containsBool(values []bool, v bool) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
